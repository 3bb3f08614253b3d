package store

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/config"
	"github.com/jensholdgaard/discord-auction-bot/internal/event"
)

// Repositories groups all repository implementations returned by a store driver.
type Repositories struct {
	Auctions    AuctionRepository
	Bids        BidRepository
	Cooldowns   CooldownRepository
	Auctioneers ParticipantRepository
	OptIns      ParticipantRepository
	Events      event.Store
	Tx          Transactor
	// Closer is called to release underlying resources (e.g. DB connection).
	Closer io.Closer
	// Ping checks the underlying connection health.
	Ping func(ctx context.Context) error
}

// Driver is a function that opens a connection and returns Repositories.
type Driver func(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*Repositories, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Driver{}
)

// Register adds a named driver. It is intended to be called from init() in
// each driver package and panics on a nil or duplicate driver.
func Register(name string, d Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if d == nil {
		panic("store: Register driver is nil")
	}
	if _, dup := registry[name]; dup {
		panic("store: Register called twice for driver " + name)
	}
	registry[name] = d
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Open selects the driver named by cfg.Driver. A driver that returns an
// incomplete set of repositories is closed and reported as an error.
func Open(ctx context.Context, cfg config.DatabaseConfig, clk clock.Clock) (*Repositories, error) {
	registryMu.RLock()
	d, ok := registry[cfg.Driver]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown store driver %q (registered: %v)", cfg.Driver, Drivers())
	}

	repos, err := d(ctx, cfg, clk)
	if err != nil {
		return nil, err
	}
	if missing := repos.missing(); len(missing) > 0 {
		if repos.Closer != nil {
			_ = repos.Closer.Close()
		}
		return nil, fmt.Errorf("store driver %q did not provide %s", cfg.Driver, strings.Join(missing, ", "))
	}
	return repos, nil
}

func (r *Repositories) missing() []string {
	var out []string
	for _, f := range []struct {
		name string
		nil  bool
	}{
		{"auctions", r.Auctions == nil},
		{"bids", r.Bids == nil},
		{"cooldowns", r.Cooldowns == nil},
		{"auctioneers", r.Auctioneers == nil},
		{"opt-ins", r.OptIns == nil},
		{"events", r.Events == nil},
		{"transactor", r.Tx == nil},
		{"closer", r.Closer == nil},
		{"ping", r.Ping == nil},
	} {
		if f.nil {
			out = append(out, f.name)
		}
	}
	return out
}

// CloserFunc adapts a func() error into an io.Closer.
type CloserFunc func() error

// Close calls f.
func (f CloserFunc) Close() error { return f() }
