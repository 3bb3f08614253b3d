// Package memstore provides a store.Driver that keeps all state in process
// memory. Transactions run against a copy of the state that replaces the
// original on commit, so a failed transaction leaves nothing behind.
//
// One mutex guards the whole state, so transactions on different auctions
// run one at a time. Use the postgres driver when many auctions are busy at
// once.
package memstore

import (
	"context"
	"maps"
	"sync"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/config"
	"github.com/jensholdgaard/discord-auction-bot/internal/event"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

func init() {
	store.Register("memory", openMemory)
}

func openMemory(_ context.Context, _ config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	return New(clk).Repositories(), nil
}

type eventKey struct {
	aggregateID string
	version     int
}

type state struct {
	nextAuctionID int64
	nextBidID     int64

	auctions    map[int64]store.Auction
	bids        map[int64][]store.Bid
	highest     map[int64]int // auction id -> index into bids
	cooldowns   map[string]store.Cooldown
	auctioneers map[string]store.Participant
	optIns      map[string]store.Participant
	events      []event.Event
	eventKeys   map[eventKey]struct{}
}

func newState() *state {
	return &state{
		auctions:    make(map[int64]store.Auction),
		bids:        make(map[int64][]store.Bid),
		highest:     make(map[int64]int),
		cooldowns:   make(map[string]store.Cooldown),
		auctioneers: make(map[string]store.Participant),
		optIns:      make(map[string]store.Participant),
		eventKeys:   make(map[eventKey]struct{}),
	}
}

// clone copies the maps of s. Slices are shared: the lock held for the
// lifetime of a transaction guarantees the original is never appended to
// while the copy is alive, and appends past the original length are invisible
// to it.
func (s *state) clone() *state {
	return &state{
		nextAuctionID: s.nextAuctionID,
		nextBidID:     s.nextBidID,
		auctions:      maps.Clone(s.auctions),
		bids:          maps.Clone(s.bids),
		highest:       maps.Clone(s.highest),
		cooldowns:     maps.Clone(s.cooldowns),
		auctioneers:   maps.Clone(s.auctioneers),
		optIns:        maps.Clone(s.optIns),
		events:        s.events,
		eventKeys:     maps.Clone(s.eventKeys),
	}
}

// Store is an in-memory backend. The zero value is not usable; call New.
type Store struct {
	mu    sync.Mutex
	st    *state
	clock clock.Clock
}

// New returns an empty Store.
func New(clk clock.Clock) *Store {
	return &Store{st: newState(), clock: clk}
}

// runner executes fn against some state.
type runner func(fn func(st *state) error) error

// direct applies fn to the live state under the store lock.
func (s *Store) direct(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) tx(run runner) *store.Tx {
	return &store.Tx{
		Auctions:    &AuctionRepo{run: run, clock: s.clock},
		Bids:        &BidRepo{run: run},
		Cooldowns:   &CooldownRepo{run: run},
		Auctioneers: &ParticipantRepo{run: run, set: auctioneerSet, clock: s.clock},
		OptIns:      &ParticipantRepo{run: run, set: optInSet, clock: s.clock},
		Events:      &EventStore{run: run, clock: s.clock},
	}
}

// InTx implements store.Transactor.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx *store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	run := func(f func(st *state) error) error { return f(work) }
	if err := fn(ctx, s.tx(run)); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Repositories returns repositories that operate on s outside of any
// transaction; each call is atomic on its own.
func (s *Store) Repositories() *store.Repositories {
	tx := s.tx(s.direct)
	return &store.Repositories{
		Auctions:    tx.Auctions,
		Bids:        tx.Bids,
		Cooldowns:   tx.Cooldowns,
		Auctioneers: tx.Auctioneers,
		OptIns:      tx.OptIns,
		Events:      tx.Events,
		Tx:          s,
		Closer:      store.CloserFunc(func() error { return nil }),
		Ping:        func(context.Context) error { return nil },
	}
}
