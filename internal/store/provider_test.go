package store_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/config"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"

	// Import drivers so their init() functions register them.
	"github.com/jensholdgaard/discord-auction-bot/internal/store/memstore"
	_ "github.com/jensholdgaard/discord-auction-bot/internal/store/postgres"
	_ "github.com/jensholdgaard/discord-auction-bot/internal/store/sqlite"
)

// fakeDriver is a store.Driver that succeeds without connecting to a DB.
func fakeDriver(_ context.Context, _ config.DatabaseConfig, clk clock.Clock) (*store.Repositories, error) {
	return memstore.New(clk).Repositories(), nil
}

type closeCounter struct{ n int }

func (c *closeCounter) Close() error {
	c.n++
	return nil
}

func TestOpen(t *testing.T) {
	store.Register("test-driver", fakeDriver)

	closer := &closeCounter{}
	store.Register("test-incomplete", func(context.Context, config.DatabaseConfig, clock.Clock) (*store.Repositories, error) {
		return &store.Repositories{Closer: closer}, nil
	})

	tests := []struct {
		name    string
		driver  string
		wantErr string
	}{
		{name: "registered driver succeeds", driver: "test-driver"},
		{name: "unknown driver fails", driver: "nonexistent", wantErr: "unknown store driver"},
		{name: "incomplete driver fails", driver: "test-incomplete", wantErr: "did not provide auctions, bids"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DatabaseConfig{Driver: tt.driver}
			_, err := store.Open(context.Background(), cfg, clock.Real{})
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Open(driver=%q) error = %v", tt.driver, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Open(driver=%q) error = %v, want %q", tt.driver, err, tt.wantErr)
			}
		})
	}
	if closer.n != 1 {
		t.Errorf("incomplete driver closed %d times, want 1", closer.n)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("registering memory twice should panic")
		}
	}()
	store.Register("memory", fakeDriver)
}

func TestDrivers(t *testing.T) {
	got := strings.Join(store.Drivers(), ",")
	for _, want := range []string{"memory", "postgres", "sqlite"} {
		if !strings.Contains(got, want) {
			t.Errorf("Drivers() = %s, missing %s", got, want)
		}
	}
}

func TestRegister(t *testing.T) {
	// Drivers register themselves via init() imports. The postgres driver
	// fails to connect (no DB), so only check the error is NOT
	// "unknown store driver".
	cfg := config.DatabaseConfig{Driver: "postgres", Host: "localhost", Port: 1}
	_, err := store.Open(context.Background(), cfg, clock.Real{})
	if err == nil {
		t.Fatal("expected error (no DB running), got nil")
	}
	if strings.Contains(err.Error(), "unknown store driver") {
		t.Errorf("expected connection error, got unknown driver error: %v", err)
	}
}

func TestOpen_EmbeddedDrivers(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
	}{
		{name: "memory", cfg: config.DatabaseConfig{Driver: "memory"}},
		{name: "sqlite", cfg: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "auctions.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos, err := store.Open(context.Background(), tt.cfg, clock.Real{})
			if err != nil {
				t.Fatalf("Open(driver=%q) error = %v", tt.cfg.Driver, err)
			}
			defer repos.Closer.Close()

			if err := repos.Ping(context.Background()); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
			if repos.Tx == nil || repos.Auctions == nil || repos.Events == nil {
				t.Errorf("Open(driver=%q) returned incomplete repositories", tt.cfg.Driver)
			}
		})
	}
}
