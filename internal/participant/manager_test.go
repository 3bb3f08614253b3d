package participant_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/event"
	"github.com/jensholdgaard/discord-auction-bot/internal/participant"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
	"github.com/jensholdgaard/discord-auction-bot/internal/store/memstore"
)

var testTP = noop.NewTracerProvider()

func newManager(t *testing.T) (*participant.Manager, *store.Repositories) {
	t.Helper()
	repos := memstore.New(clock.Mock{T: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}).Repositories()
	return participant.NewManager(repos, slog.Default(), testTP), repos
}

func TestManager_ToggleAuctioneer(t *testing.T) {
	mgr, repos := newManager(t)
	ctx := context.Background()

	added, err := mgr.ToggleAuctioneer(ctx, "u1")
	if err != nil {
		t.Fatalf("ToggleAuctioneer() error = %v", err)
	}
	if !added {
		t.Error("first toggle should add")
	}
	if ok, _ := mgr.IsAuctioneer(ctx, "u1"); !ok {
		t.Error("IsAuctioneer() = false after add")
	}

	list, err := mgr.ListAuctioneers(ctx)
	if err != nil || len(list) != 1 || list[0].UserID != "u1" {
		t.Errorf("ListAuctioneers() = %+v, %v", list, err)
	}

	added, err = mgr.ToggleAuctioneer(ctx, "u1")
	if err != nil {
		t.Fatalf("ToggleAuctioneer() error = %v", err)
	}
	if added {
		t.Error("second toggle should remove")
	}
	if ok, _ := mgr.IsAuctioneer(ctx, "u1"); ok {
		t.Error("IsAuctioneer() = true after remove")
	}

	events, err := repos.Events.Load(ctx, "auctioneer-u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Type != event.AuctioneerAdded || events[1].Type != event.AuctioneerRemoved {
		t.Errorf("events = %+v", events)
	}
}

func TestManager_SetOutbidOptIn(t *testing.T) {
	mgr, repos := newManager(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		enabled     bool
		wantChanged bool
	}{
		{"enable", true, true},
		{"enable again", true, false},
		{"disable", false, true},
		{"disable again", false, false},
	}
	for _, tt := range tests {
		changed, err := mgr.SetOutbidOptIn(ctx, "u1", tt.enabled)
		if err != nil {
			t.Fatalf("%s: SetOutbidOptIn() error = %v", tt.name, err)
		}
		if changed != tt.wantChanged {
			t.Errorf("%s: changed = %v, want %v", tt.name, changed, tt.wantChanged)
		}
		if ok, _ := mgr.OptedIn(ctx, "u1"); ok != tt.enabled {
			t.Errorf("%s: OptedIn() = %v, want %v", tt.name, ok, tt.enabled)
		}
	}

	events, _ := repos.Events.LoadByType(ctx, event.OptInEnabled)
	if len(events) != 1 {
		t.Errorf("opt-in enabled events = %d, want 1", len(events))
	}
}

type brokenTx struct{}

func (brokenTx) InTx(context.Context, func(context.Context, *store.Tx) error) error {
	return errors.New("db down")
}

func TestManager_ToggleAuctioneer_StorageError(t *testing.T) {
	_, repos := newManager(t)
	repos.Tx = brokenTx{}
	mgr := participant.NewManager(repos, slog.Default(), testTP)

	if _, err := mgr.ToggleAuctioneer(context.Background(), "u1"); err == nil {
		t.Fatal("expected error when the transaction fails")
	}
}
