package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/discord-auction-bot/internal/auction"
	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/store/postgres"
)

type nobody struct{}

func (nobody) IsAuctioneer(context.Context, string) (bool, error) { return false, nil }
func (nobody) OptedIn(context.Context, string) (bool, error)      { return false, nil }

// Two managers on one database stand in for two replicas: only row locks
// keep their bids on the same auction apart.
func TestManager_ConcurrentBidsAcrossReplicas(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	clk := clock.NewManual(testNow)

	newMgr := func() *auction.Manager {
		repos := postgres.New(db, clk).Repositories()
		return auction.NewManager(repos, nobody{}, slog.Default(), noop.NewTracerProvider(), metricnoop.NewMeterProvider(), clk)
	}
	replicas := []*auction.Manager{newMgr(), newMgr()}

	a, err := replicas[0].CreateAuction(ctx, auction.CreateParams{
		ItemRef: "item-1", Creator: "creator", MinBid: 10, Interval: 5, Duration: time.Hour,
	})
	if err != nil {
		t.Fatalf("CreateAuction: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		maxBid   int64
	)
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			amount := int64(10 + (i*53)%400)
			_, err := replicas[i%2].PlaceBid(ctx, a.ID, fmt.Sprintf("user-%d", i), amount)
			if err != nil {
				if !auction.IsRejection(err) {
					t.Errorf("PlaceBid: %v", err)
				}
				return
			}
			mu.Lock()
			accepted++
			maxBid = max(maxBid, amount)
			mu.Unlock()
		}()
	}
	wg.Wait()

	snap, err := replicas[1].GetAuction(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.CurrentBid == nil || *snap.CurrentBid != maxBid {
		t.Errorf("current bid = %v, want %d", snap.CurrentBid, maxBid)
	}
	if len(snap.Bids) != accepted {
		t.Errorf("ledger has %d bids, %d calls accepted", len(snap.Bids), accepted)
	}

	hist, err := replicas[0].History(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if hist.Version != snap.Version {
		t.Errorf("event log version %d, record version %d", hist.Version, snap.Version)
	}
}

func TestManager_CooldownAcrossReplicas(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	clk := clock.NewManual(testNow)
	mgr := auction.NewManager(postgres.New(db, clk).Repositories(), nobody{}, slog.Default(),
		noop.NewTracerProvider(), metricnoop.NewMeterProvider(), clk)

	p := auction.CreateParams{ItemRef: "item-1", Creator: "creator", MinBid: 10, Interval: 5, Duration: time.Hour}
	first, err := mgr.CreateAuction(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.CreateAuction(ctx, p); !errors.Is(err, auction.ErrCooldownActive) {
		t.Errorf("second CreateAuction error = %v, want ErrCooldownActive", err)
	}

	clk.Set(first.EndTime.Add(auction.DefaultCooldown))
	if _, err := mgr.CreateAuction(ctx, p); err != nil {
		t.Errorf("CreateAuction after cooldown: %v", err)
	}
}
