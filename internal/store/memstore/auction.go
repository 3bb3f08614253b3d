package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// AuctionRepo implements store.AuctionRepository in memory.
type AuctionRepo struct {
	run   runner
	clock clock.Clock
}

func (r *AuctionRepo) Create(_ context.Context, a *store.Auction) error {
	return r.run(func(st *state) error {
		st.nextAuctionID++
		a.ID = st.nextAuctionID
		if a.CreatedAt.IsZero() {
			a.CreatedAt = r.clock.Now().UTC()
		}
		if a.Status == "" {
			a.Status = store.StatusOpen
		}
		st.auctions[a.ID] = cloneAuction(*a)
		return nil
	})
}

func (r *AuctionRepo) GetByID(_ context.Context, id int64) (*store.Auction, error) {
	var out store.Auction
	err := r.run(func(st *state) error {
		a, ok := st.auctions[id]
		if !ok {
			return fmt.Errorf("auction %d: %w", id, store.ErrNotFound)
		}
		out = cloneAuction(a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForUpdate is GetByID: the transaction already holds the store lock.
func (r *AuctionRepo) GetForUpdate(ctx context.Context, id int64) (*store.Auction, error) {
	return r.GetByID(ctx, id)
}

func (r *AuctionRepo) Update(_ context.Context, a *store.Auction) error {
	return r.run(func(st *state) error {
		if _, ok := st.auctions[a.ID]; !ok {
			return fmt.Errorf("auction %d: %w", a.ID, store.ErrNotFound)
		}
		st.auctions[a.ID] = cloneAuction(*a)
		return nil
	})
}

func (r *AuctionRepo) ListDue(_ context.Context, now time.Time) ([]store.Auction, error) {
	return r.list(func(a store.Auction) bool {
		return a.Status == store.StatusOpen && !a.EndTime.After(now)
	})
}

func (r *AuctionRepo) ListOpen(_ context.Context, now time.Time) ([]store.Auction, error) {
	return r.list(func(a store.Auction) bool {
		return a.Status == store.StatusOpen && a.EndTime.After(now)
	})
}

func (r *AuctionRepo) list(keep func(store.Auction) bool) ([]store.Auction, error) {
	var out []store.Auction
	err := r.run(func(st *state) error {
		for _, a := range st.auctions {
			if keep(a) {
				out = append(out, cloneAuction(a))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].EndTime.Equal(out[j].EndTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].EndTime.Before(out[j].EndTime)
	})
	return out, err
}

func cloneAuction(a store.Auction) store.Auction {
	a.BuyoutPrice = clonePtr(a.BuyoutPrice)
	a.CurrentBid = clonePtr(a.CurrentBid)
	a.CurrentBidder = clonePtr(a.CurrentBidder)
	a.WinnerID = clonePtr(a.WinnerID)
	a.CloseReason = clonePtr(a.CloseReason)
	a.ClosedAt = clonePtr(a.ClosedAt)
	return a
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
