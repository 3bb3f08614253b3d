package memstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// BidRepo implements store.BidRepository in memory. The highest bid of each
// auction is tracked on append, so Highest is O(1).
type BidRepo struct {
	run runner
}

func (r *BidRepo) Append(_ context.Context, b *store.Bid) error {
	return r.run(func(st *state) error {
		if _, ok := st.auctions[b.AuctionID]; !ok {
			return fmt.Errorf("bid for auction %d: %w", b.AuctionID, store.ErrNotFound)
		}
		st.nextBidID++
		b.ID = st.nextBidID
		st.bids[b.AuctionID] = append(st.bids[b.AuctionID], *b)

		idx, ok := st.highest[b.AuctionID]
		if !ok || b.Amount > st.bids[b.AuctionID][idx].Amount {
			st.highest[b.AuctionID] = len(st.bids[b.AuctionID]) - 1
		}
		return nil
	})
}

func (r *BidRepo) Highest(_ context.Context, auctionID int64) (*store.Bid, error) {
	var out store.Bid
	err := r.run(func(st *state) error {
		idx, ok := st.highest[auctionID]
		if !ok {
			return fmt.Errorf("highest bid for auction %d: %w", auctionID, store.ErrNotFound)
		}
		out = st.bids[auctionID][idx]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *BidRepo) ListByAuction(_ context.Context, auctionID int64) ([]store.Bid, error) {
	var out []store.Bid
	err := r.run(func(st *state) error {
		out = slices.Clone(st.bids[auctionID])
		return nil
	})
	return out, err
}
