package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// BidRepo implements store.BidRepository with sqlx.
type BidRepo struct {
	db sqlx.ExtContext
}

// NewBidRepo returns a new BidRepo.
func NewBidRepo(db sqlx.ExtContext) *BidRepo {
	return &BidRepo{db: db}
}

func (r *BidRepo) Append(ctx context.Context, b *store.Bid) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO bids (auction_id, bidder_id, amount, placed_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		b.AuctionID, b.BidderID, b.Amount, b.PlacedAt,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("inserting bid: %w", mapErr(err))
	}
	return nil
}

// Highest uses the (auction_id, amount DESC, id) index.
func (r *BidRepo) Highest(ctx context.Context, auctionID int64) (*store.Bid, error) {
	var b store.Bid
	err := sqlx.GetContext(ctx, r.db, &b,
		`SELECT id, auction_id, bidder_id, amount, placed_at FROM bids
		 WHERE auction_id = $1 ORDER BY amount DESC, id ASC LIMIT 1`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("highest bid for auction %d: %w", auctionID, mapErr(err))
	}
	return &b, nil
}

func (r *BidRepo) ListByAuction(ctx context.Context, auctionID int64) ([]store.Bid, error) {
	var bids []store.Bid
	err := sqlx.SelectContext(ctx, r.db, &bids,
		`SELECT id, auction_id, bidder_id, amount, placed_at FROM bids
		 WHERE auction_id = $1 ORDER BY placed_at, id`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("listing bids: %w", err)
	}
	return bids, nil
}
