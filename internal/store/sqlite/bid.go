package sqlite

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// BidRepo implements store.BidRepository with gorm.
type BidRepo struct {
	db *gorm.DB
}

func (r *BidRepo) Append(ctx context.Context, b *store.Bid) error {
	row := bidRow{
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		PlacedAt:  b.PlacedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("inserting bid: %w", mapErr(err))
	}
	b.ID = row.ID
	return nil
}

func (r *BidRepo) Highest(ctx context.Context, auctionID int64) (*store.Bid, error) {
	var row bidRow
	err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("amount DESC, id ASC").
		Take(&row).Error
	if err != nil {
		return nil, fmt.Errorf("highest bid for auction %d: %w", auctionID, mapErr(err))
	}
	b := row.record()
	return &b, nil
}

func (r *BidRepo) ListByAuction(ctx context.Context, auctionID int64) ([]store.Bid, error) {
	var rows []bidRow
	err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("placed_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing bids: %w", err)
	}
	bids := make([]store.Bid, 0, len(rows))
	for _, row := range rows {
		bids = append(bids, row.record())
	}
	return bids, nil
}
