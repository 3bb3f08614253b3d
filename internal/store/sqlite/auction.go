package sqlite

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// AuctionRepo implements store.AuctionRepository with gorm.
type AuctionRepo struct {
	db *gorm.DB
}

func (r *AuctionRepo) Create(ctx context.Context, a *store.Auction) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.db.NowFunc()
	}
	if a.Status == "" {
		a.Status = store.StatusOpen
	}
	row := newAuctionRow(a)
	row.ID = 0
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("inserting auction: %w", mapErr(err))
	}
	a.ID = row.ID
	return nil
}

func (r *AuctionRepo) GetByID(ctx context.Context, id int64) (*store.Auction, error) {
	var row auctionRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, fmt.Errorf("getting auction %d: %w", id, mapErr(err))
	}
	a := row.record()
	return &a, nil
}

// GetForUpdate is GetByID: the single connection already serializes
// transactions.
func (r *AuctionRepo) GetForUpdate(ctx context.Context, id int64) (*store.Auction, error) {
	return r.GetByID(ctx, id)
}

func (r *AuctionRepo) Update(ctx context.Context, a *store.Auction) error {
	row := newAuctionRow(a)
	result := r.db.WithContext(ctx).Model(&auctionRow{}).Where("id = ?", a.ID).Updates(map[string]any{
		"channel_id":     row.ChannelID,
		"message_id":     row.MessageID,
		"min_bid":        row.MinBid,
		"bid_interval":   row.BidInterval,
		"buyout_price":   row.BuyoutPrice,
		"current_bid":    row.CurrentBid,
		"current_bidder": row.CurrentBidder,
		"winner_id":      row.WinnerID,
		"status":         row.Status,
		"close_reason":   row.CloseReason,
		"end_time":       row.EndTime,
		"closed_at":      row.ClosedAt,
		"version":        row.Version,
	})
	if result.Error != nil {
		return fmt.Errorf("updating auction %d: %w", a.ID, mapErr(result.Error))
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("updating auction %d: %w", a.ID, store.ErrNotFound)
	}
	return nil
}

func (r *AuctionRepo) ListDue(ctx context.Context, now time.Time) ([]store.Auction, error) {
	return r.list(ctx, "status = ? AND end_time <= ?", now)
}

func (r *AuctionRepo) ListOpen(ctx context.Context, now time.Time) ([]store.Auction, error) {
	return r.list(ctx, "status = ? AND end_time > ?", now)
}

func (r *AuctionRepo) list(ctx context.Context, cond string, now time.Time) ([]store.Auction, error) {
	var rows []auctionRow
	err := r.db.WithContext(ctx).
		Where(cond, store.StatusOpen, now.UTC()).
		Order("end_time, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing auctions: %w", err)
	}
	auctions := make([]store.Auction, 0, len(rows))
	for _, row := range rows {
		auctions = append(auctions, row.record())
	}
	return auctions, nil
}
