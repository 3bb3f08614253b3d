package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

const auctionColumns = `id, item_ref, item_name, description, image_url, channel_id, message_id,
	auctioneer_id, min_bid, bid_interval, buyout_price, current_bid, current_bidder, winner_id,
	status, close_reason, end_time, created_at, closed_at, version`

// AuctionRepo implements store.AuctionRepository with sqlx.
type AuctionRepo struct {
	db    sqlx.ExtContext
	clock clock.Clock
}

// NewAuctionRepo returns a new AuctionRepo.
func NewAuctionRepo(db sqlx.ExtContext, clk clock.Clock) *AuctionRepo {
	return &AuctionRepo{db: db, clock: clk}
}

func (r *AuctionRepo) Create(ctx context.Context, a *store.Auction) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.clock.Now().UTC()
	}
	if a.Status == "" {
		a.Status = store.StatusOpen
	}
	query := `INSERT INTO auctions (item_ref, item_name, description, image_url, channel_id, message_id,
		auctioneer_id, min_bid, bid_interval, buyout_price, status, end_time, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		a.ItemRef, a.ItemName, a.Description, a.ImageURL, a.ChannelID, a.MessageID,
		a.AuctioneerID, a.MinBid, a.Interval, a.BuyoutPrice, a.Status, a.EndTime, a.CreatedAt, a.Version,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("inserting auction: %w", mapErr(err))
	}
	return nil
}

func (r *AuctionRepo) GetByID(ctx context.Context, id int64) (*store.Auction, error) {
	return r.get(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id)
}

// GetForUpdate locks the row until the surrounding transaction ends. Outside
// a transaction the lock is released immediately.
func (r *AuctionRepo) GetForUpdate(ctx context.Context, id int64) (*store.Auction, error) {
	return r.get(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1 FOR UPDATE`, id)
}

func (r *AuctionRepo) get(ctx context.Context, query string, id int64) (*store.Auction, error) {
	var a store.Auction
	if err := sqlx.GetContext(ctx, r.db, &a, query, id); err != nil {
		return nil, fmt.Errorf("getting auction %d: %w", id, mapErr(err))
	}
	return &a, nil
}

func (r *AuctionRepo) Update(ctx context.Context, a *store.Auction) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE auctions SET channel_id = $1, message_id = $2, min_bid = $3, bid_interval = $4,
			buyout_price = $5, current_bid = $6, current_bidder = $7, winner_id = $8, status = $9,
			close_reason = $10, end_time = $11, closed_at = $12, version = $13
		 WHERE id = $14`,
		a.ChannelID, a.MessageID, a.MinBid, a.Interval,
		a.BuyoutPrice, a.CurrentBid, a.CurrentBidder, a.WinnerID, a.Status,
		a.CloseReason, a.EndTime, a.ClosedAt, a.Version,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating auction %d: %w", a.ID, mapErr(err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("updating auction %d: %w", a.ID, store.ErrNotFound)
	}
	return nil
}

func (r *AuctionRepo) ListDue(ctx context.Context, now time.Time) ([]store.Auction, error) {
	return r.list(ctx, `SELECT `+auctionColumns+` FROM auctions
		WHERE status = 'open' AND end_time <= $1 ORDER BY end_time, id`, now)
}

func (r *AuctionRepo) ListOpen(ctx context.Context, now time.Time) ([]store.Auction, error) {
	return r.list(ctx, `SELECT `+auctionColumns+` FROM auctions
		WHERE status = 'open' AND end_time > $1 ORDER BY end_time, id`, now)
}

func (r *AuctionRepo) list(ctx context.Context, query string, now time.Time) ([]store.Auction, error) {
	var auctions []store.Auction
	if err := sqlx.SelectContext(ctx, r.db, &auctions, query, now); err != nil {
		return nil, fmt.Errorf("listing auctions: %w", err)
	}
	return auctions, nil
}
