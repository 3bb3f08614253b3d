package store

import (
	"context"
	"errors"
	"time"

	"github.com/jensholdgaard/discord-auction-bot/internal/event"
)

// Errors returned by repositories.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Auction statuses.
const (
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusCancelled = "cancelled"
)

// Auction represents an auction record.
type Auction struct {
	ID            int64      `db:"id" json:"id"`
	ItemRef       string     `db:"item_ref" json:"item_ref"`
	ItemName      string     `db:"item_name" json:"item_name"`
	Description   string     `db:"description" json:"description"`
	ImageURL      string     `db:"image_url" json:"image_url"`
	ChannelID     string     `db:"channel_id" json:"channel_id"`
	MessageID     string     `db:"message_id" json:"message_id"`
	AuctioneerID  string     `db:"auctioneer_id" json:"auctioneer_id"`
	MinBid        int64      `db:"min_bid" json:"min_bid"`
	Interval      int64      `db:"bid_interval" json:"bid_interval"`
	BuyoutPrice   *int64     `db:"buyout_price" json:"buyout_price,omitempty"`
	CurrentBid    *int64     `db:"current_bid" json:"current_bid,omitempty"`
	CurrentBidder *string    `db:"current_bidder" json:"current_bidder,omitempty"`
	WinnerID      *string    `db:"winner_id" json:"winner_id,omitempty"`
	Status        string     `db:"status" json:"status"` // "open", "closed", "cancelled"
	CloseReason   *string    `db:"close_reason" json:"close_reason,omitempty"`
	EndTime       time.Time  `db:"end_time" json:"end_time"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	ClosedAt      *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	Version       int        `db:"version" json:"version"`
}

// Bid is a single accepted bid. Bids are never updated or deleted.
type Bid struct {
	ID        int64     `db:"id" json:"id"`
	AuctionID int64     `db:"auction_id" json:"auction_id"`
	BidderID  string    `db:"bidder_id" json:"bidder_id"`
	Amount    int64     `db:"amount" json:"amount"`
	PlacedAt  time.Time `db:"placed_at" json:"placed_at"`
}

// Cooldown records when the latest auction of an item ends.
type Cooldown struct {
	ItemRef        string    `db:"item_ref" json:"item_ref"`
	LastAuctionEnd time.Time `db:"last_auction_end" json:"last_auction_end"`
}

// Participant is a user present in the auctioneer or outbid opt-in set.
type Participant struct {
	UserID  string    `db:"user_id" json:"user_id"`
	AddedAt time.Time `db:"added_at" json:"added_at"`
}

// AuctionRepository defines auction persistence operations.
type AuctionRepository interface {
	// Create inserts a and assigns its ID.
	Create(ctx context.Context, a *Auction) error
	GetByID(ctx context.Context, id int64) (*Auction, error)
	// GetForUpdate reads the auction and, where the backend supports it,
	// locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Auction, error)
	// Update writes every mutable column of a.
	Update(ctx context.Context, a *Auction) error
	// ListDue returns open auctions whose end time is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]Auction, error)
	// ListOpen returns open auctions ending after now, earliest end first.
	ListOpen(ctx context.Context, now time.Time) ([]Auction, error)
}

// BidRepository is the append-only bid ledger.
type BidRepository interface {
	Append(ctx context.Context, b *Bid) error
	// Highest returns the largest bid of an auction, earliest first on ties,
	// or ErrNotFound when the auction has no bids.
	Highest(ctx context.Context, auctionID int64) (*Bid, error)
	ListByAuction(ctx context.Context, auctionID int64) ([]Bid, error)
}

// CooldownRepository stores per-item cooldown records.
type CooldownRepository interface {
	// Lock serializes work on itemRef until the surrounding transaction
	// ends. Backends that already serialize transactions may no-op.
	Lock(ctx context.Context, itemRef string) error
	Get(ctx context.Context, itemRef string) (*Cooldown, error)
	Upsert(ctx context.Context, c *Cooldown) error
}

// ParticipantRepository stores a set of users.
type ParticipantRepository interface {
	// Add returns ErrConflict if the user is already present.
	Add(ctx context.Context, userID string) error
	// Remove returns ErrNotFound if the user is absent.
	Remove(ctx context.Context, userID string) error
	Exists(ctx context.Context, userID string) (bool, error)
	List(ctx context.Context) ([]Participant, error)
}

// Tx groups the repositories bound to a single transaction.
type Tx struct {
	Auctions    AuctionRepository
	Bids        BidRepository
	Cooldowns   CooldownRepository
	Auctioneers ParticipantRepository
	OptIns      ParticipantRepository
	Events      event.Store
}

// Transactor runs a function inside a transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error
}
