package auction

import (
	"context"
	"time"

	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// Snapshot is a point-in-time copy of an auction. Bids is only filled by
// Manager.GetAuction.
type Snapshot struct {
	store.Auction
	Bids []store.Bid `json:"bids,omitempty"`
}

// Summary is one row of the open-auction listing.
type Summary struct {
	ID          int64     `json:"id"`
	ItemRef     string    `json:"item_ref"`
	ItemName    string    `json:"item_name"`
	ChannelID   string    `json:"channel_id,omitempty"`
	MinBid      int64     `json:"min_bid"`
	CurrentBid  *int64    `json:"current_bid,omitempty"`
	BuyoutPrice *int64    `json:"buyout_price,omitempty"`
	EndTime     time.Time `json:"end_time"`
}

func summarize(a store.Auction) Summary {
	return Summary{
		ID:          a.ID,
		ItemRef:     a.ItemRef,
		ItemName:    a.ItemName,
		ChannelID:   a.ChannelID,
		MinBid:      a.MinBid,
		CurrentBid:  a.CurrentBid,
		BuyoutPrice: a.BuyoutPrice,
		EndTime:     a.EndTime,
	}
}

// Outbid tells a previous highest bidder they were overtaken.
type Outbid struct {
	ID             string
	AuctionID      int64
	ItemName       string
	ChannelID      string
	PreviousBidder string
	NewAmount      int64
}

// Finalized is emitted exactly once per auction when it stops taking bids.
type Finalized struct {
	ID          string
	AuctionID   int64
	ItemRef     string
	ItemName    string
	Description string
	ImageURL    string
	ChannelID   string
	MessageID   string
	Auctioneer  string
	WinnerID    string // empty when there is no winner
	FinalBid    int64  // zero when there is no winner
	Reason      Reason
	EndedBy     string
	EndedAt     time.Time
}

// HasWinner reports whether the item was awarded.
func (f Finalized) HasWinner() bool { return f.WinnerID != "" }

// Sink receives side effects after the state change behind them has been
// committed. Calls for one auction are made while its lock is still held,
// so they arrive in commit order. Implementations must not block.
type Sink interface {
	AuctionUpdated(ctx context.Context, s Snapshot)
	Outbid(ctx context.Context, o Outbid)
	Finalized(ctx context.Context, f Finalized)
}

// NopSink discards every side effect.
type NopSink struct{}

func (NopSink) AuctionUpdated(context.Context, Snapshot) {}
func (NopSink) Outbid(context.Context, Outbid)           {}
func (NopSink) Finalized(context.Context, Finalized)     {}

//go:generate mockgen -destination=mock_effects_test.go -package=auction_test github.com/jensholdgaard/discord-auction-bot/internal/auction Renderer,Notifier,Announcer

// Renderer redraws the public view of an auction.
type Renderer interface {
	Render(ctx context.Context, s Snapshot) error
}

// Notifier delivers outbid notices.
type Notifier interface {
	NotifyOutbid(ctx context.Context, o Outbid) error
}

// Announcer publishes auction results.
type Announcer interface {
	Announce(ctx context.Context, f Finalized) error
}

// ListingCache caches the open-auction listing. Every Invalidate starts a
// new generation, and Set only stores a listing read in the current one.
type ListingCache interface {
	// Get returns the cached listing, the current generation and whether
	// the listing was present.
	Get(ctx context.Context) ([]Summary, int64, bool, error)
	Set(ctx context.Context, gen int64, list []Summary) error
	Invalidate(ctx context.Context) error
}

// Participants answers membership questions about users.
type Participants interface {
	IsAuctioneer(ctx context.Context, userID string) (bool, error)
	OptedIn(ctx context.Context, userID string) (bool, error)
}
