package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	AuctionCreated   Type = "auction.created"
	AuctionBidPlaced Type = "auction.bid_placed"
	AuctionEdited    Type = "auction.edited"
	AuctionFinalized Type = "auction.finalized"
	AuctionCancelled Type = "auction.cancelled"

	AuctioneerAdded   Type = "auctioneer.added"
	AuctioneerRemoved Type = "auctioneer.removed"

	OptInEnabled  Type = "optin.enabled"
	OptInDisabled Type = "optin.disabled"
)

// Event represents a single domain event.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// AuctionCreatedData is the payload for AuctionCreated events.
type AuctionCreatedData struct {
	ItemRef      string    `json:"item_ref"`
	ItemName     string    `json:"item_name"`
	AuctioneerID string    `json:"auctioneer_id"`
	MinBid       int64     `json:"min_bid"`
	Interval     int64     `json:"interval"`
	BuyoutPrice  *int64    `json:"buyout_price,omitempty"`
	EndTime      time.Time `json:"end_time"`
}

// BidPlacedData is the payload for AuctionBidPlaced events.
type BidPlacedData struct {
	BidderID string    `json:"bidder_id"`
	Amount   int64     `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

// AuctionEditedData is the payload for AuctionEdited events.
type AuctionEditedData struct {
	Field    string    `json:"field"`
	Value    int64     `json:"value"`
	EditedBy string    `json:"edited_by"`
	EndTime  time.Time `json:"end_time,omitzero"`
}

// AuctionFinalizedData is the payload for AuctionFinalized and
// AuctionCancelled events.
type AuctionFinalizedData struct {
	WinnerID string    `json:"winner_id,omitempty"`
	FinalBid int64     `json:"final_bid,omitempty"`
	Reason   string    `json:"reason"`
	EndedBy  string    `json:"ended_by,omitempty"`
	EndedAt  time.Time `json:"ended_at"`
}

// ParticipantData is the payload for auctioneer and opt-in events.
type ParticipantData struct {
	UserID string `json:"user_id"`
}
