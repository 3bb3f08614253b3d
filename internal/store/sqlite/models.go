package sqlite

import (
	"time"

	"github.com/jensholdgaard/discord-auction-bot/internal/event"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

const (
	auctioneersTable = "auctioneers"
	optInsTable      = "outbid_opt_ins"
)

type auctionRow struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	ItemRef       string `gorm:"not null;index"`
	ItemName      string `gorm:"not null;default:''"`
	Description   string `gorm:"not null;default:''"`
	ImageURL      string `gorm:"not null;default:''"`
	ChannelID     string `gorm:"not null;default:''"`
	MessageID     string `gorm:"not null;default:''"`
	AuctioneerID  string `gorm:"not null"`
	MinBid        int64  `gorm:"not null;check:min_bid > 0"`
	BidInterval   int64  `gorm:"not null;check:bid_interval > 0"`
	BuyoutPrice   *int64
	CurrentBid    *int64
	CurrentBidder *string
	WinnerID      *string
	Status        string    `gorm:"not null;index:idx_auctions_status_end,priority:1"`
	CloseReason   *string
	EndTime       time.Time `gorm:"not null;index:idx_auctions_status_end,priority:2"`
	CreatedAt     time.Time `gorm:"not null"`
	ClosedAt      *time.Time
	Version       int `gorm:"not null;default:0"`
}

func (auctionRow) TableName() string { return "auctions" }

func newAuctionRow(a *store.Auction) auctionRow {
	return auctionRow{
		ID:            a.ID,
		ItemRef:       a.ItemRef,
		ItemName:      a.ItemName,
		Description:   a.Description,
		ImageURL:      a.ImageURL,
		ChannelID:     a.ChannelID,
		MessageID:     a.MessageID,
		AuctioneerID:  a.AuctioneerID,
		MinBid:        a.MinBid,
		BidInterval:   a.Interval,
		BuyoutPrice:   a.BuyoutPrice,
		CurrentBid:    a.CurrentBid,
		CurrentBidder: a.CurrentBidder,
		WinnerID:      a.WinnerID,
		Status:        a.Status,
		CloseReason:   a.CloseReason,
		EndTime:       a.EndTime.UTC(),
		CreatedAt:     a.CreatedAt.UTC(),
		ClosedAt:      utcPtr(a.ClosedAt),
		Version:       a.Version,
	}
}

func (r auctionRow) record() store.Auction {
	return store.Auction{
		ID:            r.ID,
		ItemRef:       r.ItemRef,
		ItemName:      r.ItemName,
		Description:   r.Description,
		ImageURL:      r.ImageURL,
		ChannelID:     r.ChannelID,
		MessageID:     r.MessageID,
		AuctioneerID:  r.AuctioneerID,
		MinBid:        r.MinBid,
		Interval:      r.BidInterval,
		BuyoutPrice:   r.BuyoutPrice,
		CurrentBid:    r.CurrentBid,
		CurrentBidder: r.CurrentBidder,
		WinnerID:      r.WinnerID,
		Status:        r.Status,
		CloseReason:   r.CloseReason,
		EndTime:       r.EndTime.UTC(),
		CreatedAt:     r.CreatedAt.UTC(),
		ClosedAt:      utcPtr(r.ClosedAt),
		Version:       r.Version,
	}
}

type bidRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	AuctionID int64     `gorm:"not null;index:idx_bids_auction_amount,priority:1"`
	BidderID  string    `gorm:"not null"`
	Amount    int64     `gorm:"not null;index:idx_bids_auction_amount,priority:2,sort:desc;check:amount > 0"`
	PlacedAt  time.Time `gorm:"not null"`
}

func (bidRow) TableName() string { return "bids" }

func (r bidRow) record() store.Bid {
	return store.Bid{
		ID:        r.ID,
		AuctionID: r.AuctionID,
		BidderID:  r.BidderID,
		Amount:    r.Amount,
		PlacedAt:  r.PlacedAt.UTC(),
	}
}

type cooldownRow struct {
	ItemRef        string    `gorm:"primaryKey"`
	LastAuctionEnd time.Time `gorm:"not null"`
}

func (cooldownRow) TableName() string { return "cooldowns" }

// participantRow backs both user-set tables; callers pick the table.
type participantRow struct {
	UserID  string    `gorm:"primaryKey"`
	AddedAt time.Time `gorm:"not null"`
}

type eventRow struct {
	ID          string `gorm:"primaryKey"`
	AggregateID string `gorm:"not null;uniqueIndex:idx_events_aggregate_version,priority:1,where:version > 0"`
	Type        string `gorm:"not null;index:idx_events_type_created,priority:1"`
	Data        string `gorm:"type:text;not null;default:'{}'"`
	// Version 0 marks events outside an ordered stream.
	Version   int       `gorm:"not null;uniqueIndex:idx_events_aggregate_version,priority:2"`
	CreatedAt time.Time `gorm:"not null;index:idx_events_type_created,priority:2"`
}

func (eventRow) TableName() string { return "events" }

func (r eventRow) event() event.Event {
	return event.Event{
		ID:          r.ID,
		AggregateID: r.AggregateID,
		Type:        event.Type(r.Type),
		Data:        []byte(r.Data),
		Version:     r.Version,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
