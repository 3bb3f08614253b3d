package auction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jensholdgaard/discord-auction-bot/internal/event"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// Reason describes why an auction stopped taking bids.
type Reason string

const (
	ReasonBuyout     Reason = "buyout"
	ReasonExpired    Reason = "expired"
	ReasonNoBids     Reason = "no_bids"
	ReasonEndedEarly Reason = "ended_early"
	ReasonCancelled  Reason = "cancelled"
)

// Field names an editable auction setting.
type Field string

const (
	FieldMinBid   Field = "minbid"
	FieldInterval Field = "interval"
	FieldBuyout   Field = "buyout"
	FieldTime     Field = "time"
)

// ParseField maps user input to a Field.
func ParseField(s string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldMinBid, FieldInterval, FieldBuyout, FieldTime:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown field %q", ErrInvalid, s)
}

// AggregateID is the event stream id of an auction.
func AggregateID(id int64) string {
	return "auction-" + strconv.FormatInt(id, 10)
}

// Auction is the aggregate root for a single item auction. It wraps the
// stored record and buffers the events produced by each state change.
// It is not safe for concurrent use; the Manager serializes access per id.
type Auction struct {
	store.Auction

	events []event.Event
}

// Load wraps a stored record.
func Load(rec store.Auction) *Auction {
	return &Auction{Auction: rec}
}

// BidOutcome reports what an accepted bid changed.
type BidOutcome struct {
	PreviousBidder string
	Buyout         bool
}

// IsOpen reports whether the auction accepts bids at now.
func (a *Auction) IsOpen(now time.Time) bool {
	return a.Status == store.StatusOpen && !now.After(a.EndTime)
}

// Current returns the current highest bid, or 0 when there is none.
func (a *Auction) Current() int64 {
	if a.CurrentBid == nil {
		return 0
	}
	return *a.CurrentBid
}

// PlaceBid validates and applies a bid. Checks run in a fixed order and the
// first failure is returned.
func (a *Auction) PlaceBid(bidder string, amount int64, now time.Time) (BidOutcome, error) {
	if !a.IsOpen(now) {
		return BidOutcome{}, fmt.Errorf("%w: auction %d", ErrClosed, a.ID)
	}
	if amount < a.MinBid {
		return BidOutcome{}, fmt.Errorf("%w: %d < %d", ErrBelowMinimum, amount, a.MinBid)
	}
	current := a.Current()
	if amount <= current || amount-current < a.Interval {
		return BidOutcome{}, fmt.Errorf("%w: need at least %d", ErrInsufficientIncrement, current+a.Interval)
	}

	var out BidOutcome
	if a.CurrentBidder != nil {
		out.PreviousBidder = *a.CurrentBidder
	}
	a.CurrentBid = &amount
	a.CurrentBidder = &bidder
	a.recordEvent(event.AuctionBidPlaced, event.BidPlacedData{
		BidderID: bidder,
		Amount:   amount,
		PlacedAt: now,
	})

	if a.BuyoutPrice != nil && amount >= *a.BuyoutPrice {
		out.Buyout = true
		a.close(&store.Bid{BidderID: bidder, Amount: amount}, ReasonBuyout, "", now)
	}
	return out, nil
}

// Finalize closes the auction and awards it to highest, which may be nil.
// Without a positive bid the reason becomes ReasonNoBids.
func (a *Auction) Finalize(highest *store.Bid, reason Reason, endedBy string, now time.Time) Reason {
	if highest == nil || highest.Amount <= 0 {
		highest = nil
		reason = ReasonNoBids
	}
	a.close(highest, reason, endedBy, now)
	return reason
}

func (a *Auction) close(winner *store.Bid, reason Reason, endedBy string, now time.Time) {
	a.Status = store.StatusClosed
	r := string(reason)
	a.CloseReason = &r
	a.ClosedAt = &now

	data := event.AuctionFinalizedData{Reason: r, EndedBy: endedBy, EndedAt: now}
	if winner != nil {
		id, amount := winner.BidderID, winner.Amount
		a.WinnerID = &id
		a.CurrentBidder = &id
		a.CurrentBid = &amount
		data.WinnerID = id
		data.FinalBid = winner.Amount
	}
	a.recordEvent(event.AuctionFinalized, data)
}

// Cancel withdraws an open auction without a winner.
func (a *Auction) Cancel(actor string, now time.Time) error {
	if a.Status != store.StatusOpen {
		return fmt.Errorf("%w: auction %d", ErrClosed, a.ID)
	}
	if actor != a.AuctioneerID {
		return ErrUnauthorized
	}
	a.Status = store.StatusCancelled
	r := string(ReasonCancelled)
	a.CloseReason = &r
	a.ClosedAt = &now
	a.recordEvent(event.AuctionCancelled, event.AuctionFinalizedData{
		Reason:  r,
		EndedBy: actor,
		EndedAt: now,
	})
	return nil
}

// Edit changes one setting of an open auction. For FieldTime value is a
// duration in minutes counted from now; for FieldBuyout zero removes the
// buyout price.
func (a *Auction) Edit(editor string, field Field, value int64, now time.Time) error {
	if !a.IsOpen(now) {
		return fmt.Errorf("%w: auction %d", ErrClosed, a.ID)
	}
	if editor != a.AuctioneerID {
		return ErrUnauthorized
	}

	data := event.AuctionEditedData{Field: string(field), Value: value, EditedBy: editor}
	switch field {
	case FieldMinBid:
		if value <= 0 {
			return fmt.Errorf("%w: minimum bid must be positive", ErrInvalid)
		}
		if a.BuyoutPrice != nil && value > *a.BuyoutPrice {
			return fmt.Errorf("%w: minimum bid %d exceeds buyout %d", ErrConflict, value, *a.BuyoutPrice)
		}
		if a.CurrentBid != nil && value > *a.CurrentBid {
			return fmt.Errorf("%w: minimum bid %d exceeds current bid %d", ErrConflict, value, *a.CurrentBid)
		}
		a.MinBid = value
	case FieldInterval:
		if value <= 0 {
			return fmt.Errorf("%w: interval must be positive", ErrInvalid)
		}
		a.Interval = value
	case FieldBuyout:
		if value < 0 {
			return fmt.Errorf("%w: buyout must not be negative", ErrInvalid)
		}
		if value == 0 {
			a.BuyoutPrice = nil
			break
		}
		if value < a.MinBid {
			return fmt.Errorf("%w: buyout %d below minimum bid %d", ErrConflict, value, a.MinBid)
		}
		if a.CurrentBid != nil && value <= *a.CurrentBid {
			return fmt.Errorf("%w: buyout %d not above current bid %d", ErrConflict, value, *a.CurrentBid)
		}
		a.BuyoutPrice = &value
	case FieldTime:
		if value <= 0 {
			return fmt.Errorf("%w: duration must be positive", ErrInvalid)
		}
		a.EndTime = now.Add(time.Duration(value) * time.Minute)
		data.EndTime = a.EndTime
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalid, field)
	}
	a.recordEvent(event.AuctionEdited, data)
	return nil
}

// PendingEvents returns uncommitted events and clears the buffer.
func (a *Auction) PendingEvents() []event.Event {
	events := a.events
	a.events = nil
	return events
}

func (a *Auction) recordCreated() {
	a.recordEvent(event.AuctionCreated, event.AuctionCreatedData{
		ItemRef:      a.ItemRef,
		ItemName:     a.ItemName,
		AuctioneerID: a.AuctioneerID,
		MinBid:       a.MinBid,
		Interval:     a.Interval,
		BuyoutPrice:  a.BuyoutPrice,
		EndTime:      a.EndTime,
	})
}

func (a *Auction) recordEvent(t event.Type, payload any) {
	data, _ := json.Marshal(payload)
	a.Version++
	a.events = append(a.events, event.Event{
		AggregateID: AggregateID(a.ID),
		Type:        t,
		Data:        data,
		Version:     a.Version,
	})
}

// Replay reconstructs an auction from its event history. Fields that are not
// part of any event (description, image, message ids) stay empty.
func Replay(id int64, events []event.Event) (*Auction, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no events to replay")
	}

	a := &Auction{}
	a.ID = id
	for _, e := range events {
		switch e.Type {
		case event.AuctionCreated:
			var d event.AuctionCreatedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling created event: %w", err)
			}
			a.ItemRef = d.ItemRef
			a.ItemName = d.ItemName
			a.AuctioneerID = d.AuctioneerID
			a.MinBid = d.MinBid
			a.Interval = d.Interval
			a.BuyoutPrice = d.BuyoutPrice
			a.EndTime = d.EndTime
			a.CreatedAt = e.CreatedAt
			a.Status = store.StatusOpen

		case event.AuctionBidPlaced:
			var d event.BidPlacedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling bid event: %w", err)
			}
			a.CurrentBid = &d.Amount
			a.CurrentBidder = &d.BidderID

		case event.AuctionEdited:
			var d event.AuctionEditedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling edited event: %w", err)
			}
			switch Field(d.Field) {
			case FieldMinBid:
				a.MinBid = d.Value
			case FieldInterval:
				a.Interval = d.Value
			case FieldBuyout:
				if d.Value == 0 {
					a.BuyoutPrice = nil
				} else {
					v := d.Value
					a.BuyoutPrice = &v
				}
			case FieldTime:
				a.EndTime = d.EndTime
			}

		case event.AuctionFinalized, event.AuctionCancelled:
			var d event.AuctionFinalizedData
			if err := json.Unmarshal(e.Data, &d); err != nil {
				return nil, fmt.Errorf("unmarshalling %s event: %w", e.Type, err)
			}
			a.Status = store.StatusClosed
			if e.Type == event.AuctionCancelled {
				a.Status = store.StatusCancelled
			}
			if d.WinnerID != "" {
				w, final := d.WinnerID, d.FinalBid
				a.WinnerID = &w
				a.CurrentBidder = &w
				a.CurrentBid = &final
			}
			reason := d.Reason
			a.CloseReason = &reason
			endedAt := d.EndedAt
			a.ClosedAt = &endedAt
		}
		a.Version = e.Version
	}
	return a, nil
}
