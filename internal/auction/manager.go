package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// DefaultCooldown is how long an item must wait after its last auction ends
// before it can be auctioned again.
const DefaultCooldown = 7 * 24 * time.Hour

// CreateParams describes a new auction.
type CreateParams struct {
	ItemRef     string
	ItemName    string
	Description string
	ImageURL    string
	ChannelID   string
	Creator     string
	MinBid      int64
	Interval    int64
	BuyoutPrice *int64
	Duration    time.Duration
}

func (p CreateParams) validate() error {
	switch {
	case strings.TrimSpace(p.ItemRef) == "":
		return fmt.Errorf("%w: item reference is required", ErrInvalid)
	case p.Creator == "":
		return fmt.Errorf("%w: creator is required", ErrInvalid)
	case p.MinBid <= 0:
		return fmt.Errorf("%w: minimum bid must be positive", ErrInvalid)
	case p.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive", ErrInvalid)
	case p.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalid)
	case p.BuyoutPrice != nil && *p.BuyoutPrice < p.MinBid:
		return fmt.Errorf("%w: buyout %d below minimum bid %d", ErrInvalid, *p.BuyoutPrice, p.MinBid)
	}
	return nil
}

// BidReceipt describes an accepted bid.
type BidReceipt struct {
	AuctionID      int64
	Amount         int64
	PreviousBidder string
	// Buyout is set when the bid met the buyout price and closed the auction.
	Buyout bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(m *Manager) { m.cooldown = d }
}

// WithSink sets the receiver of side effects. The default discards them.
func WithSink(s Sink) Option {
	return func(m *Manager) { m.sink = s }
}

// WithListingCache enables read-through caching of ListOpenAuctions.
func WithListingCache(c ListingCache) Option {
	return func(m *Manager) { m.cache = c }
}

// Manager is the bidding engine. Mutations of one auction are serialized
// through a per-auction lock and run in a single store transaction; different
// auctions proceed in parallel.
type Manager struct {
	repos  *store.Repositories
	people Participants
	sink   Sink
	cache  ListingCache

	auctionLocks *keyedMutex[int64]
	itemLocks    *keyedMutex[string]
	cooldown     time.Duration

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics
	clock   clock.Clock
}

// NewManager creates a new auction Manager.
func NewManager(repos *store.Repositories, people Participants, logger *slog.Logger, tp trace.TracerProvider, mp metric.MeterProvider, clk clock.Clock, opts ...Option) *Manager {
	m := &Manager{
		repos:        repos,
		people:       people,
		sink:         NopSink{},
		auctionLocks: newKeyedMutex[int64](),
		itemLocks:    newKeyedMutex[string](),
		cooldown:     DefaultCooldown,
		logger:       logger,
		tracer:       tp.Tracer(instrumentationName),
		clock:        clk,
	}
	for _, opt := range opts {
		opt(m)
	}

	met, err := newMetrics(mp)
	if err != nil {
		logger.Warn("creating auction metrics, falling back to no-op", slog.Any("error", err))
		met = noopMetrics()
	}
	m.metrics = met
	return m
}

// now truncates to the precision every backend can store.
func (m *Manager) now() time.Time {
	return m.clock.Now().UTC().Truncate(time.Microsecond)
}

// CreateAuction opens a new auction unless the item is on cooldown. The
// auction, its cooldown record and its created event commit together.
func (m *Manager) CreateAuction(ctx context.Context, p CreateParams) (*store.Auction, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.CreateAuction",
		trace.WithAttributes(
			attribute.String("item.ref", p.ItemRef),
			attribute.String("creator.id", p.Creator),
		),
	)
	defer span.End()

	if err := p.validate(); err != nil {
		return nil, err
	}

	unlock := m.itemLocks.Lock(p.ItemRef)
	var rec store.Auction
	err := m.repos.Tx.InTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		now := m.now()
		if err := m.checkCooldown(ctx, tx, p.ItemRef, now); err != nil {
			return err
		}

		a := Load(store.Auction{
			ItemRef:      p.ItemRef,
			ItemName:     p.ItemName,
			Description:  p.Description,
			ImageURL:     p.ImageURL,
			ChannelID:    p.ChannelID,
			AuctioneerID: p.Creator,
			MinBid:       p.MinBid,
			Interval:     p.Interval,
			BuyoutPrice:  p.BuyoutPrice,
			Status:       store.StatusOpen,
			EndTime:      now.Add(p.Duration),
			CreatedAt:    now,
		})
		if err := tx.Auctions.Create(ctx, &a.Auction); err != nil {
			return fmt.Errorf("inserting auction: %w", err)
		}
		a.recordCreated()
		if err := m.save(ctx, tx, a); err != nil {
			return err
		}
		if err := tx.Cooldowns.Upsert(ctx, &store.Cooldown{ItemRef: p.ItemRef, LastAuctionEnd: a.EndTime}); err != nil {
			return fmt.Errorf("updating cooldown: %w", err)
		}
		rec = a.Auction
		return nil
	})
	unlock()
	if err != nil {
		return nil, m.fail(ctx, span, "create auction", err)
	}

	m.logger.InfoContext(ctx, "auction created",
		slog.Int64("auction_id", rec.ID),
		slog.String("item_ref", rec.ItemRef),
		slog.String("creator", rec.AuctioneerID),
		slog.Time("end_time", rec.EndTime),
	)
	m.invalidateListing(ctx)
	return &rec, nil
}

// checkCooldown rejects an item whose previous auction ended less than the
// cooldown ago. An item without a record has never been auctioned.
func (m *Manager) checkCooldown(ctx context.Context, tx *store.Tx, itemRef string, now time.Time) error {
	if err := tx.Cooldowns.Lock(ctx, itemRef); err != nil {
		return err
	}
	c, err := tx.Cooldowns.Get(ctx, itemRef)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("reading cooldown: %w", err)
	}
	if now.Sub(c.LastAuctionEnd) < m.cooldown {
		return fmt.Errorf("%w: %s can be auctioned again at %s",
			ErrCooldownActive, itemRef, c.LastAuctionEnd.Add(m.cooldown).Format(time.RFC3339))
	}
	return nil
}

// AttachMessage records where the rendered auction lives.
func (m *Manager) AttachMessage(ctx context.Context, auctionID int64, channelID, messageID string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.AttachMessage",
		trace.WithAttributes(attribute.Int64("auction.id", auctionID)),
	)
	defer span.End()

	unlock := m.auctionLocks.Lock(auctionID)
	defer unlock()
	var rec store.Auction
	err := m.repos.Tx.InTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		a, err := m.load(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		a.ChannelID = channelID
		a.MessageID = messageID
		if err := tx.Auctions.Update(ctx, &a.Auction); err != nil {
			return fmt.Errorf("updating auction %d: %w", auctionID, err)
		}
		rec = a.Auction
		return nil
	})
	if err != nil {
		return m.fail(ctx, span, "attach message", err)
	}
	// Bids placed before the message existed were never drawn.
	m.sink.AuctionUpdated(ctx, Snapshot{Auction: rec})
	return nil
}

// PlaceBid validates and records a bid. Validation and the write happen
// while the auction's lock is held, so bids on one auction are decided in
// the order they obtain it.
func (m *Manager) PlaceBid(ctx context.Context, auctionID int64, bidder string, amount int64) (*BidReceipt, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.PlaceBid",
		trace.WithAttributes(
			attribute.Int64("auction.id", auctionID),
			attribute.String("bidder.id", bidder),
			attribute.Int64("bid.amount", amount),
		),
	)
	defer span.End()

	var (
		out  BidOutcome
		snap Snapshot
		fin  *Finalized
	)
	// Side effects are queued before the lock is released so they leave in
	// commit order.
	unlock := m.auctionLocks.Lock(auctionID)
	defer unlock()
	err := m.repos.Tx.InTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		a, err := m.load(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		now := m.now()
		out, err = a.PlaceBid(bidder, amount, now)
		if err != nil {
			return err
		}
		bid := &store.Bid{AuctionID: auctionID, BidderID: bidder, Amount: amount, PlacedAt: now}
		if err := tx.Bids.Append(ctx, bid); err != nil {
			return fmt.Errorf("appending bid: %w", err)
		}
		if err := m.save(ctx, tx, a); err != nil {
			return err
		}
		snap = Snapshot{Auction: a.Auction}
		if out.Buyout {
			f := newFinalized(a.Auction, "")
			fin = &f
		}
		return nil
	})
	if err != nil {
		err = unavailable(err)
		m.metrics.bidRejected(ctx, err)
		return nil, m.fail(ctx, span, "place bid", err)
	}

	m.metrics.bidAccepted(ctx)
	m.logger.InfoContext(ctx, "bid placed",
		slog.Int64("auction_id", auctionID),
		slog.String("bidder", bidder),
		slog.Int64("amount", amount),
		slog.Bool("buyout", out.Buyout),
	)

	m.sink.AuctionUpdated(ctx, snap)
	if out.PreviousBidder != "" && out.PreviousBidder != bidder {
		m.notifyOutbid(ctx, snap.Auction, out.PreviousBidder, amount)
	}
	if fin != nil {
		m.announce(ctx, *fin)
	}
	m.invalidateListing(ctx)

	return &BidReceipt{
		AuctionID:      auctionID,
		Amount:         amount,
		PreviousBidder: out.PreviousBidder,
		Buyout:         out.Buyout,
	}, nil
}

func (m *Manager) notifyOutbid(ctx context.Context, a store.Auction, previous string, amount int64) {
	ok, err := m.people.OptedIn(ctx, previous)
	if err != nil {
		m.logger.WarnContext(ctx, "checking outbid opt-in",
			slog.String("user", previous),
			slog.Any("error", err),
		)
		return
	}
	if !ok {
		return
	}
	m.sink.Outbid(ctx, Outbid{
		ID:             uuid.NewString(),
		AuctionID:      a.ID,
		ItemName:       a.ItemName,
		ChannelID:      a.ChannelID,
		PreviousBidder: previous,
		NewAmount:      amount,
	})
}

// EditAuction changes one setting of an open auction on behalf of its
// creator. A time edit also moves the item's cooldown to the new end.
func (m *Manager) EditAuction(ctx context.Context, auctionID int64, editor string, field Field, value int64) (*store.Auction, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.EditAuction",
		trace.WithAttributes(
			attribute.Int64("auction.id", auctionID),
			attribute.String("editor.id", editor),
			attribute.String("field", string(field)),
			attribute.Int64("value", value),
		),
	)
	defer span.End()

	rec, err := m.editLocked(ctx, auctionID, editor, field, value)
	if err != nil {
		return nil, m.fail(ctx, span, "edit auction", err)
	}

	m.logger.InfoContext(ctx, "auction edited",
		slog.Int64("auction_id", auctionID),
		slog.String("field", string(field)),
		slog.Int64("value", value),
	)
	m.invalidateListing(ctx)
	return rec, nil
}

func (m *Manager) editLocked(ctx context.Context, auctionID int64, editor string, field Field, value int64) (*store.Auction, error) {
	unlock := m.auctionLocks.Lock(auctionID)
	defer unlock()

	// Lock order is auction then item; creation takes only the item.
	if field == FieldTime {
		cur, err := m.repos.Auctions.GetByID(ctx, auctionID)
		if err != nil {
			return nil, notFound(auctionID, err)
		}
		unlockItem := m.itemLocks.Lock(cur.ItemRef)
		defer unlockItem()
	}

	var rec store.Auction
	err := m.repos.Tx.InTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		a, err := m.load(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		oldEnd := a.EndTime
		if err := a.Edit(editor, field, value, m.now()); err != nil {
			return err
		}
		if err := m.save(ctx, tx, a); err != nil {
			return err
		}
		if field == FieldTime {
			if err := moveCooldown(ctx, tx, a.ItemRef, oldEnd, a.EndTime); err != nil {
				return err
			}
		}
		rec = a.Auction
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.sink.AuctionUpdated(ctx, Snapshot{Auction: rec})
	return &rec, nil
}

// moveCooldown points the item's cooldown at end, unless a later auction of
// the same item already owns it.
func moveCooldown(ctx context.Context, tx *store.Tx, itemRef string, oldEnd, end time.Time) error {
	if err := tx.Cooldowns.Lock(ctx, itemRef); err != nil {
		return err
	}
	c, err := tx.Cooldowns.Get(ctx, itemRef)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("reading cooldown: %w", err)
	case c.LastAuctionEnd.After(oldEnd):
		return nil
	}
	if err := tx.Cooldowns.Upsert(ctx, &store.Cooldown{ItemRef: itemRef, LastAuctionEnd: end}); err != nil {
		return fmt.Errorf("updating cooldown: %w", err)
	}
	return nil
}

// EndEarly finalizes an open auction on behalf of its creator regardless of
// its end time. The winner is the highest bid in the ledger, if any.
func (m *Manager) EndEarly(ctx context.Context, auctionID int64, actor string) (*Finalized, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.EndEarly",
		trace.WithAttributes(
			attribute.Int64("auction.id", auctionID),
			attribute.String("actor.id", actor),
		),
	)
	defer span.End()

	f, err := m.finalize(ctx, auctionID, ReasonEndedEarly, actor, func(a *Auction, _ time.Time) (bool, error) {
		if a.Status != store.StatusOpen {
			return false, fmt.Errorf("%w: auction %d", ErrClosed, a.ID)
		}
		if actor != a.AuctioneerID {
			return false, ErrUnauthorized
		}
		return true, nil
	})
	if err != nil {
		return nil, m.fail(ctx, span, "end auction early", err)
	}
	return f, nil
}

// FinalizeExpired closes an auction whose end time has passed. It returns
// nil, nil when the auction was already finalized or is no longer due, so
// repeated calls emit at most one Finalized.
func (m *Manager) FinalizeExpired(ctx context.Context, auctionID int64) (*Finalized, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.FinalizeExpired",
		trace.WithAttributes(attribute.Int64("auction.id", auctionID)),
	)
	defer span.End()

	f, err := m.finalize(ctx, auctionID, ReasonExpired, "", func(a *Auction, now time.Time) (bool, error) {
		return a.Status == store.StatusOpen && !a.EndTime.After(now), nil
	})
	if err != nil {
		return nil, m.fail(ctx, span, "finalize expired auction", err)
	}
	return f, nil
}

// finalize closes an auction under its lock when due reports true.
func (m *Manager) finalize(ctx context.Context, auctionID int64, reason Reason, endedBy string, due func(a *Auction, now time.Time) (bool, error)) (*Finalized, error) {
	var fin *Finalized
	unlock := m.auctionLocks.Lock(auctionID)
	defer unlock()
	err := m.repos.Tx.InTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		a, err := m.load(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		now := m.now()
		ok, err := due(a, now)
		if err != nil || !ok {
			return err
		}

		var highest *store.Bid
		b, err := tx.Bids.Highest(ctx, auctionID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return fmt.Errorf("reading highest bid: %w", err)
		default:
			highest = b
		}

		a.Finalize(highest, reason, endedBy, now)
		if err := m.save(ctx, tx, a); err != nil {
			return err
		}
		f := newFinalized(a.Auction, endedBy)
		fin = &f
		return nil
	})
	if err != nil || fin == nil {
		return nil, err
	}

	m.announce(ctx, *fin)
	m.invalidateListing(ctx)
	return fin, nil
}

// CancelAuction withdraws an open auction without awarding it.
func (m *Manager) CancelAuction(ctx context.Context, auctionID int64, actor string) (*Finalized, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.CancelAuction",
		trace.WithAttributes(
			attribute.Int64("auction.id", auctionID),
			attribute.String("actor.id", actor),
		),
	)
	defer span.End()

	var fin Finalized
	unlock := m.auctionLocks.Lock(auctionID)
	defer unlock()
	err := m.repos.Tx.InTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		a, err := m.load(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if err := a.Cancel(actor, m.now()); err != nil {
			return err
		}
		if err := m.save(ctx, tx, a); err != nil {
			return err
		}
		fin = newFinalized(a.Auction, actor)
		return nil
	})
	if err != nil {
		return nil, m.fail(ctx, span, "cancel auction", err)
	}

	m.announce(ctx, fin)
	m.invalidateListing(ctx)
	return &fin, nil
}

func newFinalized(a store.Auction, endedBy string) Finalized {
	f := Finalized{
		ID:          uuid.NewString(),
		AuctionID:   a.ID,
		ItemRef:     a.ItemRef,
		ItemName:    a.ItemName,
		Description: a.Description,
		ImageURL:    a.ImageURL,
		ChannelID:   a.ChannelID,
		MessageID:   a.MessageID,
		Auctioneer:  a.AuctioneerID,
		EndedBy:     endedBy,
	}
	if a.CloseReason != nil {
		f.Reason = Reason(*a.CloseReason)
	}
	if a.ClosedAt != nil {
		f.EndedAt = *a.ClosedAt
	}
	if a.WinnerID != nil && a.CurrentBid != nil {
		f.WinnerID = *a.WinnerID
		f.FinalBid = *a.CurrentBid
	}
	return f
}

func (m *Manager) announce(ctx context.Context, f Finalized) {
	m.metrics.auctionFinalized(ctx, f.Reason)
	m.logger.InfoContext(ctx, "auction finalized",
		slog.Int64("auction_id", f.AuctionID),
		slog.String("reason", string(f.Reason)),
		slog.String("winner", f.WinnerID),
		slog.Int64("final_bid", f.FinalBid),
	)
	m.sink.Finalized(ctx, f)
}

// ListOpenAuctions returns the open auctions, earliest end first.
func (m *Manager) ListOpenAuctions(ctx context.Context) ([]Summary, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ListOpenAuctions")
	defer span.End()

	now := m.now()
	var (
		gen       int64
		cacheable bool
	)
	if m.cache != nil {
		list, g, ok, err := m.cache.Get(ctx)
		switch {
		case err != nil:
			m.logger.WarnContext(ctx, "reading listing cache", slog.Any("error", err))
		case ok:
			return stillOpen(list, now), nil
		default:
			gen, cacheable = g, true
		}
	}

	recs, err := m.repos.Auctions.ListOpen(ctx, now)
	if err != nil {
		return nil, m.fail(ctx, span, "list open auctions", err)
	}
	list := make([]Summary, 0, len(recs))
	for _, r := range recs {
		list = append(list, summarize(r))
	}

	if cacheable {
		if err := m.cache.Set(ctx, gen, list); err != nil {
			m.logger.WarnContext(ctx, "writing listing cache", slog.Any("error", err))
		}
	}
	return list, nil
}

// stillOpen drops cached entries that ended since they were cached.
func stillOpen(list []Summary, now time.Time) []Summary {
	out := list[:0:0]
	for _, s := range list {
		if s.EndTime.After(now) {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) invalidateListing(ctx context.Context) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Invalidate(ctx); err != nil {
		m.logger.WarnContext(ctx, "invalidating listing cache", slog.Any("error", err))
	}
}

// GetAuction returns an auction with its bids in placement order.
func (m *Manager) GetAuction(ctx context.Context, auctionID int64) (*Snapshot, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.GetAuction",
		trace.WithAttributes(attribute.Int64("auction.id", auctionID)),
	)
	defer span.End()

	rec, err := m.repos.Auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, m.fail(ctx, span, "get auction", notFound(auctionID, err))
	}
	bids, err := m.repos.Bids.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, m.fail(ctx, span, "list bids", err)
	}
	return &Snapshot{Auction: *rec, Bids: bids}, nil
}

// History rebuilds an auction from its event log.
func (m *Manager) History(ctx context.Context, auctionID int64) (*Auction, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.History",
		trace.WithAttributes(attribute.Int64("auction.id", auctionID)),
	)
	defer span.End()

	events, err := m.repos.Events.Load(ctx, AggregateID(auctionID))
	if err != nil {
		return nil, m.fail(ctx, span, "load events", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, auctionID)
	}
	return Replay(auctionID, events)
}

// IsAuctioneer reports whether user may create auctions.
func (m *Manager) IsAuctioneer(ctx context.Context, userID string) (bool, error) {
	return m.people.IsAuctioneer(ctx, userID)
}

func (m *Manager) load(ctx context.Context, tx *store.Tx, auctionID int64) (*Auction, error) {
	rec, err := tx.Auctions.GetForUpdate(ctx, auctionID)
	if err != nil {
		return nil, notFound(auctionID, err)
	}
	return Load(*rec), nil
}

func (m *Manager) save(ctx context.Context, tx *store.Tx, a *Auction) error {
	if err := tx.Auctions.Update(ctx, &a.Auction); err != nil {
		return fmt.Errorf("updating auction %d: %w", a.ID, err)
	}
	if err := tx.Events.Append(ctx, a.PendingEvents()...); err != nil {
		return fmt.Errorf("appending events: %w", err)
	}
	return nil
}

// notFound maps store.ErrNotFound to ErrNotFound.
func notFound(auctionID int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrNotFound, auctionID)
	}
	return fmt.Errorf("loading auction %d: %w", auctionID, err)
}

// fail marks storage failures as ErrUnavailable and records them on the span.
// Rejections are returned unchanged.
func (m *Manager) fail(ctx context.Context, span trace.Span, op string, err error) error {
	err = unavailable(err)
	if !IsRejection(err) {
		span.RecordError(err)
		m.logger.ErrorContext(ctx, op+" failed", slog.Any("error", err))
	}
	return err
}
