package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSweepInterval is how often expired auctions are finalized.
const DefaultSweepInterval = time.Minute

// ErrSweepInProgress is returned by SweepOnce when another sweep is running.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Sweeper periodically finalizes auctions whose end time has passed.
type Sweeper struct {
	mgr      *Manager
	interval time.Duration
	running  atomic.Bool
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewSweeper creates a Sweeper for mgr.
func NewSweeper(mgr *Manager, interval time.Duration, logger *slog.Logger, tp trace.TracerProvider) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		mgr:      mgr,
		interval: interval,
		logger:   logger,
		tracer:   tp.Tracer(instrumentationName),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.InfoContext(ctx, "expiry sweeper started", slog.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "expiry sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	n, err := s.SweepOnce(ctx)
	switch {
	case errors.Is(err, ErrSweepInProgress):
		s.logger.WarnContext(ctx, "previous sweep still running, skipping tick")
	case err != nil:
		s.logger.ErrorContext(ctx, "sweep failed", slog.Any("error", err))
	case n > 0:
		s.logger.InfoContext(ctx, "sweep finalized auctions", slog.Int("count", n))
	}
}

// SweepOnce finalizes every auction due at the current time and returns how
// many it finalized. A failure on one auction is logged and the rest are
// still processed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, ErrSweepInProgress
	}
	defer s.running.Store(false)

	ctx, span := s.tracer.Start(ctx, "Sweeper.SweepOnce")
	defer span.End()

	start := time.Now()
	defer func() { s.mgr.metrics.sweepDone(ctx, time.Since(start)) }()

	due, err := s.mgr.repos.Auctions.ListDue(ctx, s.mgr.now())
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: listing due auctions: %w", ErrUnavailable, err)
	}
	span.SetAttributes(attribute.Int("auctions.due", len(due)))

	finalized := 0
	for _, a := range due {
		f, err := s.mgr.FinalizeExpired(ctx, a.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "finalizing expired auction",
				slog.Int64("auction_id", a.ID),
				slog.Any("error", err),
			)
			continue
		}
		if f != nil {
			finalized++
		}
	}
	return finalized, nil
}
