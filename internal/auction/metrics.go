package auction

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/jensholdgaard/discord-auction-bot/internal/auction"

type metrics struct {
	bidsAccepted  metric.Int64Counter
	bidsRejected  metric.Int64Counter
	finalized     metric.Int64Counter
	sweepDuration metric.Float64Histogram
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(instrumentationName)

	var m metrics
	var err, errs error
	m.bidsAccepted, err = meter.Int64Counter("auction.bids.accepted",
		metric.WithDescription("Bids accepted by the bidding engine."))
	errs = errors.Join(errs, err)
	m.bidsRejected, err = meter.Int64Counter("auction.bids.rejected",
		metric.WithDescription("Bids rejected by validation, by reason."))
	errs = errors.Join(errs, err)
	m.finalized, err = meter.Int64Counter("auction.finalized",
		metric.WithDescription("Auctions finalized, by reason."))
	errs = errors.Join(errs, err)
	m.sweepDuration, err = meter.Float64Histogram("auction.sweep.duration",
		metric.WithDescription("Duration of expiry sweeps."),
		metric.WithUnit("s"))
	errs = errors.Join(errs, err)
	if errs != nil {
		return nil, errs
	}
	return &m, nil
}

func noopMetrics() *metrics {
	m, _ := newMetrics(noop.NewMeterProvider())
	return m
}

func (m *metrics) bidAccepted(ctx context.Context) {
	m.bidsAccepted.Add(ctx, 1)
}

func (m *metrics) bidRejected(ctx context.Context, err error) {
	reason := rejectionReason(err)
	if reason == "" {
		reason = "unavailable"
	}
	m.bidsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *metrics) auctionFinalized(ctx context.Context, reason Reason) {
	m.finalized.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
}

func (m *metrics) sweepDone(ctx context.Context, d time.Duration) {
	m.sweepDuration.Record(ctx, d.Seconds())
}
