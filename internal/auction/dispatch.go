package auction

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultDeliveryTimeout bounds a single side-effect delivery.
const DefaultDeliveryTimeout = 10 * time.Second

type job struct {
	kind string
	id   string
	sc   trace.SpanContext
	run  func(ctx context.Context) error
}

// Dispatcher is a Sink that hands side effects to a single background
// worker through a bounded queue. When the queue is full the side effect is
// dropped and logged; committed auction state is never affected.
type Dispatcher struct {
	renderer  Renderer
	notifier  Notifier
	announcer Announcer

	queue   chan job
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewDispatcher creates a Dispatcher with room for size queued side effects.
func NewDispatcher(r Renderer, n Notifier, a Announcer, size int, logger *slog.Logger, tp trace.TracerProvider) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		renderer:  r,
		notifier:  n,
		announcer: a,
		queue:     make(chan job, size),
		timeout:   DefaultDeliveryTimeout,
		logger:    logger,
		tracer:    tp.Tracer(instrumentationName),
	}
}

func (d *Dispatcher) AuctionUpdated(ctx context.Context, s Snapshot) {
	d.enqueue(ctx, job{
		kind: "render",
		id:   AggregateID(s.ID),
		run:  func(ctx context.Context) error { return d.renderer.Render(ctx, s) },
	})
}

func (d *Dispatcher) Outbid(ctx context.Context, o Outbid) {
	d.enqueue(ctx, job{
		kind: "outbid",
		id:   o.ID,
		run:  func(ctx context.Context) error { return d.notifier.NotifyOutbid(ctx, o) },
	})
}

func (d *Dispatcher) Finalized(ctx context.Context, f Finalized) {
	d.enqueue(ctx, job{
		kind: "announce",
		id:   f.ID,
		run:  func(ctx context.Context) error { return d.announcer.Announce(ctx, f) },
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, j job) {
	j.sc = trace.SpanContextFromContext(ctx)
	select {
	case d.queue <- j:
	default:
		d.logger.WarnContext(ctx, "side effect queue full, dropping",
			slog.String("kind", j.kind),
			slog.String("id", j.id),
		)
	}
}

// Run delivers queued side effects until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if n := len(d.queue); n > 0 {
				d.logger.WarnContext(ctx, "dispatcher stopped with pending side effects", slog.Int("pending", n))
			}
			return
		case j := <-d.queue:
			d.deliver(ctx, j)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	// Deliveries outlive the request that caused them but stay on its trace.
	ctx = trace.ContextWithRemoteSpanContext(ctx, j.sc)
	ctx, span := d.tracer.Start(ctx, "Dispatcher."+j.kind,
		trace.WithAttributes(attribute.String("effect.id", j.id)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := j.run(ctx); err != nil {
		span.RecordError(err)
		d.logger.ErrorContext(ctx, "delivering side effect",
			slog.String("kind", j.kind),
			slog.String("id", j.id),
			slog.Any("error", err),
		)
	}
}
