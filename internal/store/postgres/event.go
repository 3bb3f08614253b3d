package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/event"
)

// EventStore implements event.Store backed by Postgres.
type EventStore struct {
	db    sqlx.ExtContext
	clock clock.Clock
}

// NewEventStore returns a new EventStore.
func NewEventStore(db sqlx.ExtContext, clk clock.Clock) *EventStore {
	return &EventStore{db: db, clock: clk}
}

// Append writes all events in one statement, so a batch is atomic even
// outside a transaction.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}

	now := s.clock.Now().UTC()
	var (
		rows []string
		args = make([]any, 0, len(events)*6)
	)
	for i, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		data := string(e.Data)
		if data == "" {
			data = `{}`
		}
		n := i * 6
		rows = append(rows, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6))
		args = append(args, e.ID, e.AggregateID, e.Type, data, e.Version, e.CreatedAt)
	}

	query := `INSERT INTO events (id, aggregate_id, type, data, version, created_at) VALUES ` + strings.Join(rows, ", ")
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %d events (aggregate=%s): %w", len(events), events[0].AggregateID, mapErr(err))
	}
	return nil
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	var events []event.Event
	err := sqlx.SelectContext(ctx, s.db, &events,
		`SELECT id, aggregate_id, type, data, version, created_at
		 FROM events WHERE aggregate_id = $1 ORDER BY version ASC, created_at ASC`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	return events, nil
}

func (s *EventStore) LoadByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	var events []event.Event
	err := sqlx.SelectContext(ctx, s.db, &events,
		`SELECT id, aggregate_id, type, data, version, created_at
		 FROM events WHERE type = $1 ORDER BY created_at ASC`, eventType)
	if err != nil {
		return nil, fmt.Errorf("loading events by type: %w", err)
	}
	return events, nil
}
