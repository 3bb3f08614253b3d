package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jensholdgaard/discord-auction-bot/internal/event"
)

// EventStore implements event.Store with gorm.
type EventStore struct {
	db *gorm.DB
}

// Append writes all events in one statement, so a batch is atomic even
// outside a transaction.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}

	now := s.db.NowFunc()
	rows := make([]eventRow, 0, len(events))
	for _, e := range events {
		row := eventRow{
			ID:          e.ID,
			AggregateID: e.AggregateID,
			Type:        string(e.Type),
			Data:        string(e.Data),
			Version:     e.Version,
			CreatedAt:   e.CreatedAt.UTC(),
		}
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.Data == "" {
			row.Data = `{}`
		}
		rows = append(rows, row)
	}

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("inserting %d events (aggregate=%s): %w", len(events), events[0].AggregateID, mapErr(err))
	}
	return nil
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	return s.find(ctx, s.db.Where("aggregate_id = ?", aggregateID).Order("version, created_at, rowid"))
}

func (s *EventStore) LoadByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	return s.find(ctx, s.db.Where("type = ?", string(eventType)).Order("created_at, rowid"))
}

func (s *EventStore) find(ctx context.Context, q *gorm.DB) ([]event.Event, error) {
	var rows []eventRow
	if err := q.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	events := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.event())
	}
	return events, nil
}
