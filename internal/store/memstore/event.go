package memstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/event"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// EventStore implements event.Store in memory.
type EventStore struct {
	run   runner
	clock clock.Clock
}

func (s *EventStore) Append(_ context.Context, events ...event.Event) error {
	return s.run(func(st *state) error {
		// Validate the whole batch first so a duplicate leaves nothing behind.
		seen := make(map[eventKey]struct{}, len(events))
		for _, e := range events {
			if e.Version == 0 {
				continue
			}
			k := eventKey{e.AggregateID, e.Version}
			_, dup := st.eventKeys[k]
			_, dupBatch := seen[k]
			if dup || dupBatch {
				return fmt.Errorf("inserting event (aggregate=%s, version=%d): %w", e.AggregateID, e.Version, store.ErrConflict)
			}
			seen[k] = struct{}{}
		}
		now := s.clock.Now().UTC()
		for _, e := range events {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now
			}
			st.events = append(st.events, e)
		}
		for k := range seen {
			st.eventKeys[k] = struct{}{}
		}
		return nil
	})
}

func (s *EventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	return s.filter(func(e event.Event) bool { return e.AggregateID == aggregateID })
}

func (s *EventStore) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	return s.filter(func(e event.Event) bool { return e.Type == eventType })
}

// filter returns matching events in append order, which is version order
// within an aggregate.
func (s *EventStore) filter(keep func(event.Event) bool) ([]event.Event, error) {
	var out []event.Event
	err := s.run(func(st *state) error {
		for _, e := range st.events {
			if keep(e) {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}
