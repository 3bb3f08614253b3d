package event

import "context"

// Store is the append-only event log shared by auctions and participants.
//
// Auction events carry a version that is unique per aggregate; appending a
// version that already exists fails with the store's conflict error.
// Participant events are unversioned (version 0) and never conflict.
type Store interface {
	// Append persists events atomically with the surrounding transaction.
	Append(ctx context.Context, events ...Event) error
	// Load returns an aggregate's events in version then append order.
	Load(ctx context.Context, aggregateID string) ([]Event, error)
	// LoadByType returns every event of one kind in append order.
	LoadByType(ctx context.Context, eventType Type) ([]Event, error)
}
