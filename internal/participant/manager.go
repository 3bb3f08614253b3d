// Package participant manages the users with a standing role in auctions:
// auctioneers, who may create auctions, and bidders who asked to be told
// when they are outbid.
package participant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/discord-auction-bot/internal/event"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// Manager handles auctioneer and outbid opt-in membership.
type Manager struct {
	repos  *store.Repositories
	logger *slog.Logger
	tracer trace.Tracer
}

// NewManager returns a new participant Manager.
func NewManager(repos *store.Repositories, logger *slog.Logger, tp trace.TracerProvider) *Manager {
	return &Manager{
		repos:  repos,
		logger: logger,
		tracer: tp.Tracer("github.com/jensholdgaard/discord-auction-bot/internal/participant"),
	}
}

// ToggleAuctioneer adds userID to the auctioneers, or removes them if they
// already are one. It reports whether the user is an auctioneer afterwards.
func (m *Manager) ToggleAuctioneer(ctx context.Context, userID string) (bool, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ToggleAuctioneer",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	var added bool
	err := m.repos.Tx.InTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		exists, err := tx.Auctioneers.Exists(ctx, userID)
		if err != nil {
			return fmt.Errorf("checking auctioneer: %w", err)
		}
		added = !exists
		return set(ctx, tx.Auctioneers, tx.Events, "auctioneer-"+userID, userID, added, event.AuctioneerAdded, event.AuctioneerRemoved)
	})
	if err != nil {
		return false, fmt.Errorf("toggling auctioneer: %w", err)
	}

	m.logger.InfoContext(ctx, "auctioneer toggled",
		slog.String("user_id", userID),
		slog.Bool("auctioneer", added),
	)
	return added, nil
}

// IsAuctioneer reports whether userID may create auctions.
func (m *Manager) IsAuctioneer(ctx context.Context, userID string) (bool, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.IsAuctioneer")
	defer span.End()

	return m.repos.Auctioneers.Exists(ctx, userID)
}

// ListAuctioneers returns all auctioneers ordered by user id.
func (m *Manager) ListAuctioneers(ctx context.Context) ([]store.Participant, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ListAuctioneers")
	defer span.End()

	return m.repos.Auctioneers.List(ctx)
}

// SetOutbidOptIn turns outbid notifications for userID on or off. It
// reports whether anything changed.
func (m *Manager) SetOutbidOptIn(ctx context.Context, userID string, enabled bool) (bool, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.SetOutbidOptIn",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Bool("enabled", enabled),
		),
	)
	defer span.End()

	var changed bool
	err := m.repos.Tx.InTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		exists, err := tx.OptIns.Exists(ctx, userID)
		if err != nil {
			return fmt.Errorf("checking opt-in: %w", err)
		}
		if exists == enabled {
			return nil
		}
		changed = true
		return set(ctx, tx.OptIns, tx.Events, "optin-"+userID, userID, enabled, event.OptInEnabled, event.OptInDisabled)
	})
	if err != nil {
		return false, fmt.Errorf("setting outbid opt-in: %w", err)
	}

	if changed {
		m.logger.InfoContext(ctx, "outbid opt-in changed",
			slog.String("user_id", userID),
			slog.Bool("enabled", enabled),
		)
	}
	return changed, nil
}

// OptedIn reports whether userID wants outbid notifications.
func (m *Manager) OptedIn(ctx context.Context, userID string) (bool, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.OptedIn")
	defer span.End()

	return m.repos.OptIns.Exists(ctx, userID)
}

// set adds or removes userID and records the matching event.
func set(ctx context.Context, repo store.ParticipantRepository, events event.Store, aggregateID, userID string, add bool, added, removed event.Type) error {
	t := removed
	if add {
		t = added
		if err := repo.Add(ctx, userID); err != nil {
			return fmt.Errorf("adding %s: %w", userID, err)
		}
	} else if err := repo.Remove(ctx, userID); err != nil {
		return fmt.Errorf("removing %s: %w", userID, err)
	}

	data, _ := json.Marshal(event.ParticipantData{UserID: userID})
	// Membership events are unversioned; they are not replayed into an aggregate.
	evt := event.Event{
		AggregateID: aggregateID,
		Type:        t,
		Data:        data,
		Version:     0,
	}
	if err := events.Append(ctx, evt); err != nil {
		return fmt.Errorf("appending %s event: %w", t, err)
	}
	return nil
}
