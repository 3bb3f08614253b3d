package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// CooldownRepo implements store.CooldownRepository with sqlx.
type CooldownRepo struct {
	db sqlx.ExtContext
}

// NewCooldownRepo returns a new CooldownRepo.
func NewCooldownRepo(db sqlx.ExtContext) *CooldownRepo {
	return &CooldownRepo{db: db}
}

// Lock takes a transaction-scoped advisory lock on itemRef, which also
// covers items that have no cooldown row yet.
func (r *CooldownRepo) Lock(ctx context.Context, itemRef string) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, itemRef); err != nil {
		return fmt.Errorf("locking item %q: %w", itemRef, err)
	}
	return nil
}

func (r *CooldownRepo) Get(ctx context.Context, itemRef string) (*store.Cooldown, error) {
	var c store.Cooldown
	err := sqlx.GetContext(ctx, r.db, &c,
		`SELECT item_ref, last_auction_end FROM cooldowns WHERE item_ref = $1`, itemRef)
	if err != nil {
		return nil, fmt.Errorf("getting cooldown for %q: %w", itemRef, mapErr(err))
	}
	return &c, nil
}

func (r *CooldownRepo) Upsert(ctx context.Context, c *store.Cooldown) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cooldowns (item_ref, last_auction_end) VALUES ($1, $2)
		 ON CONFLICT (item_ref) DO UPDATE SET last_auction_end = EXCLUDED.last_auction_end`,
		c.ItemRef, c.LastAuctionEnd)
	if err != nil {
		return fmt.Errorf("upserting cooldown for %q: %w", c.ItemRef, err)
	}
	return nil
}
