package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// ParticipantRepo implements store.ParticipantRepository on one of the
// user-set tables.
type ParticipantRepo struct {
	db    sqlx.ExtContext
	table string
	clock clock.Clock
}

// NewParticipantRepo returns a repository on table, which must be a
// trusted constant.
func NewParticipantRepo(db sqlx.ExtContext, table string, clk clock.Clock) *ParticipantRepo {
	return &ParticipantRepo{db: db, table: table, clock: clk}
}

func (r *ParticipantRepo) Add(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO `+r.table+` (user_id, added_at) VALUES ($1, $2)`, userID, r.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("adding %s to %s: %w", userID, r.table, mapErr(err))
	}
	return nil
}

func (r *ParticipantRepo) Remove(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM `+r.table+` WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("removing %s from %s: %w", userID, r.table, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("removing %s from %s: %w", userID, r.table, store.ErrNotFound)
	}
	return nil
}

func (r *ParticipantRepo) Exists(ctx context.Context, userID string) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, r.db, &ok,
		`SELECT EXISTS (SELECT 1 FROM `+r.table+` WHERE user_id = $1)`, userID)
	if err != nil {
		return false, fmt.Errorf("checking %s in %s: %w", userID, r.table, err)
	}
	return ok, nil
}

func (r *ParticipantRepo) List(ctx context.Context) ([]store.Participant, error) {
	var out []store.Participant
	err := sqlx.SelectContext(ctx, r.db, &out,
		`SELECT user_id, added_at FROM `+r.table+` ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.table, err)
	}
	return out, nil
}
