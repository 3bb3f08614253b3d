package memstore

import (
	"context"
	"fmt"

	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// CooldownRepo implements store.CooldownRepository in memory.
type CooldownRepo struct {
	run runner
}

// Lock is a no-op: transactions already hold the store lock.
func (r *CooldownRepo) Lock(context.Context, string) error { return nil }

func (r *CooldownRepo) Get(_ context.Context, itemRef string) (*store.Cooldown, error) {
	var out store.Cooldown
	err := r.run(func(st *state) error {
		c, ok := st.cooldowns[itemRef]
		if !ok {
			return fmt.Errorf("cooldown for %q: %w", itemRef, store.ErrNotFound)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *CooldownRepo) Upsert(_ context.Context, c *store.Cooldown) error {
	return r.run(func(st *state) error {
		st.cooldowns[c.ItemRef] = *c
		return nil
	})
}
