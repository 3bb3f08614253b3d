package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/jensholdgaard/discord-auction-bot/internal/clock"
	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

func auctioneerSet(st *state) map[string]store.Participant { return st.auctioneers }
func optInSet(st *state) map[string]store.Participant      { return st.optIns }

// ParticipantRepo implements store.ParticipantRepository in memory.
type ParticipantRepo struct {
	run   runner
	set   func(st *state) map[string]store.Participant
	clock clock.Clock
}

func (r *ParticipantRepo) Add(_ context.Context, userID string) error {
	return r.run(func(st *state) error {
		set := r.set(st)
		if _, ok := set[userID]; ok {
			return fmt.Errorf("user %s: %w", userID, store.ErrConflict)
		}
		set[userID] = store.Participant{UserID: userID, AddedAt: r.clock.Now().UTC()}
		return nil
	})
}

func (r *ParticipantRepo) Remove(_ context.Context, userID string) error {
	return r.run(func(st *state) error {
		set := r.set(st)
		if _, ok := set[userID]; !ok {
			return fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
		}
		delete(set, userID)
		return nil
	})
}

func (r *ParticipantRepo) Exists(_ context.Context, userID string) (bool, error) {
	var ok bool
	err := r.run(func(st *state) error {
		_, ok = r.set(st)[userID]
		return nil
	})
	return ok, err
}

func (r *ParticipantRepo) List(_ context.Context) ([]store.Participant, error) {
	var out []store.Participant
	err := r.run(func(st *state) error {
		for _, p := range r.set(st) {
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, err
}
