package sqlite

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// ParticipantRepo implements store.ParticipantRepository on one of the
// user-set tables.
type ParticipantRepo struct {
	db    *gorm.DB
	table string
}

func (r *ParticipantRepo) Add(ctx context.Context, userID string) error {
	row := participantRow{UserID: userID, AddedAt: r.db.NowFunc()}
	if err := r.db.WithContext(ctx).Table(r.table).Create(&row).Error; err != nil {
		return fmt.Errorf("adding %s to %s: %w", userID, r.table, mapErr(err))
	}
	return nil
}

func (r *ParticipantRepo) Remove(ctx context.Context, userID string) error {
	result := r.db.WithContext(ctx).Table(r.table).Where("user_id = ?", userID).Delete(&participantRow{})
	if result.Error != nil {
		return fmt.Errorf("removing %s from %s: %w", userID, r.table, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("removing %s from %s: %w", userID, r.table, store.ErrNotFound)
	}
	return nil
}

func (r *ParticipantRepo) Exists(ctx context.Context, userID string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Table(r.table).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("checking %s in %s: %w", userID, r.table, err)
	}
	return n > 0, nil
}

func (r *ParticipantRepo) List(ctx context.Context) ([]store.Participant, error) {
	var rows []participantRow
	if err := r.db.WithContext(ctx).Table(r.table).Order("user_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.table, err)
	}
	out := make([]store.Participant, 0, len(rows))
	for _, row := range rows {
		out = append(out, store.Participant{UserID: row.UserID, AddedAt: row.AddedAt.UTC()})
	}
	return out, nil
}
