package sqlite

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jensholdgaard/discord-auction-bot/internal/store"
)

// CooldownRepo implements store.CooldownRepository with gorm.
type CooldownRepo struct {
	db *gorm.DB
}

// Lock is a no-op: the single connection already serializes transactions.
func (r *CooldownRepo) Lock(context.Context, string) error { return nil }

func (r *CooldownRepo) Get(ctx context.Context, itemRef string) (*store.Cooldown, error) {
	var row cooldownRow
	if err := r.db.WithContext(ctx).Where("item_ref = ?", itemRef).Take(&row).Error; err != nil {
		return nil, fmt.Errorf("getting cooldown for %q: %w", itemRef, mapErr(err))
	}
	return &store.Cooldown{ItemRef: row.ItemRef, LastAuctionEnd: row.LastAuctionEnd.UTC()}, nil
}

func (r *CooldownRepo) Upsert(ctx context.Context, c *store.Cooldown) error {
	row := cooldownRow{ItemRef: c.ItemRef, LastAuctionEnd: c.LastAuctionEnd.UTC()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_auction_end"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upserting cooldown for %q: %w", c.ItemRef, err)
	}
	return nil
}
