package store

import (
	"context"

	"gamesfinder/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Unprocessed is the gorm backed UnprocessedStore.
type Unprocessed struct {
	db *gorm.DB
}

func NewUnprocessed(db *gorm.DB) *Unprocessed {
	return &Unprocessed{db: db}
}

// SaveMany upserts pending records keyed by (vendor, vendors_id).
func (s *Unprocessed) SaveMany(ctx context.Context, records []*models.UnprocessedGame) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "vendor"}, {Name: "vendors_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"updated_at", "vendors_name", "steam_id", "steam_name",
				"vendors_url", "currency", "price",
			}),
		}).CreateInBatches(records, batchSize).Error
	})
}
