package store

import (
	"context"

	"gamesfinder/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Offers is the gorm backed OfferStore.
type Offers struct {
	db *gorm.DB
}

func NewOffers(db *gorm.DB) *Offers {
	return &Offers{db: db}
}

var offerUpsert = clause.OnConflict{
	Columns: []clause.Column{{Name: "game_id"}, {Name: "vendor"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"updated_at", "vendors_game_id", "vendors_url", "available", "prices",
	}),
}

// SaveMany upserts offers keyed by (game_id, vendor), so a recrawl
// overwrites the current offer of that vendor.
func (s *Offers) SaveMany(ctx context.Context, offers []models.GameOffer) error {
	if len(offers) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(offerUpsert).CreateInBatches(offers, batchSize).Error
	})
}

func (s *Offers) FindByGame(ctx context.Context, gameID uuid.UUID) ([]models.GameOffer, error) {
	var offers []models.GameOffer
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("vendor asc").
		Find(&offers).Error
	if err != nil {
		return nil, err
	}
	return offers, nil
}
