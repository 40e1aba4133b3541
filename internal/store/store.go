// Package store persists the catalog through gorm.
package store

import (
	"context"
	"errors"

	"gamesfinder/backend/internal/models"

	"github.com/google/uuid"
)

// batchSize bounds the number of rows per INSERT statement.
const batchSize = 100

var ErrNotFound = errors.New("store: not found")

// GameStore reads and writes catalog games.
type GameStore interface {
	FindByVendorID(ctx context.Context, vendor models.Vendor, id string) (*models.Game, error)
	FindByNameSubstring(ctx context.Context, name string) (*models.Game, error)
	ExistsByVendorID(ctx context.Context, vendor models.Vendor, id string) (bool, error)
	VendorIDs(ctx context.Context, vendor models.Vendor) ([]string, error)
	FindBySteamAppIDs(ctx context.Context, appIDs []int) ([]models.Game, error)
	SaveMany(ctx context.Context, games []*models.Game) error
}

// OfferStore reads and writes vendor offers.
type OfferStore interface {
	SaveMany(ctx context.Context, offers []models.GameOffer) error
	FindByGame(ctx context.Context, gameID uuid.UUID) ([]models.GameOffer, error)
}

// UnprocessedStore queues titles waiting to become catalog games.
type UnprocessedStore interface {
	SaveMany(ctx context.Context, records []*models.UnprocessedGame) error
}
