package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"gamesfinder/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Games is the gorm backed GameStore.
type Games struct {
	db *gorm.DB
}

func NewGames(db *gorm.DB) *Games {
	return &Games{db: db}
}

// vendorIDFilter renders the jsonb containment operand matching one GameID.
func vendorIDFilter(vendor models.Vendor, id string) (string, error) {
	b, err := json.Marshal([]models.GameID{{Vendor: vendor, ID: id}})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// withVendorID matches games carrying the GameID encoded in filter.
func withVendorID(filter string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("game_ids @> ?::jsonb", filter)
	}
}

// containedIn matches games whose name appears in name, shortest first.
func containedIn(name string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("strpos(lower(?), lower(name)) > 0", name).Order("length(name) asc")
	}
}

func withSteamAppIDs(appIDs []int) func(*gorm.DB) *gorm.DB {
	ids := make([]string, len(appIDs))
	for i, id := range appIDs {
		ids[i] = strconv.Itoa(id)
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(`EXISTS (SELECT 1 FROM jsonb_array_elements(games.game_ids) AS elem WHERE elem->>'vendor' = ? AND elem->>'id' IN ?)`, string(models.VendorSteam), ids)
	}
}

func vendorIDsQuery(db *gorm.DB, vendor models.Vendor) *gorm.DB {
	return db.Raw(`SELECT elem->>'id' FROM games, jsonb_array_elements(games.game_ids) AS elem WHERE elem->>'vendor' = ?`, string(vendor))
}

var gameUpsert = clause.OnConflict{
	Columns: []clause.Column{{Name: "id"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"updated_at", "name", "simplified_name", "description",
		"header_image", "steam_url", "game_ids", "in_packages", "type",
	}),
}

func (s *Games) FindByVendorID(ctx context.Context, vendor models.Vendor, id string) (*models.Game, error) {
	filter, err := vendorIDFilter(vendor, id)
	if err != nil {
		return nil, err
	}

	var game models.Game
	err = s.db.WithContext(ctx).
		Preload("Offers").
		Scopes(withVendorID(filter)).
		First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// FindByNameSubstring returns the game with the shortest name contained in name.
func (s *Games) FindByNameSubstring(ctx context.Context, name string) (*models.Game, error) {
	var game models.Game
	err := s.db.WithContext(ctx).
		Preload("Offers").
		Scopes(containedIn(name)).
		First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (s *Games) ExistsByVendorID(ctx context.Context, vendor models.Vendor, id string) (bool, error) {
	filter, err := vendorIDFilter(vendor, id)
	if err != nil {
		return false, err
	}

	var count int64
	err = s.db.WithContext(ctx).
		Model(&models.Game{}).
		Scopes(withVendorID(filter)).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// VendorIDs lists every id the catalog knows for a vendor.
func (s *Games) VendorIDs(ctx context.Context, vendor models.Vendor) ([]string, error) {
	var ids []string
	err := vendorIDsQuery(s.db.WithContext(ctx), vendor).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Games) FindBySteamAppIDs(ctx context.Context, appIDs []int) ([]models.Game, error) {
	if len(appIDs) == 0 {
		return nil, nil
	}
	var games []models.Game
	err := s.db.WithContext(ctx).
		Preload("Offers").
		Scopes(withSteamAppIDs(appIDs)).
		Find(&games).Error
	if err != nil {
		return nil, err
	}
	return games, nil
}

// SaveMany upserts the games in one transaction. Offers are not written.
func (s *Games) SaveMany(ctx context.Context, games []*models.Game) error {
	if len(games) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).
			Clauses(gameUpsert).
			CreateInBatches(games, batchSize).Error
	})
}
