package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PriceRange holds the list price and the current price of an offer.
// A nil bound was not observed on the storefront; it does not mean free.
type PriceRange struct {
	Initial *decimal.Decimal `json:"initial"`
	Current *decimal.Decimal `json:"current"`
}

// Prices maps a currency to the observed price range.
type Prices map[Currency]PriceRange

// GameOffer is a vendor-specific price and availability snapshot of a game.
// There is at most one offer per (GameID, Vendor); a recrawl overwrites it.
type GameOffer struct {
	ID            uuid.UUID                  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
	GameID        uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex:idx_offer_game_vendor" json:"game_id"`
	Vendor        Vendor                     `gorm:"size:32;not null;uniqueIndex:idx_offer_game_vendor;index" json:"vendor"`
	VendorsGameID string                     `gorm:"size:64" json:"vendors_game_id"`
	VendorsURL    string                     `gorm:"size:1024" json:"vendors_url"`
	Available     bool                       `gorm:"not null;default:false" json:"available"`
	Prices        datatypes.JSONType[Prices] `gorm:"type:jsonb" json:"prices"`
}

// NewGameOffer creates an offer with a fresh identity.
func NewGameOffer(gameID uuid.UUID, vendor Vendor, vendorsGameID, vendorsURL string, available bool, prices Prices) GameOffer {
	return GameOffer{
		ID:            uuid.New(),
		GameID:        gameID,
		Vendor:        vendor,
		VendorsGameID: vendorsGameID,
		VendorsURL:    vendorsURL,
		Available:     available,
		Prices:        datatypes.NewJSONType(prices),
	}
}

// PriceMap returns the decoded prices.
func (o GameOffer) PriceMap() Prices {
	return o.Prices.Data()
}

func (o *GameOffer) BeforeSave(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
