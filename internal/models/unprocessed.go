package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UnprocessedGame is a title found on a vendor that resolved to a Steam app
// but has no catalog game yet. It waits for promotion into a Game.
type UnprocessedGame struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	VendorsName string           `gorm:"size:512;not null" json:"vendors_name"`
	SteamID     int              `gorm:"not null;index" json:"steam_id"`
	SteamName   string           `gorm:"size:512;not null" json:"steam_name"`
	Vendor      Vendor           `gorm:"size:32;uniqueIndex:idx_unprocessed_vendor_id" json:"vendor,omitempty"`
	VendorsID   *string          `gorm:"size:64;uniqueIndex:idx_unprocessed_vendor_id" json:"vendors_id,omitempty"`
	VendorsURL  *string          `gorm:"size:1024" json:"vendors_url,omitempty"`
	Currency    *Currency        `gorm:"size:8" json:"currency,omitempty"`
	Price       *decimal.Decimal `gorm:"type:numeric(12,2)" json:"price,omitempty"`
}

// NewUnprocessedGame creates a pending record for a Steam candidate.
func NewUnprocessedGame(vendorsName string, steamID int, steamName string) *UnprocessedGame {
	return &UnprocessedGame{
		ID:          uuid.New(),
		VendorsName: vendorsName,
		SteamID:     steamID,
		SteamName:   steamName,
	}
}

func (u *UnprocessedGame) BeforeSave(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
