package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GameType distinguishes base games from downloadable content.
type GameType string

const (
	GameTypeGame GameType = "game"
	GameTypeDLC  GameType = "dlc"
)

var keySuffixPattern = regexp.MustCompile(`(?i)\s+key\s*$`)

// GameID links a game to its identifier on one vendor.
// RealID is set when the requested id was a package wrapping another app.
type GameID struct {
	Vendor Vendor `json:"vendor"`
	ID     string `json:"id"`
	RealID string `json:"real_id,omitempty"`
}

// Game represents a catalog entry aggregated from one or more vendors.
type Game struct {
	ID             uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
	Name           string                      `gorm:"size:512;not null;index" json:"name"`
	SimplifiedName string                      `gorm:"size:512;index" json:"simplified_name"`
	Description    string                      `json:"description"`
	HeaderImage    string                      `gorm:"size:1024" json:"header_image"`
	SteamURL       string                      `gorm:"size:512" json:"steam_url"`
	GameIDs        datatypes.JSONSlice[GameID] `gorm:"type:jsonb" json:"game_ids"`
	InPackages     datatypes.JSONSlice[int]    `gorm:"type:jsonb" json:"in_packages"`
	Type           GameType                    `gorm:"size:16;not null;default:'game'" json:"type"`

	Offers []GameOffer `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE" json:"offers,omitempty"`
}

// NewGame creates a game with a fresh identity.
func NewGame(name string) *Game {
	return &Game{
		ID:             uuid.New(),
		Name:           name,
		SimplifiedName: SimplifyName(name),
		Type:           GameTypeGame,
	}
}

// SimplifyName strips a trailing "Key" suffix used by key resellers.
func SimplifyName(name string) string {
	return strings.TrimSpace(keySuffixPattern.ReplaceAllString(name, ""))
}

// BeforeSave keeps the derived columns consistent.
func (g *Game) BeforeSave(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.SimplifiedName = SimplifyName(g.Name)
	if g.Type == "" {
		g.Type = GameTypeGame
	}
	return nil
}

// VendorID returns the id the game is known under for a vendor.
func (g *Game) VendorID(vendor Vendor) (GameID, bool) {
	for _, id := range g.GameIDs {
		if id.Vendor == vendor {
			return id, true
		}
	}
	return GameID{}, false
}

// AddVendorID appends the id unless the game already has one for that vendor.
func (g *Game) AddVendorID(id GameID) bool {
	if _, ok := g.VendorID(id.Vendor); ok {
		return false
	}
	g.GameIDs = append(g.GameIDs, id)
	return true
}

// AddPackage records a package the game was discovered through.
func (g *Game) AddPackage(packageID int) {
	for _, p := range g.InPackages {
		if p == packageID {
			return
		}
	}
	g.InPackages = append(g.InPackages, packageID)
}

// ReplaceOffer drops any offer from the same vendor and appends the new one.
// A game holds at most one current offer per vendor.
func (g *Game) ReplaceOffer(offer GameOffer) {
	kept := g.Offers[:0]
	for _, o := range g.Offers {
		if o.Vendor != offer.Vendor {
			kept = append(kept, o)
		}
	}
	g.Offers = append(kept, offer)
}

// Offer returns the current offer of a vendor.
func (g *Game) Offer(vendor Vendor) (GameOffer, bool) {
	for _, o := range g.Offers {
		if o.Vendor == vendor {
			return o, true
		}
	}
	return GameOffer{}, false
}
