package handler

import (
	"testing"

	"gamesfinder/backend/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/clause"
)

func ptr(v float64) *float64 {
	return &v
}

func TestPriceConditions(t *testing.T) {
	const expr = "(o.prices -> ? ->> 'current')::numeric"

	tests := []struct {
		name    string
		filters GameFilters
		sql     string
		args    []interface{}
	}{
		{
			name:    "no price filter",
			filters: GameFilters{Vendor: "steam"},
		},
		{
			name:    "compare defaults to EUR",
			filters: GameFilters{PriceCompare: "lte", Price: ptr(19.99)},
			sql:     expr + " <= ?::numeric",
			args:    []interface{}{"EUR", "19.99"},
		},
		{
			name:    "compare without price is ignored",
			filters: GameFilters{PriceCompare: "gt"},
		},
		{
			name:    "range in USD",
			filters: GameFilters{Currency: "USD", PriceMin: ptr(5), PriceMax: ptr(30)},
			sql:     expr + " >= ?::numeric AND " + expr + " <= ?::numeric",
			args:    []interface{}{"USD", "5", "USD", "30"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := tt.filters.priceConditions()
			assert.Equal(t, tt.sql, sql)
			if diff := cmp.Diff(tt.args, args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGameOrder(t *testing.T) {
	assert.Equal(t, clause.OrderByColumn{Column: clause.Column{Table: "games", Name: "name"}}, GameFilters{}.order())
	assert.Equal(t,
		clause.OrderByColumn{Column: clause.Column{Table: "games", Name: "updated_at"}, Desc: true},
		GameFilters{Sort: "updated_at", Order: "desc"}.order(),
	)
}

func TestMissingAppIDs(t *testing.T) {
	games := []models.Game{
		{GameIDs: []models.GameID{{Vendor: models.VendorSteam, ID: "570"}}},
		{GameIDs: []models.GameID{
			{Vendor: models.VendorInstantGaming, ID: "730"},
			{Vendor: models.VendorSteam, ID: "1091500"},
		}},
	}

	got := missingAppIDs([]int{570, 730, 1091500, 440, 730}, games)
	assert.Equal(t, MissingGamesResponse{Missing: []int{730, 440}, Count: 2}, got)

	none := missingAppIDs([]int{570}, games)
	assert.Equal(t, MissingGamesResponse{Missing: []int{}, Count: 0}, none)
}

func TestNewGameResponse(t *testing.T) {
	game := models.NewGame("Dota 2 Key")
	game.AddVendorID(models.GameID{Vendor: models.VendorSteam, ID: "570"})
	game.ReplaceOffer(models.NewGameOffer(game.ID, models.VendorSteam, "570", "https://store.steampowered.com/app/570", true, nil))

	resp := newGameResponse(*game, true)
	assert.Equal(t, "Dota 2", resp.SimplifiedName)
	assert.True(t, resp.IsWishlisted)
	assert.Equal(t, []models.GameID{{Vendor: models.VendorSteam, ID: "570"}}, resp.GameIDs)
	if assert.Len(t, resp.Offers, 1) {
		assert.Equal(t, "570", resp.Offers[0].VendorsGameID)
		assert.True(t, resp.Offers[0].Available)
	}
}
