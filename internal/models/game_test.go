package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddVendorID(t *testing.T) {
	game := NewGame("Dota 2")

	assert.True(t, game.AddVendorID(GameID{Vendor: VendorSteam, ID: "570"}))
	assert.False(t, game.AddVendorID(GameID{Vendor: VendorSteam, ID: "571"}))
	assert.True(t, game.AddVendorID(GameID{Vendor: VendorInstantGaming, ID: "1234"}))

	id, ok := game.VendorID(VendorSteam)
	require.True(t, ok)
	assert.Equal(t, "570", id.ID)
	assert.Len(t, game.GameIDs, 2)
}

func TestAddPackage(t *testing.T) {
	game := NewGame("Half-Life 2")
	game.AddPackage(36)
	game.AddPackage(36)
	game.AddPackage(469)
	assert.Equal(t, []int{36, 469}, []int(game.InPackages))
}

func TestReplaceOffer(t *testing.T) {
	game := NewGame("Cyberpunk 2077")
	price := decimal.RequireFromString("29.99")

	game.ReplaceOffer(NewGameOffer(game.ID, VendorSteam, "1091500", "", true, nil))
	game.ReplaceOffer(NewGameOffer(game.ID, VendorInstantGaming, "7845", "", true, nil))
	game.ReplaceOffer(NewGameOffer(game.ID, VendorInstantGaming, "7845", "", false, Prices{
		CurrencyEUR: {Current: &price},
	}))

	require.Len(t, game.Offers, 2)
	offer, ok := game.Offer(VendorInstantGaming)
	require.True(t, ok)
	assert.False(t, offer.Available)
	assert.True(t, price.Equal(*offer.PriceMap()[CurrencyEUR].Current))

	_, ok = game.Offer(VendorSteam)
	assert.True(t, ok)
}

func TestGameBeforeSave(t *testing.T) {
	game := &Game{Name: "Elden Ring Key"}
	require.NoError(t, game.BeforeSave(nil))

	assert.NotEqual(t, uuid.Nil, game.ID)
	assert.Equal(t, "Elden Ring", game.SimplifiedName)
	assert.Equal(t, GameTypeGame, game.Type)
}
