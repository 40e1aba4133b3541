package store

import (
	"context"
	"errors"
	"testing"

	"gamesfinder/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGames struct {
	GameStore
	saved [][]*models.Game
	err   error
}

func (r *recordingGames) SaveMany(_ context.Context, games []*models.Game) error {
	r.saved = append(r.saved, games)
	return r.err
}

type recordingOffers struct {
	OfferStore
	saved [][]models.GameOffer
	err   error
}

func (r *recordingOffers) SaveMany(_ context.Context, offers []models.GameOffer) error {
	r.saved = append(r.saved, offers)
	return r.err
}

type recordingUnprocessed struct {
	saved [][]*models.UnprocessedGame
	err   error
}

func (r *recordingUnprocessed) SaveMany(_ context.Context, records []*models.UnprocessedGame) error {
	r.saved = append(r.saved, records)
	return r.err
}

func TestPersist(t *testing.T) {
	game := models.NewGame("Dota 2")
	offer := models.NewGameOffer(game.ID, models.VendorSteam, "570", "", true, nil)
	pending := models.NewUnprocessedGame("Foo", 10, "Expansion - Foo")

	t.Run("saves every store", func(t *testing.T) {
		games, offers, unprocessed := &recordingGames{}, &recordingOffers{}, &recordingUnprocessed{}
		p := NewPersister(games, offers, unprocessed, nil)

		err := p.Persist(context.Background(), []*models.Game{game}, []models.GameOffer{offer}, []*models.UnprocessedGame{pending})
		require.NoError(t, err)
		assert.Len(t, games.saved, 1)
		assert.Len(t, offers.saved, 1)
		assert.Len(t, unprocessed.saved, 1)
	})

	t.Run("failed games skip offers", func(t *testing.T) {
		boom := errors.New("boom")
		games, offers, unprocessed := &recordingGames{err: boom}, &recordingOffers{}, &recordingUnprocessed{}
		p := NewPersister(games, offers, unprocessed, nil)

		err := p.Persist(context.Background(), []*models.Game{game}, []models.GameOffer{offer}, []*models.UnprocessedGame{pending})
		require.ErrorIs(t, err, boom)
		assert.Empty(t, offers.saved)
		assert.Len(t, unprocessed.saved, 1)
	})

	t.Run("failed offers are reported", func(t *testing.T) {
		boom := errors.New("boom")
		p := NewPersister(&recordingGames{}, &recordingOffers{err: boom}, &recordingUnprocessed{}, nil)

		err := p.Persist(context.Background(), nil, []models.GameOffer{offer}, nil)
		require.ErrorIs(t, err, boom)
	})
}

func TestVendorIDFilter(t *testing.T) {
	filter, err := vendorIDFilter(models.VendorSteam, "570")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"vendor":"steam","id":"570"}]`, filter)
}
