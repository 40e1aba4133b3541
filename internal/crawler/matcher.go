package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"gamesfinder/backend/internal/appindex"
	"gamesfinder/backend/internal/models"
	"gamesfinder/backend/internal/store"
)

const expansionPrefix = "Expansion - "

var ErrUnresolved = errors.New("crawler: game could not be resolved")

// AppIndex resolves Steam app names to ids.
type AppIndex interface {
	Lookup(name string) (appindex.App, bool)
}

// Match is the outcome of a resolution: a catalog game, or a pending
// record when only the Steam index knows the title.
type Match struct {
	Game    *models.Game
	Pending *models.UnprocessedGame
}

// Resolver maps a normalized title to a catalog identity.
type Resolver interface {
	Resolve(ctx context.Context, name string, existing *models.Game) (Match, error)
}

// Matcher resolves titles against the catalog first, then the Steam index.
//
// Catalog matching is containment based: a game named "Rust" matches any
// title containing "rust". Short names can therefore attract unrelated titles.
type Matcher struct {
	games  store.GameStore
	index  AppIndex
	logger *slog.Logger
}

func NewMatcher(games store.GameStore, index AppIndex, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		games:  games,
		index:  index,
		logger: logger,
	}
}

func (m *Matcher) Resolve(ctx context.Context, name string, existing *models.Game) (Match, error) {
	if existing != nil {
		return Match{Game: existing}, nil
	}

	game, err := m.games.FindByNameSubstring(ctx, name)
	switch {
	case err == nil:
		return Match{Game: game}, nil
	case !errors.Is(err, store.ErrNotFound):
		return Match{}, fmt.Errorf("find game by name %q: %w", name, err)
	}

	app, ok := m.lookup(name)
	if !ok {
		m.logger.InfoContext(ctx, "no catalog or app list match", "name", name)
		return Match{}, fmt.Errorf("%w: %q", ErrUnresolved, name)
	}

	game, err = m.games.FindByVendorID(ctx, models.VendorSteam, strconv.Itoa(app.AppID))
	switch {
	case err == nil:
		return Match{Game: game}, nil
	case !errors.Is(err, store.ErrNotFound):
		return Match{}, fmt.Errorf("find game by steam id %d: %w", app.AppID, err)
	}

	m.logger.InfoContext(ctx, "title only known to the app list, queued as unprocessed",
		"name", name,
		"steam_id", app.AppID,
		"steam_name", app.Name,
	)
	return Match{Pending: models.NewUnprocessedGame(name, app.AppID, app.Name)}, nil
}

func (m *Matcher) lookup(name string) (appindex.App, bool) {
	if m.index == nil {
		return appindex.App{}, false
	}
	if app, ok := m.index.Lookup(name); ok {
		return app, true
	}
	return m.index.Lookup(expansionPrefix + name)
}
