package crawler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"gamesfinder/backend/internal/appindex"
	"gamesfinder/backend/internal/models"
	"gamesfinder/backend/internal/store"

	"golang.org/x/text/cases"
)

func fold(s string) string {
	return cases.Fold().String(s)
}

// memoryGames is an in-memory store.GameStore.
type memoryGames struct {
	mu     sync.Mutex
	games  []*models.Game
	checks int
}

func newMemoryGames(games ...*models.Game) *memoryGames {
	return &memoryGames{games: games}
}

func (m *memoryGames) FindByVendorID(_ context.Context, vendor models.Vendor, id string) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.games {
		if gid, ok := g.VendorID(vendor); ok && gid.ID == id {
			return g, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memoryGames) FindByNameSubstring(_ context.Context, name string) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.Game
	for _, g := range m.games {
		if !strings.Contains(fold(name), fold(g.Name)) {
			continue
		}
		if best == nil || len(g.Name) < len(best.Name) {
			best = g
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	return best, nil
}

func (m *memoryGames) ExistsByVendorID(ctx context.Context, vendor models.Vendor, id string) (bool, error) {
	m.mu.Lock()
	m.checks++
	m.mu.Unlock()
	_, err := m.FindByVendorID(ctx, vendor, id)
	return err == nil, nil
}

func (m *memoryGames) VendorIDs(_ context.Context, vendor models.Vendor) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, g := range m.games {
		if gid, ok := g.VendorID(vendor); ok {
			ids = append(ids, gid.ID)
		}
	}
	return ids, nil
}

func (m *memoryGames) FindBySteamAppIDs(ctx context.Context, appIDs []int) ([]models.Game, error) {
	var games []models.Game
	for _, id := range appIDs {
		if g, err := m.FindByVendorID(ctx, models.VendorSteam, strconv.Itoa(id)); err == nil {
			games = append(games, *g)
		}
	}
	return games, nil
}

func (m *memoryGames) SaveMany(_ context.Context, games []*models.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = append(m.games, games...)
	return nil
}

type flushCall struct {
	games   []*models.Game
	offers  []models.GameOffer
	pending []*models.UnprocessedGame
}

type recordingPersister struct {
	calls []flushCall
	err   error
}

func (p *recordingPersister) Persist(_ context.Context, games []*models.Game, offers []models.GameOffer, pending []*models.UnprocessedGame) error {
	p.calls = append(p.calls, flushCall{games: games, offers: offers, pending: pending})
	return p.err
}

// urlFetcher serves canned bodies keyed by url.
type urlFetcher struct {
	bodies map[string]string
	urls   []string
}

func (f *urlFetcher) Fetch(_ context.Context, url, identifier string) ([]byte, error) {
	f.urls = append(f.urls, url)
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("%w: 404 for %s", ErrUnexpectedStatus, identifier)
	}
	return []byte(body), nil
}

type mapIndex map[string]appindex.App

func (m mapIndex) Lookup(name string) (appindex.App, bool) {
	app, ok := m[fold(strings.TrimSpace(name))]
	return app, ok
}

func newMapIndex(apps ...appindex.App) mapIndex {
	m := mapIndex{}
	for _, app := range apps {
		m[fold(app.Name)] = app
	}
	return m
}

type recordingSleeper struct {
	mu   sync.Mutex
	naps []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.naps = append(s.naps, d)
	return nil
}

// countingVendor creates one new game per id. Ids listed in fail cannot be fetched.
type countingVendor struct {
	fetched []int
	fail    map[int]bool
}

func (v *countingVendor) Vendor() models.Vendor {
	return models.VendorSteam
}

func (v *countingVendor) Fetch(_ context.Context, id int) ([]byte, error) {
	v.fetched = append(v.fetched, id)
	if v.fail[id] {
		return nil, fmt.Errorf("%w: 500", ErrUnexpectedStatus)
	}
	return []byte(strconv.Itoa(id)), nil
}

func (v *countingVendor) Extract(_ context.Context, content []byte, id int, existing *models.Game) (Result, error) {
	game := existing
	isNew := game == nil
	if isNew {
		game = models.NewGame("Game " + string(content))
		game.AddVendorID(models.GameID{Vendor: models.VendorSteam, ID: strconv.Itoa(id)})
	}
	offer := models.NewGameOffer(game.ID, models.VendorSteam, strconv.Itoa(id), "", true, nil)
	game.ReplaceOffer(offer)
	return Result{Game: game, Offer: &offer, IsNew: isNew}, nil
}

func steamGame(name string, appID int) *models.Game {
	g := models.NewGame(name)
	g.AddVendorID(models.GameID{Vendor: models.VendorSteam, ID: strconv.Itoa(appID), RealID: strconv.Itoa(appID)})
	return g
}
