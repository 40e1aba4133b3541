// Package appindex keeps a local name to id index of the Steam app catalog.
package appindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/go-resty/resty/v2"
	"golang.org/x/text/cases"
)

var (
	ErrNotLoaded     = errors.New("appindex: index not loaded")
	ErrRefreshFailed = errors.New("appindex: refresh failed")
)

var jaroWinkler = metrics.NewJaroWinkler()

// App is one Steam application.
type App struct {
	AppID int    `json:"appid"`
	Name  string `json:"name"`
}

// Metadata describes the snapshot currently served.
type Metadata struct {
	Path         string    `json:"path"`
	LastModified time.Time `json:"last_modified"`
	LoadedAt     time.Time `json:"loaded_at"`
	Count        int       `json:"count"`
}

// Suggestion is an app ranked by name similarity.
type Suggestion struct {
	App   App     `json:"app"`
	Score float64 `json:"score"`
}

type snapshotFile struct {
	Apps []App `json:"apps"`
}

type appListResponse struct {
	AppList snapshotFile `json:"applist"`
}

// snapshot is immutable once published.
type snapshot struct {
	apps     []App
	byName   map[string]App
	loadedAt time.Time
	modTime  time.Time
}

func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func newSnapshot(apps []App, modTime time.Time) *snapshot {
	byName := make(map[string]App, len(apps))
	for _, app := range apps {
		key := foldName(app.Name)
		if key == "" {
			continue
		}
		if _, ok := byName[key]; !ok {
			byName[key] = app
		}
	}
	return &snapshot{
		apps:     apps,
		byName:   byName,
		loadedAt: time.Now(),
		modTime:  modTime,
	}
}

// Index serves lookups from the latest snapshot. Lookups never block on a refresh.
type Index struct {
	path    string
	url     string
	apiKey  string
	client  *resty.Client
	logger  *slog.Logger
	current atomic.Pointer[snapshot]
}

type Option func(*Index)

// WithSource sets the Steam GetAppList endpoint and API key used by Refresh.
func WithSource(url, apiKey string) Option {
	return func(i *Index) {
		i.url = url
		i.apiKey = apiKey
	}
}

func WithClient(client *resty.Client) Option {
	return func(i *Index) {
		i.client = client
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) {
		i.logger = logger
	}
}

// New creates an empty index backed by the snapshot file at path.
func New(path string, opts ...Option) *Index {
	idx := &Index{
		path:   path,
		url:    "https://api.steampowered.com/ISteamApps/GetAppList/v0002/",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.client == nil {
		idx.client = resty.New()
	}
	return idx
}

// Load reads the snapshot file and publishes it.
func (i *Index) Load() error {
	f, err := os.Open(i.path)
	if err != nil {
		return fmt.Errorf("open app list: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat app list: %w", err)
	}

	var file snapshotFile
	if err := json.NewDecoder(f).Decode(&file); err != nil {
		return fmt.Errorf("decode app list: %w", err)
	}

	i.current.Store(newSnapshot(file.Apps, info.ModTime()))
	i.logger.Info("app list loaded", "path", i.path, "count", len(file.Apps))
	return nil
}

// Refresh downloads the full app list, rewrites the snapshot file and
// swaps the served snapshot.
func (i *Index) Refresh(ctx context.Context) (Metadata, error) {
	var result appListResponse
	res, err := i.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":    i.apiKey,
			"format": "json",
		}).
		SetResult(&result).
		Get(i.url)
	if err != nil {
		i.logger.ErrorContext(ctx, "failed to download app list", "err", err)
		return Metadata{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if res.IsError() {
		i.logger.ErrorContext(ctx, "app list request rejected", "status", res.StatusCode())
		return Metadata{}, fmt.Errorf("%w: status %d", ErrRefreshFailed, res.StatusCode())
	}

	if err := i.write(snapshotFile{Apps: result.AppList.Apps}); err != nil {
		i.logger.ErrorContext(ctx, "failed to write app list", "path", i.path, "err", err)
		return Metadata{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if err := i.Load(); err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	return i.Metadata()
}

// write replaces the snapshot file through a rename so readers never see a partial file.
func (i *Index) write(file snapshotFile) error {
	dir := filepath.Dir(i.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".applist-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(file); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), i.path)
}

func (i *Index) snapshot() (*snapshot, error) {
	snap := i.current.Load()
	if snap == nil {
		i.logger.Error("app list lookup before load", "path", i.path)
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// Lookup finds an app by exact name, ignoring case.
func (i *Index) Lookup(name string) (App, bool) {
	snap, err := i.snapshot()
	if err != nil {
		return App{}, false
	}
	app, ok := snap.byName[foldName(name)]
	return app, ok
}

// IDs returns every app id in snapshot order.
func (i *Index) IDs() ([]int, error) {
	snap, err := i.snapshot()
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(snap.apps))
	for n, app := range snap.apps {
		ids[n] = app.AppID
	}
	return ids, nil
}

func (i *Index) Metadata() (Metadata, error) {
	snap, err := i.snapshot()
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Path:         i.path,
		LastModified: snap.modTime,
		LoadedAt:     snap.loadedAt,
		Count:        len(snap.apps),
	}, nil
}

// Suggest ranks apps by Jaro-Winkler similarity to name, best first.
func (i *Index) Suggest(name string, limit int) ([]Suggestion, error) {
	snap, err := i.snapshot()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	query := foldName(name)
	suggestions := make([]Suggestion, 0, len(snap.apps))
	for _, app := range snap.apps {
		if app.Name == "" {
			continue
		}
		score := strutil.Similarity(query, foldName(app.Name), jaroWinkler)
		suggestions = append(suggestions, Suggestion{App: app, Score: score})
	}

	sort.SliceStable(suggestions, func(a, b int) bool {
		return suggestions[a].Score > suggestions[b].Score
	})
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}
