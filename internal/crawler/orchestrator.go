package crawler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"gamesfinder/backend/internal/models"
	"gamesfinder/backend/internal/store"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	DefaultFlushInterval  = 200
	DefaultForbiddenStart = 10
)

var (
	ErrNoIDs        = errors.New("crawler: no ids to crawl")
	ErrInvalidRange = errors.New("crawler: max calls must exceed the start id")
)

// Persister writes one accumulated batch.
type Persister interface {
	Persist(ctx context.Context, games []*models.Game, offers []models.GameOffer, pending []*models.UnprocessedGame) error
}

// Stats counts what a crawl did so far.
type Stats struct {
	Requested int `json:"requested"`
	Fetched   int `json:"fetched"`
	Skipped   int `json:"skipped"`
	Saved     int `json:"saved"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
	Flushes   int `json:"flushes"`
}

// Progress receives a copy of the stats after every item.
type Progress func(Stats)

// Orchestrator drives the fetch, extract and persist loop for one vendor.
// Items are processed sequentially since the rate limit is per vendor.
type Orchestrator struct {
	vendor         Vendor
	games          store.GameStore
	persister      Persister
	flushInterval  int
	cooldown       time.Duration
	forbiddenStart int
	sleep          Sleeper
	progress       Progress
	logger         *slog.Logger
}

type Option func(*Orchestrator)

func WithFlushInterval(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.flushInterval = n
		}
	}
}

// WithBatchCooldown sets the pause taken after each interval flush.
func WithBatchCooldown(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.cooldown = d
	}
}

// WithForbiddenStart sets the first id an exhaustive scan may probe.
func WithForbiddenStart(id int) Option {
	return func(o *Orchestrator) {
		o.forbiddenStart = id
	}
}

func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) {
		o.sleep = s
	}
}

func WithProgress(p Progress) Option {
	return func(o *Orchestrator) {
		o.progress = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func NewOrchestrator(vendor Vendor, games store.GameStore, persister Persister, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		vendor:         vendor,
		games:          games,
		persister:      persister,
		flushInterval:  DefaultFlushInterval,
		forbiddenStart: DefaultForbiddenStart,
		sleep:          Sleep,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Observe returns a copy of the orchestrator reporting to p.
func (o *Orchestrator) Observe(p Progress) *Orchestrator {
	c := *o
	c.progress = p
	return &c
}

func (o *Orchestrator) Vendor() models.Vendor {
	return o.vendor.Vendor()
}

// FlushInterval is the number of fetches between flushes.
func (o *Orchestrator) FlushInterval() int {
	return o.flushInterval
}

// Estimate predicts the cooldown time of a crawl over count ids.
func (o *Orchestrator) Estimate(count int) time.Duration {
	return EstimateDuration(count, o.flushInterval, o.cooldown)
}

type run struct {
	batch *batch
	stats Stats
	calls int
	// seen holds the ids visited by this run; their results may not be flushed yet.
	seen map[int]bool
}

func newRun(requested int) *run {
	r := &run{batch: newBatch(), seen: make(map[int]bool)}
	r.stats.Requested = requested
	return r
}

// CrawlTargeted crawls ids in order. Unless force is set, ids already in
// the catalog are skipped without a request.
func (o *Orchestrator) CrawlTargeted(ctx context.Context, ids []int, force bool) (Stats, error) {
	if len(ids) == 0 {
		return Stats{}, ErrNoIDs
	}

	r := newRun(len(ids))
	o.logger.InfoContext(ctx, "targeted crawl started", "vendor", o.Vendor(), "ids", len(ids), "force", force)

	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		existing, skip := o.known(ctx, r, id, force, nil)
		if skip {
			o.report(r)
			continue
		}
		if !o.visit(ctx, r, id, existing, i < len(ids)-1) {
			break
		}
	}

	return o.finish(ctx, r), ctx.Err()
}

// CrawlExhaustive probes every id from start up to maxCalls-1. Ids below the
// forbidden start are never probed.
func (o *Orchestrator) CrawlExhaustive(ctx context.Context, start, maxCalls int, force bool) (Stats, error) {
	first := max(start, o.forbiddenStart)
	if maxCalls <= first {
		return Stats{}, ErrInvalidRange
	}

	r := newRun(maxCalls - first)
	o.logger.InfoContext(ctx, "exhaustive crawl started", "vendor", o.Vendor(), "start", first, "max_calls", maxCalls, "force", force)

	var filter *bloom.BloomFilter
	if !force {
		filter = o.knownFilter(ctx)
	}

	for id := first; id < maxCalls; id++ {
		if ctx.Err() != nil {
			break
		}
		existing, skip := o.known(ctx, r, id, force, filter)
		if skip {
			o.report(r)
			continue
		}
		if !o.visit(ctx, r, id, existing, id < maxCalls-1) {
			break
		}
	}

	return o.finish(ctx, r), ctx.Err()
}

// CrawlPrices recrawls catalog games, found by Steam app id, through their
// own id on this vendor.
func (o *Orchestrator) CrawlPrices(ctx context.Context, steamAppIDs []int) (Stats, error) {
	if len(steamAppIDs) == 0 {
		return Stats{}, ErrNoIDs
	}

	games, err := o.games.FindBySteamAppIDs(ctx, steamAppIDs)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to load games for price crawl", "err", err)
		return Stats{}, err
	}

	r := newRun(len(steamAppIDs))
	r.stats.Skipped = unmatchedAppIDs(steamAppIDs, games)
	o.logger.InfoContext(ctx, "price crawl started", "vendor", o.Vendor(), "games", len(games))

	for i := range games {
		if ctx.Err() != nil {
			break
		}
		game := &games[i]
		gid, ok := game.VendorID(o.Vendor())
		id, err := strconv.Atoi(gid.ID)
		if !ok || err != nil {
			o.logger.InfoContext(ctx, "game has no id on vendor", "game_id", game.ID, "name", game.Name, "vendor", o.Vendor())
			r.stats.Skipped++
			o.report(r)
			continue
		}
		if r.seen[id] {
			r.stats.Skipped++
			o.report(r)
			continue
		}
		r.seen[id] = true
		if !o.visit(ctx, r, id, game, i < len(games)-1) {
			break
		}
	}

	return o.finish(ctx, r), ctx.Err()
}

// unmatchedAppIDs counts the distinct requested Steam app ids no game carries.
func unmatchedAppIDs(steamAppIDs []int, games []models.Game) int {
	matched := make(map[string]bool, len(games))
	for _, game := range games {
		if gid, ok := game.VendorID(models.VendorSteam); ok {
			matched[gid.ID] = true
		}
	}

	counted := make(map[int]bool, len(steamAppIDs))
	unmatched := 0
	for _, id := range steamAppIDs {
		if counted[id] || matched[strconv.Itoa(id)] {
			continue
		}
		counted[id] = true
		unmatched++
	}
	return unmatched
}

// knownFilter preloads the ids the catalog already holds for this vendor.
// A nil filter makes every id go through the store check.
func (o *Orchestrator) knownFilter(ctx context.Context) *bloom.BloomFilter {
	ids, err := o.games.VendorIDs(ctx, o.Vendor())
	if err != nil {
		o.logger.WarnContext(ctx, "failed to preload known ids", "err", err)
		return nil
	}
	filter := bloom.NewWithEstimates(uint(max(len(ids), 1000)), 0.001)
	for _, id := range ids {
		filter.AddString(id)
	}
	return filter
}

// known applies the skip policy. An id already visited by this run is
// always skipped. With force, the catalog game is returned so the vendor
// refreshes it instead of creating a new one.
func (o *Orchestrator) known(ctx context.Context, r *run, id int, force bool, filter *bloom.BloomFilter) (*models.Game, bool) {
	if r.seen[id] {
		o.logger.DebugContext(ctx, "already visited, skipping", "id", id)
		r.stats.Skipped++
		return nil, true
	}
	r.seen[id] = true
	key := strconv.Itoa(id)

	if force {
		game, err := o.games.FindByVendorID(ctx, o.Vendor(), key)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			o.logger.ErrorContext(ctx, "failed to load game", "id", id, "err", err)
		}
		return game, false
	}

	if filter != nil && !filter.TestString(key) {
		return nil, false
	}
	exists, err := o.games.ExistsByVendorID(ctx, o.Vendor(), key)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to check game", "id", id, "err", err)
		return nil, false
	}
	if exists {
		o.logger.DebugContext(ctx, "already in catalog, skipping", "id", id)
		r.stats.Skipped++
		return nil, true
	}
	return nil, false
}

// visit fetches and extracts one id. It returns false when the crawl must stop.
func (o *Orchestrator) visit(ctx context.Context, r *run, id int, existing *models.Game, remaining bool) bool {
	defer o.report(r)

	r.calls++
	content, err := o.vendor.Fetch(ctx, id)
	if err != nil {
		o.logger.ErrorContext(ctx, "fetch failed, skipping", "vendor", o.Vendor(), "id", id, "err", err)
		r.stats.Failed++
		o.flush(ctx, r)
		if ctx.Err() != nil {
			return false
		}
	} else {
		r.stats.Fetched++
		o.extract(ctx, r, content, id, existing)
	}

	if r.calls%o.flushInterval != 0 {
		return true
	}
	o.flush(ctx, r)
	if remaining && o.cooldown > 0 {
		o.logger.InfoContext(ctx, "batch done, cooling down", "vendor", o.Vendor(), "cooldown", o.cooldown)
		if err := o.sleep(ctx, o.cooldown); err != nil {
			return false
		}
	}
	return true
}

func (o *Orchestrator) extract(ctx context.Context, r *run, content []byte, id int, existing *models.Game) {
	res, err := o.vendor.Extract(ctx, content, id, existing)
	if err != nil {
		o.logger.WarnContext(ctx, "extraction failed, skipping", "vendor", o.Vendor(), "id", id, "err", err)
		r.stats.Failed++
		return
	}
	r.batch.add(res)
}

// flush persists the batch. Failures are logged and the batch is dropped.
func (o *Orchestrator) flush(ctx context.Context, r *run) {
	if r.batch.empty() {
		return
	}
	games, pending := len(r.batch.games), len(r.batch.pending)

	err := o.persister.Persist(context.WithoutCancel(ctx), r.batch.games, r.batch.offers, r.batch.pending)
	r.stats.Flushes++
	r.batch.reset()
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to persist batch", "vendor", o.Vendor(), "games", games, "err", err)
		return
	}
	r.stats.Saved += games
	r.stats.Pending += pending
}

func (o *Orchestrator) finish(ctx context.Context, r *run) Stats {
	o.flush(ctx, r)
	o.report(r)
	o.logger.InfoContext(ctx, "crawl finished",
		"vendor", o.Vendor(),
		"requested", r.stats.Requested,
		"fetched", r.stats.Fetched,
		"skipped", r.stats.Skipped,
		"saved", r.stats.Saved,
		"pending", r.stats.Pending,
		"failed", r.stats.Failed,
	)
	return r.stats
}

func (o *Orchestrator) report(r *run) {
	if o.progress != nil {
		o.progress(r.stats)
	}
}
