package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gamesfinder/backend/internal/appindex"
	"gamesfinder/backend/internal/crawler"
	"gamesfinder/backend/internal/hub"
	"gamesfinder/backend/internal/jobs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type crawlCall struct {
	method   string
	ids      []int
	start    int
	maxCalls int
	force    bool
}

type fakeCrawler struct {
	mu    sync.Mutex
	calls []crawlCall
}

func (f *fakeCrawler) bind(progress crawler.Progress) Crawler {
	return &boundCrawler{f: f, progress: progress}
}

func (f *fakeCrawler) recorded() []crawlCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]crawlCall(nil), f.calls...)
}

type boundCrawler struct {
	f        *fakeCrawler
	progress crawler.Progress
}

func (b *boundCrawler) record(call crawlCall) (crawler.Stats, error) {
	b.f.mu.Lock()
	b.f.calls = append(b.f.calls, call)
	b.f.mu.Unlock()

	stats := crawler.Stats{Requested: len(call.ids), Fetched: len(call.ids)}
	if b.progress != nil {
		b.progress(stats)
	}
	return stats, nil
}

func (b *boundCrawler) Estimate(count int) time.Duration {
	return time.Duration(count) * time.Minute
}

func (b *boundCrawler) CrawlTargeted(_ context.Context, ids []int, force bool) (crawler.Stats, error) {
	return b.record(crawlCall{method: "targeted", ids: ids, force: force})
}

func (b *boundCrawler) CrawlExhaustive(_ context.Context, start, maxCalls int, force bool) (crawler.Stats, error) {
	return b.record(crawlCall{method: "exhaustive", start: start, maxCalls: maxCalls, force: force})
}

func (b *boundCrawler) CrawlPrices(_ context.Context, steamAppIDs []int) (crawler.Stats, error) {
	return b.record(crawlCall{method: "prices", ids: steamAppIDs})
}

type fakeIndex struct {
	ids []int
	err error
}

func (f *fakeIndex) IDs() ([]int, error) {
	return f.ids, f.err
}

func (f *fakeIndex) Metadata() (appindex.Metadata, error) {
	if f.err != nil {
		return appindex.Metadata{}, f.err
	}
	return appindex.Metadata{Path: "applist.json", Count: len(f.ids)}, nil
}

func (f *fakeIndex) Refresh(context.Context) (appindex.Metadata, error) {
	return f.Metadata()
}

func (f *fakeIndex) Suggest(name string, limit int) ([]appindex.Suggestion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []appindex.Suggestion{{App: appindex.App{AppID: 570, Name: name}, Score: 1}}, nil
}

type crawlFixture struct {
	router        *gin.Engine
	queue         *jobs.Queue
	steam         *fakeCrawler
	instantGaming *fakeCrawler
}

func newCrawlFixture(t *testing.T, index AppIndex) *crawlFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	events := hub.NewHub()
	queue := jobs.NewQueue(1, 4, events, nil)
	t.Cleanup(queue.Close)

	f := &crawlFixture{
		queue:         queue,
		steam:         &fakeCrawler{},
		instantGaming: &fakeCrawler{},
	}
	h := NewCrawlHandler(queue, events, f.steam.bind, f.instantGaming.bind, index, nil)

	r := gin.New()
	r.POST("/crawl/steam", h.CrawlSteam)
	r.POST("/crawl/instant-gaming", h.CrawlInstantGaming)
	r.POST("/crawl/instant-gaming/prices", h.CrawlInstantGamingPrices)
	r.GET("/crawl/jobs/:id", h.GetJob)
	r.GET("/crawl/jobs/:id/events", h.StreamJob)
	r.POST("/admin/crawl/instant-gaming/all", h.CrawlInstantGamingAll)
	r.POST("/admin/crawl/steam/all", h.CrawlSteamAll)
	r.POST("/admin/applist", h.RefreshAppList)
	r.GET("/admin/applist", h.GetAppListMetadata)
	r.GET("/admin/applist/suggest", h.SuggestApps)
	f.router = r
	return f
}

func (f *crawlFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *crawlFixture) accepted(t *testing.T, w *httptest.ResponseRecorder) (CrawlAcceptedResponse, jobs.Snapshot) {
	t.Helper()
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp CrawlAcceptedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)

	job, ok := f.queue.Get(resp.JobID)
	require.True(t, ok)

	var snap jobs.Snapshot
	require.Eventually(t, func() bool {
		snap = job.Snapshot()
		return snap.Finished()
	}, 2*time.Second, 5*time.Millisecond)
	return resp, snap
}

func TestCrawlSteam(t *testing.T) {
	f := newCrawlFixture(t, &fakeIndex{})

	w := f.do(t, http.MethodPost, "/crawl/steam", `{"ids": [570, 730], "force_update": true}`)
	resp, snap := f.accepted(t, w)

	assert.Equal(t, "Steam crawl started", resp.Message)
	assert.Equal(t, 2.0, resp.EstimatedMinutes)
	assert.Equal(t, jobs.StateSucceeded, snap.State)
	assert.Equal(t, "steam", snap.Kind)
	assert.Equal(t, crawler.Stats{Requested: 2, Fetched: 2}, snap.Progress)

	assert.Equal(t, []crawlCall{{method: "targeted", ids: []int{570, 730}, force: true}}, f.steam.recorded())
	assert.Empty(t, f.instantGaming.recorded())
}

func TestCrawlRejectsMissingIDs(t *testing.T) {
	f := newCrawlFixture(t, &fakeIndex{})

	for _, path := range []string{"/crawl/steam", "/crawl/instant-gaming", "/crawl/instant-gaming/prices"} {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, path, `{"ids": []}`).Code)
			assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, path, `{"ids": "570"}`).Code)
		})
	}
	assert.Empty(t, f.steam.recorded())
	assert.Empty(t, f.instantGaming.recorded())
}

func TestCrawlInstantGamingPrices(t *testing.T) {
	f := newCrawlFixture(t, &fakeIndex{})

	w := f.do(t, http.MethodPost, "/crawl/instant-gaming/prices", `{"ids": [1091500]}`)
	_, snap := f.accepted(t, w)

	assert.Equal(t, "instant_gaming_prices", snap.Kind)
	assert.Equal(t, []crawlCall{{method: "prices", ids: []int{1091500}}}, f.instantGaming.recorded())
}

func TestCrawlQueueClosed(t *testing.T) {
	f := newCrawlFixture(t, &fakeIndex{})
	f.queue.Close()

	w := f.do(t, http.MethodPost, "/crawl/instant-gaming", `{"ids": [1]}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCrawlInstantGamingAll(t *testing.T) {
	f := newCrawlFixture(t, &fakeIndex{})

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/admin/crawl/instant-gaming/all", `{"max_calls": 0}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/admin/crawl/instant-gaming/all", `{"max_calls": 5}`).Code)

	w := f.do(t, http.MethodPost, "/admin/crawl/instant-gaming/all", `{"max_calls": 110, "start": 0}`)
	resp, _ := f.accepted(t, w)

	assert.Equal(t, 100.0, resp.EstimatedMinutes)
	assert.Equal(t, []crawlCall{{method: "exhaustive", start: 0, maxCalls: 110}}, f.instantGaming.recorded())
}

func TestCrawlSteamAll(t *testing.T) {
	f := newCrawlFixture(t, &fakeIndex{ids: []int{10, 20, 30}})

	_, snap := f.accepted(t, f.do(t, http.MethodPost, "/admin/crawl/steam/all", ""))
	assert.Equal(t, "steam_all", snap.Kind)
	assert.Equal(t, []crawlCall{{method: "targeted", ids: []int{10, 20, 30}}}, f.steam.recorded())

	unloaded := newCrawlFixture(t, &fakeIndex{err: appindex.ErrNotLoaded})
	assert.Equal(t, http.StatusConflict, unloaded.do(t, http.MethodPost, "/admin/crawl/steam/all", "").Code)
}

func TestGetJob(t *testing.T) {
	f := newCrawlFixture(t, &fakeIndex{})

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/crawl/jobs/unknown", "").Code)

	resp, _ := f.accepted(t, f.do(t, http.MethodPost, "/crawl/steam", `{"ids": [570]}`))
	w := f.do(t, http.MethodGet, "/crawl/jobs/"+resp.JobID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap jobs.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, resp.JobID, snap.ID)
	assert.Equal(t, jobs.StateSucceeded, snap.State)
	assert.NotNil(t, snap.FinishedAt)
}

func TestStreamFinishedJob(t *testing.T) {
	f := newCrawlFixture(t, &fakeIndex{})

	resp, _ := f.accepted(t, f.do(t, http.MethodPost, "/crawl/steam", `{"ids": [570]}`))
	w := f.do(t, http.MethodGet, "/crawl/jobs/"+resp.JobID+"/events", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream"), w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "event:status\n"), w.Body.String())
	assert.Contains(t, w.Body.String(), `"state":"succeeded"`)
}

// streamRecorder lets gin's Stream run against a recorder.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

type fixedJob jobs.Snapshot

func (j fixedJob) Snapshot() jobs.Snapshot { return jobs.Snapshot(j) }

func newStreamContext(ctx context.Context) (*gin.Context, *streamRecorder) {
	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/crawl/jobs/job-1/events", nil).WithContext(ctx)
	return c, w
}

func encodeEvent(t *testing.T, kind string, payload any) []byte {
	t.Helper()
	msg, err := json.Marshal(hub.Event{Type: kind, Payload: payload})
	require.NoError(t, err)
	return msg
}

func TestStreamEventsEndsWithTerminalStatus(t *testing.T) {
	finished := fixedJob{ID: "job-1", Kind: "steam", State: jobs.StateSucceeded}
	progress := encodeEvent(t, jobs.EventProgress, map[string]int{"fetched": 1})
	status := encodeEvent(t, jobs.EventStatus, jobs.Snapshot(finished))

	tests := []struct {
		name     string
		buffered [][]byte
	}{
		{name: "terminal status dropped by the hub", buffered: [][]byte{progress}},
		{name: "terminal status buffered", buffered: [][]byte{progress, status}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := make(hub.Client, len(tt.buffered))
			for _, msg := range tt.buffered {
				client <- msg
			}
			c, w := newStreamContext(context.Background())

			streamEvents(c, finished, client, 10*time.Millisecond)

			body := w.Body.String()
			assert.True(t, strings.HasPrefix(body, "event:progress\ndata:{\"fetched\":1}\n"), body)
			assert.Equal(t, 1, strings.Count(body, "event:status"), body)
			assert.Contains(t, body, `"state":"succeeded"`)
			assert.Less(t, strings.Index(body, "event:progress"), strings.Index(body, "event:status"))
		})
	}
}

func TestStreamEventsStopsWhenRequestEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, w := newStreamContext(ctx)

	streamEvents(c, fixedJob{ID: "job-1", State: jobs.StateRunning}, make(hub.Client), 10*time.Millisecond)

	assert.Empty(t, w.Body.String())
}

func TestAppListEndpoints(t *testing.T) {
	f := newCrawlFixture(t, &fakeIndex{ids: []int{570}})

	w := f.do(t, http.MethodGet, "/admin/applist", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"path": "applist.json", "count": 1, "last_modified": "0001-01-01T00:00:00Z", "loaded_at": "0001-01-01T00:00:00Z"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/admin/applist", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/admin/applist/suggest", "").Code)

	w = f.do(t, http.MethodGet, "/admin/applist/suggest?q=Dota+2&limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"app": {"appid": 570, "name": "Dota 2"}, "score": 1}]`, w.Body.String())

	failing := newCrawlFixture(t, &fakeIndex{err: errors.New("boom")})
	assert.Equal(t, http.StatusBadGateway, failing.do(t, http.MethodPost, "/admin/applist", "").Code)
	assert.Equal(t, http.StatusNotFound, failing.do(t, http.MethodGet, "/admin/applist", "").Code)
}
