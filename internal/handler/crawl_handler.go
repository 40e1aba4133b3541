package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gamesfinder/backend/internal/appindex"
	"gamesfinder/backend/internal/crawler"
	"gamesfinder/backend/internal/hub"
	"gamesfinder/backend/internal/jobs"

	"github.com/gin-gonic/gin"
)

// Crawler is one vendor's crawl pipeline.
type Crawler interface {
	Estimate(count int) time.Duration
	CrawlTargeted(ctx context.Context, ids []int, force bool) (crawler.Stats, error)
	CrawlExhaustive(ctx context.Context, start, maxCalls int, force bool) (crawler.Stats, error)
	CrawlPrices(ctx context.Context, steamAppIDs []int) (crawler.Stats, error)
}

// CrawlerFunc binds a crawler to the progress sink of one job.
type CrawlerFunc func(progress crawler.Progress) Crawler

// Observed adapts an orchestrator to a CrawlerFunc.
func Observed(o *crawler.Orchestrator) CrawlerFunc {
	return func(progress crawler.Progress) Crawler {
		return o.Observe(progress)
	}
}

// AppIndex is the admin surface of the Steam app list.
type AppIndex interface {
	IDs() ([]int, error)
	Metadata() (appindex.Metadata, error)
	Refresh(ctx context.Context) (appindex.Metadata, error)
	Suggest(name string, limit int) ([]appindex.Suggestion, error)
}

// CrawlHandler starts crawls as background jobs.
type CrawlHandler struct {
	queue         *jobs.Queue
	hub           *hub.Hub
	steam         CrawlerFunc
	instantGaming CrawlerFunc
	index         AppIndex
	logger        *slog.Logger
}

func NewCrawlHandler(queue *jobs.Queue, h *hub.Hub, steam, instantGaming CrawlerFunc, index AppIndex, logger *slog.Logger) *CrawlHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrawlHandler{
		queue:         queue,
		hub:           h,
		steam:         steam,
		instantGaming: instantGaming,
		index:         index,
		logger:        logger,
	}
}

// region --- DTOs ---

// CrawlInput is the body of a targeted crawl.
type CrawlInput struct {
	IDs         []int `json:"ids" example:"570,730"`
	ForceUpdate bool  `json:"force_update"`
}

// PriceCrawlInput lists Steam app ids of catalog games to reprice.
type PriceCrawlInput struct {
	IDs []int `json:"ids" example:"570,730"`
}

// ExhaustiveCrawlInput bounds a sequential id scan.
type ExhaustiveCrawlInput struct {
	MaxCalls    int  `json:"max_calls" example:"50000"`
	Start       int  `json:"start" example:"0"`
	ForceUpdate bool `json:"force_update"`
}

// CrawlAcceptedResponse acknowledges a submitted crawl.
type CrawlAcceptedResponse struct {
	JobID            string  `json:"job_id" example:"6f1c2a56-3c8e-4a43-9a42-2b1d0f7f2f0e"`
	Message          string  `json:"message" example:"Steam crawl started"`
	EstimatedMinutes float64 `json:"estimated_minutes" example:"5"`
}

// endregion

func progressOf(job *jobs.Job) crawler.Progress {
	return func(s crawler.Stats) {
		job.Report(s)
	}
}

// submit queues fn and answers 202 with the job handle.
func (h *CrawlHandler) submit(c *gin.Context, kind, message string, estimate time.Duration, fn jobs.Func) {
	job, err := h.queue.Submit(kind, estimate, fn)
	if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrClosed) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Crawl queue is busy, try again later"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start crawl"})
		return
	}

	c.JSON(http.StatusAccepted, CrawlAcceptedResponse{
		JobID:            job.ID(),
		Message:          message,
		EstimatedMinutes: estimate.Minutes(),
	})
}

// region --- Crawl Handlers ---

// CrawlSteam godoc
// @Summary      Crawl Steam apps
// @Description  Starts a background crawl of the given Steam app or package IDs. Known games are skipped unless force_update is set.
// @Tags         crawl
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body CrawlInput true "Steam IDs"
// @Success      202 {object} CrawlAcceptedResponse
// @Failure      400 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /crawl/steam [post]
func (h *CrawlHandler) CrawlSteam(c *gin.Context) {
	h.crawlTargeted(c, "steam", "Steam crawl started", h.steam)
}

// CrawlInstantGaming godoc
// @Summary      Crawl Instant Gaming products
// @Description  Starts a background crawl of the given Instant Gaming product IDs.
// @Tags         crawl
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body CrawlInput true "Instant Gaming IDs"
// @Success      202 {object} CrawlAcceptedResponse
// @Failure      400 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /crawl/instant-gaming [post]
func (h *CrawlHandler) CrawlInstantGaming(c *gin.Context) {
	h.crawlTargeted(c, "instant_gaming", "Instant Gaming crawl started", h.instantGaming)
}

func (h *CrawlHandler) crawlTargeted(c *gin.Context, kind, message string, newCrawler CrawlerFunc) {
	var input CrawlInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(input.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids are required"})
		return
	}

	estimate := newCrawler(nil).Estimate(len(input.IDs))
	h.submit(c, kind, message, estimate, func(ctx context.Context, job *jobs.Job) error {
		_, err := newCrawler(progressOf(job)).CrawlTargeted(ctx, input.IDs, input.ForceUpdate)
		return err
	})
}

// CrawlInstantGamingPrices godoc
// @Summary      Refresh Instant Gaming prices
// @Description  Recrawls the Instant Gaming offers of catalog games, selected by Steam app ID.
// @Tags         crawl
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body PriceCrawlInput true "Steam app IDs"
// @Success      202 {object} CrawlAcceptedResponse
// @Failure      400 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /crawl/instant-gaming/prices [post]
func (h *CrawlHandler) CrawlInstantGamingPrices(c *gin.Context) {
	var input PriceCrawlInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(input.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids are required"})
		return
	}

	estimate := h.instantGaming(nil).Estimate(len(input.IDs))
	h.submit(c, "instant_gaming_prices", "Instant Gaming price refresh started", estimate, func(ctx context.Context, job *jobs.Job) error {
		_, err := h.instantGaming(progressOf(job)).CrawlPrices(ctx, input.IDs)
		return err
	})
}

// GetJob godoc
// @Summary      Get a crawl job
// @Description  Returns the state and progress of a crawl job.
// @Tags         crawl
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Job ID"
// @Success      200 {object} jobs.Snapshot
// @Failure      404 {object} ErrorResponse
// @Router       /crawl/jobs/{id} [get]
func (h *CrawlHandler) GetJob(c *gin.Context) {
	job, ok := h.queue.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job.Snapshot())
}

// StreamJob godoc
// @Summary      Stream crawl job events
// @Description  Server-sent events with the status and progress of a crawl job, until it finishes.
// @Tags         crawl
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        id path string true "Job ID"
// @Success      200 {string} string "event stream"
// @Failure      404 {object} ErrorResponse
// @Router       /crawl/jobs/{id}/events [get]
func (h *CrawlHandler) StreamJob(c *gin.Context) {
	job, ok := h.queue.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	client := make(hub.Client, 16)
	h.hub.Subscribe(job.ID(), client)
	defer h.hub.Unsubscribe(job.ID(), client)

	snapshot := job.Snapshot()
	c.SSEvent(jobs.EventStatus, snapshot)
	c.Writer.Flush()
	if snapshot.Finished() {
		return
	}

	streamEvents(c, job, client, streamPoll)
}

// streamPoll bounds how long a stream waits on the hub before checking the
// job itself, since the hub drops events for slow clients.
const streamPoll = 2 * time.Second

type snapshotter interface {
	Snapshot() jobs.Snapshot
}

// streamEvents relays hub events until the job finishes. The last event
// written is always the job's terminal status.
func streamEvents(c *gin.Context, job snapshotter, client hub.Client, poll time.Duration) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client:
			if !ok {
				return false
			}
			return !relayEvent(c, msg)
		case <-ticker.C:
			if !job.Snapshot().Finished() {
				return true
			}
			if !drainEvents(c, client) {
				c.SSEvent(jobs.EventStatus, job.Snapshot())
			}
			return false
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// drainEvents relays what the client still buffers and reports whether the
// terminal status was among it.
func drainEvents(c *gin.Context, client hub.Client) bool {
	for {
		select {
		case msg, ok := <-client:
			if !ok {
				return false
			}
			if relayEvent(c, msg) {
				return true
			}
		default:
			return false
		}
	}
}

// relayEvent writes one encoded hub event and reports whether it was the
// job's terminal status.
func relayEvent(c *gin.Context, msg []byte) bool {
	var event struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(msg, &event); err != nil {
		return false
	}
	c.SSEvent(event.Type, []byte(event.Payload))
	if event.Type != jobs.EventStatus {
		return false
	}
	var snapshot jobs.Snapshot
	return json.Unmarshal(event.Payload, &snapshot) == nil && snapshot.Finished()
}

// endregion

// region --- Admin Handlers ---

// CrawlInstantGamingAll godoc
// @Summary      Scan the Instant Gaming id space
// @Description  Probes every Instant Gaming product id from start up to max_calls.
// @Tags         admin-crawl
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body ExhaustiveCrawlInput true "Scan bounds"
// @Success      202 {object} CrawlAcceptedResponse
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse "Admin access required"
// @Failure      503 {object} ErrorResponse
// @Router       /admin/crawl/instant-gaming/all [post]
func (h *CrawlHandler) CrawlInstantGamingAll(c *gin.Context) {
	var input ExhaustiveCrawlInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.MaxCalls <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_calls is required"})
		return
	}
	first := max(input.Start, crawler.DefaultForbiddenStart)
	if input.MaxCalls <= first {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_calls must be greater than start"})
		return
	}

	estimate := h.instantGaming(nil).Estimate(input.MaxCalls - first)
	h.submit(c, "instant_gaming_all", "Instant Gaming scan started", estimate, func(ctx context.Context, job *jobs.Job) error {
		_, err := h.instantGaming(progressOf(job)).CrawlExhaustive(ctx, input.Start, input.MaxCalls, input.ForceUpdate)
		return err
	})
}

// CrawlSteamAll godoc
// @Summary      Crawl every Steam app
// @Description  Crawls every app of the Steam app list that the catalog does not hold yet.
// @Tags         admin-crawl
// @Produce      json
// @Security     BearerAuth
// @Success      202 {object} CrawlAcceptedResponse
// @Failure      403 {object} ErrorResponse "Admin access required"
// @Failure      409 {object} ErrorResponse "App list not loaded"
// @Failure      503 {object} ErrorResponse
// @Router       /admin/crawl/steam/all [post]
func (h *CrawlHandler) CrawlSteamAll(c *gin.Context) {
	ids, err := h.index.IDs()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "App list not loaded"})
		return
	}
	if len(ids) == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "App list is empty"})
		return
	}

	estimate := h.steam(nil).Estimate(len(ids))
	h.submit(c, "steam_all", "Steam full crawl started", estimate, func(ctx context.Context, job *jobs.Job) error {
		_, err := h.steam(progressOf(job)).CrawlTargeted(ctx, ids, false)
		return err
	})
}

// RefreshAppList godoc
// @Summary      Refresh the Steam app list
// @Description  Downloads the Steam app list, stores it and swaps the lookup index.
// @Tags         admin-applist
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} appindex.Metadata
// @Failure      403 {object} ErrorResponse "Admin access required"
// @Failure      502 {object} ErrorResponse
// @Router       /admin/applist [post]
func (h *CrawlHandler) RefreshAppList(c *gin.Context) {
	meta, err := h.index.Refresh(c.Request.Context())
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "app list refresh failed", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to refresh app list"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

// GetAppListMetadata godoc
// @Summary      Describe the Steam app list
// @Description  Returns when the app list was last written and how many apps it holds.
// @Tags         admin-applist
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} appindex.Metadata
// @Failure      403 {object} ErrorResponse "Admin access required"
// @Failure      404 {object} ErrorResponse "App list not loaded"
// @Router       /admin/applist [get]
func (h *CrawlHandler) GetAppListMetadata(c *gin.Context) {
	meta, err := h.index.Metadata()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "App list not loaded"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

// SuggestApps godoc
// @Summary      Suggest Steam apps for a title
// @Description  Ranks Steam apps by name similarity, to help promote unprocessed games.
// @Tags         admin-applist
// @Produce      json
// @Security     BearerAuth
// @Param        q     query  string  true   "Title to match"
// @Param        limit query  int     false  "Number of suggestions" default(10)
// @Success      200 {array} appindex.Suggestion
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse "App list not loaded"
// @Router       /admin/applist/suggest [get]
func (h *CrawlHandler) SuggestApps(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 10
	}

	suggestions, err := h.index.Suggest(q, limit)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "App list not loaded"})
		return
	}
	c.JSON(http.StatusOK, suggestions)
}

// endregion
