// Package jobs runs crawls in the background on a bounded worker pool.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gamesfinder/backend/internal/hub"

	"github.com/google/uuid"
)

type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

const (
	EventStatus   = "status"
	EventProgress = "progress"
)

// DefaultRetention is how many finished jobs a queue keeps for status queries.
const DefaultRetention = 100

var (
	ErrQueueFull = errors.New("jobs: queue is full")
	ErrClosed    = errors.New("jobs: queue is closed")
)

// Func is the work of a job. It reports progress through the job.
type Func func(ctx context.Context, job *Job) error

// Snapshot is a point-in-time view of a job.
type Snapshot struct {
	ID               string     `json:"id"`
	Kind             string     `json:"kind"`
	State            State      `json:"state"`
	Error            string     `json:"error,omitempty"`
	Progress         any        `json:"progress,omitempty"`
	EstimatedMinutes float64    `json:"estimated_minutes"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// Job is a handle on submitted work.
type Job struct {
	id       string
	kind     string
	estimate time.Duration
	fn       Func
	hub      *hub.Hub

	mu         sync.RWMutex
	state      State
	err        error
	progress   any
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
}

func (j *Job) ID() string {
	return j.id
}

func (j *Job) Kind() string {
	return j.kind
}

func (j *Job) Estimate() time.Duration {
	return j.estimate
}

func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := Snapshot{
		ID:               j.id,
		Kind:             j.kind,
		State:            j.state,
		Progress:         j.progress,
		EstimatedMinutes: j.estimate.Minutes(),
		CreatedAt:        j.createdAt,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	if !j.startedAt.IsZero() {
		started := j.startedAt
		s.StartedAt = &started
	}
	if !j.finishedAt.IsZero() {
		finished := j.finishedAt
		s.FinishedAt = &finished
	}
	return s
}

// Report records progress and pushes it to the job's watchers.
func (j *Job) Report(progress any) {
	j.mu.Lock()
	j.progress = progress
	j.mu.Unlock()

	j.broadcast(EventProgress, progress)
}

func (j *Job) transition(state State, err error) {
	j.mu.Lock()
	j.state = state
	j.err = err
	switch state {
	case StateRunning:
		j.startedAt = time.Now()
	case StateSucceeded, StateFailed:
		j.finishedAt = time.Now()
	}
	j.mu.Unlock()

	j.broadcast(EventStatus, j.Snapshot())
}

func (j *Job) broadcast(kind string, payload any) {
	if j.hub != nil {
		j.hub.Broadcast(j.id, hub.Event{Type: kind, Payload: payload})
	}
}

// Finished reports whether the job reached a terminal state.
func (s Snapshot) Finished() bool {
	return s.State == StateSucceeded || s.State == StateFailed
}

// Queue is a fixed pool of workers fed by a bounded buffer.
type Queue struct {
	pending chan *Job
	hub     *hub.Hub
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	jobs      map[string]*Job
	finished  []string
	retention int
	closed    bool
}

type Option func(*Queue)

// WithRetention keeps the n most recently finished jobs. Older ones are
// forgotten and no longer found by Get.
func WithRetention(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.retention = n
		}
	}
}

// NewQueue starts workers goroutines sharing a buffer of capacity jobs.
func NewQueue(workers, capacity int, h *hub.Hub, logger *slog.Logger, opts ...Option) *Queue {
	if workers < 1 {
		workers = 1
	}
	if capacity < 0 {
		capacity = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		pending:   make(chan *Job, capacity),
		hub:       h,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*Job),
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(q)
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	return q
}

// Submit enqueues fn without blocking.
func (q *Queue) Submit(kind string, estimate time.Duration, fn Func) (*Job, error) {
	job := &Job{
		id:        uuid.NewString(),
		kind:      kind,
		estimate:  estimate,
		fn:        fn,
		hub:       q.hub,
		state:     StateQueued,
		createdAt: time.Now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}

	select {
	case q.pending <- job:
	default:
		return nil, ErrQueueFull
	}
	q.jobs[job.id] = job

	q.logger.Info("job queued", "job_id", job.id, "kind", kind, "estimate", estimate)
	return job, nil
}

func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	return job, ok
}

// Close stops accepting jobs, cancels running ones and waits for the workers.
// Jobs still queued fail with the cancellation error.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.pending)
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

func (q *Queue) worker(n int) {
	defer q.wg.Done()
	for job := range q.pending {
		q.run(job, n)
	}
}

func (q *Queue) run(job *Job, worker int) {
	defer q.retire(job.id)

	if err := q.ctx.Err(); err != nil {
		job.transition(StateFailed, err)
		return
	}

	job.transition(StateRunning, nil)
	q.logger.Info("job started", "job_id", job.id, "kind", job.kind, "worker", worker)

	err := q.execute(job)
	if err != nil {
		q.logger.Error("job failed", "job_id", job.id, "kind", job.kind, "err", err)
		job.transition(StateFailed, err)
		return
	}
	q.logger.Info("job finished", "job_id", job.id, "kind", job.kind)
	job.transition(StateSucceeded, nil)
}

// retire records a finished job and forgets the oldest beyond retention.
func (q *Queue) retire(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.finished = append(q.finished, id)
	for len(q.finished) > q.retention {
		delete(q.jobs, q.finished[0])
		q.finished = q.finished[1:]
	}
}

func (q *Queue) execute(job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.fn(q.ctx, job)
}
