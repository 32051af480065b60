package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/crewdeskhq/crewdesk/internal/store"
)

// State describes what the loop is currently doing.
type State string

const (
	StateIdle         State = "IDLE"
	StatePolling      State = "POLLING"
	StateDispatching  State = "DISPATCHING"
	StateShuttingDown State = "SHUTTING_DOWN"
	StateStopped      State = "STOPPED"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultBatchSize    = 10
	DefaultLeaseTTL     = 5 * time.Minute
	DefaultConcurrency  = 4
	DefaultDrainTimeout = 30 * time.Second
)

// Opts holds worker loop configuration.
type Opts struct {
	WorkerID     string
	PollInterval time.Duration
	BatchSize    int
	LeaseTTL     time.Duration
	Concurrency  int
	DrainTimeout time.Duration
	BackoffBase  time.Duration
	BackoffCap   time.Duration
}

// Option configures the worker loop.
type Option func(*Opts)

// WithWorkerID sets the identity recorded on claimed jobs.
func WithWorkerID(id string) Option {
	return func(o *Opts) {
		if id != "" {
			o.WorkerID = id
		}
	}
}

// WithPollInterval sets how often the loop looks for due jobs.
func WithPollInterval(d time.Duration) Option {
	return func(o *Opts) {
		if d > 0 {
			o.PollInterval = d
		}
	}
}

// WithBatchSize sets the maximum number of jobs claimed per poll.
func WithBatchSize(n int) Option {
	return func(o *Opts) {
		if n > 0 {
			o.BatchSize = n
		}
	}
}

// WithLeaseTTL sets how long a claim is honored before other workers may
// reclaim the job.
func WithLeaseTTL(d time.Duration) Option {
	return func(o *Opts) {
		if d > 0 {
			o.LeaseTTL = d
		}
	}
}

// WithConcurrency sets how many jobs may execute at once.
func WithConcurrency(n int) Option {
	return func(o *Opts) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithDrainTimeout sets how long in-flight jobs may run after shutdown is
// requested.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *Opts) {
		if d > 0 {
			o.DrainTimeout = d
		}
	}
}

// WithBackoff sets the retry delay curve.
func WithBackoff(base, ceiling time.Duration) Option {
	return func(o *Opts) {
		if base > 0 {
			o.BackoffBase = base
		}
		if ceiling > 0 {
			o.BackoffCap = ceiling
		}
	}
}

// Loop periodically claims due jobs and dispatches them to the registry.
type Loop struct {
	jobs     store.JobRepo
	registry *Registry

	workerID     string
	pollInterval time.Duration
	batchSize    int
	leaseTTL     time.Duration
	concurrency  int
	drainTimeout time.Duration
	backoffBase  time.Duration
	backoffCap   time.Duration

	state atomic.Value
}

// NewLoop creates a worker loop over the given job repository and registry.
func NewLoop(jobs store.JobRepo, registry *Registry, opts ...Option) *Loop {
	cfg := Opts{
		WorkerID:     "worker-" + uuid.NewString(),
		PollInterval: DefaultPollInterval,
		BatchSize:    DefaultBatchSize,
		LeaseTTL:     DefaultLeaseTTL,
		Concurrency:  DefaultConcurrency,
		DrainTimeout: DefaultDrainTimeout,
		BackoffBase:  DefaultBackoffBase,
		BackoffCap:   DefaultBackoffCap,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	l := &Loop{
		jobs:         jobs,
		registry:     registry,
		workerID:     cfg.WorkerID,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		leaseTTL:     cfg.LeaseTTL,
		concurrency:  cfg.Concurrency,
		drainTimeout: cfg.DrainTimeout,
		backoffBase:  cfg.BackoffBase,
		backoffCap:   cfg.BackoffCap,
	}
	l.state.Store(StateIdle)
	return l
}

// WorkerID returns the identity recorded on claimed jobs.
func (l *Loop) WorkerID() string { return l.workerID }

// State returns what the loop is currently doing.
func (l *Loop) State() State {
	if s, ok := l.state.Load().(State); ok {
		return s
	}
	return StateIdle
}

func (l *Loop) setState(s State) { l.state.Store(s) }

// Run starts the polling loop. It blocks until ctx is cancelled, then waits
// up to the drain timeout for in-flight jobs before returning.
func (l *Loop) Run(ctx context.Context) {
	slog.Info("Loop.Run: starting worker loop",
		"workerID", l.workerID, "pollInterval", l.pollInterval,
		"batchSize", l.batchSize, "concurrency", l.concurrency)
	l.setState(StateIdle)

	// Handlers run on a context detached from ctx so cancellation opens a
	// drain window instead of killing work mid-flight.
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()

	loopDone := make(chan struct{})
	defer close(loopDone)
	go func() {
		select {
		case <-loopDone:
			return
		case <-ctx.Done():
		}
		l.setState(StateShuttingDown)
		slog.Info("Loop.Run: shutdown requested, draining", "workerID", l.workerID, "timeout", l.drainTimeout)
		timer := time.NewTimer(l.drainTimeout)
		defer timer.Stop()
		select {
		case <-loopDone:
		case <-timer.C:
			slog.Warn("Loop.Run: drain timeout exceeded, cancelling in-flight jobs", "workerID", l.workerID)
			cancelDispatch()
		}
	}()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Loop.Run: stopped", "workerID", l.workerID)
			l.setState(StateStopped)
			return
		case <-ticker.C:
			l.poll(dispatchCtx)
		}
	}
}

// poll claims one batch of due jobs and dispatches it with bounded
// concurrency, returning once the whole batch settles.
func (l *Loop) poll(ctx context.Context) {
	l.setState(StatePolling)
	defer l.setState(StateIdle)

	jobs, err := l.jobs.ClaimJobs(l.workerID, l.batchSize, l.leaseTTL)
	if err != nil {
		slog.Error("Loop.poll: claim failed", "workerID", l.workerID, "error", err)
		return
	}
	if len(jobs) == 0 {
		return
	}
	slog.Debug("Loop.poll: claimed jobs", "workerID", l.workerID, "count", len(jobs))
	l.setState(StateDispatching)

	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			l.dispatch(ctx, job)
			return nil
		})
	}
	g.Wait()
}

func (l *Loop) dispatch(ctx context.Context, job store.Job) {
	slog.Debug("Loop.dispatch: executing job", "id", job.ID, "jobType", job.JobType, "attempt", job.Attempts)

	err := l.registry.Dispatch(ctx, job.JobType, job.Payload)
	if err == nil {
		if err := l.jobs.MarkJobDone(job.ID); err != nil {
			slog.Error("Loop.dispatch: mark done error", "id", job.ID, "error", err)
		}
		slog.Debug("Loop.dispatch: job completed", "id", job.ID, "jobType", job.JobType)
		return
	}

	if errors.Is(err, ErrUnknownJobType) || IsNonRetryable(err) {
		slog.Error("Loop.dispatch: job failed permanently", "id", job.ID, "jobType", job.JobType, "error", err)
		if err := l.jobs.MarkJobFailed(job.ID, err.Error()); err != nil {
			slog.Error("Loop.dispatch: mark failed error", "id", job.ID, "error", err)
		}
		return
	}

	backoff := backoffDelay(l.backoffBase, l.backoffCap, job.Attempts)
	slog.Error("Loop.dispatch: job execution failed",
		"id", job.ID, "jobType", job.JobType, "attempt", job.Attempts, "backoff", backoff, "error", err)
	if err := l.jobs.MarkJobRetry(job.ID, err.Error(), backoff); err != nil {
		slog.Error("Loop.dispatch: mark retry error", "id", job.ID, "error", err)
	}
}
