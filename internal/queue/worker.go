package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 5 * time.Second
	defaultConcurrency = 4
)

// Handler processes one job delivery. Handlers must be idempotent:
// delivery is at-least-once.
type Handler func(ctx context.Context, job domain.Job) error

// WorkerDeps wires the runtime's collaborators.
type WorkerDeps struct {
	Queue       ports.Queue
	Jobs        ports.JobStore // optional durable status mirror
	Logger      *slog.Logger
	Concurrency int
	MaxAttempts int
	BackoffBase time.Duration
}

// Worker pulls jobs off the queue and dispatches them to type-registered
// handlers, applying the retry state machine: PENDING → ACTIVE → DONE, or
// FAILED with bounded retry back through the queue.
type Worker struct {
	queue       ports.Queue
	jobs        ports.JobStore
	handlers    map[domain.JobType]Handler
	logger      *slog.Logger
	concurrency int
	maxAttempts int
	backoffBase time.Duration
}

// NewWorker constructs the runtime with no handlers registered.
func NewWorker(deps WorkerDeps) *Worker {
	w := &Worker{
		queue:       deps.Queue,
		jobs:        deps.Jobs,
		handlers:    make(map[domain.JobType]Handler),
		logger:      deps.Logger,
		concurrency: deps.Concurrency,
		maxAttempts: deps.MaxAttempts,
		backoffBase: deps.BackoffBase,
	}
	if w.concurrency <= 0 {
		w.concurrency = defaultConcurrency
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.backoffBase <= 0 {
		w.backoffBase = defaultBackoffBase
	}
	return w
}

// Register binds a handler to a job type, replacing any previous binding.
func (w *Worker) Register(jobType domain.JobType, handler Handler) {
	w.handlers[jobType] = handler
}

// Run consumes jobs until the context ends. One slow job never blocks the
// other workers.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := w.queue.Dequeue(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					w.warn("dequeue failed", "error", err)
					continue
				}
				w.Process(ctx, job)
			}
		}()
	}
	wg.Wait()
}

// Process runs one delivery through the job state machine.
func (w *Worker) Process(ctx context.Context, job domain.Job) {
	w.markStatus(ctx, job, domain.JobActive, "")

	handler, ok := w.handlers[job.Type]
	if !ok {
		w.fail(ctx, job, fmt.Errorf("no handler for job type %q", job.Type))
		return
	}

	err := handler(ctx, job)
	if err == nil {
		w.markStatus(ctx, job, domain.JobDone, "")
		if rErr := w.queue.Release(ctx, job); rErr != nil {
			w.warn("release failed", "job", job.ID, "error", rErr)
		}
		w.debug("job done", "job", job.ID, "type", job.Type, "attempt", job.Attempts)
		return
	}

	if retryAt, deferred := domain.QuotaDeferral(err); deferred {
		// A quota hit is a reschedule, not a failure: no attempt burned.
		w.info("job deferred", "job", job.ID, "type", job.Type, "retry_at", retryAt)
		w.reschedule(ctx, job, retryAt, job.Attempts)
		return
	}

	if domain.IsValidation(err) || domain.IsConfig(err) || domain.IsPolicy(err) {
		w.fail(ctx, job, err)
		return
	}

	attempts := job.Attempts + 1
	if attempts >= w.limitFor(job) {
		w.fail(ctx, job, err)
		return
	}

	delay := w.backoffBase << uint(job.Attempts)
	w.warn("job failed, retrying", "job", job.ID, "type", job.Type, "attempt", attempts, "delay", delay, "error", err)
	w.markStatus(ctx, job, domain.JobFailed, err.Error())
	job.LastError = err.Error()
	w.reschedule(ctx, job, time.Now().Add(delay), attempts)
}

func (w *Worker) limitFor(job domain.Job) int {
	if job.MaxAttempts > 0 {
		return job.MaxAttempts
	}
	return w.maxAttempts
}

// reschedule re-enqueues a copy of the job for a later run. The dedupe
// reservation is released first so the copy is not dropped as a duplicate.
func (w *Worker) reschedule(ctx context.Context, job domain.Job, runAt time.Time, attempts int) {
	if err := w.queue.Release(ctx, job); err != nil {
		w.warn("release before reschedule failed", "job", job.ID, "error", err)
	}

	retry := job
	retry.Attempts = attempts
	retry.RunAt = runAt
	retry.Status = domain.JobPending
	if err := w.queue.Enqueue(ctx, retry); err != nil {
		w.warn("reschedule enqueue failed, burying", "job", job.ID, "error", err)
		if bErr := w.queue.Bury(ctx, retry); bErr != nil {
			w.warn("bury failed", "job", job.ID, "error", bErr)
		}
	}
	w.markStatus(ctx, retry, domain.JobPending, retry.LastError)
}

// fail marks a job terminally FAILED and dead-letters it. Durable state is
// never discarded: the buried payload can be re-enqueued by an operator.
func (w *Worker) fail(ctx context.Context, job domain.Job, cause error) {
	w.warn("job failed terminally", "job", job.ID, "type", job.Type, "attempt", job.Attempts, "error", cause)
	job.LastError = cause.Error()
	w.markStatus(ctx, job, domain.JobFailed, cause.Error())
	if err := w.queue.Bury(ctx, job); err != nil {
		w.warn("bury failed", "job", job.ID, "error", err)
	}
}

func (w *Worker) markStatus(ctx context.Context, job domain.Job, status domain.JobStatus, lastError string) {
	if w.jobs == nil || job.DBJobID == "" {
		return
	}
	if err := w.jobs.UpdateStatus(ctx, job.DBJobID, status, job.Attempts, lastError); err != nil {
		w.warn("durable status update failed", "job", job.ID, "status", status, "error", err)
	}
}

func (w *Worker) debug(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}

func (w *Worker) info(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Info(msg, args...)
	}
}

func (w *Worker) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
