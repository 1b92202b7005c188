package queue

import (
	"context"
	"sync"
	"time"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

// MemoryQueue is an in-process ports.Queue with the same delivery
// semantics as the Redis transport: delayed jobs held back until due,
// dedupe keys reserved until release, terminal failures buried. Used when
// no Redis is configured and by tests.
type MemoryQueue struct {
	mu      sync.Mutex
	ready   []domain.Job
	delayed []domain.Job
	buried  []domain.Job
	pending map[string]struct{}
	notify  chan struct{}
	now     func() time.Time
}

var _ ports.Queue = (*MemoryQueue)(nil)

// NewMemoryQueue builds an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		pending: make(map[string]struct{}),
		notify:  make(chan struct{}, 1),
		now:     time.Now,
	}
}

// Enqueue schedules a job. A dedupe key already reserved drops the job
// silently; the reservation lives until Release or Bury.
func (q *MemoryQueue) Enqueue(ctx context.Context, job domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job.DedupeKey != "" {
		if _, dup := q.pending[job.DedupeKey]; dup {
			return nil
		}
		q.pending[job.DedupeKey] = struct{}{}
	}

	if job.RunAt.After(q.now()) {
		q.delayed = append(q.delayed, job)
	} else {
		q.ready = append(q.ready, job)
	}

	q.signal()
	return nil
}

// Dequeue blocks until a due job is available or the context ends. Delayed
// jobs are promoted inline so delays hold without an external mover.
func (q *MemoryQueue) Dequeue(ctx context.Context) (domain.Job, error) {
	for {
		q.mu.Lock()
		q.promoteLocked(q.now())
		if len(q.ready) > 0 {
			job := q.ready[0]
			q.ready = q.ready[1:]
			q.mu.Unlock()
			return job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.Job{}, ctx.Err()
		case <-q.notify:
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Release clears a finished job's dedupe reservation.
func (q *MemoryQueue) Release(ctx context.Context, job domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, job.DedupeKey)
	return nil
}

// Bury records a terminally failed job and frees its dedupe key so a
// manual re-enqueue can recover it.
func (q *MemoryQueue) Bury(ctx context.Context, job domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, job.DedupeKey)
	q.buried = append(q.buried, job)
	return nil
}

// PromoteDue moves elapsed delayed jobs into the ready set.
func (q *MemoryQueue) PromoteDue(ctx context.Context, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.promoteLocked(now)
	q.signal()
	return nil
}

// Buried returns a snapshot of dead-lettered jobs.
func (q *MemoryQueue) Buried() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Job, len(q.buried))
	copy(out, q.buried)
	return out
}

func (q *MemoryQueue) promoteLocked(now time.Time) {
	var remaining []domain.Job
	for _, job := range q.delayed {
		if job.RunAt.After(now) {
			remaining = append(remaining, job)
			continue
		}
		q.ready = append(q.ready, job)
	}
	q.delayed = remaining
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
