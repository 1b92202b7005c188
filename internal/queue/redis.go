package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"TrendPress/internal/domain"
	"TrendPress/internal/ports"
)

const promoteBatch = 100

// RedisQueue is the durable ports.Queue transport: a ready list, a
// delayed sorted set scored by run time, a dead-letter list, and a
// dedupe-key set. Delivery is at-least-once.
type RedisQueue struct {
	client *redis.Client
	name   string
}

var _ ports.Queue = (*RedisQueue)(nil)

// NewRedisQueue wires a queue onto an existing client under a name prefix.
func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	return &RedisQueue{client: client, name: name}
}

func (q *RedisQueue) readyKey() string   { return q.name + ":queue:ready" }
func (q *RedisQueue) delayedKey() string { return q.name + ":queue:delayed" }
func (q *RedisQueue) failedKey() string  { return q.name + ":queue:failed" }
func (q *RedisQueue) pendingKey() string { return q.name + ":queue:pending" }

// Enqueue schedules a job, honoring RunAt and the dedupe reservation.
func (q *RedisQueue) Enqueue(ctx context.Context, job domain.Job) error {
	payload, err := domain.EncodeJob(job)
	if err != nil {
		return err
	}

	if job.DedupeKey != "" {
		added, err := q.client.SAdd(ctx, q.pendingKey(), job.DedupeKey).Result()
		if err != nil {
			return &domain.Error{Kind: domain.KindTransient, Op: "enqueue", Err: err}
		}
		if added == 0 {
			return nil
		}
	}

	if job.RunAt.After(time.Now()) {
		err = q.client.ZAdd(ctx, q.delayedKey(), redis.Z{
			Score:  float64(job.RunAt.UnixMilli()),
			Member: payload,
		}).Err()
	} else {
		err = q.client.LPush(ctx, q.readyKey(), payload).Err()
	}
	if err != nil {
		// The reservation must not outlive a job that was never stored,
		// or every later enqueue with this key is silently dropped.
		if job.DedupeKey != "" {
			if remErr := q.client.SRem(ctx, q.pendingKey(), job.DedupeKey).Err(); remErr != nil {
				err = fmt.Errorf("%w (release reservation: %v)", err, remErr)
			}
		}
		return &domain.Error{Kind: domain.KindTransient, Op: "enqueue", Err: err}
	}

	return nil
}

// Dequeue blocks on the ready list, promoting due delayed jobs between
// poll rounds so delays hold even when no poller is running.
func (q *RedisQueue) Dequeue(ctx context.Context) (domain.Job, error) {
	for {
		if err := q.PromoteDue(ctx, time.Now()); err != nil {
			return domain.Job{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.readyKey()).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return domain.Job{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return domain.Job{}, ctx.Err()
			}
			return domain.Job{}, &domain.Error{Kind: domain.KindTransient, Op: "dequeue", Err: err}
		}
		if len(res) != 2 {
			return domain.Job{}, &domain.Error{Kind: domain.KindTransient, Op: "dequeue", Err: fmt.Errorf("unexpected brpop reply %v", res)}
		}

		return domain.DecodeJob([]byte(res[1]))
	}
}

// Release clears a finished job's dedupe reservation.
func (q *RedisQueue) Release(ctx context.Context, job domain.Job) error {
	if job.DedupeKey == "" {
		return nil
	}
	if err := q.client.SRem(ctx, q.pendingKey(), job.DedupeKey).Err(); err != nil {
		return &domain.Error{Kind: domain.KindTransient, Op: "release", Err: err}
	}
	return nil
}

// Bury dead-letters a terminally failed job and frees its dedupe key.
func (q *RedisQueue) Bury(ctx context.Context, job domain.Job) error {
	payload, err := domain.EncodeJob(job)
	if err != nil {
		return err
	}

	if err := q.client.LPush(ctx, q.failedKey(), payload).Err(); err != nil {
		return &domain.Error{Kind: domain.KindTransient, Op: "bury", Err: err}
	}

	return q.Release(ctx, job)
}

// PromoteDue moves elapsed members of the delayed set into the ready list.
// ZRem decides ownership, so concurrent movers never double-deliver from
// the delayed set itself.
func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) error {
	due, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return &domain.Error{Kind: domain.KindTransient, Op: "promote due", Err: err}
	}

	for _, member := range due {
		removed, err := q.client.ZRem(ctx, q.delayedKey(), member).Result()
		if err != nil {
			return &domain.Error{Kind: domain.KindTransient, Op: "promote due", Err: err}
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.readyKey(), member).Err(); err != nil {
			return &domain.Error{Kind: domain.KindTransient, Op: "promote due", Err: err}
		}
	}

	return nil
}
