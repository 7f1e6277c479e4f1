package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"formbridge/internal/model"
)

// Queue decouples submission handling from webhook delivery. Dequeue
// removes jobs from the queue; redelivery of failed webhooks is the
// worker's job, not the queue's.
type Queue interface {
	Enqueue(ctx context.Context, job model.DispatchJob) error
	Dequeue(ctx context.Context, max int, wait time.Duration) ([]model.DispatchJob, error)
}

// MemoryQueue is a channel-backed queue for dev and tests.
type MemoryQueue struct {
	ch chan model.DispatchJob
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryQueue{ch: make(chan model.DispatchJob, capacity)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job model.DispatchJob) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("queue full")
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, max int, wait time.Duration) ([]model.DispatchJob, error) {
	if max <= 0 {
		max = 1
	}
	var out []model.DispatchJob
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case job := <-q.ch:
		out = append(out, job)
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	for len(out) < max {
		select {
		case job := <-q.ch:
			out = append(out, job)
		default:
			return out, nil
		}
	}
	return out, nil
}

const redisQueueKey = "formbridge:dispatch"

// RedisQueue is a Redis-list-backed delivery queue shared across
// instances. LPUSH to enqueue, BRPOP to consume.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisQueue(url string) (*RedisQueue, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisQueue{rdb: redis.NewClient(opt), key: redisQueueKey}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, job model.DispatchJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.key, data).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context, max int, wait time.Duration) ([]model.DispatchJob, error) {
	if max <= 0 {
		max = 1
	}
	var out []model.DispatchJob
	res, err := q.rdb.BRPop(ctx, wait, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if job, ok := decodeJob(res[1]); ok {
		out = append(out, job)
	}
	for len(out) < max {
		raw, err := q.rdb.RPop(ctx, q.key).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return out, err
		}
		if job, ok := decodeJob(raw); ok {
			out = append(out, job)
		}
	}
	return out, nil
}

func decodeJob(raw string) (model.DispatchJob, bool) {
	var job model.DispatchJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return model.DispatchJob{}, false
	}
	return job, true
}
