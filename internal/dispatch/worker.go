package dispatch

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"
)

// Worker consumes the delivery queue in the background. Each dequeued
// job is dispatched whole; webhooks that fail are re-enqueued as a
// reduced job carrying only the failed specs, up to MaxAttempts, so one
// flaky endpoint never causes redelivery to endpoints that succeeded.
type Worker struct {
	Queue       Queue
	Engine      *Engine
	Stop        chan struct{}
	MaxAttempts int
	BatchSize   int
	PollWait    time.Duration
}

func NewWorker(q Queue, e *Engine) *Worker {
	max := 3
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			max = n
		}
	}
	return &Worker{
		Queue:       q,
		Engine:      e,
		Stop:        make(chan struct{}),
		MaxAttempts: max,
		BatchSize:   10,
		PollWait:    time.Second,
	}
}

func (w *Worker) Start() {
	go func() {
		for {
			select {
			case <-w.Stop:
				return
			default:
				w.processOnce()
			}
		}
	}()
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	jobs, err := w.Queue.Dequeue(ctx, w.BatchSize, w.PollWait)
	if err != nil || len(jobs) == 0 {
		return
	}
	for _, job := range jobs {
		res := w.Engine.DispatchJob(ctx, job)
		failed := job.Webhooks[:0:0]
		for _, r := range res.Results {
			if !r.Success {
				failed = append(failed, job.Webhooks[r.Index])
			}
		}
		log.Printf("dispatch: batch done tenant=%s job=%s total=%d failed=%d attempt=%d",
			job.TenantID, job.ID, len(res.Results), len(failed), job.Attempt)
		if len(failed) == 0 {
			continue
		}
		if job.Attempt+1 >= w.MaxAttempts {
			log.Printf("dispatch: giving up tenant=%s job=%s after %d attempts", job.TenantID, job.ID, job.Attempt+1)
			continue
		}
		retry := job
		retry.Webhooks = failed
		retry.Attempt = job.Attempt + 1
		if err := w.Queue.Enqueue(ctx, retry); err != nil {
			log.Printf("dispatch: redelivery enqueue failed tenant=%s job=%s: %v", job.TenantID, job.ID, err)
		}
	}
}
