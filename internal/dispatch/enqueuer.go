package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"formbridge/internal/model"
)

// Enqueuer hands validated submissions to the delivery queue. A nil
// queue or a job with no webhooks is a successful no-op. Queue failures
// are logged and reported, never fatal: the submission is already stored
// and the HTTP response must still succeed.
type Enqueuer struct {
	Queue Queue
}

func NewEnqueuer(q Queue) *Enqueuer {
	return &Enqueuer{Queue: q}
}

// Enqueue builds one immutable job for the submission and its webhook
// snapshot. Returns false only on a queue-send failure.
func (e *Enqueuer) Enqueue(ctx context.Context, sub model.Submission, webhooks []model.WebhookSpec) bool {
	if e == nil || e.Queue == nil || len(webhooks) == 0 {
		return true
	}
	job := model.DispatchJob{
		ID:         uuid.New().String(),
		TenantID:   sub.TenantID,
		TS:         time.Now().Unix(),
		Submission: sub,
		Webhooks:   webhooks,
	}
	if err := e.Queue.Enqueue(ctx, job); err != nil {
		log.Printf("dispatch: enqueue failed tenant=%s submission=%s: %v", sub.TenantID, sub.ID, err)
		return false
	}
	return true
}
