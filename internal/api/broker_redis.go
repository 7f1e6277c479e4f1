package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"formbridge/internal/model"
)

// RedisBroker implements EventBroker over Redis pub/sub so live feeds
// work across instances.
type RedisBroker struct {
	rdb *redis.Client
	mu  sync.Mutex
	ps  map[chan model.SubmissionEvent]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBroker{rdb: redis.NewClient(opt), ps: map[chan model.SubmissionEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(tenantID string) chan model.SubmissionEvent {
	ch := make(chan model.SubmissionEvent, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(tenantID))
	// initial receive confirms the subscription
	_, _ = ps.Receive(ctx)
	b.mu.Lock()
	b.ps[ch] = ps
	b.mu.Unlock()
	go func() {
		// closing the PubSub ends this loop, and only then is ch closed
		defer close(ch)
		for msg := range ps.Channel() {
			var evt model.SubmissionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}()
	return ch
}

func (b *RedisBroker) Unsubscribe(tenantID string, ch chan model.SubmissionEvent) {
	b.mu.Lock()
	ps := b.ps[ch]
	delete(b.ps, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(tenantID string, evt model.SubmissionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(evt)
	_ = b.rdb.Publish(ctx, b.chanName(tenantID), data).Err()
}

func (b *RedisBroker) chanName(tenantID string) string { return "submissions:" + tenantID }
