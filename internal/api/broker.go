package api

import (
	"sync"

	"formbridge/internal/model"
)

// EventBroker fans submission events out to live dashboard listeners.
type EventBroker interface {
	Subscribe(tenantID string) chan model.SubmissionEvent
	Unsubscribe(tenantID string, ch chan model.SubmissionEvent)
	Publish(tenantID string, evt model.SubmissionEvent)
}

// Broker is the in-process implementation used when Redis is absent.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.SubmissionEvent]struct{} // tenantID -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan model.SubmissionEvent]struct{}{}}
}

func (b *Broker) Subscribe(tenantID string) chan model.SubmissionEvent {
	ch := make(chan model.SubmissionEvent, 8)
	b.mu.Lock()
	if b.subs[tenantID] == nil {
		b.subs[tenantID] = map[chan model.SubmissionEvent]struct{}{}
	}
	b.subs[tenantID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(tenantID string, ch chan model.SubmissionEvent) {
	b.mu.Lock()
	if m := b.subs[tenantID]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, tenantID)
		}
	}
	b.mu.Unlock()
	close(ch)
}

func (b *Broker) Publish(tenantID string, evt model.SubmissionEvent) {
	b.mu.Lock()
	for ch := range b.subs[tenantID] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
