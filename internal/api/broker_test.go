package api

import (
	"testing"
	"time"

	"formbridge/internal/model"
)

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	a1 := b.Subscribe("acme")
	a2 := b.Subscribe("acme")
	other := b.Subscribe("beta")
	defer b.Unsubscribe("beta", other)

	b.Publish("acme", model.SubmissionEvent{Type: "submission.created"})

	for i, ch := range []chan model.SubmissionEvent{a1, a2} {
		select {
		case evt := <-ch:
			if evt.Type != "submission.created" {
				t.Fatalf("sub %d: %+v", i, evt)
			}
		case <-time.After(time.Second):
			t.Fatalf("sub %d: no event", i)
		}
	}
	select {
	case evt := <-other:
		t.Fatalf("tenant isolation broken: %+v", evt)
	default:
	}

	b.Unsubscribe("acme", a1)
	if _, open := <-a1; open {
		t.Fatal("unsubscribed channel should be closed")
	}
	// remaining subscriber still receives
	b.Publish("acme", model.SubmissionEvent{Type: "submission.created"})
	select {
	case <-a2:
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber lost events")
	}
	b.Unsubscribe("acme", a2)
}

func TestBrokerPublishNoSubscribers(t *testing.T) {
	b := NewBroker()
	b.Publish("nobody", model.SubmissionEvent{Type: "submission.created"})
}

func TestBrokerSlowSubscriberDropsEvents(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("acme")
	defer b.Unsubscribe("acme", ch)
	// fill the buffer well past capacity; Publish must never block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish("acme", model.SubmissionEvent{Type: "submission.created"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
