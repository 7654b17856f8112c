package broadcast

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	h := NewHub()
	a, closeA := h.Subscribe(4)
	b, closeB := h.Subscribe(4)
	defer closeA()
	defer closeB()

	h.Publish(Event{Table: "estoque", Action: "update"})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case e := <-ch:
			if e.Table != "estoque" || e.Action != "update" {
				t.Fatalf("unexpected event: %+v", e)
			}
			if e.Time.IsZero() {
				t.Fatal("publish must stamp the event time")
			}
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(Event{Table: "estoque", Action: "update"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	// The full buffer kept exactly one event; the rest were dropped.
	if len(ch) != 1 {
		t.Fatalf("buffered events = %d, want 1", len(ch))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	_, unsubscribe := h.Subscribe(4)
	if h.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", h.SubscriberCount())
	}

	unsubscribe()
	if h.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount = %d after unsubscribe, want 0", h.SubscriberCount())
	}

	// Publishing into a closed subscriber set must not panic.
	h.Publish(Event{Table: "estoque", Action: "delete"})

	// Unsubscribe is idempotent.
	unsubscribe()
}
