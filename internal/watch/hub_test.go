package watch

import (
	"testing"
	"time"
)

func TestHubPublishSubscribe(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe()
	defer cancel()

	hub.Publish(NewEvent(EventSaved, "k--main", nil))

	select {
	case e := <-events:
		if e.Type != EventSaved || e.Name != "k--main" || e.ID == "" {
			t.Fatalf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestHubCancelStopsDelivery(t *testing.T) {
	hub := NewHub()
	events, cancel := hub.Subscribe()
	cancel()
	cancel() // idempotent

	// channel is closed after cancel
	if _, ok := <-events; ok {
		t.Fatal("want closed channel after cancel")
	}
	// publishing to no subscribers must not panic
	hub.Publish(NewEvent(EventDeleted, "k--main", nil))
}

func TestHubSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Publish(NewEvent(EventPruned, "k--main", nil))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
