package notify

import (
	"testing"
	"time"

	"github.com/streamlens/streamlens/internal/types"
)

func TestBrokerDeliversToSubscribers(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	b.StreamAdded("tab1", types.StreamCandidate{URL: "https://cdn.example.com/a.mp4", Kind: types.KindMP4})

	select {
	case evt := <-ch:
		if evt.SessionID != "tab1" {
			t.Fatalf("expected session tab1, got %q", evt.SessionID)
		}
		if evt.Stream.URL != "https://cdn.example.com/a.mp4" {
			t.Fatalf("unexpected stream URL %q", evt.Stream.URL)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected event delivery")
	}
}

func TestBrokerPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := NewBroker()
	// Fire-and-forget: no listener present is not an error.
	b.StreamAdded("tab1", types.StreamCandidate{URL: "https://cdn.example.com/a.mp4"})
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", b.ClientCount())
	}
}

func TestBrokerDropsForSlowConsumer(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	// Never read: fill the buffer and overflow it. Publish must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufSize+10; i++ {
			b.Publish(Event{SessionID: "tab1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on slow consumer")
	}
	if len(ch) != subscriberBufSize {
		t.Fatalf("expected full buffer of %d, got %d", subscriberBufSize, len(ch))
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	b.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after unsubscribe")
	}
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", b.ClientCount())
	}
}
