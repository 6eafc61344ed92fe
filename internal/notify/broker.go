// Package notify fans out "stream added" events to UI subscribers.
// Delivery is fire-and-forget: slow or absent consumers lose events,
// and that is fine — the streams endpoint reflects full current state.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/streamlens/streamlens/internal/types"
)

const subscriberBufSize = 256

// Event is one stream-added notification.
type Event struct {
	SessionID string                `json:"session_id"`
	Stream    types.StreamCandidate `json:"stream"`
}

// Broker fans out events to all subscribers. It satisfies the session
// manager's Notifier interface.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int64]chan Event)}
}

// StreamAdded publishes a stream-added event. Never blocks and never
// fails; with no subscribers the event is simply dropped.
func (b *Broker) StreamAdded(sessionID string, stream types.StreamCandidate) {
	b.Publish(Event{SessionID: sessionID, Stream: stream})
}

// Subscribe registers a new client. Returns the subscriber ID and a
// channel to receive events on. The channel is buffered; slow consumers
// will have events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers. Non-blocking: slow clients
// have events dropped.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
