package pubsub

import (
	"sync"

	"github.com/Billy-Davies-2/nba-predictor-ui/internal/logger"
)

// Event types published over the bus
const (
	EventPredictionSubmitted = "prediction:submitted"
	EventPredictionSucceeded = "prediction:succeeded"
	EventPredictionFailed    = "prediction:failed"
	EventPredictionReset     = "prediction:reset"
)

// Event represents a pubsub event
type Event struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Publisher is the write side of the bus
type Publisher interface {
	Publish(Event)
}

// Upstream is an interface for upstream publishers (e.g., NATS)
type Upstream interface {
	Publish(Event)
	Subscribe() chan Event
	Unsubscribe(chan Event)
}

// PubSub implements a simple publish-subscribe system
type PubSub struct {
	fanout
	upstream Upstream
}

// New creates a new PubSub instance
func New() *PubSub {
	return &PubSub{fanout: newFanout(10)}
}

// NewWithUpstream creates a PubSub that bridges to an upstream publisher.
// Publish sends to the upstream only; whatever the upstream delivers back
// is forwarded to local subscribers.
func NewWithUpstream(upstream Upstream) *PubSub {
	ps := &PubSub{
		fanout:   newFanout(10),
		upstream: upstream,
	}

	ch := upstream.Subscribe()
	go func() {
		logger.Debug("PubSub: Subscribed to upstream, waiting for events")
		for event := range ch {
			ps.broadcast(event)
		}
		logger.Debug("PubSub: Upstream channel closed")
	}()

	return ps
}

// Publish sends an event to all subscribers, through the upstream if one is set
func (ps *PubSub) Publish(event Event) {
	if ps.upstream != nil {
		logger.Debug("PubSub: Forwarding to upstream", "type", event.Type)
		ps.upstream.Publish(event)
		return
	}
	ps.broadcast(event)
}

// fanout delivers events to buffered local channels, dropping for slow readers
type fanout struct {
	mu          sync.RWMutex
	subscribers []chan Event
	buffer      int
}

func newFanout(buffer int) fanout {
	return fanout{subscribers: []chan Event{}, buffer: buffer}
}

// Subscribe adds a new subscriber and returns a channel for receiving events
func (f *fanout) Subscribe() chan Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan Event, f.buffer)
	f.subscribers = append(f.subscribers, ch)
	logger.Debug("PubSub: New subscriber added", "totalSubscribers", len(f.subscribers))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (f *fanout) Unsubscribe(ch chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, sub := range f.subscribers {
		if sub == ch {
			close(ch)
			f.subscribers = append(f.subscribers[:i], f.subscribers[i+1:]...)
			break
		}
	}
}

// SubscriberCount returns the number of active local subscribers
func (f *fanout) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

func (f *fanout) broadcast(event Event) {
	// Sends never block, so holding the read lock keeps Unsubscribe from
	// closing a channel mid-send
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.subscribers {
		select {
		case ch <- event:
		default:
			logger.Warn("PubSub: Skipping slow subscriber", "type", event.Type)
		}
	}
}

func (f *fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, sub := range f.subscribers {
		close(sub)
	}
	f.subscribers = nil
}
