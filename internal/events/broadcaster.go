// ABOUTME: In-memory fan-out broadcaster for canvas events
// ABOUTME: Publishes committed color changes and mints to all live subscribers

package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mosaicgrid/mosaicd/internal/canvas"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// Event is one canvas event as delivered to subscribers.
type Event struct {
	Type      string        `json:"type"`
	Position  string        `json:"position"`
	Editor    string        `json:"editor,omitempty"`
	Minter    string        `json:"minter,omitempty"`
	FromColor *canvas.Color `json:"from_color,omitempty"`
	ToColor   *canvas.Color `json:"to_color,omitempty"`
	FeePaid   uint64        `json:"fee_paid,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Event types published by the engine and the minter.
const (
	TypeColorChanged = "color_changed"
	TypeMinted       = "minted"
	TypeTransferred  = "transferred"
)

// Broadcaster provides in-memory pub/sub for canvas events. Subscribers
// receive every event; there is no per-position filtering, clients filter
// on their side.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan *Event),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber. Returns a channel that receives events
// and a subscription ID for later unsubscription. The subscription is
// automatically cleaned up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan *Event, string) {
	subID := uuid.New().String()
	ch := make(chan *Event, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends an event to all subscribers. Non-blocking: events are
// dropped for subscribers whose channels are full.
func (b *Broadcaster) Publish(event *Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	targets := make([]chan *Event, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			// Subscriber channel full — drop event for this subscriber
			b.logger.Debug("dropped event for slow subscriber",
				"event_type", event.Type,
				"position", event.Position)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}

	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}

	b.logger.Debug("broadcaster closed")
}
