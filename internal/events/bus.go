// Package events fans published notifications out to presentation subscribers.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/lobbynet/internal/dependencies/clock"
	"github.com/mcoot/lobbynet/internal/model"
)

// DefaultBufferSize is the per-subscriber channel buffer
const DefaultBufferSize = 256

// Subscription receives published events until it is unsubscribed
// When its buffer is full, ordinary events are dropped. Consensus and phase
// transition events are never re-sent, so they displace the oldest queued event instead.
type Subscription struct {
	name        string
	ch          chan model.Event
	subscribeAt time.Time
}

// C returns the channel events arrive on; it is closed on Unsubscribe or Close
func (s *Subscription) C() <-chan model.Event {
	return s.ch
}

// Bus delivers every published event to every subscriber
// A subscriber that falls behind loses events rather than blocking the publisher.
type Bus struct {
	subs   map[*Subscription]bool
	mu     sync.RWMutex
	clock  clock.Clock
	logger *slog.Logger
	closed bool
}

// NewBus creates an empty Bus
func NewBus(clk clock.Clock, logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[*Subscription]bool),
		clock:  clk,
		logger: logger.With(slog.String("component", "events")),
	}
}

// Subscribe registers a new subscriber; bufferSize <= 0 uses DefaultBufferSize
func (b *Bus) Subscribe(name string, bufferSize int) *Subscription {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	sub := &Subscription{
		name:        name,
		ch:          make(chan model.Event, bufferSize),
		subscribeAt: b.clock.Now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = true
	b.logger.Debug("subscriber registered",
		slog.String("subscriber", name),
		slog.Int("total_subscribers", len(b.subs)))
	return sub
}

// Unsubscribe removes a subscriber and closes its channel
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
	b.logger.Debug("subscriber unregistered",
		slog.String("subscriber", sub.name),
		slog.Duration("subscription_duration", b.clock.Now().Sub(sub.subscribeAt)),
		slog.Int("total_subscribers", len(b.subs)))
}

// Publish stamps the event with the current time and delivers it
func (b *Bus) Publish(event model.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = b.clock.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	dropped := 0
	for sub := range b.subs {
		if b.deliver(sub, event) {
			continue
		}
		dropped++
		b.logger.Warn("event dropped - subscriber buffer full",
			slog.String("subscriber", sub.name),
			slog.String("event", string(event.Type)))
	}
	if dropped > 0 {
		b.logger.Warn("event publish partial failure",
			slog.Int("sent", len(b.subs)-dropped),
			slog.Int("dropped", dropped))
	}
}

// oneShot reports whether an event type is published at most once per session
func oneShot(t model.EventType) bool {
	return t == model.EventReadyConsensusReached || t == model.EventPhaseTransitionRequested
}

func (b *Bus) deliver(sub *Subscription, event model.Event) bool {
	select {
	case sub.ch <- event:
		return true
	default:
	}
	if !oneShot(event.Type) {
		return false
	}

	select {
	case evicted := <-sub.ch:
		b.logger.Warn("event evicted for one-shot event",
			slog.String("subscriber", sub.name),
			slog.String("evicted", string(evicted.Type)),
			slog.String("event", string(event.Type)))
	default:
	}
	select {
	case sub.ch <- event:
		return true
	default:
		return false
	}
}

// Emit is shorthand for publishing an event of the given type
func (b *Bus) Emit(eventType model.EventType, sessionID model.SessionID, clientID model.ClientID, payload any) {
	b.Publish(model.Event{
		Type:      eventType,
		SessionID: sessionID,
		ClientID:  clientID,
		Payload:   payload,
	})
}

// Close closes every subscription; later publishes are discarded
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	count := len(b.subs)
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
	b.logger.Info("event bus stopped", slog.Int("disconnected_subscribers", count))
}

// SubscriberCount returns the number of active subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
