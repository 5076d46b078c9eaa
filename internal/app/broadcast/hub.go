// Package broadcast provides the fan-out hub for overlay event streams.
package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind is dropped rather than stalling the hub.
const subscriberBuffer = 32

// Message is one event frame delivered to subscribers.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	Seq  uint64 `json:"-"`
}

// SnapshotFunc builds the catch-up messages delivered to a new subscriber
// so it can render current state without waiting for the next event. It runs
// with the hub lock held and must not call hub methods.
type SnapshotFunc func() []Message

// Subscription is one subscriber's view of the hub. C is closed when the
// subscriber is removed.
type Subscription struct {
	ID string
	C  <-chan Message

	ch chan Message
}

// Hub fans events out to subscribers. Each subscriber has its own buffered
// channel, so delivery order per subscriber matches publish order and a slow
// subscriber never blocks the others.
type Hub struct {
	mu       sync.Mutex
	subs     map[string]*Subscription
	snapshot SnapshotFunc
	seq      uint64
	closed   bool
}

// NewHub creates a hub. snapshot may be nil when no catch-up state exists.
func NewHub(snapshot SnapshotFunc) *Hub {
	return &Hub{
		subs:     make(map[string]*Subscription),
		snapshot: snapshot,
	}
}

// Subscribe registers a new subscriber. The returned channel immediately
// carries a connected frame followed by the state snapshot. The snapshot is
// built under the hub lock so nothing published concurrently can fall between
// snapshot and registration; snapshot callbacks must not call back into the
// hub.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Message, subscriberBuffer)
	sub := &Subscription{
		ID: uuid.New().String(),
		C:  ch,
		ch: ch,
	}

	if h.closed {
		close(ch)
		return sub
	}

	var catchup []Message
	if h.snapshot != nil {
		catchup = h.snapshot()
	}
	h.subs[sub.ID] = sub

	h.seq++
	ch <- Message{
		Type: "connected",
		Data: map[string]any{"timestamp": time.Now().UnixMilli(), "subscriberId": sub.ID},
		Seq:  h.seq,
	}
	for _, msg := range catchup {
		h.seq++
		msg.Seq = h.seq
		ch <- msg
	}

	zlog.Debug().Str("id", sub.ID).Int("subscribers", len(h.subs)).Msg("broadcast: subscriber added")
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
}

// Publish delivers a message to every subscriber in publish order. A
// subscriber whose buffer is full is dropped; the rest are unaffected.
func (h *Hub) Publish(msgType string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.seq++
	msg := Message{Type: msgType, Data: data, Seq: h.seq}

	for id, sub := range h.subs {
		select {
		case sub.ch <- msg:
		default:
			zlog.Warn().Str("id", id).Str("type", msgType).Msg("broadcast: subscriber too slow, dropping")
			h.removeLocked(id)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close removes all subscribers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id := range h.subs {
		h.removeLocked(id)
	}
}

func (h *Hub) removeLocked(id string) {
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
}
