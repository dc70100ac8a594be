package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Message is one event as seen by a subscriber.
type Message struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// Subscription receives the messages of one channel. C is closed when the
// subscription ends, either by Unsubscribe or because the subscriber fell
// too far behind.
type Subscription struct {
	Channel string
	C       <-chan Message

	ch     chan Message
	closed bool
}

// Hub is an in-process Transport that fans messages out to websocket
// subscribers.
type Hub struct {
	buffer int

	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

// NewHub creates a hub whose subscribers queue up to buffer messages each.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{buffer: buffer, subs: make(map[string]map[*Subscription]struct{})}
}

func (h *Hub) Subscribe(channel string) *Subscription {
	ch := make(chan Message, h.buffer)
	sub := &Subscription{Channel: channel, C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.closed = true
		close(ch)
		return sub
	}
	set, ok := h.subs[channel]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[channel] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(sub)
}

// Subscribers reports how many subscribers a channel has.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Trigger implements Transport.
func (h *Hub) Trigger(_ context.Context, channel, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	h.Deliver(Message{Channel: channel, Event: event, Data: raw})
	return nil
}

// Deliver hands msg to every subscriber of its channel without blocking and
// returns how many received it. A subscriber whose queue is full is dropped.
func (h *Hub) Deliver(msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for sub := range h.subs[msg.Channel] {
		select {
		case sub.ch <- msg:
			delivered++
		default:
			logrus.WithField("channel", msg.Channel).Warn("Dropping slow realtime subscriber")
			h.drop(sub)
		}
	}
	return delivered
}

// Close ends every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for sub := range set {
			h.drop(sub)
		}
	}
	h.closed = true
	return nil
}

// drop must be called with mu held.
func (h *Hub) drop(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
	set := h.subs[sub.Channel]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.Channel)
	}
}
