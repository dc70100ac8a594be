// Package realtime relays room events to live subscribers. It never touches
// room or ledger state; callers authorize before publishing.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Transport is the pub/sub black box events are handed to.
type Transport interface {
	Trigger(ctx context.Context, channel, event string, data any) error
	Close() error
}

// validator is implemented by transports that can tell whether their
// configuration is complete.
type validator interface {
	Validate() error
}

// UsernameResolver looks up display names for file-selection events.
type UsernameResolver interface {
	Username(ctx context.Context, userID uint) (string, error)
}

// Dispatcher publishes typed events on room channels.
//
// Publishes to the same room are handed to the transport one at a time, in
// the order they acquire the room's lane. Sequential publishes from one
// caller therefore arrive in submission order.
type Dispatcher struct {
	transport Transport
	names     UsernameResolver
	configErr error
	now       func() time.Time

	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	mu   sync.Mutex
	refs int
}

// NewDispatcher checks the transport once. A nil or invalid transport leaves
// the dispatcher in a failed state reported by Ready and by every Publish.
func NewDispatcher(t Transport, names UsernameResolver) *Dispatcher {
	d := &Dispatcher{
		transport: t,
		names:     names,
		now:       time.Now,
		lanes:     make(map[string]*lane),
	}
	switch {
	case t == nil:
		d.configErr = fmt.Errorf("%w: no transport", ErrConfiguration)
	case names == nil:
		d.configErr = fmt.Errorf("%w: no username resolver", ErrConfiguration)
	default:
		if v, ok := t.(validator); ok {
			d.configErr = v.Validate()
		}
	}
	return d
}

// Ready returns the configuration error found at construction, if any.
func (d *Dispatcher) Ready() error {
	return d.configErr
}

// Publish delivers p to every current subscriber of the room's channel.
// Delivery is best effort and at most once.
func (d *Dispatcher) Publish(ctx context.Context, roomID string, actorID uint, p Payload) error {
	if d.configErr != nil {
		return d.configErr
	}
	if p == nil {
		return fmt.Errorf("%w: empty payload", ErrUnknownKind)
	}
	if err := p.validate(); err != nil {
		return err
	}

	ev := Event{
		Kind:      p.Kind(),
		RoomID:    roomID,
		ActorID:   actorID,
		Payload:   p,
		Timestamp: d.now(),
	}
	m := meta{UserID: actorID, Timestamp: ev.Timestamp}
	if ev.Kind == KindFileSelection {
		name, err := d.names.Username(ctx, actorID)
		if err != nil {
			return fmt.Errorf("%w: user %d: %v", ErrUpstreamLookup, actorID, err)
		}
		m.Username = name
	}

	channel := ChannelName(roomID)
	unlock := d.lock(roomID)
	err := d.transport.Trigger(ctx, channel, string(ev.Kind), p.message(m))
	unlock()

	log := logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"user_id": actorID,
		"kind":    ev.Kind,
	})
	if err != nil {
		log.WithError(err).Error("Failed to trigger realtime event")
		return fmt.Errorf("trigger %s on %s: %w", ev.Kind, channel, err)
	}
	log.Debug("Realtime event triggered")
	return nil
}

// Close releases the transport.
func (d *Dispatcher) Close() error {
	if d.transport == nil {
		return nil
	}
	return d.transport.Close()
}

// lock takes the room's lane and returns its release func. Lanes are
// reference counted so idle rooms leave nothing behind.
func (d *Dispatcher) lock(roomID string) func() {
	d.mu.Lock()
	l, ok := d.lanes[roomID]
	if !ok {
		l = &lane{}
		d.lanes[roomID] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.lanes, roomID)
		}
		d.mu.Unlock()
	}
}
