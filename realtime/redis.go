package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// envelope is what travels over redis pub/sub.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RedisTransport publishes events through redis so that every server
// instance can relay them to its own websocket subscribers.
type RedisTransport struct {
	client *redis.Client
}

func NewRedisTransport(client *redis.Client) *RedisTransport {
	return &RedisTransport{client: client}
}

func (t *RedisTransport) Validate() error {
	if t.client == nil {
		return fmt.Errorf("%w: redis client is nil", ErrConfiguration)
	}
	return nil
}

func (t *RedisTransport) Trigger(ctx context.Context, channel, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	body, err := json.Marshal(envelope{Event: event, Data: raw})
	if err != nil {
		return err
	}
	return t.client.Publish(ctx, channel, body).Err()
}

// Run relays every room channel into hub until ctx is done.
func (t *RedisTransport) Run(ctx context.Context, hub *Hub) error {
	pubsub := t.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer pubsub.Close()

	// Wait for the subscription to be confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to room channels: %w", err)
	}
	logrus.Info("Relaying room channels from redis")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("redis relay channel closed")
			}
			if _, ok := RoomFromChannel(m.Channel); !ok {
				continue
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil || env.Event == "" {
				logrus.WithError(err).WithField("channel", m.Channel).Warn("Skipping malformed relay message")
				continue
			}
			hub.Deliver(Message{Channel: m.Channel, Event: env.Event, Data: env.Data})
		}
	}
}

// Close leaves the client open; it belongs to the caller.
func (t *RedisTransport) Close() error {
	return nil
}
