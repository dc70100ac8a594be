package realtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/pusher/pusher-http-go/v5"
)

// PusherConfig holds hosted pub/sub credentials.
type PusherConfig struct {
	AppID   string
	Key     string
	Secret  string
	Cluster string
}

// Validate reports missing credentials as ErrConfiguration.
func (c PusherConfig) Validate() error {
	if m := c.missing(); len(m) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(m, ", "))
	}
	return nil
}

func (c PusherConfig) missing() []string {
	var out []string
	if c.AppID == "" {
		out = append(out, "PUSHER_APP_ID")
	}
	if c.Key == "" {
		out = append(out, "PUSHER_KEY")
	}
	if c.Secret == "" {
		out = append(out, "PUSHER_SECRET")
	}
	if c.Cluster == "" {
		out = append(out, "PUSHER_CLUSTER")
	}
	return out
}

// triggerer is the part of pusher.Client used here.
type triggerer interface {
	Trigger(channel string, eventName string, data interface{}) error
}

// PusherTransport sends events to a hosted Pusher app.
type PusherTransport struct {
	cfg    PusherConfig
	client triggerer
}

func NewPusherTransport(cfg PusherConfig) *PusherTransport {
	return &PusherTransport{
		cfg: cfg,
		client: &pusher.Client{
			AppID:   cfg.AppID,
			Key:     cfg.Key,
			Secret:  cfg.Secret,
			Cluster: cfg.Cluster,
			Secure:  true,
		},
	}
}

func (t *PusherTransport) Validate() error {
	return t.cfg.Validate()
}

// Trigger ignores ctx; the pusher client has no per-call context.
func (t *PusherTransport) Trigger(_ context.Context, channel, event string, data any) error {
	return t.client.Trigger(channel, event, data)
}

func (t *PusherTransport) Close() error {
	return nil
}
