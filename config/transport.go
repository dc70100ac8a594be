package config

import (
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/vnkhanh/coderoom-server/realtime"
)

// BuildTransport picks the broadcast transport named by REALTIME_TRANSPORT.
// rdb is only used by the redis transport and may be nil otherwise.
func BuildTransport(cfg *Config, hub *realtime.Hub, rdb *redis.Client) (realtime.Transport, error) {
	switch cfg.Transport {
	case TransportLocal, "":
		return hub, nil
	case TransportRedis:
		return realtime.NewRedisTransport(rdb), nil
	case TransportPusher:
		return realtime.NewPusherTransport(cfg.Pusher), nil
	default:
		return nil, fmt.Errorf("%w: unknown REALTIME_TRANSPORT %q", realtime.ErrConfiguration, cfg.Transport)
	}
}
