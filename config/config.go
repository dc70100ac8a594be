package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/vnkhanh/coderoom-server/realtime"
)

// Transport names accepted by REALTIME_TRANSPORT.
const (
	TransportLocal  = "local"
	TransportRedis  = "redis"
	TransportPusher = "pusher"
)

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type Config struct {
	AppEnv   string
	Port     int
	LogLevel string

	DB DBConfig

	JWTSecret string
	TokenTTL  time.Duration

	Transport string
	Redis     RedisConfig
	Pusher    realtime.PusherConfig

	CORSOrigins     []string
	EventsPerMinute int
	EventsBurst     int
	SubscriberQueue int
}

// Load reads .env (if present) into the environment, then resolves every
// setting from the environment with defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file, using process environment")
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("app_env", "development")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_timezone", "UTC")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("realtime_transport", TransportLocal)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("cors_origins", "http://localhost:5173")
	v.SetDefault("events_per_minute", 600)
	v.SetDefault("events_burst", 30)
	v.SetDefault("subscriber_queue", 256)

	cfg := &Config{
		AppEnv:   v.GetString("app_env"),
		Port:     v.GetInt("port"),
		LogLevel: v.GetString("log_level"),
		DB: DBConfig{
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
			TimeZone: v.GetString("db_timezone"),
		},
		JWTSecret: v.GetString("jwt_secret"),
		TokenTTL:  v.GetDuration("token_ttl"),
		Transport: strings.ToLower(strings.TrimSpace(v.GetString("realtime_transport"))),
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Pusher: realtime.PusherConfig{
			AppID:   v.GetString("pusher_app_id"),
			Key:     v.GetString("pusher_key"),
			Secret:  v.GetString("pusher_secret"),
			Cluster: v.GetString("pusher_cluster"),
		},
		CORSOrigins:     splitList(v.GetString("cors_origins")),
		EventsPerMinute: v.GetInt("events_per_minute"),
		EventsBurst:     v.GetInt("events_burst"),
		SubscriberQueue: v.GetInt("subscriber_queue"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting. Realtime transport problems are reported as
// realtime.ErrConfiguration.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET must be set")
	}
	if c.Port <= 0 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: invalid TOKEN_TTL %s", c.TokenTTL)
	}
	if c.EventsPerMinute <= 0 || c.EventsBurst <= 0 {
		return fmt.Errorf("config: EVENTS_PER_MINUTE and EVENTS_BURST must be positive")
	}
	if c.SubscriberQueue <= 0 {
		return fmt.Errorf("config: SUBSCRIBER_QUEUE must be positive")
	}
	return c.validateTransport()
}

func (c *Config) validateTransport() error {
	switch c.Transport {
	case TransportLocal, "":
		return nil
	case TransportRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: %w: REDIS_ADDR must be set", realtime.ErrConfiguration)
		}
		return nil
	case TransportPusher:
		if err := c.Pusher.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("config: %w: unknown REALTIME_TRANSPORT %q", realtime.ErrConfiguration, c.Transport)
	}
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
