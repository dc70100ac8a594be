package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vnkhanh/coderoom-server/access"
	"github.com/vnkhanh/coderoom-server/config"
	"github.com/vnkhanh/coderoom-server/controllers"
	"github.com/vnkhanh/coderoom-server/middleware"
	"github.com/vnkhanh/coderoom-server/realtime"
	"github.com/vnkhanh/coderoom-server/routes"
	"github.com/vnkhanh/coderoom-server/store"
	"github.com/vnkhanh/coderoom-server/utils"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	config.SetupLogger(cfg)

	db, err := config.ConnectDB(cfg.DB, cfg.IsProduction())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	if err := config.Migrate(db); err != nil {
		logrus.WithError(err).Fatal("Failed to migrate database")
	}

	st := store.New(db)
	rooms := access.NewServiceFromStore(st)

	hub := realtime.NewHub(cfg.SubscriberQueue)
	var rdb *redis.Client
	if cfg.Transport == config.TransportRedis {
		rdb, err = config.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to redis")
		}
		defer rdb.Close()
	}

	transport, err := config.BuildTransport(cfg, hub, rdb)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to build realtime transport")
	}
	dispatcher := realtime.NewDispatcher(transport, st.Users)
	if err := dispatcher.Ready(); err != nil {
		logrus.WithError(err).Fatal("Realtime transport is not usable")
	}
	defer dispatcher.Close()
	defer hub.Close()

	// Pusher subscribers connect to the provider, not to us.
	subscribers := hub
	if cfg.Transport == config.TransportPusher {
		subscribers = nil
	}

	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	eventLimiter := middleware.NewRateLimiter(cfg.EventsPerMinute, cfg.EventsBurst, 10*time.Minute)
	defer eventLimiter.Stop()
	authLimiter := middleware.NewRateLimiter(10, 5, 5*time.Minute)
	defer authLimiter.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
		AllowWildcard:    true,
	}))

	if err := r.SetTrustedProxies(nil); err != nil {
		panic(err)
	}

	r.GET("/", func(c *gin.Context) {
		c.String(200, "Code room server is running")
	})

	routes.SetupRoutes(r, routes.Deps{
		Auth:        controllers.NewAuthController(st.Users, tokens),
		Rooms:       controllers.NewRoomController(rooms),
		Events:      controllers.NewEventController(dispatcher, subscribers, cfg.CORSOrigins),
		Health:      controllers.NewHealthController(db),
		Access:      rooms,
		Tokens:      tokens,
		Users:       st.Users,
		EventLimit:  eventLimiter,
		AuthLimiter: authLimiter,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithFields(logrus.Fields{
			"addr":      srv.Addr,
			"transport": cfg.Transport,
		}).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if relay, ok := transport.(*realtime.RedisTransport); ok {
		g.Go(func() error {
			return relay.Run(gctx, hub)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("Server stopped with error")
		return
	}
	logrus.Info("Server exited gracefully")
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		}).Info("HTTP request")
	}
}
