package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/realaloky/Fast-chat-app/internal/api"
	"github.com/realaloky/Fast-chat-app/internal/app"
	"github.com/realaloky/Fast-chat-app/internal/auth"
	"github.com/realaloky/Fast-chat-app/internal/chat"
	"github.com/realaloky/Fast-chat-app/internal/config"
	"github.com/realaloky/Fast-chat-app/internal/dataservice"
	"github.com/realaloky/Fast-chat-app/internal/dataservice/memory"
	"github.com/realaloky/Fast-chat-app/internal/feed"
	"github.com/realaloky/Fast-chat-app/internal/logger"
	"github.com/realaloky/Fast-chat-app/internal/metrics"
	"github.com/realaloky/Fast-chat-app/internal/middleware"
	"github.com/realaloky/Fast-chat-app/internal/presence"
	"github.com/realaloky/Fast-chat-app/internal/repository"
	"github.com/realaloky/Fast-chat-app/internal/session"
	"github.com/realaloky/Fast-chat-app/internal/storage"
)

const presenceTTL = 2 * time.Minute

func main() {
	cfgPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	lg, err := logger.New(logger.Config{Development: cfg.App.Development(), Level: cfg.Log.Level})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("chat-client stopped", zap.Error(err))
	}
}

// closers run in reverse order on shutdown.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleanup closers
	defer cleanup.run()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanup.add(func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	svc, err := buildService(ctx, cfg, rdb, lg, &cleanup)
	if err != nil {
		return err
	}

	if cfg.S3.Bucket != "" {
		objects, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:        cfg.S3.Region,
			Bucket:        cfg.S3.Bucket,
			Endpoint:      cfg.S3.Endpoint,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		}, lg)
		if err != nil {
			return err
		}
		svc.Objects = objects
	}

	var (
		authPresence auth.Presence
		apiPresence  api.PresenceReader
	)
	if rdb != nil {
		ps := presence.NewStore(rdb, cfg.Redis.Prefix, presenceTTL)
		authPresence, apiPresence = ps, ps
	}

	sessions, err := session.Open(cfg.Session.Dir)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	cleanup.add(func() { _ = sessions.Close() })

	m := metrics.New()
	tokens := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.TokenTTL)
	authSvc := auth.NewService(svc.Users, tokens, lg, auth.Options{Presence: authPresence})
	client := app.New(svc, authSvc, sessions, lg, app.Options{
		Chat: chat.Options{
			AutoOpen:    cfg.Chat.AutoOpen,
			SearchLimit: cfg.Chat.SearchLimit,
			Metrics:     m,
		},
		Heartbeat: presenceTTL / 3,
	})
	cleanup.add(client.Close)

	if sess, err := client.Restore(ctx); err == nil {
		lg.Info("session restored", zap.String("user_id", sess.User.ID), zap.String("username", sess.User.Username))
	} else if !errors.Is(err, session.ErrNoSession) {
		lg.Warn("restore session", zap.Error(err))
	}

	limiter := middleware.NewIPRateLimiter(cfg.App.RateLimitPerMin, cfg.App.RateLimitPerMin/4+1, lg)
	go limiter.Cleanup(ctx, time.Minute, 10*time.Minute)

	srv := api.NewServer(api.Deps{
		App:      client,
		Tokens:   tokens,
		Presence: apiPresence,
		Metrics:  m,
		Limiter:  limiter,
		Log:      lg,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(":" + cfg.App.PortString())
	}()
	lg.Info("chat-client started", zap.String("port", cfg.App.PortString()),
		zap.String("backend", cfg.Backend.Driver), zap.String("feed", cfg.Feed.Driver))

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Warn("server shutdown", zap.Error(err))
	}
	lg.Info("chat-client stopped")
	return nil
}

// buildService assembles the data service for the configured backend and feed drivers.
func buildService(ctx context.Context, cfg *config.Config, rdb *redis.Client, lg *zap.Logger, cleanup *closers) (dataservice.Service, error) {
	if cfg.Backend.Driver == config.DriverMemory {
		lg.Info("using in-memory backend")
		return memory.New().Service(), nil
	}

	mc, err := repository.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return dataservice.Service{}, fmt.Errorf("mongo init: %w", err)
	}
	cleanup.add(func() { _ = mc.Disconnect(context.Background()) })
	db := mc.Database(cfg.Mongo.Database)

	var (
		pub dataservice.Publisher
		fd  dataservice.Feed
	)
	switch cfg.Feed.Driver {
	case config.DriverMongo:
		fd = repository.NewChangeFeed(db, lg)
	case config.DriverKafka:
		k := feed.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, lg)
		cleanup.add(func() { _ = k.Close() })
		pub, fd = feed.NewBreakerPublisher("kafka", k, feed.BreakerConfig{}, lg), k
	case config.DriverRedis:
		if rdb == nil {
			return dataservice.Service{}, errors.New("redis feed needs redis.addr")
		}
		r := feed.NewRedis(rdb, cfg.Redis.Channel, lg)
		pub, fd = feed.NewBreakerPublisher("redis", r, feed.BreakerConfig{}, lg), r
	}

	users, err := repository.NewUserRepository(ctx, db)
	if err != nil {
		return dataservice.Service{}, err
	}
	messages, err := repository.NewMessageRepository(ctx, db, pub, lg)
	if err != nil {
		return dataservice.Service{}, err
	}
	return dataservice.Service{Users: users, Messages: messages, Feed: fd}, nil
}
