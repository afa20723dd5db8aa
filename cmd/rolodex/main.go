package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/rolodex/pkg/api"
	"github.com/platinummonkey/rolodex/pkg/auth"
	"github.com/platinummonkey/rolodex/pkg/cache"
	"github.com/platinummonkey/rolodex/pkg/config"
	"github.com/platinummonkey/rolodex/pkg/mail"
	"github.com/platinummonkey/rolodex/pkg/middleware"
	"github.com/platinummonkey/rolodex/pkg/observability"
	"github.com/platinummonkey/rolodex/pkg/session"
	"github.com/platinummonkey/rolodex/pkg/storage/postgres"
)

var version = "dev"

func main() {
	migrate := flag.Bool("migrate", false, "Apply database migrations before serving")
	migrateOnly := flag.Bool("migrate-only", false, "Apply database migrations and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	logger.WithField("version", version).Info("Starting rolodex")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *migrate || *migrateOnly, *migrateOnly); err != nil {
		logger.WithError(err).Fatal("rolodex exited with error")
	}
	logger.Info("rolodex stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger, migrate, migrateOnly bool) error {
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	db, err := postgres.Open(ctx, postgres.ConnectionConfigFrom(cfg.Storage))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	shutdown.Register("postgres", func(context.Context) error { return db.Close() })

	if migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return err
		}
		logger.Info("Database migrations applied")
		if migrateOnly {
			return db.Close()
		}
	}

	tp, err := observability.InitTracing(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		logger.WithError(err).Warn("Tracing disabled, exporter setup failed")
	}
	shutdown.Register("tracing", func(ctx context.Context) error {
		return observability.ShutdownTracing(ctx, tp, logger)
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		redisClient, err = postgres.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}

	var (
		identities cache.IdentityCache
		limiter    middleware.Limiter
	)
	if redisClient != nil {
		identities = cache.NewRedisCache(redisClient, metrics, logger)
		limiter = middleware.NewFixedWindowLimiter(redisClient, cfg.RateLimit.KeyPrefix)
	} else {
		logger.Warn("Redis not configured, using in-process identity cache and rate limiter")
		identities = cache.NewMemoryCache(cfg.Cache.MemoryMaxEntries, cfg.Cache.TTL, metrics)
		memLimiter := middleware.NewMemoryLimiter()
		memLimiter.StartCleanup(ctx, time.Minute)
		limiter = memLimiter
	}

	health := observability.NewHealthChecker(db, redisClient, version)

	var avatars api.AvatarUploader
	if cfg.Storage.S3Bucket != "" {
		avatarStore, err := postgres.NewAvatarStore(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to set up avatar storage: %w", err)
		}
		health.AddCheck("s3", avatarStore.HealthCheck)
		avatars = avatarStore
	} else {
		logger.Warn("S3 bucket not configured, avatar uploads disabled")
	}

	tokens, err := auth.NewTokenCodec(cfg.Auth.Config)
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}

	var sender mail.Sender
	if cfg.Mail.SMTP.Addr != "" {
		sender = mail.NewSMTPSender(cfg.Mail.SMTP, logger)
	} else {
		logger.Warn("SMTP not configured, emails will be logged instead of sent")
		sender = mail.NewLogSender(logger)
	}
	dispatcher := mail.NewDispatcher(context.Background(), sender, tokens, cfg.Mail.Dispatcher, metrics, logger)
	shutdown.Register("mail dispatcher", func(context.Context) error {
		return dispatcher.Close(cfg.Server.ShutdownTimeout)
	})

	store := postgres.NewStore(db)
	sessions := session.NewManager(session.Dependencies{
		Users:   store,
		Cache:   identities,
		Tokens:  tokens,
		Hasher:  auth.NewHasher(cfg.Auth.HashCost, cfg.Auth.HashConcurrency),
		Mailer:  dispatcher,
		Metrics: metrics,
		Logger:  logger,
	}, session.Options{
		CacheTTL: cfg.Cache.TTL,
		BaseURL:  cfg.Server.BaseURL,
	})

	server := api.NewServer(api.Dependencies{
		Sessions:       sessions,
		Contacts:       store,
		Avatars:        avatars,
		Limiter:        limiter,
		RateLimits:     cfg.RateLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Metrics:        metrics,
		Logger:         logger,
	})

	if metrics != nil {
		collector := observability.NewPoolStatsCollector(db, redisClient, metrics, logger)
		if err := collector.Start(cfg.Observability.PoolStatsSchedule); err != nil {
			return err
		}
		shutdown.Register("pool stats", func(context.Context) error {
			collector.Stop()
			return nil
		})
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, health)
	observability.RegisterMetricsEndpoint(healthMux, registry)
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Registered last so the listeners drain before their dependencies close
	shutdown.Register("health server", healthServer.Shutdown)
	shutdown.Register("api server", apiServer.Shutdown)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API listening on %s", apiServer.Addr)
		return listen(apiServer)
	})
	g.Go(func() error {
		logger.Infof("Health and metrics listening on %s", healthServer.Addr)
		return listen(healthServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}
