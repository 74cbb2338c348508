package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/seovimalraj/locations/internal/analytics"
	"github.com/seovimalraj/locations/internal/app"
	"github.com/seovimalraj/locations/internal/cache"
	"github.com/seovimalraj/locations/internal/ratelimit"
	"github.com/seovimalraj/locations/internal/research"
	"github.com/seovimalraj/locations/internal/server"
	"github.com/seovimalraj/locations/pkg/config"
	"github.com/seovimalraj/locations/pkg/health"
	"github.com/seovimalraj/locations/pkg/kafka"
	"github.com/seovimalraj/locations/pkg/logger"
	"github.com/seovimalraj/locations/pkg/metrics"
	"github.com/seovimalraj/locations/pkg/postgres"
	pkgredis "github.com/seovimalraj/locations/pkg/redis"
	"github.com/seovimalraj/locations/pkg/resilience"
)

const (
	memoryRetention  = 24 * time.Hour
	snapshotInterval = 5 * time.Minute
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting keyword research service", "port", cfg.Server.Port)

	if err := run(cfg); err != nil {
		slog.Error("keyword research service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("keyword research service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	checker := health.NewChecker()

	var remote cache.Store
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, shared cache tier disabled", "error", err)
		} else {
			defer redisClient.Close()
			remote = redisClient
			checker.Register("redis", health.PingCheck(redisClient, true))
			slog.Info("shared cache tier enabled", "addr", cfg.Redis.Addr)
		}
	}

	var store research.Store = research.NewMemoryStore(memoryRetention)
	var snapshots *analytics.SnapshotStore
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		pgStore := research.NewPostgresStore(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return err
		}
		snapshots = analytics.NewSnapshotStore(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			return err
		}
		store = pgStore
		checker.Register("postgres", health.PingCheck(db, false))
		slog.Info("research runs persisted to postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	aggregator := analytics.NewAggregator()
	var recorder analytics.Recorder = aggregator
	if cfg.Kafka.Enabled {
		topic := cfg.Kafka.Topics.ResearchEvents
		producer := kafka.NewProducer(cfg.Kafka, topic)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 100, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
		recorder = collector

		consumer := kafka.NewConsumer(cfg.Kafka, topic, aggregator.HandleMessage())
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer stopped", "error", err)
			}
		}()
		slog.Info("analytics events routed through kafka", "topic", topic, "brokers", cfg.Kafka.Brokers)
	}
	if snapshots != nil {
		snapshots.StartPeriodicSave(ctx, aggregator, snapshotInterval)
	}

	a, err := app.New(cfg, app.Options{
		Metrics:  m,
		Remote:   remote,
		Store:    store,
		Recorder: recorder,
	})
	if err != nil {
		return err
	}
	if a.TrendsBreaker != nil {
		checker.Register("trends", func(context.Context) health.ComponentHealth {
			if a.TrendsBreaker.GetState() == resilience.StateOpen {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit open"}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	var limiter *ratelimit.Keyed
	if cfg.Server.RateLimit > 0 {
		limiter = ratelimit.NewKeyed(cfg.Server.RateLimit, cfg.Server.RateWindow)
		defer limiter.Close()
	}
	clientKeys, err := server.NewClientKeys(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parsing trusted proxies: %w", err)
	}

	var analyticsSnapshots analytics.SnapshotLister
	if snapshots != nil {
		analyticsSnapshots = snapshots
	}
	handler := server.New(server.Deps{
		Handler:        server.NewHandler(a.Tools, a.Service),
		Analytics:      analytics.NewHandler(aggregator, analyticsSnapshots),
		Health:         checker,
		Gatherer:       reg,
		Metrics:        m,
		Limiter:        limiter,
		ClientKeys:     clientKeys,
		RequestTimeout: cfg.Research.Timeout + 10*time.Second,
	})

	if cfg.Metrics.Enabled && cfg.Metrics.Port != cfg.Server.Port {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("keyword research service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
