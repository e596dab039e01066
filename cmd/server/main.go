package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"singluten/internal/audit"
	"singluten/internal/directory"
	"singluten/internal/openinghours"
	"singluten/internal/platform/config"
	"singluten/internal/platform/httpserver"
	"singluten/internal/platform/logger"
	auth "singluten/internal/platform/middleware/auth"
	"singluten/internal/platform/postgres"
	"singluten/internal/platform/redis"
	rlconfig "singluten/internal/ratelimit/config"
	"singluten/internal/ratelimit/limiter"
	"singluten/internal/ratelimit/metrics"
	rlmiddleware "singluten/internal/ratelimit/middleware"
	"singluten/internal/ratelimit/ports"
	"singluten/internal/ratelimit/reaper"
	"singluten/internal/ratelimit/store/counter"
	httpapi "singluten/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rlCfg := rlconfig.DefaultConfig()
	rlCfg.Retention = time.Duration(cfg.RetentionDays) * 24 * time.Hour

	identityStore, addressStore, storeHealth, closeStores, err := buildStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize counter stores", "error", err)
		os.Exit(1)
	}
	defer closeStores()

	inbox := audit.NewInbox(256)
	sink, closeSink, err := buildAuditSink(cfg, log)
	if err != nil {
		log.Error("failed to initialize audit sink", "error", err)
		os.Exit(1)
	}
	defer closeSink()
	worker := audit.NewWorker(sink, inbox.Events(), log)

	engine, err := limiter.New(identityStore, addressStore,
		limiter.WithLogger(log),
		limiter.WithAuditPublisher(inbox),
		limiter.WithMetrics(metrics.New()),
		limiter.WithLocation(time.FixedZone("reference", cfg.UTCOffsetHours*60*60)),
	)
	if err != nil {
		log.Error("failed to build rate limit engine", "error", err)
		os.Exit(1)
	}

	sweeper, err := reaper.New(rlCfg.Retention, log, []ports.CounterStore{identityStore, addressStore})
	if err != nil {
		log.Error("failed to build counter reaper", "error", err)
		os.Exit(1)
	}

	// TODO: replace the memory directory with the venue-service client once
	// its gRPC surface is published.
	dir := directory.NewMemoryDirectory()

	hours := openinghours.New(
		openinghours.WithLocation(time.FixedZone("reference", cfg.UTCOffsetHours*60*60)),
	)

	rl := rlmiddleware.New(engine, rlCfg, log, rlmiddleware.WithDisabled(cfg.RateLimitOff))
	handler := httpapi.NewHandler(dir, dir, dir, dir, dir, hours, engine, rlCfg, log)
	router := httpapi.NewRouter(handler, auth.Authenticate([]byte(cfg.JWTSigningKey)), rl, storeHealth)

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting singluten gatekeeper", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		if err := worker.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		if err := sweeper.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildStores picks the counter backend from configuration: Postgres when a
// DSN is set, Redis when a URL is set, in-memory otherwise. Both scopes get
// physically separate collections regardless of backend.
func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (identity, address ports.CounterStore, health httpapi.ReadyCheck, closer func(), err error) {
	noop := func() {}

	if cfg.PostgresDSN != "" {
		db, err := postgres.New(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, noop, err
		}

		identityStore, err := counter.NewPostgres(db, counter.CollectionIdentity)
		if err != nil {
			db.Close()
			return nil, nil, nil, noop, err
		}
		addressStore, err := counter.NewPostgres(db, counter.CollectionAddress)
		if err != nil {
			db.Close()
			return nil, nil, nil, noop, err
		}
		if err := identityStore.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, nil, noop, err
		}
		if err := addressStore.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, nil, noop, err
		}

		log.Info("counter stores backed by postgres")
		health := func(r *http.Request) error { return db.PingContext(r.Context()) }
		return identityStore, addressStore, health, func() { db.Close() }, nil
	}

	if cfg.Redis.URL != "" {
		client, err := redis.New(cfg.Redis)
		if err != nil {
			return nil, nil, nil, noop, err
		}

		retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
		identityStore, err := counter.NewRedis(client, counter.CollectionIdentity, retention)
		if err != nil {
			client.Close()
			return nil, nil, nil, noop, err
		}
		addressStore, err := counter.NewRedis(client, counter.CollectionAddress, retention)
		if err != nil {
			client.Close()
			return nil, nil, nil, noop, err
		}

		log.Info("counter stores backed by redis")
		health := func(r *http.Request) error { return client.Health(r.Context()) }
		return identityStore, addressStore, health, func() { client.Close() }, nil
	}

	log.Warn("no counter backend configured, using in-memory stores")
	return counter.NewMemory(), counter.NewMemory(), nil, noop, nil
}

// buildAuditSink returns a Kafka sink when brokers are configured and an
// in-memory sink otherwise.
func buildAuditSink(cfg config.Server, log *slog.Logger) (audit.Sink, func(), error) {
	noop := func() {}

	if len(cfg.KafkaBrokers) == 0 {
		log.Info("no kafka brokers configured, audit events stay in memory")
		return audit.NewMemorySink(), noop, nil
	}

	sink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic, log)
	if err != nil {
		return nil, noop, err
	}
	log.Info("audit events published to kafka", "topic", cfg.AuditTopic)
	return sink, func() { sink.Close() }, nil
}
