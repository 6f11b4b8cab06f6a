package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"stayhub/internal/adapters/feed"
	server "stayhub/internal/adapters/http_server"
	"stayhub/internal/adapters/localcache"
	"stayhub/internal/adapters/observability"
	redisad "stayhub/internal/adapters/redis"
	"stayhub/internal/app"
	"stayhub/internal/domain"
	"stayhub/internal/shared"
	mysqlrepo "stayhub/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	sources, err := shared.LoadSources(cfg.SourcesFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.SourcesFile).Msg("load sources failed")
	}

	// deps
	repo := mysqlrepo.New(db)
	cache := newCache(ctx, cfg)
	fetcher := feed.New(cfg.FetchTimeout, cfg.FetchRPS)
	ing := app.NewIngestionService(fetcher, repo, sources,
		app.WithCache(cache),
		app.WithWorkers(cfg.Workers),
		app.WithLogger(log.Logger.With().Str("component", "ingestion").Logger()),
	)
	q := app.NewQueryService(repo, cache, cfg.CacheTTL, app.WithWriteTracker(ing))

	sched := app.NewScheduler(ing, cfg.IngestInterval,
		app.RunOnStart(cfg.IngestOnStart),
		app.SchedulerLogger(log.Logger.With().Str("component", "scheduler").Logger()),
	)

	// http
	srv := server.New(log.Logger, cfg.ReadTimeout)
	if cfg.MetricsAddr == "" {
		srv.Mount("/metrics", observability.MetricsHandler(reg))
	}
	srv.MountHandlers(&server.Handlers{Q: q, Ing: ing})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sched.Start(ctx)
	log.Info().
		Int("sources", len(sources)).
		Dur("interval", cfg.IngestInterval).
		Bool("on_start", cfg.IngestOnStart).
		Msg("scheduler started")

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	sched.Stop()
	log.Info().Msg("bye")
}

// newCache picks Redis when an address is configured and reachable,
// otherwise the in-process cache.
func newCache(ctx context.Context, cfg shared.Config) domain.Cache {
	if cfg.RedisAddr == "" {
		log.Info().Msg("REDIS_ADDR empty, using in-process cache")
		return localcache.New(time.Minute)
	}
	rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, using in-process cache")
		_ = rc.Close()
		return localcache.New(time.Minute)
	}
	return rc
}
