package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"stayhub/internal/adapters/feed"
	"stayhub/internal/adapters/observability"
	redisad "stayhub/internal/adapters/redis"
	"stayhub/internal/app"
	"stayhub/internal/domain"
	"stayhub/internal/shared"
	mysqlrepo "stayhub/internal/storage/mysql"
)

type flags struct {
	sources     []string
	sourcesFile string
	workers     int
	strict      bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "ingestor",
		Short: "Run one ingestion pass over the configured sources",
		Long: `ingestor fetches every configured source once, normalizes the items
and upserts them into MySQL, then prints the run report as JSON.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	cmd.Flags().StringSliceVarP(&f.sources, "source", "s", nil, "only ingest these source names (repeatable)")
	cmd.Flags().StringVar(&f.sourcesFile, "sources-file", "", "YAML source registry (overrides SOURCES_FILE)")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "concurrent sources (overrides INGEST_WORKERS)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "exit non-zero when any source or item failed")
	return cmd
}

func run(ctx context.Context, f flags) error {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	if f.sourcesFile != "" {
		cfg.SourcesFile = f.sourcesFile
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	sources, err := shared.LoadSources(cfg.SourcesFile)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}

	log.Info().
		Int("sources", len(sources)).
		Strs("only", f.sources).
		Int("workers", cfg.Workers).
		Msg("ingestor starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("sql open: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	log.Info().Msg("db ping ok")

	opts := []app.Option{
		app.WithWorkers(cfg.Workers),
		app.WithSourceNames(f.sources...),
	}
	// drop cached read models in the API's Redis after writing
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		opts = append(opts, app.WithCache(rc))
	} else {
		log.Warn().
			Dur("cache_ttl", cfg.CacheTTL).
			Msg("REDIS_ADDR empty: a running API keeps its in-process sources/stats cache until the TTL expires")
	}

	ing := app.NewIngestionService(feed.New(cfg.FetchTimeout, cfg.FetchRPS), mysqlrepo.New(db), sources, opts...)
	rep := ing.Run(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return err
	}
	if f.strict && rep.Status != domain.RunCompleted {
		return fmt.Errorf("ingestion %s: %d failed source(s)", rep.Status, rep.FailedSources())
	}
	return nil
}
