package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"secwire/internal/categorize"
	"secwire/internal/config"
	"secwire/internal/dedup"
	"secwire/internal/feeds"
	"secwire/internal/logger"
	"secwire/internal/metrics"
	"secwire/internal/pipeline"
	"secwire/internal/retention"
	"secwire/internal/retry"
	"secwire/internal/scheduler"
	"secwire/internal/scraper"
	"secwire/internal/store"
	"secwire/internal/summarize"
)

// sweepInterval is deliberately slower than the fetch cadence; retention
// has nothing to gain from running every cycle.
const sweepInterval = 24 * time.Hour

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := connectStore(ctx, cfg)
	if err != nil {
		logger.Error("store unavailable", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := seed(ctx, st, cfg); err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}

	// Crash recovery: rows stuck mid-summarization become retryable.
	if n, err := st.ResetProcessingSummaries(ctx); err != nil {
		logger.Warn("startup recovery failed", "error", err)
	} else if n > 0 {
		logger.Warn("startup recovery reset stuck summaries", "count", n)
	}

	summarizer, err := summarize.New(cfg)
	if err != nil {
		logger.Error("summarizer init failed", "error", err)
		os.Exit(1)
	}
	logger.Info("summarizer ready", "backend", summarizer.Name())

	claimer := dedup.NewClaimer(st, cfg.RetentionWindow)
	pipe := pipeline.New(
		st,
		feeds.NewFetcher(cfg.FeedTimeout),
		scraper.NewExtractor(cfg.ScrapeTimeout),
		summarizer,
		claimer,
		pipeline.Options{
			Concurrency:    cfg.Concurrency,
			ScrapeTimeout:  cfg.ScrapeTimeout,
			LLMTimeout:     cfg.LLMTimeout,
			CycleDeadline:  cfg.CycleDeadline,
			BackfillWindow: cfg.BackfillWindow,
			IngestWindow:   cfg.RetentionWindow,
		},
	)
	sweeper := retention.NewSweeper(st, cfg.RetentionWindow)

	ingest := scheduler.New(cfg.FetchInterval, func(ctx context.Context) {
		if _, err := pipe.Run(ctx); err != nil {
			logger.Error("ingestion cycle failed", "error", err)
		}
	})
	sweep := scheduler.New(sweepInterval, func(ctx context.Context) {
		if _, err := sweeper.Sweep(ctx); err != nil {
			logger.Error("retention sweep failed", "error", err)
		}
	})

	if cfg.EnableMonitoring {
		go startMonitoringServer(cfg.MonitoringPort, st)
	}

	ingest.Start(ctx)
	sweep.Start(ctx)
	logger.Info("secwire started", "interval", cfg.FetchInterval, "retention", cfg.RetentionWindow)

	<-ctx.Done()
	logger.Info("shutting down")
	ingest.Stop()
	sweep.Stop()
}

func connectStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var st *store.Postgres
	err := retry.Do(ctx, retry.Config{MaxAttempts: 5, Delay: 3 * time.Second, Backoff: true}, func() error {
		var err error
		st, err = store.NewPostgres(cfg.DatabaseURL)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// seed populates categories and sources on first run. Both paths are
// idempotent; admin edits to existing rows are never overwritten.
func seed(ctx context.Context, st store.Store, cfg *config.Config) error {
	categories := make([]store.Category, 0, len(categorize.SeedCategories))
	for i, c := range categorize.SeedCategories {
		categories = append(categories, store.Category{
			Slug:     c.Slug,
			Name:     c.Name,
			Color:    c.Color,
			Priority: i,
			Visible:  true,
		})
	}
	if err := st.SeedCategories(ctx, categories); err != nil {
		return err
	}

	sources, err := feeds.LoadSeed(cfg.FeedsConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("no feeds config found, skipping source seed", "path", cfg.FeedsConfigPath)
			return nil
		}
		return err
	}
	return st.SeedSources(ctx, sources)
}

func startMonitoringServer(port string, st store.Store) {
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		healthHandler(w, r, st)
	})
	http.HandleFunc("/metrics", metricsHandler)

	logger.Info("monitoring server listening", "port", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		logger.Error("monitoring server error", "error", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request, st store.Store) {
	stats := metrics.Global.Snapshot()

	status := "ok"
	if !metrics.Global.Healthy() {
		status = "error"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	counts, err := st.CountByStatus(r.Context())
	if err != nil {
		counts = nil
	}

	response := map[string]interface{}{
		"status":                status,
		"last_successful_cycle": stats["last_successful_cycle"],
		"cycles_completed":      stats["cycles_completed"],
		"cycles_skipped":        stats["cycles_skipped"],
		"articles_added":        stats["articles_added"],
		"duplicates_filtered":   stats["duplicates_filtered"],
		"extraction_failures":   stats["extraction_failures"],
		"summary_failures":      stats["summary_failures"],
		"articles_by_status":    counts,
		"last_error":            stats["last_error"],
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metrics.Global.Snapshot())
}
