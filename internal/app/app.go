package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"FinanceCollector/internal/canonical"
	"FinanceCollector/internal/config"
	"FinanceCollector/internal/domain"
	"FinanceCollector/internal/infrastructure/dart"
	"FinanceCollector/internal/infrastructure/export"
	"FinanceCollector/internal/infrastructure/llm"
	"FinanceCollector/internal/infrastructure/marketdata"
	"FinanceCollector/internal/infrastructure/portal"
	"FinanceCollector/internal/infrastructure/scheduler"
	"FinanceCollector/internal/infrastructure/storage"
	"FinanceCollector/internal/infrastructure/telegram"
	"FinanceCollector/internal/logging"
	"FinanceCollector/internal/ports"
	"FinanceCollector/internal/resolver"
	"FinanceCollector/internal/retry"
	"FinanceCollector/internal/usecase"
)

type pruner interface {
	Prune(ctx context.Context, retainDays int) (int, error)
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	collector *usecase.Collector
	analyst   *usecase.Analyst
	writer    ports.DatasetWriter
	notifier  ports.Notifier
	pruner    pruner
	now       func() time.Time
	closers   []func()
}

// New builds the adapters named by cfg and the use cases on top of them.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, logger: baseLogger.With("component", "app"), now: time.Now}

	filings := dart.NewClient(cfg.DART.APIKey,
		dart.WithBaseURL(cfg.DART.BaseURL),
		dart.WithHTTPClient(&http.Client{Timeout: cfg.DART.Timeout}),
		dart.WithRateLimit(cfg.DART.RateLimit, 1),
		dart.WithRetryPolicy(cfg.Retry.Policy()),
		dart.WithLogger(baseLogger.With("component", "dart")),
	)
	market := marketdata.NewClient(cfg.MarketData.Endpoint, cfg.MarketData.APIKey, cfg.MarketData.Timeout, cfg.MarketData.RateLimit)

	var scraper ports.PortalScraper
	if cfg.Portal.Enabled {
		scraper = portal.NewScraper(cfg.Portal.BaseURL, &http.Client{Timeout: cfg.Portal.Timeout},
			cfg.Portal.RateLimit, baseLogger.With("component", "portal"))
	}

	cache, err := a.buildCache(ctx, cfg.Cache)
	if err != nil {
		a.Close()
		return nil, err
	}

	res := resolver.New(filings, canonical.New(nil), baseLogger.With("component", "resolver"),
		resolver.WithLookback(cfg.Collector.Lookback))

	collectorLogger := baseLogger.With("component", "collector")
	a.collector = usecase.NewCollector(usecase.CollectorDeps{
		Universe:    market,
		Market:      market,
		Resolver:    res,
		Cache:       cache,
		Portal:      scraper,
		Logger:      collectorLogger,
		Workers:     cfg.Collector.Workers,
		CallTimeout: cfg.Collector.CallTimeout,
		OnProgress: func(p usecase.Progress) {
			collectorLogger.Debug("progress", "done", p.Done, "total", p.Total, "dropped", p.Dropped)
		},
	})

	a.writer, err = export.NewCSVWriter(cfg.Output.Path, cfg.Output.Encoding)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Gemini.Enabled {
		gen, err := llm.NewGeminiClient(ctx, cfg.Gemini, nil)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.analyst = usecase.NewAnalyst(gen, cfg.Retry.Policy(), cfg.Gemini.Rows, baseLogger.With("component", "analyst"))
	}

	tg := telegram.NewNotifier(cfg.Notifications.Telegram.APIURL, cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	if tg.Configured() {
		a.notifier = tg
	}

	return a, nil
}

func (a *Application) buildCache(ctx context.Context, cfg config.CacheConfig) (ports.FilingCache, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect cache database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		pg := storage.NewPostgresCache(pool, cfg.Table, nil)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.pruner = pg
		return pg, nil
	case "file":
		fc := storage.NewFileCache(cfg.Dir, nil)
		a.pruner = fc
		return fc, nil
	default:
		return nil, nil
	}
}

// Run performs one collection, or runs the daily schedule until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	if !a.cfg.Scheduler.Enabled {
		return a.RunOnce(ctx, a.now())
	}

	driver, err := scheduler.NewDailyScheduler(a.cfg.Scheduler.RunAt, a.cfg.Scheduler.Location())
	if err != nil {
		return err
	}
	sched := usecase.NewScheduler(driver, a.RunOnce, a.logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "run_at", a.cfg.Scheduler.RunAt, "next", driver.NextRun(a.now()))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// RunOnce collects, writes and reports a single dataset.
func (a *Application) RunOnce(ctx context.Context, trigger time.Time) error {
	started := a.now()

	if a.pruner != nil && a.cfg.Cache.RetainDays > 0 {
		if n, err := a.pruner.Prune(ctx, a.cfg.Cache.RetainDays); err != nil {
			a.logger.Warn("cache prune failed", "error", err)
		} else if n > 0 {
			a.logger.Info("cache pruned", "removed", n)
		}
	}

	dataset, err := a.collector.Collect(ctx, usecase.Request{
		Market:     a.cfg.Market(),
		Count:      a.cfg.Collector.Count,
		FiscalYear: a.cfg.Collector.FiscalYear,
	})
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	if err := a.writer.Write(ctx, dataset); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}

	var report string
	if a.analyst != nil {
		report, err = a.analyst.Analyze(ctx, dataset)
		if err != nil {
			var analysisErr *usecase.AnalysisError
			if !errors.As(err, &analysisErr) {
				return fmt.Errorf("analyze: %w", err)
			}
			a.logger.Warn("analysis unavailable", "reason", err.Error(), "error", analysisErr.Err)
			report = err.Error()
		}
	}

	a.notify(ctx, summary(dataset, a.now().Sub(started), report))
	a.logger.Info("run completed", "trigger", trigger, "run_id", dataset.RunID)
	return nil
}

func (a *Application) notify(ctx context.Context, message string) {
	if a.notifier == nil {
		return
	}
	policy := a.cfg.Retry.Policy()
	policy.HonorSuggested = true
	err := retry.Run(ctx, policy, func(ctx context.Context) error {
		return a.notifier.Publish(ctx, message)
	})
	if err != nil {
		a.logger.Warn("notification failed", "error", err)
	}
}

func summary(dataset domain.Dataset, took time.Duration, report string) string {
	msg := fmt.Sprintf("Collection %s (%s): %d rows, %d dropped, took %s",
		dataset.Day, dataset.RunID, len(dataset.Rows), len(dataset.Dropped), took.Round(time.Second))
	if len(dataset.Dropped) > 0 {
		msg += fmt.Sprintf("\nDropped: %v", dataset.Dropped)
	}
	if report != "" {
		msg += "\n\n" + report
	}
	return msg
}

// Close releases database pools and other held resources.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
