package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"FinanceCollector/internal/domain"
	"FinanceCollector/internal/metrics"
	"FinanceCollector/internal/ports"
)

const defaultWorkers = 5

// CollectorDeps wires the driven adapters into the collection workflow.
type CollectorDeps struct {
	Universe ports.UniverseSource
	Market   ports.MarketProvider
	Resolver ports.FilingResolver
	Cache    ports.FilingCache
	Portal   ports.PortalScraper
	Logger   *slog.Logger

	Workers     int
	CallTimeout time.Duration
	Now         func() time.Time
	OnProgress  func(Progress)
}

// Request selects the universe slice to collect.
type Request struct {
	Market     domain.Market
	Count      int
	FiscalYear int
	Day        time.Time
}

// Progress is a snapshot of the shared run counter.
type Progress struct {
	Done    int
	Total   int
	Dropped int
}

// Collector fans securities out to a fixed worker pool and assembles the dataset.
type Collector struct {
	universe ports.UniverseSource
	market   ports.MarketProvider
	resolver ports.FilingResolver
	cache    ports.FilingCache
	portal   ports.PortalScraper
	logger   *slog.Logger

	workers     int
	callTimeout time.Duration
	now         func() time.Time
	onProgress  func(Progress)
}

// NewCollector constructs the orchestration component.
func NewCollector(deps CollectorDeps) *Collector {
	c := &Collector{
		universe:    deps.Universe,
		market:      deps.Market,
		resolver:    deps.Resolver,
		cache:       deps.Cache,
		portal:      deps.Portal,
		logger:      deps.Logger,
		workers:     deps.Workers,
		callTimeout: deps.CallTimeout,
		now:         deps.Now,
		onProgress:  deps.OnProgress,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.workers <= 0 {
		c.workers = defaultWorkers
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

type task struct {
	listing domain.Listing
	average domain.SectorAverage
}

type outcome struct {
	id     string
	result domain.CollectionResult
	err    error
}

// Collect runs one collection. Only universe acquisition and filing source
// preparation failures are returned; a security that fails is dropped from the
// dataset and logged.
func (c *Collector) Collect(ctx context.Context, req Request) (domain.Dataset, error) {
	if c.universe == nil || c.resolver == nil {
		return domain.Dataset{}, fmt.Errorf("collector misconfigured: universe and resolver are required")
	}

	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID)
	started := c.now()

	day := c.tradingDay(ctx, req.Day, logger)
	year := req.FiscalYear
	if year == 0 {
		year = started.Year() - 1
	}

	listings, err := c.universe.Listings(ctx, req.Market, day)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("list %s universe for %s: %w", req.Market, domain.Day(day), err)
	}
	if len(listings) == 0 {
		return domain.Dataset{}, fmt.Errorf("list %s universe for %s: %w", req.Market, domain.Day(day), domain.ErrNotFound)
	}

	if p, ok := c.resolver.(ports.Preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			return domain.Dataset{}, fmt.Errorf("prepare filing source: %w", err)
		}
	}

	averages := domain.SectorAverages(listings)
	targets := topByMarketCap(listings, req.Count)
	order := make([]string, len(targets))
	for i, l := range targets {
		order[i] = l.Security.ID
	}

	logger.Info("collection started", "market", req.Market, "day", domain.Day(day), "fiscal_year", year,
		"securities", len(targets), "workers", c.workers)

	tasks := make(chan task)
	outcomes := make(chan outcome, len(targets))
	progress := &progressCounter{total: len(targets), notify: c.onProgress}

	var wg sync.WaitGroup
	for w := 0; w < c.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				res, err := c.safeProcess(ctx, logger, t, year, day)
				progress.record(err != nil)
				outcomes <- outcome{id: t.listing.Security.ID, result: res, err: err}
			}
		}()
	}

	for _, l := range targets {
		tasks <- task{listing: l, average: averages[l.Sector]}
	}
	close(tasks)
	wg.Wait()
	close(outcomes)

	if err := ctx.Err(); err != nil {
		return domain.Dataset{}, fmt.Errorf("collection interrupted: %w", err)
	}

	dataset := domain.Dataset{RunID: runID, Day: domain.Day(day)}
	for o := range outcomes {
		if o.err != nil {
			logger.Warn("security dropped", "security", o.id, "error", o.err)
			dataset.Dropped = append(dataset.Dropped, o.id)
			continue
		}
		dataset.Rows = append(dataset.Rows, o.result)
	}
	dataset.SortBy(order)

	logger.Info("collection finished", "rows", len(dataset.Rows), "dropped", len(dataset.Dropped),
		"duration", c.now().Sub(started).Round(time.Millisecond))
	return dataset, nil
}

func (c *Collector) tradingDay(ctx context.Context, requested time.Time, logger *slog.Logger) time.Time {
	if !requested.IsZero() {
		return requested
	}
	now := c.now()
	day, err := c.universe.LatestTradingDay(ctx, now)
	if err == nil && !day.IsZero() {
		return day
	}
	fallback := now.AddDate(0, 0, -1)
	logger.Warn("latest trading day unavailable, using previous calendar day", "day", domain.Day(fallback), "error", err)
	return fallback
}

func topByMarketCap(listings []domain.Listing, count int) []domain.Listing {
	sorted := make([]domain.Listing, len(listings))
	copy(sorted, listings)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].MarketCap, sorted[j].MarketCap
		if a.Valid != b.Valid {
			return a.Valid
		}
		return a.Valid && a.Decimal.GreaterThan(b.Decimal)
	})
	if count > 0 && count < len(sorted) {
		sorted = sorted[:count]
	}
	return sorted
}

func (c *Collector) safeProcess(ctx context.Context, logger *slog.Logger, t task, year int, day time.Time) (res domain.CollectionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("security task panicked", "security", t.listing.Security.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return c.process(ctx, logger, t, year, day)
}

func (c *Collector) process(ctx context.Context, logger *slog.Logger, t task, year int, day time.Time) (domain.CollectionResult, error) {
	security := t.listing.Security
	logger = logger.With("security", security.ID)

	items, err := c.filing(ctx, security, year, logger)
	if err != nil {
		return domain.CollectionResult{}, err
	}

	var quote domain.Quote
	if c.market != nil {
		callCtx, cancel := c.callContext(ctx)
		quote, err = c.market.Quote(callCtx, security.ID, day)
		cancel()
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				logger.Debug("quote unavailable", "error", err)
			}
			quote = domain.Quote{}
		}
	}

	var portal domain.PortalSnapshot
	if c.portal != nil {
		callCtx, cancel := c.callContext(ctx)
		portal, err = c.portal.Scrape(callCtx, security.ID)
		cancel()
		if err != nil {
			logger.Debug("portal unavailable", "error", err)
			portal = domain.PortalSnapshot{}
		}
	}

	if security.Name == "" {
		security.Name = portal.Name
	}
	snapshot := domain.MergeSnapshot(t.listing, quote, portal, t.average)

	return domain.CollectionResult{
		Security: security,
		Items:    items,
		Market:   snapshot,
		Metrics:  metrics.Calculate(items, snapshot),
	}, nil
}

// filing reads today's cache entry or resolves and caches a fresh one.
// Unresolved filings are never cached.
func (c *Collector) filing(ctx context.Context, security domain.Security, year int, logger *slog.Logger) (domain.FilingLineItems, error) {
	if c.cache != nil {
		items, err := c.cache.Get(ctx, security.ID, year)
		if err == nil {
			logger.Debug("filing cache hit", "year", year)
			return items, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Warn("filing cache read failed", "error", err)
		}
	}

	items, err := c.resolver.Resolve(ctx, security, year)
	if err != nil {
		return domain.FilingLineItems{}, fmt.Errorf("resolve filing: %w", err)
	}

	if c.cache != nil && items.Resolved() {
		if err := c.cache.Put(ctx, security.ID, year, items); err != nil {
			logger.Warn("filing cache write failed", "error", err)
		}
	}
	return items, nil
}

func (c *Collector) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

type progressCounter struct {
	mu      sync.Mutex
	done    int
	dropped int
	total   int
	notify  func(Progress)
}

func (p *progressCounter) record(dropped bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if dropped {
		p.dropped++
	}
	if p.notify != nil {
		p.notify(Progress{Done: p.done, Total: p.total, Dropped: p.dropped})
	}
}
