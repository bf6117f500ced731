package ports

import (
	"context"
	"time"

	"FinanceCollector/internal/domain"
)

// UniverseSource lists the securities tradable on a given day.
type UniverseSource interface {
	LatestTradingDay(ctx context.Context, before time.Time) (time.Time, error)
	Listings(ctx context.Context, market domain.Market, day time.Time) ([]domain.Listing, error)
}

// MarketProvider returns prices and fundamentals; domain.ErrNotFound is not a failure.
type MarketProvider interface {
	Quote(ctx context.Context, securityID string, day time.Time) (domain.Quote, error)
}

// FilingProvider returns the reported line items of one filing.
// A missing filing is reported as domain.ErrFilingNotFound or an empty slice.
type FilingProvider interface {
	Filing(ctx context.Context, securityID string, year int, period domain.ReportPeriod) ([]domain.LineItem, error)
}

// PortalScraper scrapes best-effort figures from the finance portal.
type PortalScraper interface {
	Scrape(ctx context.Context, securityID string) (domain.PortalSnapshot, error)
}

// Preparer loads reference data a run cannot proceed without.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// FilingResolver picks the most recent usable filing for a security.
type FilingResolver interface {
	Resolve(ctx context.Context, security domain.Security, year int) (domain.FilingLineItems, error)
}

// FilingCache stores resolved filings for the current calendar day.
// Get returns domain.ErrCacheMiss when no entry from today exists.
type FilingCache interface {
	Get(ctx context.Context, securityID string, year int) (domain.FilingLineItems, error)
	Put(ctx context.Context, securityID string, year int, items domain.FilingLineItems) error
}

// TextGenerator sends a prompt to a generative-text service.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DatasetWriter emits the collected dataset to its consumer.
type DatasetWriter interface {
	Write(ctx context.Context, dataset domain.Dataset) error
}

// Notifier streams run summaries to Telegram or other channels.
type Notifier interface {
	Publish(ctx context.Context, message string) error
}

// Scheduler controls when collections execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
