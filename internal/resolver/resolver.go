package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"FinanceCollector/internal/canonical"
	"FinanceCollector/internal/domain"
	"FinanceCollector/internal/ports"
)

// Resolver walks fiscal years and report periods until it finds a usable filing.
type Resolver struct {
	filings       ports.FilingProvider
	canonicalizer *canonical.Canonicalizer
	periods       []domain.ReportPeriod
	lookback      int
	logger        *slog.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithPeriods overrides the per-year period order.
func WithPeriods(periods ...domain.ReportPeriod) Option {
	return func(r *Resolver) {
		if len(periods) > 0 {
			r.periods = periods
		}
	}
}

// WithLookback sets how many fiscal years before the target are searched.
func WithLookback(years int) Option {
	return func(r *Resolver) {
		if years >= 0 {
			r.lookback = years
		}
	}
}

// New constructs a resolver with the target year and one year back.
func New(filings ports.FilingProvider, canonicalizer *canonical.Canonicalizer, logger *slog.Logger, opts ...Option) *Resolver {
	if canonicalizer == nil {
		canonicalizer = canonical.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		filings:       filings,
		canonicalizer: canonicalizer,
		periods:       domain.FallbackPeriods,
		lookback:      1,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	_ ports.FilingResolver = (*Resolver)(nil)
	_ ports.Preparer       = (*Resolver)(nil)
)

// Prepare readies the filing provider when it needs per-run reference data.
func (r *Resolver) Prepare(ctx context.Context) error {
	if p, ok := r.filings.(ports.Preparer); ok {
		return p.Prepare(ctx)
	}
	return nil
}

// Resolve returns the first usable filing, tagged with its year and period.
// Exhausting every pair is not an error: the result is domain.Unresolved().
// Provider failures other than an absent filing abort the search.
func (r *Resolver) Resolve(ctx context.Context, security domain.Security, year int) (domain.FilingLineItems, error) {
	for y := year; y >= year-r.lookback; y-- {
		for _, period := range r.periods {
			if err := ctx.Err(); err != nil {
				return domain.FilingLineItems{}, err
			}

			items, err := r.filings.Filing(ctx, security.ID, y, period)
			if errors.Is(err, domain.ErrFilingNotFound) || (err == nil && len(items) == 0) {
				r.logger.Debug("filing absent", "security", security.ID, "year", y, "period", period.Name())
				continue
			}
			if err != nil {
				return domain.FilingLineItems{}, fmt.Errorf("fetch filing %s %d/%s: %w", security.ID, y, period.Code(), err)
			}

			record := r.canonicalizer.Canonicalize(items)
			if !canonical.Usable(record) {
				r.logger.Debug("filing not usable", "security", security.ID, "year", y, "period", period.Name(), "items", len(items))
				continue
			}

			record.FiscalYear = y
			record.Period = period
			record.ReportLabel = domain.ReportLabel(y, period)
			return record, nil
		}
	}

	r.logger.Info("no usable filing", "security", security.ID, "year", year)
	return domain.Unresolved(), nil
}
