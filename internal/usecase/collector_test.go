package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinanceCollector/internal/domain"
	"FinanceCollector/internal/resolver"
)

type fakeUniverse struct {
	listings []domain.Listing
	day      time.Time
	dayErr   error
	err      error
	gotDay   time.Time
}

func (f *fakeUniverse) LatestTradingDay(context.Context, time.Time) (time.Time, error) {
	return f.day, f.dayErr
}

func (f *fakeUniverse) Listings(_ context.Context, _ domain.Market, day time.Time) ([]domain.Listing, error) {
	f.gotDay = day
	return f.listings, f.err
}

type fakeFilings struct {
	failing    map[string]bool
	absent     map[string]bool
	prepareErr error
	calls      atomic.Int64
}

func (f *fakeFilings) Prepare(context.Context) error { return f.prepareErr }

func (f *fakeFilings) Filing(_ context.Context, id string, _ int, period domain.ReportPeriod) ([]domain.LineItem, error) {
	f.calls.Add(1)
	if f.failing[id] {
		return nil, errors.New("connection reset by peer")
	}
	if f.absent[id] || period != domain.PeriodAnnual {
		return nil, domain.ErrFilingNotFound
	}
	return []domain.LineItem{{
		Tag:        "ifrs-full_Revenue",
		Section:    domain.SectionIncomeStatement,
		Current:    domain.KnownInt(300),
		Prior:      domain.PriorAmounts{Standard: domain.KnownInt(280)},
		PriorPrior: domain.KnownInt(250),
	}}, nil
}

type fakeMarket struct{}

func (fakeMarket) Quote(_ context.Context, id string, _ time.Time) (domain.Quote, error) {
	if id == "000003" {
		return domain.Quote{}, domain.ErrNotFound
	}
	return domain.Quote{CurrentPrice: domain.KnownInt(70000)}, nil
}

type fakePortal struct{ err error }

func (f fakePortal) Scrape(context.Context, string) (domain.PortalSnapshot, error) {
	if f.err != nil {
		return domain.PortalSnapshot{}, f.err
	}
	return domain.PortalSnapshot{Name: "portal name", Opinion: "매수"}, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]domain.FilingLineItems
	puts    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]domain.FilingLineItems{}}
}

func (m *memoryCache) key(id string, year int) string { return fmt.Sprintf("%s_%d", id, year) }

func (m *memoryCache) Get(_ context.Context, id string, year int) (domain.FilingLineItems, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, ok := m.entries[m.key(id, year)]
	if !ok {
		return domain.FilingLineItems{}, domain.ErrCacheMiss
	}
	return items, nil
}

func (m *memoryCache) Put(_ context.Context, id string, year int, items domain.FilingLineItems) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.entries[m.key(id, year)] = items
	return nil
}

func listings(n int) []domain.Listing {
	out := make([]domain.Listing, n)
	for i := range out {
		out[i] = domain.Listing{
			Security:  domain.Security{ID: fmt.Sprintf("%06d", i+1), Name: fmt.Sprintf("company %d", i+1), Market: domain.MarketKOSPI},
			Sector:    "반도체",
			MarketCap: domain.KnownInt(int64(1000 - i)),
			Fundamentals: domain.Fundamentals{
				PER: domain.KnownInt(int64(10 + i%2*10)),
				PBR: domain.KnownInt(1),
			},
		}
	}
	return out
}

func fixedNow() time.Time { return time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC) }

func TestCollectDropsFailingSecurities(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	filings := &fakeFilings{failing: map[string]bool{"000007": true, "000021": true, "000042": true}}
	universe := &fakeUniverse{listings: listings(50), day: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)}

	var progressMu sync.Mutex
	var last Progress
	collector := NewCollector(CollectorDeps{
		Universe: universe,
		Market:   fakeMarket{},
		Resolver: resolver.New(filings, nil, logger),
		Portal:   fakePortal{},
		Logger:   logger,
		Workers:  5,
		Now:      fixedNow,
		OnProgress: func(p Progress) {
			progressMu.Lock()
			last = p
			progressMu.Unlock()
		},
	})

	dataset, err := collector.Collect(context.Background(), Request{Market: domain.MarketKOSPI, FiscalYear: 2024})
	require.NoError(t, err)

	assert.Len(t, dataset.Rows, 47)
	assert.Equal(t, []string{"000007", "000021", "000042"}, dataset.Dropped)
	assert.Equal(t, 3, strings.Count(logs.String(), "security dropped"))
	assert.Equal(t, Progress{Done: 50, Total: 50, Dropped: 3}, last)
	assert.Equal(t, "2025-03-14", dataset.Day)
	assert.NotEmpty(t, dataset.RunID)

	for i := 1; i < len(dataset.Rows); i++ {
		assert.Less(t, dataset.Rows[i-1].Security.ID, dataset.Rows[i].Security.ID)
	}

	first := dataset.Rows[0]
	assert.Equal(t, "2024 annual", first.Items.DataBasis())
	assert.Equal(t, "7.14", first.Metrics.RevenueGrowth.Value.StringFixed(2))
	assert.Equal(t, "70000", first.Market.CurrentPrice.Decimal.String())
	assert.Equal(t, "15", first.Market.SectorAvgPER.Decimal.String())
	assert.Equal(t, "매수", first.Market.Opinion)
}

func TestCollectKeepsUnresolvedRow(t *testing.T) {
	filings := &fakeFilings{absent: map[string]bool{"000002": true}}
	collector := NewCollector(CollectorDeps{
		Universe: &fakeUniverse{listings: listings(3)},
		Market:   fakeMarket{},
		Resolver: resolver.New(filings, nil, quietLogger()),
		Portal:   fakePortal{err: errors.New("portal down")},
		Logger:   quietLogger(),
		Workers:  2,
		Now:      fixedNow,
	})

	dataset, err := collector.Collect(context.Background(), Request{FiscalYear: 2024})
	require.NoError(t, err)
	require.Len(t, dataset.Rows, 3)
	assert.Empty(t, dataset.Dropped)

	unresolved := dataset.Rows[1]
	assert.Equal(t, "000002", unresolved.Security.ID)
	assert.Equal(t, domain.UnresolvedLabel, unresolved.Items.DataBasis())
	assert.False(t, unresolved.Metrics.RevenueGrowth.Available())

	notQuoted := dataset.Rows[2]
	assert.False(t, notQuoted.Market.CurrentPrice.Valid)
	assert.Empty(t, notQuoted.Market.Opinion)
}

func TestCollectUsesTodaysCache(t *testing.T) {
	filings := &fakeFilings{absent: map[string]bool{"000002": true}}
	cache := newMemoryCache()
	collector := NewCollector(CollectorDeps{
		Universe: &fakeUniverse{listings: listings(2)},
		Resolver: resolver.New(filings, nil, quietLogger()),
		Cache:    cache,
		Logger:   quietLogger(),
		Now:      fixedNow,
	})

	_, err := collector.Collect(context.Background(), Request{FiscalYear: 2024})
	require.NoError(t, err)
	firstRun := filings.calls.Load()
	assert.Equal(t, int64(1+8), firstRun)
	assert.Equal(t, 1, cache.puts, "unresolved filings are not cached")

	dataset, err := collector.Collect(context.Background(), Request{FiscalYear: 2024})
	require.NoError(t, err)
	assert.Equal(t, firstRun+8, filings.calls.Load())
	assert.Equal(t, "2024 annual", dataset.Rows[0].Items.DataBasis())
}

func TestCollectTopByMarketCap(t *testing.T) {
	all := listings(5)
	all[0].MarketCap = decimal.NullDecimal{}
	universe := &fakeUniverse{listings: all}
	collector := NewCollector(CollectorDeps{
		Universe: universe,
		Resolver: resolver.New(&fakeFilings{}, nil, quietLogger()),
		Logger:   quietLogger(),
		Now:      fixedNow,
	})

	dataset, err := collector.Collect(context.Background(), Request{Count: 2, FiscalYear: 2024})
	require.NoError(t, err)
	require.Len(t, dataset.Rows, 2)
	assert.Equal(t, "000002", dataset.Rows[0].Security.ID)
	assert.Equal(t, "000003", dataset.Rows[1].Security.ID)
}

func TestCollectFallsBackToPreviousDay(t *testing.T) {
	universe := &fakeUniverse{listings: listings(1), dayErr: errors.New("holiday calendar unavailable")}
	collector := NewCollector(CollectorDeps{
		Universe: universe,
		Resolver: resolver.New(&fakeFilings{}, nil, quietLogger()),
		Logger:   quietLogger(),
		Now:      fixedNow,
	})

	dataset, err := collector.Collect(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", dataset.Day)
	assert.Equal(t, "2024 annual", dataset.Rows[0].Items.DataBasis())
}

func TestCollectUniverseFailureIsFatal(t *testing.T) {
	collector := NewCollector(CollectorDeps{
		Universe: &fakeUniverse{err: errors.New("listing API down")},
		Resolver: resolver.New(&fakeFilings{}, nil, quietLogger()),
		Logger:   quietLogger(),
		Now:      fixedNow,
	})

	_, err := collector.Collect(context.Background(), Request{Day: fixedNow()})
	assert.ErrorContains(t, err, "listing API down")

	collector = NewCollector(CollectorDeps{
		Universe: &fakeUniverse{},
		Resolver: resolver.New(&fakeFilings{}, nil, quietLogger()),
		Logger:   quietLogger(),
	})
	_, err = collector.Collect(context.Background(), Request{Day: fixedNow()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCollectFilingSourceFailureIsFatal(t *testing.T) {
	var logs bytes.Buffer
	filings := &fakeFilings{prepareErr: errors.New("opendart status 010: unregistered key")}
	collector := NewCollector(CollectorDeps{
		Universe: &fakeUniverse{listings: listings(10)},
		Resolver: resolver.New(filings, nil, quietLogger()),
		Logger:   slog.New(slog.NewTextHandler(&logs, nil)),
		Now:      fixedNow,
	})

	dataset, err := collector.Collect(context.Background(), Request{Day: fixedNow(), FiscalYear: 2024})
	require.Error(t, err)
	assert.ErrorContains(t, err, "status 010")
	assert.Empty(t, dataset.Rows)
	assert.Zero(t, filings.calls.Load())
	assert.NotContains(t, logs.String(), "security dropped")
}

type panickingResolver struct{}

func (panickingResolver) Resolve(_ context.Context, s domain.Security, _ int) (domain.FilingLineItems, error) {
	if s.ID == "000001" {
		panic("unexpected payload")
	}
	return domain.Unresolved(), nil
}

func TestCollectRecoversPanics(t *testing.T) {
	collector := NewCollector(CollectorDeps{
		Universe: &fakeUniverse{listings: listings(2)},
		Resolver: panickingResolver{},
		Logger:   quietLogger(),
		Now:      fixedNow,
	})

	dataset, err := collector.Collect(context.Background(), Request{FiscalYear: 2024})
	require.NoError(t, err)
	assert.Equal(t, []string{"000001"}, dataset.Dropped)
	assert.Len(t, dataset.Rows, 1)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
