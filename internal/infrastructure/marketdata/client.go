package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"FinanceCollector/internal/domain"
	"FinanceCollector/internal/ports"
	"FinanceCollector/internal/retry"
)

// Client talks to the market-data REST service for listings and quotes.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
}

var _ ports.UniverseSource = (*Client)(nil)
var _ ports.MarketProvider = (*Client)(nil)

// NewClient creates a reusable HTTP client limited to rps requests per second.
func NewClient(endpoint, apiKey string, timeout time.Duration, rps float64) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// LatestTradingDay returns the most recent trading day on or before the given time.
func (c *Client) LatestTradingDay(ctx context.Context, before time.Time) (time.Time, error) {
	var resp struct {
		Date string `json:"date"`
	}

	query := url.Values{"before": {domain.Day(before)}}
	if err := c.get(ctx, "/trading-days/latest", query, &resp); err != nil {
		return time.Time{}, err
	}

	day, err := time.ParseInLocation(domain.DayLayout, resp.Date, before.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("parse trading day %q: %w", resp.Date, err)
	}
	return day, nil
}

type listingPayload struct {
	Code          string              `json:"code"`
	Name          string              `json:"name"`
	Market        string              `json:"market"`
	Sector        string              `json:"sector"`
	MarketCap     decimal.NullDecimal `json:"marketCap"`
	PER           decimal.NullDecimal `json:"per"`
	PBR           decimal.NullDecimal `json:"pbr"`
	EPS           decimal.NullDecimal `json:"eps"`
	BPS           decimal.NullDecimal `json:"bps"`
	DividendYield decimal.NullDecimal `json:"dividendYield"`
}

// Listings returns the universe of a market on day.
func (c *Client) Listings(ctx context.Context, market domain.Market, day time.Time) ([]domain.Listing, error) {
	var resp struct {
		Listings []listingPayload `json:"listings"`
	}

	query := url.Values{"market": {string(market)}, "date": {domain.Day(day)}}
	if err := c.get(ctx, "/listings", query, &resp); err != nil {
		return nil, err
	}

	listings := make([]domain.Listing, 0, len(resp.Listings))
	for _, l := range resp.Listings {
		code := strings.TrimSpace(l.Code)
		if code == "" {
			continue
		}
		m := domain.Market(strings.ToUpper(l.Market))
		if m == "" {
			m = market
		}
		listings = append(listings, domain.Listing{
			Security:  domain.Security{ID: code, Name: strings.TrimSpace(l.Name), Market: m},
			Sector:    strings.TrimSpace(l.Sector),
			MarketCap: l.MarketCap,
			Fundamentals: domain.Fundamentals{
				PER:           l.PER,
				PBR:           l.PBR,
				EPS:           l.EPS,
				BPS:           l.BPS,
				DividendYield: l.DividendYield,
			},
		})
	}
	return listings, nil
}

// Quote returns price and fundamentals. A security without data yields domain.ErrNotFound.
func (c *Client) Quote(ctx context.Context, securityID string, day time.Time) (domain.Quote, error) {
	var resp struct {
		Price         decimal.NullDecimal `json:"price"`
		PrevPrice     decimal.NullDecimal `json:"prevPrice"`
		High52w       decimal.NullDecimal `json:"high52w"`
		Low52w        decimal.NullDecimal `json:"low52w"`
		PER           decimal.NullDecimal `json:"per"`
		PBR           decimal.NullDecimal `json:"pbr"`
		EPS           decimal.NullDecimal `json:"eps"`
		BPS           decimal.NullDecimal `json:"bps"`
		DividendYield decimal.NullDecimal `json:"dividendYield"`
	}

	query := url.Values{"date": {domain.Day(day)}}
	if err := c.get(ctx, "/quotes/"+url.PathEscape(securityID), query, &resp); err != nil {
		return domain.Quote{}, err
	}

	return domain.Quote{
		CurrentPrice: resp.Price,
		PrevPrice:    resp.PrevPrice,
		High52w:      resp.High52w,
		Low52w:       resp.Low52w,
		Fundamentals: domain.Fundamentals{
			PER:           resp.PER,
			PBR:           resp.PBR,
			EPS:           resp.EPS,
			BPS:           resp.BPS,
			DividendYield: resp.DividendYield,
		},
	}, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	target := c.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return &retry.ThrottleError{Service: "marketdata"}
	case resp.StatusCode != http.StatusOK:
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
