package portal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"FinanceCollector/internal/domain"
	"FinanceCollector/internal/ports"
)

const (
	defaultBaseURL   = "https://finance.naver.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Scraper reads best-effort figures from the finance portal's item pages.
type Scraper struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

var _ ports.PortalScraper = (*Scraper)(nil)

// NewScraper wires an HTTP client; a nil client gets a 10s timeout.
func NewScraper(baseURL string, client *http.Client, rps float64, logger *slog.Logger) *Scraper {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Scraper{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: defaultUserAgent,
		client:    client,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// Scrape fetches the main, investor-flow and daily price pages. Only a failed
// main page is an error; anything the pages do not carry stays unknown.
func (s *Scraper) Scrape(ctx context.Context, securityID string) (domain.PortalSnapshot, error) {
	query := url.Values{"code": {securityID}}.Encode()

	main, err := s.fetchDocument(ctx, s.baseURL+"/item/main.naver?"+query)
	if err != nil {
		return domain.PortalSnapshot{}, fmt.Errorf("portal main page %s: %w", securityID, err)
	}
	snapshot := parseMainPage(main)

	if flows, err := s.fetchDocument(ctx, s.baseURL+"/item/frgn.naver?"+query); err != nil {
		s.logger.Debug("investor flows unavailable", "security", securityID, "error", err)
	} else {
		parseFlowsPage(flows, &snapshot)
	}

	priceQuery := url.Values{"code": {securityID}, "page": {"1"}}.Encode()
	if prices, err := s.fetchDocument(ctx, s.baseURL+"/item/sise_day.naver?"+priceQuery); err != nil {
		s.logger.Debug("daily prices unavailable", "security", securityID, "error", err)
	} else {
		parseDailyPricesPage(prices, &snapshot)
	}

	return snapshot, nil
}

func (s *Scraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal returned %s", resp.Status)
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}
