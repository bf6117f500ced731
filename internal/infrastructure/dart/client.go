package dart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"FinanceCollector/internal/domain"
	"FinanceCollector/internal/ports"
	"FinanceCollector/internal/retry"
)

const (
	defaultBaseURL = "https://opendart.fss.or.kr/api"

	statusOK        = "000"
	statusNoData    = "013"
	statusRateLimit = "020"

	consolidated = "CFS"
	separate     = "OFS"
)

// Client is the OpenDART filing provider.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	policy  retry.Policy
	logger  *slog.Logger

	mu        sync.Mutex
	corpCodes map[string]string
}

var (
	_ ports.FilingProvider = (*Client)(nil)
	_ ports.Preparer       = (*Client)(nil)
)

// Option customizes the client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithHTTPClient replaces the default client with its per-call timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRateLimit caps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithRetryPolicy sets how throttled calls are retried.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a reusable OpenDART client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		policy:  retry.DefaultPolicy(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type statementResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	List    []statementRow `json:"list"`
}

type statementRow struct {
	StatementDiv string `json:"sj_div"`
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_nm"`
	Current      string `json:"thstrm_amount"`
	CurrentAdded string `json:"thstrm_add_amount"`
	Prior        string `json:"frmtrm_amount"`
	PriorQuarter string `json:"frmtrm_q_amount"`
	PriorAdded   string `json:"frmtrm_add_amount"`
	PriorPrior   string `json:"bfefrmtrm_amount"`
}

// Filing returns the line items of one report, consolidated statements first.
func (c *Client) Filing(ctx context.Context, securityID string, year int, period domain.ReportPeriod) ([]domain.LineItem, error) {
	corpCode, err := c.corpCode(ctx, securityID)
	if err != nil {
		return nil, err
	}

	for _, div := range []string{consolidated, separate} {
		rows, err := retry.Do(ctx, c.policy, func(ctx context.Context) ([]statementRow, error) {
			return c.statement(ctx, corpCode, year, period, div)
		})
		if errors.Is(err, domain.ErrFilingNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}

		items := make([]domain.LineItem, 0, len(rows))
		for _, row := range rows {
			items = append(items, row.lineItem(period))
		}
		c.logger.Debug("filing fetched", "security", securityID, "year", year, "period", period.Name(), "fs_div", div, "items", len(items))
		return items, nil
	}

	return nil, domain.ErrFilingNotFound
}

func (c *Client) statement(ctx context.Context, corpCode string, year int, period domain.ReportPeriod, div string) ([]statementRow, error) {
	query := url.Values{}
	query.Set("crtfc_key", c.apiKey)
	query.Set("corp_code", corpCode)
	query.Set("bsns_year", strconv.Itoa(year))
	query.Set("reprt_code", period.Code())
	query.Set("fs_div", div)

	resp, err := c.get(ctx, "/fnlttSinglAcntAll.json", query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload statementResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode statement: %w", err)
	}

	switch payload.Status {
	case statusOK:
		return payload.List, nil
	case statusNoData:
		return nil, domain.ErrFilingNotFound
	case statusRateLimit:
		return nil, &retry.ThrottleError{Service: "opendart", Err: errors.New(payload.Message)}
	default:
		return nil, fmt.Errorf("opendart status %s: %s", payload.Status, payload.Message)
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		_ = resp.Body.Close()
		return nil, &retry.ThrottleError{Service: "opendart", RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, body)
	}

	return resp, nil
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
