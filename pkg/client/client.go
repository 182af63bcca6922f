// Package client provides the HTTP client for the register-number listing API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/regnum-scraper/pkg/records"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for page requests.
var (
	pageRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regnum_page_requests_total",
		Help: "Total page requests by outcome status",
	}, []string{"status"})

	pageRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "regnum_page_request_duration_seconds",
		Help:    "Page request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	pageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regnum_page_errors_total",
		Help: "Total failed page requests by error class",
	}, []string{"class"})
)

// DefaultBaseURL is the listing endpoint.
const DefaultBaseURL = "https://api.avtopro.az/api/register_numbers"

// DefaultPageSize is the paginate query value.
const DefaultPageSize = 30

// DefaultHeaders are sent with every request; the API only answers requests
// that look like they come from its own web front-end.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":     "application/json",
		"Origin":     "https://www.avtopro.az",
		"Referer":    "https://www.avtopro.az/",
		"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
	}
}

// Page is one decoded page of the listing.
type Page struct {
	Success bool     `json:"success"`
	Data    PageData `json:"data"`
}

// PageData carries the items and the paginator metadata.
type PageData struct {
	Items       []records.Item `json:"data"`
	CurrentPage int            `json:"current_page"`
	LastPage    int            `json:"last_page"`
	PerPage     json.Number    `json:"per_page"`
	Total       json.Number    `json:"total"`
}

// Client fetches listing pages. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the listing endpoint, without query string.
	BaseURL string

	// PageSize is sent as the paginate parameter.
	PageSize int

	// Headers are set on every request.
	Headers map[string]string

	// Timeout bounds a whole request including the body read.
	Timeout time.Duration
}

// DefaultConfig returns the configuration used by the CLI.
func DefaultConfig() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		PageSize: DefaultPageSize,
		Headers:  DefaultHeaders(),
		Timeout:  30 * time.Second,
	}
}

// New creates a client. The underlying http.Client is shared by all callers
// until Close.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be > 0 (got %d)", cfg.PageSize)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "client").Logger(),
	}, nil
}

// FetchPage issues a single GET for the given page. Any failure is logged and
// returned as an *APIError; there are no retries.
func (c *Client) FetchPage(ctx context.Context, page int) (*Page, error) {
	start := time.Now()
	defer func() {
		pageRequestDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := c.newRequest(ctx, page)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Int("page", page).
		Str("url", req.URL.String()).
		Msg("Requesting page")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(&APIError{Page: page, ErrorClass: ErrorClassNetwork, Err: err}, "network_error")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(&APIError{
			Page:       page,
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Err:        ErrUnexpectedStatus,
		}, strconv.Itoa(resp.StatusCode))
	}

	var p Page
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, c.fail(&APIError{
			Page:       page,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Err:        err,
		}, "decode_error")
	}

	pageRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Info().
		Int("page", page).
		Int("records", len(p.Data.Items)).
		Bool("success", p.Success).
		Msg("Fetched page")

	return &p, nil
}

func (c *Client) newRequest(ctx context.Context, page int) (*http.Request, error) {
	q := url.Values{}
	q.Set("paginate", strconv.Itoa(c.config.PageSize))
	q.Set("number", "")
	q.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// fail records metrics and the diagnostic line for a dropped page.
func (c *Client) fail(apiErr *APIError, status string) error {
	pageRequestsTotal.WithLabelValues(status).Inc()
	pageErrorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()

	ev := c.logger.Warn().
		Int("page", apiErr.Page).
		Str("error_class", string(apiErr.ErrorClass))
	if apiErr.StatusCode != 0 {
		ev = ev.Int("status", apiErr.StatusCode)
	}
	ev.Err(apiErr.Err).Msg("Failed to fetch page")

	return apiErr
}

// Close releases idle connections held by the shared transport.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
