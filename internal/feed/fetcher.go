package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperjump/feedsearch/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrPageNotFound is returned when a page does not exist. Harvesting treats it as
// the one-past-the-end page, not as a failure.
var ErrPageNotFound = errors.New("feed page not found")

// maxPageBytes bounds a single page body.
const maxPageBytes = 32 << 20

// Fetcher retrieves the raw payload of a 1-based feed page.
type Fetcher interface {
	Fetch(ctx context.Context, page int) ([]byte, error)
}

// HTTPFetcherConfig configures an HTTPFetcher.
type HTTPFetcherConfig struct {
	// BaseURL is the page URL without the page number, e.g. https://host/feed/?paged=
	BaseURL string
	// Timeout per request (default 30s).
	Timeout time.Duration
	// MaxRetries is the number of extra attempts for a page after a retryable failure.
	MaxRetries int
	// RetryBackoff is the initial wait between attempts (default 500ms).
	RetryBackoff time.Duration
	// RequestsPerSecond throttles requests; 0 means unlimited.
	RequestsPerSecond float64
	UserAgent         string
}

// HTTPFetcher fetches feed pages over HTTP.
type HTTPFetcher struct {
	client       *http.Client
	baseURL      string
	maxRetries   int
	retryBackoff time.Duration
	limiter      *rate.Limiter
	userAgent    string
	logger       *zap.Logger
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithFetcherLogger sets a logger for retry diagnostics.
func WithFetcherLogger(l *zap.Logger) FetcherOption {
	return func(f *HTTPFetcher) { f.logger = l }
}

// NewHTTPFetcher creates a fetcher for cfg.BaseURL.
func NewHTTPFetcher(cfg HTTPFetcherConfig, opts ...FetcherOption) (*HTTPFetcher, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("feed base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	f := &HTTPFetcher{
		client:       &http.Client{Timeout: cfg.Timeout},
		baseURL:      cfg.BaseURL,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		userAgent:    cfg.UserAgent,
		logger:       zap.NewNop(),
	}
	if cfg.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// PageURL returns the URL of the given page.
func (f *HTTPFetcher) PageURL(page int) string {
	return f.baseURL + strconv.Itoa(page)
}

// Fetch returns the body of the page. A 404 yields ErrPageNotFound; other failures
// are *models.TransportError. Connection errors, 429, and 5xx are retried up to
// MaxRetries times with exponential backoff; 404 and other 4xx are not.
func (f *HTTPFetcher) Fetch(ctx context.Context, page int) ([]byte, error) {
	url := f.PageURL(page)
	var body []byte
	op := func() error {
		b, err := f.fetchOnce(ctx, url)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.retryBackoff
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(f.maxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		f.logger.Debug("feed page fetch failed, retrying",
			zap.Int("page", page), zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, retry, notify); err != nil {
		return nil, err
	}
	return body, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		terr := &models.TransportError{Op: http.MethodGet, URL: url, Err: err}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(terr)
		}
		return nil, terr
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, backoff.Permanent(ErrPageNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		terr := &models.TransportError{Op: http.MethodGet, URL: url, StatusCode: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, terr
		}
		return nil, backoff.Permanent(terr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, &models.TransportError{Op: http.MethodGet, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}
