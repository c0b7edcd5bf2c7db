// Package statcast downloads pitch-level Statcast data from Baseball Savant.
package statcast

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pable/go-rollcorr/internal/metrics"
)

// DefaultBaseURL is the Baseball Savant host.
const DefaultBaseURL = "https://baseballsavant.mlb.com"

// Client fetches Statcast CSV exports for date ranges.
type Client struct {
	baseURL      string
	http         *http.Client
	limiter      *rate.Limiter
	maxAttempts  int
	retryInitial time.Duration
	cache        Cache
	log          zerolog.Logger
	metrics      *metrics.Metrics
}

// ClientOptions configures a Client. Zero values fall back to defaults.
type ClientOptions struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	MaxAttempts    int
	RetryInitial   time.Duration
	Cache          Cache
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
}

// NewClient returns a rate-limited client with retries.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = 5 * time.Second
	}
	return &Client{
		baseURL:      opts.BaseURL,
		http:         &http.Client{Timeout: opts.Timeout},
		limiter:      rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		maxAttempts:  opts.MaxAttempts,
		retryInitial: opts.RetryInitial,
		cache:        opts.Cache,
		log:          opts.Logger,
		metrics:      opts.Metrics,
	}
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// searchURL builds the regular-season pitch-level CSV export URL for r.
func (c *Client) searchURL(r DateRange) string {
	q := url.Values{}
	q.Set("all", "true")
	q.Set("hfGT", "R|")
	q.Set("player_type", "batter")
	q.Set("game_date_gt", r.Start.Format(dateLayout))
	q.Set("game_date_lt", r.End.Format(dateLayout))
	q.Set("min_pitches", "0")
	q.Set("min_results", "0")
	q.Set("min_abs", "0")
	q.Set("group_by", "name")
	q.Set("sort_col", "pitches")
	q.Set("sort_order", "desc")
	q.Set("type", "details")
	return c.baseURL + "/statcast_search/csv?" + q.Encode()
}

// FetchRange returns the raw CSV body for r, from the cache when present.
// Transient failures are retried with exponential backoff; 4xx responses
// other than 429 fail immediately.
func (c *Client) FetchRange(ctx context.Context, r DateRange) ([]byte, error) {
	key := r.Key()
	if c.cache != nil {
		data, ok, err := c.cache.Get(key)
		if err != nil {
			c.log.Warn().Err(err).Str("range", key).Msg("cache read failed")
		} else if ok {
			c.metrics.FetchResult("cached")
			return data, nil
		}
	}

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		c.log.Debug().Str("range", r.String()).Int("attempt", attempt).Msg("fetching")
		b, err := c.get(ctx, c.searchURL(r))
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx)

	notify := func(err error, wait time.Duration) {
		c.metrics.FetchRetry()
		c.log.Warn().Err(err).Str("range", r.String()).Dur("retry_in", wait).Msg("fetch failed, retrying")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		c.metrics.FetchResult("error")
		return nil, fmt.Errorf("fetch %s after %d attempt(s): %w", r, attempt, err)
	}
	c.metrics.FetchResult("ok")

	if c.cache != nil {
		if err := c.cache.Put(key, body); err != nil {
			c.log.Warn().Err(err).Str("range", key).Msg("cache write failed")
		}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := &StatusError{StatusCode: resp.StatusCode}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	// Savant answers overloaded queries with an HTML error page and status 200.
	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("<")) {
		return nil, fmt.Errorf("unexpected HTML response")
	}
	return body, nil
}
