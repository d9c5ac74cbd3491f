// Package kma fetches surface-observation text feeds from the KMA API hub.
package kma

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bizscope/weather-collector/internal/config"
	"github.com/bizscope/weather-collector/internal/domain"
	"github.com/bizscope/weather-collector/internal/observability"
)

// The API hub rejects requests without a realistic browser User-Agent.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Client fetches KMA text feeds with a bounded retry budget and a fixed
// delay between attempts.
type Client struct {
	httpClient  *http.Client
	dailyURL    string
	stationURL  string
	authKey     string
	maxAttempts int
	backoff     time.Duration
	clock       clockwork.Clock
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates a KMA API hub client from config.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		dailyURL:    cfg.KMABaseURL,
		stationURL:  cfg.KMAStationURL,
		authKey:     cfg.KMAAuthKey,
		maxAttempts: cfg.FetchMaxAttempts,
		backoff:     cfg.FetchBackoff,
		clock:       clockwork.NewRealClock(),
		metrics:     metrics,
		logger:      logger,
	}
}

// DailySummaries fetches the daily-summary feed for the inclusive date
// range tm1..tm2 (YYYYMMDD) and station code ("0" = all stations), without
// the comment header.
func (c *Client) DailySummaries(ctx context.Context, tm1, tm2, stn string) (string, error) {
	params := url.Values{
		"tm1":     {tm1},
		"tm2":     {tm2},
		"stn":     {stn},
		"help":    {"0"},
		"authKey": {c.authKey},
	}
	return c.fetch(ctx, "weather", c.dailyURL, params)
}

// RawWindow fetches the daily-summary feed for a timestamp window
// (YYYYMMDDHHmm) with the comment header present (help=1); the parser
// strips it. Used for the hourly publish-as-is job.
func (c *Client) RawWindow(ctx context.Context, tm1, tm2, stn string) (string, error) {
	params := url.Values{
		"tm1":     {tm1},
		"tm2":     {tm2},
		"stn":     {stn},
		"help":    {"1"},
		"authKey": {c.authKey},
	}
	return c.fetch(ctx, "weather", c.dailyURL, params)
}

// StationInfo fetches surface-station metadata effective at tm
// (YYYYMMDDHHmm).
func (c *Client) StationInfo(ctx context.Context, tm, stn string) (string, error) {
	params := url.Values{
		"inf":     {"SFC"},
		"tm":      {tm},
		"stn":     {stn},
		"help":    {"0"},
		"authKey": {c.authKey},
	}
	return c.fetch(ctx, "stations", c.stationURL, params)
}

// fetch issues one GET per attempt, sleeping the fixed backoff between
// attempts (not after the last). Any non-2xx status or network error is
// retryable; exhausting the budget yields a definitive *domain.FetchError
// so callers never see a partial body.
func (c *Client) fetch(ctx context.Context, source, endpoint string, params url.Values) (string, error) {
	start := c.clock.Now()
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		attempts = attempt
		body, err := c.doRequest(ctx, endpoint, params)
		if err == nil {
			c.metrics.FetchRequests.WithLabelValues(source, "success").Inc()
			c.metrics.FetchDuration.WithLabelValues(source).Observe(c.clock.Since(start).Seconds())
			return body, nil
		}

		lastErr = err
		c.logger.Warn("fetch attempt failed",
			"source", source,
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"error", err,
		)

		if attempt == c.maxAttempts {
			break
		}
		c.metrics.FetchRetries.WithLabelValues(source).Inc()
		if !c.sleep(ctx) {
			lastErr = ctx.Err()
			break
		}
	}

	c.metrics.FetchRequests.WithLabelValues(source, "error").Inc()
	c.metrics.FetchDuration.WithLabelValues(source).Observe(c.clock.Since(start).Seconds())
	return "", &domain.FetchError{Source: source, Attempts: attempts, Last: lastErr}
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// sleep waits the fixed backoff, returning false if the context ends first.
func (c *Client) sleep(ctx context.Context) bool {
	if c.backoff <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(c.backoff):
		return true
	}
}
