// Package seoul fetches Seoul open-data population feeds: living
// population by administrative dong and S-DoT floating-population sensor
// readings. Payloads are opaque JSON passed through to the event stream.
package seoul

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bizscope/weather-collector/internal/config"
	"github.com/bizscope/weather-collector/internal/domain"
	"github.com/bizscope/weather-collector/internal/observability"
)

// The open-data portal rejects requests without a realistic browser
// User-Agent, same as the weather API hub.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const livingPopulationService = "SPOP_LOCAL_RESD_DONG"
const sdotService = "IotVdata018"

// Client fetches the population JSON feeds with the same bounded-retry,
// fixed-backoff discipline as the weather client.
type Client struct {
	httpClient  *http.Client
	livingURL   string
	livingKey   string
	sdotURL     string
	sdotKey     string
	pageSize    int
	maxAttempts int
	backoff     time.Duration
	clock       clockwork.Clock
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates a population-feed client from config.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		livingURL:   cfg.SeoulPopulationURL,
		livingKey:   cfg.SeoulPopulationKey,
		sdotURL:     cfg.SdotPopulationURL,
		sdotKey:     cfg.SdotPopulationKey,
		pageSize:    cfg.PopulationPageSize,
		maxAttempts: cfg.FetchMaxAttempts,
		backoff:     cfg.FetchBackoff,
		clock:       clockwork.NewRealClock(),
		metrics:     metrics,
		logger:      logger,
	}
}

// Source is one population feed exposed to the collection pipeline.
type Source struct {
	name  string
	fetch func(ctx context.Context) ([]byte, error)
}

func (s Source) Name() string { return s.name }

func (s Source) Fetch(ctx context.Context) ([]byte, error) { return s.fetch(ctx) }

// Sources returns the feeds the config provides credentials for, in
// publish order.
func (c *Client) Sources() []Source {
	var out []Source
	if c.livingURL != "" && c.livingKey != "" {
		out = append(out, Source{name: "seoul-living", fetch: c.LivingPopulation})
	}
	if c.sdotURL != "" && c.sdotKey != "" {
		out = append(out, Source{name: "sdot-floating", fetch: c.FloatingPopulation})
	}
	return out
}

// LivingPopulation fetches the resident living-population feed by
// administrative dong. Credentials and paging ride in the query string.
func (c *Client) LivingPopulation(ctx context.Context) ([]byte, error) {
	params := url.Values{
		"key":        {c.livingKey},
		"type":       {"json"},
		"service":    {livingPopulationService},
		"startIndex": {"1"},
		"endIndex":   {strconv.Itoa(c.pageSize)},
	}
	return c.fetch(ctx, "seoul_population", c.livingURL+"?"+params.Encode())
}

// FloatingPopulation fetches the S-DoT sensor feed. This API takes the
// key, format, service, and paging window as path segments.
func (c *Client) FloatingPopulation(ctx context.Context) ([]byte, error) {
	full := fmt.Sprintf("%s/%s/json/%s/1/%d/",
		strings.TrimRight(c.sdotURL, "/"), c.sdotKey, sdotService, c.pageSize)
	return c.fetch(ctx, "sdot_population", full)
}

// fetch retries one GET up to the attempt budget with a fixed backoff in
// between, and only hands back payloads that are valid JSON: a truncated
// or HTML error body must never reach the event stream.
func (c *Client) fetch(ctx context.Context, source, fullURL string) ([]byte, error) {
	start := c.clock.Now()
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		attempts = attempt
		body, err := c.doRequest(ctx, fullURL)
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
	return nil, &domain.FetchError{Source: source, Attempts: attempts, Last: lastErr}
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return body, nil
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
