// Package sgis implements domain.Geocoder against the SGIS open API
// (Statistics Korea): token authentication plus WGS-84 reverse geocoding.
package sgis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/bizscope/weather-collector/internal/config"
	"github.com/bizscope/weather-collector/internal/domain"
	"github.com/bizscope/weather-collector/internal/observability"
)

// ErrAuthFailed marks authentication responses without a usable token.
var ErrAuthFailed = errors.New("sgis authentication failed")

// Client calls the SGIS auth and reverse-geocode endpoints. Lookups are
// rate-limited (the upstream limit is a hard constraint) and guarded by a
// circuit breaker so a dead upstream fails fast instead of being hammered
// once per station row.
type Client struct {
	consumerKey    string
	consumerSecret string
	addrType       int
	httpClient     *http.Client
	baseURL        string
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	metrics        *observability.Metrics
	logger         *slog.Logger

	mu          sync.Mutex
	accessToken string
}

// NewClient creates an SGIS client from config.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		consumerKey:    cfg.SGISConsumerKey,
		consumerSecret: cfg.SGISConsumerSecret,
		addrType:       cfg.SGISAddrType,
		httpClient: &http.Client{
			Timeout: cfg.SGISTimeout,
		},
		baseURL: cfg.SGISBaseURL,
		limiter: rate.NewLimiter(rate.Limit(cfg.SGISRateLimit), 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "sgis",
		}),
		metrics: metrics,
		logger:  logger,
	}
}

// Authenticate obtains a bearer token from the consumer key/secret and
// stores it for subsequent lookups.
func (c *Client) Authenticate(ctx context.Context) error {
	params := url.Values{
		"consumer_key":    {c.consumerKey},
		"consumer_secret": {c.consumerSecret},
	}

	body, err := c.get(ctx, c.baseURL+"/auth/authentication.json?"+params.Encode())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrAuthFailed, err)
	}
	if resp.Result.AccessToken == "" {
		return fmt.Errorf("%w: response carries no accessToken", ErrAuthFailed)
	}

	c.mu.Lock()
	c.accessToken = resp.Result.AccessToken
	c.mu.Unlock()
	return nil
}

// ReverseGeocode resolves lon/lat to an administrative address. A payload
// without a usable result yields a zero Address and a nil error: "no
// address found" is an expected outcome distinct from transport failure.
func (c *Client) ReverseGeocode(ctx context.Context, lon, lat float64) (domain.Address, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Address{}, err
	}

	token, err := c.token(ctx)
	if err != nil {
		return domain.Address{}, err
	}

	params := url.Values{
		"accessToken": {token},
		"x_coor":      {fmt.Sprintf("%f", lon)},
		"y_coor":      {fmt.Sprintf("%f", lat)},
		"addr_type":   {fmt.Sprintf("%d", c.addrType)},
	}

	start := time.Now()
	body, err := c.get(ctx, c.baseURL+"/addr/rgeocodewgs84.json?"+params.Encode())
	c.metrics.GeocodeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.Address{}, fmt.Errorf("reverse geocode: %w", err)
	}

	addr, ok := decodeAddress(body)
	if !ok {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		return domain.Address{}, nil
	}
	c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	return addr, nil
}

// token returns the stored bearer token, authenticating lazily on first use.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	tok := c.accessToken
	c.mu.Unlock()
	if tok != "" {
		return tok, nil
	}

	if err := c.Authenticate(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, nil
}

// get performs one GET through the circuit breaker, returning the body on
// any 2xx status.
func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, snippet)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// SGIS API response types.

type authResponse struct {
	Result struct {
		AccessToken string `json:"accessToken"`
	} `json:"result"`
}

type addressResult struct {
	SidoNm   string `json:"sido_nm"`
	SggNm    string `json:"sgg_nm"`
	EmdongNm string `json:"emdong_nm"`
	FullAddr string `json:"full_addr"`
}

// decodeAddress accepts both reverse-geocode shapes the upstream emits:
// result as a single object and result as a one-element list.
func decodeAddress(body []byte) (domain.Address, bool) {
	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Result) == 0 {
		return domain.Address{}, false
	}

	var single addressResult
	if err := json.Unmarshal(envelope.Result, &single); err == nil {
		return toAddress(single)
	}

	var list []addressResult
	if err := json.Unmarshal(envelope.Result, &list); err == nil && len(list) > 0 {
		return toAddress(list[0])
	}

	return domain.Address{}, false
}

func toAddress(r addressResult) (domain.Address, bool) {
	addr := domain.Address{
		Province:    r.SidoNm,
		District:    r.SggNm,
		Town:        r.EmdongNm,
		FullAddress: r.FullAddr,
	}
	return addr, !addr.IsZero()
}
