package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-refresh/internal/observability"
)

var (
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrBadRequest      = errors.New("bad request")
	ErrCircuitOpen     = errors.New("circuit breaker open")
)

// Config is the per-API client configuration.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	Breaker        BreakerConfig
}

// BreakerConfig maps onto gobreaker.Settings. The breaker opens after
// FailureThreshold consecutive failures.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 100 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 2 * time.Second
	}
	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = 1
	}
	if c.Breaker.Timeout <= 0 {
		c.Breaker.Timeout = 30 * time.Second
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	return c
}

// transport performs GET requests against one Open-Meteo API with retry,
// exponential backoff with jitter and a circuit breaker.
type transport struct {
	api     string
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	cfg     Config
	logger  *zap.Logger
}

func newTransport(api string, cfg Config, logger *zap.Logger) *transport {
	cfg = cfg.withDefaults()
	logger = observability.OrNop(logger).With(zap.String("api", api))

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        api,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// A rejected request says nothing about upstream health.
			return err == nil || errors.Is(err, ErrBadRequest)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.CircuitBreakerTransitionsTotal.WithLabelValues(name, from.String(), to.String()).Inc()
			logger.Warn("circuit breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &transport{api: api, http: httpClient, breaker: breaker, cfg: cfg, logger: logger}
}

// get issues GET path with params and decodes the JSON body into out.
func (t *transport) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	var lastErr error

	for attempt := 0; attempt < t.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			observability.ForecastAPIRetriesTotal.WithLabelValues(t.api).Inc()
			delay := t.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := t.execute(ctx, path, params)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("parse %s response: %w", t.api, err)
			}
			return nil
		}

		lastErr = err
		if !isRetryable(ctx, err) {
			return err
		}
		t.logger.Debug("retrying request", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func (t *transport) execute(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	result, err := t.breaker.Execute(func() (interface{}, error) {
		return t.call(ctx, path, params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.ForecastAPICallsTotal.WithLabelValues(t.api, "circuit_open").Inc()
			return nil, fmt.Errorf("%w: %s: %v", ErrCircuitOpen, t.api, err)
		}
		return nil, err
	}
	return result.([]byte), nil
}

func (t *transport) call(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	start := time.Now()

	req := t.http.R().SetContext(ctx).SetQueryParams(params)
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.SetHeader("X-Correlation-ID", corrID)
	}

	resp, err := req.Get(path)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.ForecastAPICallsTotal.WithLabelValues(t.api, "error").Inc()
		observability.ForecastAPIDuration.WithLabelValues(t.api, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode())
	observability.ForecastAPICallsTotal.WithLabelValues(t.api, status).Inc()
	observability.ForecastAPIDuration.WithLabelValues(t.api, status).Observe(duration)

	if err := handleErrorResponse(resp.StatusCode(), resp.Body()); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func (t *transport) calculateBackoff(attempt int) time.Duration {
	delay := float64(t.cfg.RetryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(t.cfg.RetryMaxDelay) {
		delay = float64(t.cfg.RetryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// isRetryable retries rate limits, 5xx and transport timeouts, but never
// once the caller's context is done or the breaker is open.
func isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrBadRequest) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	return CategorizeError(err) == ErrorCategoryTimeout || CategorizeError(err) == ErrorCategoryNetwork
}

// apiError is the Open-Meteo error body: {"error": true, "reason": "..."}.
type apiError struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

func handleErrorResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	reason := "HTTP " + strconv.Itoa(statusCode)
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Reason != "" {
		reason = reason + ": " + apiErr.Reason
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, reason)
	case statusCode >= 400 && statusCode < 500:
		return fmt.Errorf("%w: %s", ErrBadRequest, reason)
	default:
		return fmt.Errorf("%w: %s", ErrUpstreamFailure, reason)
	}
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
