package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"enrichment-service/internal/common/errors"
	"enrichment-service/internal/common/logging"
	"enrichment-service/internal/common/utils"
	"enrichment-service/internal/enrichment"
)

// HTTPConfig configures the HTTP provider client.
type HTTPConfig struct {
	Name    string            `json:"name"`
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Timeout time.Duration     `json:"timeout"`
	Auth    *AuthConfig       `json:"auth"`

	// MaxRetries is the number of fetch attempts including the first.
	MaxRetries int `json:"max_retries"`

	// RequestsPerSecond bounds outbound calls; 0 disables rate limiting.
	RequestsPerSecond int `json:"requests_per_second"`
	BurstSize         int `json:"burst_size"`
}

// AuthConfig supports the common provider authentication methods.
type AuthConfig struct {
	Type         string `json:"type"` // basic, bearer, api_key
	Username     string `json:"username"`
	Password     string `json:"password"`
	Token        string `json:"token"`
	APIKey       string `json:"api_key"`
	APIKeyHeader string `json:"api_key_header"`
}

// HTTPClient fetches provider payloads over HTTP. Requests are rate limited,
// retried with exponential backoff and guarded by a circuit breaker so a
// struggling provider fails fast instead of piling up timeouts.
type HTTPClient struct {
	config  *HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// NewHTTPClient creates an HTTP provider client.
func NewHTTPClient(config *HTTPConfig) (*HTTPClient, error) {
	if config == nil {
		return nil, errors.ConfigError("provider config is required")
	}
	if config.URL == "" {
		return nil, errors.ConfigError("provider URL is required")
	}

	if config.Name == "" {
		config.Name = "default"
	}
	if config.Method == "" {
		config.Method = http.MethodPost
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := config.BurstSize
		if burst <= 0 {
			burst = config.RequestsPerSecond
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    fmt.Sprintf("provider-%s", config.Name),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &HTTPClient{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: limiter,
		breaker: breaker,
		logger: logging.GetGlobalLogger().WithFields(
			logging.String("component", "provider"),
			logging.String("provider", config.Name)),
	}, nil
}

func (c *HTTPClient) Name() string {
	return c.config.Name
}

// Fetch posts the request's identity to the provider endpoint and decodes
// the JSON payload.
func (c *HTTPClient) Fetch(ctx context.Context, req enrichment.Request) (map[string]interface{}, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.ProviderError("rate limit wait cancelled", err)
		}
	}

	var payload map[string]interface{}

	retryConfig := utils.RetryConfig{
		MaxAttempts:   c.config.MaxRetries,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
		RetryableErrors: func(err error) bool {
			// Client-side rejections and an open breaker do not heal
			// within a retry window.
			return !errors.IsType(err, errors.ErrTypeValidation) &&
				err != gobreaker.ErrOpenState
		},
	}

	err := utils.RetryWithBackoff(ctx, retryConfig, func() error {
		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doFetch(ctx, req)
		})
		if err != nil {
			return err
		}
		payload = result.(map[string]interface{})
		return nil
	})
	if err != nil {
		return nil, errors.ProviderError(
			fmt.Sprintf("fetch from %s failed", c.config.Name), err)
	}

	return payload, nil
}

func (c *HTTPClient) doFetch(ctx context.Context, req enrichment.Request) (map[string]interface{}, error) {
	body, err := json.Marshal(map[string]interface{}{
		"enrichment_type": req.EnrichmentType,
		"parameters":      req.Parameters,
		"tenant_id":       req.TenantID,
	})
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("failed to encode request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, c.config.Method, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("failed to build request: %v", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	c.applyAuth(httpReq)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("provider request completed",
		logging.Int("status", resp.StatusCode),
		logging.Duration("duration", time.Since(start)))

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		// 4xx responses will not change on retry.
		return nil, errors.ValidationError(fmt.Sprintf("provider rejected request with status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode provider payload: %w", err)
	}

	return payload, nil
}

func (c *HTTPClient) applyAuth(req *http.Request) {
	auth := c.config.Auth
	if auth == nil {
		return
	}

	switch auth.Type {
	case "basic":
		req.SetBasicAuth(auth.Username, auth.Password)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case "api_key":
		header := auth.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, auth.APIKey)
	}
}

var _ Client = (*HTTPClient)(nil)
