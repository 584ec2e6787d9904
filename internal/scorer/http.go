// Package scorer provides adapters from external model surfaces to the
// game.Scorer capability: a remote HTTP inference endpoint and a sandboxed
// JavaScript scorer. Retry and timeout policy lives here, never in the
// approximation core.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPConfig holds configuration for the remote scorer client.
type HTTPConfig struct {
	// URL is the scoring endpoint. Required.
	URL string

	// Token is a bearer token sent with every request. Optional; usually
	// resolved through a KeyringStore rather than set directly.
	Token string

	// MaxRetries is the maximum number of retry attempts for retryable
	// errors. Defaults to 3 if zero.
	MaxRetries int

	// BaseRetryDelay is the initial delay before the first retry.
	// Defaults to 1 second if zero.
	BaseRetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff delay.
	// Defaults to 10 seconds if zero.
	MaxRetryDelay time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for
	// testing). Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// HTTPScorer scores token batches against a remote inference endpoint.
//
// Wire format: POST {"inputs": [["tok", ...], ...]} and the endpoint
// answers {"scores": [0.42, ...]} with one score per input, same order.
// Scores are decoded as decimals so that endpoints emitting quoted or
// high-precision numbers survive the trip.
type HTTPScorer struct {
	config HTTPConfig
	http   *http.Client
}

// NewHTTPScorer creates a remote scorer client.
func NewHTTPScorer(cfg HTTPConfig) (*HTTPScorer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("scorer: endpoint URL is required")
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseRetryDelay == 0 {
		cfg.BaseRetryDelay = time.Second
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPScorer{config: cfg, http: httpClient}, nil
}

type scoreRequest struct {
	Inputs [][]string `json:"inputs"`
}

type scoreResponse struct {
	Scores []decimal.Decimal `json:"scores"`
}

// Score implements game.Scorer with retry on retryable transport errors.
func (s *HTTPScorer) Score(ctx context.Context, inputs [][]string) ([]float64, error) {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.retryDelay(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		scores, err := s.score(ctx, inputs)
		if err != nil {
			lastErr = err
			if httpErr, ok := err.(*HTTPError); ok && httpErr.IsRetryable() {
				continue
			}
			return nil, err
		}
		return scores, nil
	}
	return nil, fmt.Errorf("scorer: max retries exceeded: %w", lastErr)
}

func (s *HTTPScorer) score(ctx context.Context, inputs [][]string) ([]float64, error) {
	body, err := json.Marshal(scoreRequest{Inputs: inputs})
	if err != nil {
		return nil, fmt.Errorf("scorer: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("scorer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &HTTPError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &HTTPError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode, Body: truncate(string(respBody), 256)}
	}

	var parsed scoreResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("scorer: invalid response JSON: %w", err)
	}
	if len(parsed.Scores) != len(inputs) {
		return nil, fmt.Errorf("scorer: endpoint returned %d scores for %d inputs", len(parsed.Scores), len(inputs))
	}

	scores := make([]float64, len(parsed.Scores))
	for i, d := range parsed.Scores {
		scores[i] = d.InexactFloat64()
	}
	return scores, nil
}

func (s *HTTPScorer) retryDelay(attempt int) time.Duration {
	delay := s.config.BaseRetryDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > s.config.MaxRetryDelay {
		delay = s.config.MaxRetryDelay
	}
	return delay
}

// HTTPError is a transport or HTTP-status failure from the scoring
// endpoint.
type HTTPError struct {
	Status int
	Body   string
	Err    error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scorer: request failed: %v", e.Err)
	}
	return fmt.Sprintf("scorer: endpoint returned HTTP %d: %s", e.Status, e.Body)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// IsRetryable reports whether the request can be retried: network
// failures, rate limiting, and server-side errors.
func (e *HTTPError) IsRetryable() bool {
	if e.Err != nil {
		return true
	}
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
