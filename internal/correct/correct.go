// Package correct talks to the external text-correction service.
package correct

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/bookfix/internal/config"
)

// Service rewrites a chunk of marked-up text.
type Service interface {
	Correct(ctx context.Context, text string) (string, error)
}

// ErrSuspiciousOutput is returned when the service answers with an empty or
// truncated text.
var ErrSuspiciousOutput = errors.New("suspicious correction output")

// RetryableError indicates a transient failure that can be retried: rate
// limiting or a server-side error.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// RateLimited reports whether the service asked the caller to slow down.
func (e *RetryableError) RateLimited() bool {
	return e.StatusCode == 429
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// ClientConfig holds the settings shared by the service clients.
type ClientConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	Temperature    float64
	Timeout        time.Duration
	MinLengthRatio float64
}

// NewService builds the configured provider client, wrapped with latency
// stats and, when CORRECTION_RPM is set, a client-side rate limiter.
func NewService(cfg config.Config, stats *LLMStats) (Service, error) {
	cc := ClientConfig{
		Model:          cfg.Model,
		MaxTokens:      cfg.MaxOutputTokens,
		Temperature:    cfg.Temperature,
		Timeout:        cfg.RequestTimeout,
		MinLengthRatio: cfg.MinLengthRatio,
	}

	var svc Service
	switch cfg.Provider {
	case "openai":
		cc.APIKey = cfg.OpenAIAPIKey
		cc.BaseURL = cfg.OpenAIBaseURL
		svc = NewOpenAIClient(cc)
	case "anthropic":
		cc.APIKey = cfg.AnthropicAPIKey
		svc = NewAnthropicClient(cc)
	default:
		return nil, fmt.Errorf("%w: unknown CORRECTION_PROVIDER %q", config.ErrInvalidConfig, cfg.Provider)
	}

	if stats != nil {
		svc = WithStats(svc, stats)
	}
	if cfg.RequestsPerMinute > 0 {
		svc = NewRateLimited(svc, cfg.RequestsPerMinute)
	}
	return svc, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
