package pipeline

import (
	"math/rand/v2"
	"time"

	"github.com/dgallion1/bookfix/internal/config"
)

// RetryPolicy bounds the retries of retryable service errors.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// RetryPolicyFromConfig reads MAX_RETRIES, BACKOFF_BASE and BACKOFF_MAX.
func RetryPolicyFromConfig(cfg config.Config) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BackoffBase,
		MaxDelay:   cfg.BackoffMax,
	}
}

// Backoff returns the wait before retry n (0-indexed): BaseDelay doubled per
// attempt plus up to 50% jitter, never above MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	for i := 0; i < attempt && base < p.MaxDelay; i++ {
		base *= 2
	}
	if base > p.MaxDelay {
		base = p.MaxDelay
	}
	d := base
	if half := int64(base) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
