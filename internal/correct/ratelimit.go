package correct

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to the wrapped service.
type RateLimited struct {
	next    Service
	limiter *rate.Limiter
}

// NewRateLimited allows at most rpm calls per minute, with a burst of one.
func NewRateLimited(svc Service, rpm int) *RateLimited {
	return &RateLimited{
		next:    svc,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

func (r *RateLimited) Correct(ctx context.Context, text string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Correct(ctx, text)
}
