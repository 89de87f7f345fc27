package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedProvider paces requests with a token bucket so batch runs stay
// under provider QPS limits.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

func WithRateLimit(inner Provider, qps float64, burst int) *RateLimitedProvider {
	if qps <= 0 {
		qps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(qps), burst),
	}
}

func (r *RateLimitedProvider) Name() string  { return r.inner.Name() }
func (r *RateLimitedProvider) Model() string { return r.inner.Model() }

func (r *RateLimitedProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm: rate limit wait: %w", err)
	}
	return r.inner.Complete(ctx, req)
}
