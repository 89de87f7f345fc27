package llm

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

const (
	defaultRetryMax   = 10
	defaultRetryBase  = time.Second
	defaultRetryCeil  = 60 * time.Second
	maxBackoffShifted = 30
)

// RetryProvider wraps a Provider with exponential backoff and jitter.
// Any error from the inner provider is retried until the attempt budget
// runs out.
type RetryProvider struct {
	inner      Provider
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func WithRetry(inner Provider, maxRetries int) *RetryProvider {
	if maxRetries <= 0 {
		maxRetries = defaultRetryMax
	}
	return &RetryProvider{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  defaultRetryBase,
		maxDelay:   defaultRetryCeil,
		sleep:      sleepCtx,
	}
}

func (r *RetryProvider) Name() string  { return r.inner.Name() }
func (r *RetryProvider) Model() string { return r.inner.Model() }

func (r *RetryProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		resp, err := r.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == r.maxRetries {
			break
		}
		if err := r.sleep(ctx, r.delay(attempt)); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("llm: %s: request failed after %d attempts: %w",
		r.inner.Name(), r.maxRetries+1, lastErr)
}

func (r *RetryProvider) delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxBackoffShifted {
		attempt = maxBackoffShifted
	}
	delay := time.Duration(float64(r.baseDelay) * float64(uint64(1)<<uint(attempt)))

	// Jitter of up to +-25%.
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
