package llm

import (
	"context"
	"sync"
	"time"
)

// rateLimitPoll is how often an exhausted caller re-checks the bucket.
const rateLimitPoll = 100 * time.Millisecond

// RateLimitedProvider bounds completions to a requests-per-minute budget
// using a token bucket. A full bucket allows short bursts up to the rpm.
type RateLimitedProvider struct {
	provider Provider

	mu        sync.Mutex
	capacity  int
	available int
	refilled  time.Time
}

// NewRateLimitedProvider wraps provider so that at most rpm completions
// start per minute.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	return &RateLimitedProvider{
		provider:  provider,
		capacity:  rpm,
		available: rpm,
		refilled:  time.Now(),
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	return r.provider.Complete(ctx, req)
}

// acquire blocks until a token is available or the context ends.
func (r *RateLimitedProvider) acquire(ctx context.Context) error {
	for {
		if r.takeToken() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rateLimitPoll):
		}
	}
}

func (r *RateLimitedProvider) takeToken() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	earned := int(now.Sub(r.refilled).Seconds() * float64(r.capacity) / 60.0)
	if earned > 0 {
		r.available = min(r.available+earned, r.capacity)
		r.refilled = now
	}

	if r.available == 0 {
		return false
	}
	r.available--
	return true
}
