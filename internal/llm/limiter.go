package llm

import "context"

// ConcurrencyLimitedProvider wraps a Provider with a semaphore so that at
// most maxConcurrent completions run at once. One instance is shared between
// the ingestion workers (metadata extraction) and the query path (answer
// generation) so neither can starve the other past the provider's limits.
type ConcurrencyLimitedProvider struct {
	provider Provider
	sem      chan struct{}
}

// NewConcurrencyLimitedProvider wraps the given provider with a shared
// concurrency limit. maxConcurrent values below 1 are treated as 1.
func NewConcurrencyLimitedProvider(provider Provider, maxConcurrent int) Provider {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &ConcurrencyLimitedProvider{
		provider: provider,
		sem:      make(chan struct{}, maxConcurrent),
	}
}

func (c *ConcurrencyLimitedProvider) Name() string {
	return c.provider.Name()
}

func (c *ConcurrencyLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	return c.provider.Complete(ctx, req)
}
