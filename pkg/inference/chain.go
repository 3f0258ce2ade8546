package inference

import (
	"context"
	"log/slog"
)

// Chain tries multiple providers in order until one succeeds. The binary
// uses it to fall back from the configured backend to a secondary
// OpenAI-compatible endpoint.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a provider chain.
// At least one provider is required.
func NewChain(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "inference.chain"),
	}, nil
}

// try calls fn on each provider until one succeeds or ctx ends.
func try[T any](ctx context.Context, c *Chain, op string, fn func(Provider) (T, error)) (T, error) {
	var zero T
	var errs []error

	for i, p := range c.providers {
		v, err := fn(p)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider succeeded", "op", op, "provider_index", i)
			}
			return v, nil
		}

		errs = append(errs, err)
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		c.logger.Warn("provider failed, trying next", "op", op, "provider_index", i, "error", err)
	}
	return zero, &ChainError{Errors: errs}
}

// Chat tries each provider until one succeeds.
func (c *Chain) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return try(ctx, c, "chat", func(p Provider) (*ChatResponse, error) {
		return p.Chat(ctx, req)
	})
}

// Stream tries each provider until one opens a stream. Failures after the
// first chunk are not retried.
func (c *Chain) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	return try(ctx, c, "stream", func(p Provider) (Stream, error) {
		return p.Stream(ctx, req)
	})
}

// Health returns an error only if every provider is unhealthy.
func (c *Chain) Health(ctx context.Context) error {
	var healthy int
	var lastErr error

	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			lastErr = err
		} else {
			healthy++
		}
	}

	if healthy == 0 {
		return WrapError("chain", lastErr)
	}
	c.logger.Debug("health check complete", "healthy", healthy, "total", len(c.providers))
	return nil
}

// Close closes all providers.
func (c *Chain) Close() error {
	var lastErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Providers returns the list of providers in the chain.
func (c *Chain) Providers() []Provider {
	return c.providers
}

// Verify Chain implements Provider at compile time.
var _ Provider = (*Chain)(nil)
