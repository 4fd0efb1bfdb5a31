package providers

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/nexus/internal/retry"
)

// BaseProvider holds shared retry configuration for LLM providers.
type BaseProvider struct {
	name       string
	maxRetries int
	retryDelay time.Duration
}

// NewBaseProvider creates a base provider with sane defaults.
func NewBaseProvider(name string, maxRetries int, retryDelay time.Duration) BaseProvider {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return BaseProvider{
		name:       name,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Retry executes op with linear backoff if isRetryable returns true. A
// non-retryable error short-circuits the remaining attempts by wrapping it
// as retry.Permanent.
func (b *BaseProvider) Retry(ctx context.Context, isRetryable func(error) bool, op func() error) error {
	if op == nil {
		return nil
	}
	result := retry.Do(ctx, retry.Linear(b.maxRetries, b.retryDelay), func() error {
		err := op()
		if err != nil && isRetryable != nil && !isRetryable(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if result.Err == nil {
		return nil
	}
	var permanent *retry.PermanentError
	if errors.As(result.Err, &permanent) {
		return permanent.Unwrap()
	}
	return result.Err
}
