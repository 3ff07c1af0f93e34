package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultCallTimeout    = 90 * time.Second
)

// RetryChatter wraps a Chatter with a per-call timeout and bounded
// exponential backoff. Retry policy lives here, outside the queue's state
// machine.
type RetryChatter struct {
	inner          Chatter
	maxAttempts    int
	initialBackoff time.Duration
	callTimeout    time.Duration
	logger         *slog.Logger
}

// WithRetry decorates c. Zero values pick the defaults (3 attempts, 500ms
// initial backoff, 90s per-call timeout).
func WithRetry(c Chatter, maxAttempts int, initialBackoff, callTimeout time.Duration) *RetryChatter {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if initialBackoff <= 0 {
		initialBackoff = defaultInitialBackoff
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &RetryChatter{
		inner:          c,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		callTimeout:    callTimeout,
		logger:         slog.Default(),
	}
}

// Chat forwards to the wrapped provider, retrying transient failures.
func (r *RetryChatter) Chat(ctx context.Context, messages []Message, jsonSchema *Schema) (string, error) {
	var lastErr error
	for attempt := range r.maxAttempts {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		raw, err := r.inner.Chat(callCtx, messages, jsonSchema)
		cancel()
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < r.maxAttempts-1 {
			backoff := time.Duration(float64(r.initialBackoff) * math.Pow(2, float64(attempt)))
			r.logger.Warn("llm call failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", fmt.Errorf("llm call failed after %d attempts: %w", r.maxAttempts, lastErr)
}
