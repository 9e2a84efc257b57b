// Package retry implements the hand-rolled exponential backoff loop used
// to retry transient network and indexer-divergence failures, in place of
// a dedicated backoff dependency (see DESIGN.md).
package retry

import (
	"context"
	"time"

	"github.com/oracle-keeper/validator/pkg/apperrors"
)

// WithBackoff calls fn repeatedly until it succeeds, returns a
// non-retryable error, ctx is cancelled, or maxElapsed has passed since the
// first attempt. Delay doubles after each attempt starting at 1s, capped
// at 30s.
func WithBackoff(ctx context.Context, maxElapsed time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	delay := time.Second
	const maxDelay = 30 * time.Second

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !apperrors.Retryable(err) {
			return err
		}
		if time.Since(start) >= maxElapsed {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
