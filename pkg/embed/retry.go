package embed

import (
	"context"
	"errors"
	"time"
)

// retryBackoff is the pause before the second attempt; it doubles after
// each further failure.
var retryBackoff = 200 * time.Millisecond

// retryWithContext calls fn up to maxTries times while it fails with a
// temporary *ProviderError. Other errors and context cancellation end the
// loop immediately. If maxTries <= 0, it defaults to 1.
func retryWithContext(ctx context.Context, maxTries int, fn func(context.Context) error) error {
	if maxTries <= 0 {
		maxTries = 1
	}

	wait := retryBackoff
	var lastErr error
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var perr *ProviderError
		if !errors.As(err, &perr) || !perr.Temporary() {
			return err
		}
		if i < maxTries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
	}
	return lastErr
}
