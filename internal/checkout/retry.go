package checkout

import (
	"context"
	"time"
)

// withRetry runs fn up to attempts times with linear backoff. Compensation
// goes through this: a reservation left un-released leaks stock, so we keep
// trying until the context gives up.
func withRetry(ctx context.Context, attempts int, base time.Duration, fn func(context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(base * time.Duration(i+1)):
		}
	}
	return err
}
