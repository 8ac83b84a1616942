package classifier

import (
	"context"
	"time"
)

const (
	baseDelay = 500 * time.Millisecond
	maxDelay  = 10 * time.Second
)

// CalculateBackoff returns baseDelay * 2^retry capped at maxDelay.
// A negative retry count returns baseDelay.
func CalculateBackoff(retry int) time.Duration {
	if retry < 0 {
		return baseDelay
	}
	// 2^30 * baseDelay is already far past maxDelay
	if retry > 30 {
		return maxDelay
	}
	d := baseDelay * time.Duration(1<<retry)
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
