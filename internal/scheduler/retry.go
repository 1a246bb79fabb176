package scheduler

import (
	"context"
	"time"
)

// RetryPolicy retries a failed call up to Retries extra times.
// Delay(i) is the wait after the i-th failure, counting from 0.
type RetryPolicy struct {
	Retries int
	Delay   func(attempt int) time.Duration
}

// ExponentialBackoff waits base·2^attempt, capped at max.
func ExponentialBackoff(retries int, base, max time.Duration) RetryPolicy {
	return RetryPolicy{
		Retries: retries,
		Delay: func(attempt int) time.Duration {
			if attempt > 30 {
				return max
			}
			d := base * time.Duration(1<<uint(attempt))
			if d > max || d <= 0 {
				return max
			}
			return d
		},
	}
}

// FixedDelay waits d between every attempt.
func FixedDelay(retries int, d time.Duration) RetryPolicy {
	return RetryPolicy{
		Retries: retries,
		Delay:   func(int) time.Duration { return d },
	}
}

// Do calls fn until it succeeds, retries run out, ctx ends or stop reports true.
// It returns fn's last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error, stop func() bool) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if attempt >= p.Retries || (stop != nil && stop()) {
			return err
		}
		var wait time.Duration
		if p.Delay != nil {
			wait = p.Delay(attempt)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		if stop != nil && stop() {
			return err
		}
	}
}
