package errors

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig controls the generic bounded-retry helper. The spec-mandated
// retry loops in the rate-limit ledger (§4.2) and the agent supervisor
// (§4.6, fixed at 3 attempts) use neither this helper nor IsTransient —
// their counts and delays are dictated by the spec, not left to a default
// backoff curve.
type RetryConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// DefaultRetryConfig mirrors the teacher's default: 3 attempts, 1s base,
// 30s cap, 25% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.25,
	}
}

// Retry runs fn up to cfg.MaxAttempts times, sleeping an exponentially
// increasing, jittered delay between attempts, stopping early if ctx is
// done or fn returns a non-transient error.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		delay := calculateBackoff(cfg, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func calculateBackoff(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
			break
		}
	}
	if cfg.JitterFactor > 0 {
		jitter := float64(delay) * cfg.JitterFactor * (rand.Float64()*2 - 1)
		delay += time.Duration(jitter)
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}
