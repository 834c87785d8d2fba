// Package resilience provides retry and circuit-breaker primitives for
// the operations that can transiently fail: fetching model files and
// bringing up a recognition engine.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"
)

// RetryConfig controls attempt count and backoff growth.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64 // fraction of the backoff added as random jitter, 0 disables
}

// DefaultRetryConfig is tuned for large-file downloads: few attempts,
// generous backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.25,
	}
}

// Retry runs fn until it succeeds, the attempts are exhausted, the
// error is classified non-retryable, or ctx is cancelled. A nil
// retryable treats every error as retryable. The last error is
// returned on exhaustion.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error, retryable func(error) bool) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(Backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// Backoff returns the sleep duration for the given zero-based attempt:
// exponential growth capped at MaxBackoff, plus optional jitter.
func Backoff(attempt int, cfg RetryConfig) time.Duration {
	d := time.Duration(float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt)))
	if d > cfg.MaxBackoff || d <= 0 {
		d = cfg.MaxBackoff
	}
	if cfg.Jitter > 0 {
		d += time.Duration(rand.Float64() * cfg.Jitter * float64(d))
	}
	return d
}

// IsTransientNetworkError reports whether the error looks like a
// temporary network condition worth retrying.
func IsTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"unexpected EOF",
		"network is unreachable",
		"no route to host",
		"temporary failure",
		"i/o timeout",
		"deadline exceeded",
		"503",
		"502",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
