package directory

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"strings"
	"time"
)

// RetryConfig controls the exponential backoff behavior for RetryWithBackoff.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns the backend defaults: 3 attempts, 300ms→600ms→1.2s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 300 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryWithBackoff retries fn with exponential backoff and ±25% jitter.
// Non-transient errors (backend business errors) fail immediately; context
// cancellation between attempts is respected.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isTransientError(lastErr) {
			return lastErr
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		jittered := applyJitter(delay)
		if jittered > cfg.MaxDelay {
			jittered = cfg.MaxDelay
		}

		timer := time.NewTimer(jittered)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}

// applyJitter adds ±25% randomization to prevent synchronized retries.
func applyJitter(d time.Duration) time.Duration {
	factor := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(d) * factor)
}

// isTransientError reports whether a retry could plausibly succeed:
// timeouts, connection resets, EOF, TLS handshake failures. A 4xx/5xx
// business response from the backend is not transient.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "backend http") {
		return false
	}
	return strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "tls") ||
		strings.Contains(lower, "eof")
}
