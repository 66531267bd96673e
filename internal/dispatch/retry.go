package dispatch

import (
	"context"
	"errors"
	"math"
	"net"
	"time"

	"github.com/user/agentd/pkg/llm"
)

// RetryPolicy controls how failed runs are retried with exponential backoff.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns 3 attempts, 1s initial delay, 2x multiplier,
// 30s max delay.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// ShouldRetry reports whether the error is worth another attempt.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt > p.MaxAttempts {
		return false
	}
	return isRetryable(err)
}

// isRetryable classifies errors by type rather than message text.
// Backend overload and transient network failures are retryable; a model
// nobody supports never will be. A corrupted stream gets a fresh attempt
// since the next request opens a new connection.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var te *llm.TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	var ume *llm.UnsupportedModelError
	if errors.As(err, &ume) {
		return false
	}
	var pe *llm.ProtocolError
	if errors.As(err, &pe) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// NextDelay returns the backoff delay for the given attempt (1-indexed),
// InitialDelay * Multiplier^(attempt-1) capped at MaxDelay.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Execute runs fn up to MaxAttempts times with backoff between attempts.
// Backoff sleeps are interruptible by ctx.
func (p *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.ShouldRetry(err, attempt) {
			return err
		}
		if attempt < p.MaxAttempts {
			select {
			case <-time.After(p.NextDelay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
