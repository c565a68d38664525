// Package retry implements backoff policies for transient remote failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Mode selects how delays grow between attempts.
type Mode string

const (
	Fixed       Mode = "fixed"
	Linear      Mode = "linear"
	Exponential Mode = "exponential"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction. The zero Policy never retries.
type Policy struct {
	Mode       Mode          // fixed|linear|exponential
	Initial    time.Duration // base delay
	Max        time.Duration // cap for growth
	MaxRetries int           // maximum retry attempts after the first failure
}

// DefaultPolicy returns the default policy (exponential, 500ms initial, 10s cap, 2 retries).
func DefaultPolicy() Policy {
	return Policy{Mode: Exponential, Initial: 500 * time.Millisecond, Max: 10 * time.Second, MaxRetries: 2}
}

// NewPolicy builds a policy from raw config fields. Zero durations and unknown
// modes fall back to defaults; a negative retry count is kept for Validate to reject.
func NewPolicy(mode Mode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	p.MaxRetries = maxRetries
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	switch mode {
	case Fixed, Linear, Exponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the backoff delay for the given retry attempt number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case Fixed:
		return p.Initial
	case Exponential:
		d := p.Initial
		for i := 1; i < retryCount && d < p.Max; i++ {
			d *= 2
		}
		return min(d, p.Max)
	default: // linear
		return min(time.Duration(retryCount)*p.Initial, p.Max)
	}
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if p.MaxRetries == 0 {
		return nil
	}
	switch p.Mode {
	case Fixed, Linear, Exponential:
	default:
		return fmt.Errorf("unknown backoff mode %q", p.Mode)
	}
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.Initial > p.Max {
		return fmt.Errorf("initial %s exceeds max %s", p.Initial, p.Max)
	}
	return nil
}

// Do calls op until it succeeds, the retries are used up, ctx is done, or
// retryable rejects the error. A nil retryable retries every error except
// context cancellation. onRetry, when set, is called before each wait.
// The last error is returned.
func (p Policy) Do(ctx context.Context, op func() error, retryable func(error) bool, onRetry func(attempt int, delay time.Duration, err error)) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || !shouldRetry(err, retryable) {
			return err
		}
		delay := p.Delay(attempt + 1)
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func shouldRetry(err error, retryable func(error) bool) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return retryable == nil || retryable(err)
}
