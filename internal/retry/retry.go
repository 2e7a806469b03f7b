// Package retry runs remote calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"
)

// ErrExhausted is wrapped together with the last error when every attempt
// failed transiently.
var ErrExhausted = errors.New("retries exhausted")

type Policy struct {
	// MaxAttempts is the total number of calls, including the first one.
	// Values below 1 mean a single attempt.
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxDelay caps a single backoff. Zero means no cap.
	MaxDelay time.Duration

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each backoff.
	OnRetry func(op string, attempt int, err error)
}

// Transient is implemented by errors that know whether they are worth retrying.
type Transient interface {
	Transient() bool
}

// Throttled is implemented by errors that carry a server-requested wait,
// such as a 429 with Retry-After.
type Throttled interface {
	RetryAfter() time.Duration
}

var transientKeywords = []string{
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"connection aborted",
	"eof",
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var t Transient
	if errors.As(err, &t) {
		return t.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range transientKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// Backoff returns the delay after the given zero-based attempt. Without a
// MaxDelay the doubling saturates instead of overflowing.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	ceiling := p.ceiling()
	d := p.BaseDelay
	for i := 0; i < attempt && d < ceiling; i++ {
		if d > ceiling/2 {
			d = ceiling
			break
		}
		d *= 2
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

// Delay is the wait before retrying after err: the backoff, or longer when
// the server asked for it, still capped by MaxDelay.
func (p Policy) Delay(attempt int, err error) time.Duration {
	d := p.Backoff(attempt)
	var t Throttled
	if errors.As(err, &t) {
		if wait := t.RetryAfter(); wait > d {
			d = min(wait, p.ceiling())
		}
	}
	return d
}

func (p Policy) ceiling() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return time.Duration(math.MaxInt64)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do calls fn until it succeeds, fails permanently or runs out of attempts.
// Permanent errors are returned unwrapped on first occurrence.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for calls that return a value.
func DoValue[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	limit := p.attempts()
	var lastErr error
	for attempt := 0; attempt < limit; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err

		if attempt == limit-1 {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(op, attempt+1, err)
		}
		if err := sleep(ctx, p.Delay(attempt, err)); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%s: %w after %d attempts: %w", op, ErrExhausted, limit, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
