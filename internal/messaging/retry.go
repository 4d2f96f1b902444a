package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Default retry policy values for outbound sends.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 5 * time.Second
)

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so the retry policy gives up immediately,
// the equivalent of a 4xx from a messaging API.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether the error was marked Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// RetryPolicy bounds how often an outbound send is retried. The zero value is
// usable and applies the defaults. Sleep is injectable for tests.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       func(time.Duration)
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p RetryPolicy) delay() time.Duration {
	if p.Delay <= 0 {
		return DefaultRetryDelay
	}
	return p.Delay
}

func (p RetryPolicy) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Do runs fn under the policy: permanent errors and context cancellation stop
// immediately, transient errors are retried with a fixed delay between
// attempts. Returns the last error when all attempts fail.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	attempts := p.maxAttempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			slog.Debug("retry: permanent error, giving up", "attempt", attempt, "error", lastErr)
			return lastErr
		}
		if attempt < attempts {
			slog.Warn("retry: send failed, retrying", "attempt", attempt, "max_attempts", attempts, "error", lastErr)
			p.sleep(p.delay())
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

// RetryingService decorates a Service with a bounded retry policy on sends.
type RetryingService struct {
	Service
	Policy RetryPolicy
}

// NewRetryingService wraps svc so SendMessage is retried under the policy.
func NewRetryingService(svc Service, policy RetryPolicy) *RetryingService {
	return &RetryingService{Service: svc, Policy: policy}
}

// SendMessage sends through the wrapped service, retrying transient failures.
func (s *RetryingService) SendMessage(ctx context.Context, to string, body string) error {
	return s.Policy.Do(ctx, func() error {
		return s.Service.SendMessage(ctx, to, body)
	})
}
