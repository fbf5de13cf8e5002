// Package retry runs operations with bounded attempts and exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/williampepple1/bindup-e2e/internal/logging"
)

// Defaults used when a Config leaves fields unset
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// ExhaustedError is returned when every attempt failed. It unwraps to the
// error of the last attempt.
type ExhaustedError struct {
	Description string
	Attempts    int
	Err         error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Description, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Config bounds an Executor
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// AttemptTimeout, when positive, bounds each attempt separately
	AttemptTimeout time.Duration
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor retries operations. It is safe for sequential use by one test case.
type Executor struct {
	cfg   Config
	log   logrus.FieldLogger
	sleep SleepFunc
}

// Option configures an Executor
type Option func(*Executor)

// WithSleep replaces the backoff wait, for tests
func WithSleep(sleep SleepFunc) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// New creates a new executor. MaxAttempts below 1 is treated as 1.
func New(cfg Config, log logrus.FieldLogger, opts ...Option) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	e := &Executor{
		cfg:   cfg,
		log:   logging.OrDiscard(log).WithField("component", "retry_executor"),
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration
func (e *Executor) Config() Config { return e.cfg }

// Backoff returns the wait after failed attempt n (1-based): base × 2^(n-1).
// The result saturates instead of overflowing.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 1 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		if d > math.MaxInt64/2 {
			return math.MaxInt64
		}
		d *= 2
	}
	return d
}

// Run executes op until it succeeds or attempts are exhausted
func (e *Executor) Run(ctx context.Context, description string, op func(ctx context.Context) error) error {
	_, err := Do(ctx, e, description, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do executes op until it succeeds or attempts are exhausted, returning the
// result of the successful attempt
func Do[T any](ctx context.Context, e *Executor, description string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	maxAttempts := e.cfg.MaxAttempts

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := runAttempt(ctx, e.cfg.AttemptTimeout, op)
		if err == nil {
			e.log.WithFields(logrus.Fields{
				"operation": description,
				"attempt":   attempt,
				"status":    "success",
			}).Info("Operation succeeded")
			return result, nil
		}
		lastErr = err

		// A cancelled caller is not a failure of the operation
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		if attempt == maxAttempts {
			break
		}

		delay := Backoff(e.cfg.BaseDelay, attempt)
		e.log.WithFields(logrus.Fields{
			"operation":    description,
			"attempt":      attempt,
			"max_attempts": maxAttempts,
			"delay":        delay,
		}).WithError(err).Warn("Attempt failed, retrying")

		if err := e.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	e.log.WithFields(logrus.Fields{
		"operation": description,
		"attempts":  maxAttempts,
	}).WithError(lastErr).Error("All attempts failed")

	return zero, &ExhaustedError{Description: description, Attempts: maxAttempts, Err: lastErr}
}

// runAttempt runs one attempt, under its own deadline when timeout is set
func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
