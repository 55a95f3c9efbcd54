// Package retry runs an operation with bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultMaxAttempts is the default number of attempts, the first included
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the wait after the first failed attempt
	DefaultBaseDelay = time.Second
)

// Config configures a retry sequence
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      logrus.FieldLogger

	// Sleep waits for d or until ctx is done. Tests replace it to observe delays.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called after each failed attempt that will be retried.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Option mutates a Config
type Option func(*Config)

// WithMaxAttempts sets the attempt ceiling. Values below 1 are treated as 1.
func WithMaxAttempts(n int) Option {
	return func(c *Config) { c.MaxAttempts = n }
}

// WithBaseDelay sets the base backoff delay
func WithBaseDelay(d time.Duration) Option {
	return func(c *Config) { c.BaseDelay = d }
}

// WithLogger sets the logger used for per-attempt diagnostics
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithSleep replaces the backoff sleep
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Config) { c.Sleep = fn }
}

// WithOnRetry registers a hook run after every retried failure
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// DefaultConfig returns the default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Logger:      logrus.StandardLogger(),
		Sleep:       sleepContext,
	}
}

// Delay returns the wait after failed attempt n (1-based): base * 2^(n-1)
func Delay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<uint(attempt-1))
}

// Do invokes op until it succeeds or MaxAttempts is reached. The error of the
// last attempt is returned as-is. A panic in op counts as a failed attempt;
// a non-error panic value is converted to an error.
//
// ctx is checked before every attempt and during every backoff sleep, so a
// cancelled context ends the sequence with ctx.Err().
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := call(ctx, op)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			cfg.Logger.WithError(err).WithFields(logrus.Fields{
				"attempt":      attempt,
				"max_attempts": cfg.MaxAttempts,
			}).Warn("Attempt failed, giving up")
			break
		}

		delay := Delay(cfg.BaseDelay, attempt)
		cfg.Logger.WithError(err).WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": cfg.MaxAttempts,
			"delay":        delay,
		}).Warn("Attempt failed, retrying")
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}

		if err := cfg.Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

func call[T any](ctx context.Context, op func(ctx context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	return op(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
