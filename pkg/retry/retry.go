// Package retry implements bounded retries with exponential backoff. It is
// deliberately policy-shaped: callers construct a Config once, inject it where
// needed and wrap the flaky call in Do. Errors marked with Stop abort the loop
// immediately, everything else is retried until the attempt budget is spent.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMultiplier  = 2.0
	defaultMaxDelay    = 30 * time.Second
)

// Config describes one retry policy. The zero value is usable and falls back
// to the package defaults.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt.
	BaseDelay time.Duration
	// Multiplier grows the backoff per failed attempt.
	Multiplier float64
	// MaxDelay caps the backoff regardless of growth.
	MaxDelay time.Duration
	// Jitter is the random spread applied to each delay, as a fraction of the
	// computed delay (0 disables jitter).
	Jitter float64
}

// withDefaults returns the config with unset fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}

	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}

	if c.Multiplier < 1 {
		c.Multiplier = defaultMultiplier
	}

	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}

	return c
}

// stopError marks an error as permanent so Do gives up immediately.
type stopError struct{ err error }

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Stop wraps err so that Do returns it without spending further attempts.
func Stop(err error) error {
	return &stopError{err: err}
}

// sleeper abstracts the wait between attempts so tests can run without real
// time passing.
type sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type clockSleeper struct{}

func (clockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn until it succeeds, it returns an error wrapped with Stop, the
// attempt budget is exhausted, or the context is cancelled while backing off.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return do(ctx, cfg, fn, clockSleeper{})
}

func do(ctx context.Context, cfg Config, fn func() error, s sleeper) error {
	cfg = cfg.withDefaults()

	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if sleepErr := s.Sleep(ctx, Delay(cfg, attempt-1)); sleepErr != nil {
				return fmt.Errorf("retry aborted after %d attempts: %w", attempt, errors.Join(sleepErr, lastErr))
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		var stop *stopError
		if errors.As(err, &stop) {
			return stop.err
		}

		lastErr = err
	}

	return fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}

// Delay computes the backoff after the given zero-based failed attempt:
// BaseDelay * Multiplier^attempt, capped at MaxDelay, with optional jitter.
func Delay(cfg Config, attempt int) time.Duration {
	cfg = cfg.withDefaults()

	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter > 0 {
		delay += delay * cfg.Jitter * (rand.Float64()*2 - 1) //nolint: gosec
	}

	return time.Duration(delay)
}
