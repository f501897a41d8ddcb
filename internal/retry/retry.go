// Package retry wraps fallible operations with exponential backoff and
// jitter, short-circuiting on errors that indicate a deterministic failure
// (bad password, missing profile) where retrying would only waste time.
package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

// DefaultFatalPatterns match errors that must never be retried.
// Matching is case-insensitive substring search on the error message.
var DefaultFatalPatterns = []string{
	"invalid credentials",
	"invalid password",
	"authentication failed",
	"unauthorized",
	"balance too low",
	"insufficient balance",
	"not found",
}

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 2 * time.Second
	defaultMaxDelay   = 30 * time.Second
	minDelay          = 500 * time.Millisecond
	jitterRange       = 500 * time.Millisecond
)

// Config controls one retried operation.
type Config struct {
	MaxRetries    int           // retries after the first attempt (default 3)
	BaseDelay     time.Duration // first backoff step (default 2s)
	MaxDelay      time.Duration // backoff ceiling (default 30s)
	FatalPatterns []string      // nil means DefaultFatalPatterns
	Label         string        // operation name for log lines
	Logger        *slog.Logger  // nil means slog.Default

	// Sleep is swappable for tests; nil means a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c *Config) fill() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.FatalPatterns == nil {
		c.FatalPatterns = DefaultFatalPatterns
	}
	if c.Label == "" {
		c.Label = "operation"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Sleep == nil {
		c.Sleep = sleepCtx
	}
}

// Do runs op until it succeeds, exhausts MaxRetries, or fails fatally.
// A fatal error is returned immediately after the first occurrence.
func Do[T any](ctx context.Context, cfg Config, op func() (T, error)) (T, error) {
	cfg.fill()

	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		v, err := op()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if IsFatal(err, cfg.FatalPatterns) {
			cfg.Logger.Error("fatal error, not retrying", "op", cfg.Label, "error", err)
			return zero, err
		}

		if attempt == cfg.MaxRetries {
			cfg.Logger.Error("retries exhausted", "op", cfg.Label, "retries", cfg.MaxRetries, "error", err)
			return zero, err
		}

		delay := Backoff(attempt, cfg.BaseDelay, cfg.MaxDelay)
		cfg.Logger.Warn("retrying", "op", cfg.Label,
			"attempt", attempt+1, "max", cfg.MaxRetries, "delay", delay, "error", err)

		if err := cfg.Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

// DoErr is Do for operations without a result value.
func DoErr(ctx context.Context, cfg Config, op func() error) error {
	_, err := Do(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// IsFatal reports whether the error message contains any of the given
// patterns, case-insensitively.
func IsFatal(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Backoff computes the delay before retry number attempt (0-based):
// base*2^attempt capped at max, plus uniform jitter in [-500ms, +500ms],
// floored at 500ms so concurrent pipelines never hammer in lockstep.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > max {
			delay = max
			break
		}
	}
	if delay > max {
		delay = max
	}

	jitter := time.Duration(rand.Int63n(int64(2*jitterRange))) - jitterRange
	delay += jitter
	if delay < minDelay {
		delay = minDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
