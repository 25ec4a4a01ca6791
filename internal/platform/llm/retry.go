package llm

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls how failed model calls are retried.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// BaseDelay is the delay before the first retry; it doubles each attempt.
	BaseDelay time.Duration
}

// DefaultRetryConfig returns a RetryConfig with reasonable defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, BaseDelay: time.Second}
}

type retryingModel struct {
	next   ChatModel
	cfg    RetryConfig
	logger *slog.Logger
	rng    *rand.Rand
}

// WithRetry wraps m so failed calls are retried with exponential backoff and
// jitter. Context errors are returned immediately.
func WithRetry(m ChatModel, cfg RetryConfig, logger *slog.Logger) ChatModel {
	if cfg.MaxRetries <= 0 {
		return m
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	return &retryingModel{
		next:   m,
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *retryingModel) Generate(ctx context.Context, system, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoff(attempt)
			r.logger.WarnContext(ctx, "retrying model call",
				"model", r.next.Name(),
				"attempt", attempt+1,
				"max_attempts", r.cfg.MaxRetries+1,
				"delay_ms", delay.Milliseconds(),
				"error", lastErr)

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		out, err := r.next.Generate(ctx, system, prompt)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

func (r *retryingModel) backoff(attempt int) time.Duration {
	base := float64(r.cfg.BaseDelay) * math.Pow(2, float64(attempt-1))
	jitter := r.rng.Float64() * 0.2 * base
	return time.Duration(base + jitter)
}

func (r *retryingModel) Name() string { return r.next.Name() }
