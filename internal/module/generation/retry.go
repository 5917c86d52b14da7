package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds the retry loop around a single external call.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry; each further retry
	// doubles it, capped at MaxDelay. No jitter.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// CallTimeout bounds each individual attempt. A timed-out attempt is
	// retryable like any other failure.
	CallTimeout time.Duration
	// MaxWorkers bounds how many external calls may run concurrently.
	MaxWorkers int
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		CallTimeout: 120 * time.Second,
		MaxWorkers:  10,
	}
}

// Caller executes blocking external-service invocations with bounded
// exponential backoff. Calls go through a bounded worker slot so one slow
// generation cannot stall unrelated requests past the pool size.
type Caller struct {
	cfg       RetryConfig
	semaphore chan struct{}
	logger    *zap.Logger

	// OnRetry, when set, is invoked once per retry attempt.
	OnRetry func()

	// sleep is replaceable in tests.
	sleep func(time.Duration)
}

// NewCaller creates a retrying caller.
func NewCaller(cfg RetryConfig, logger *zap.Logger) *Caller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Caller{
		cfg:       cfg,
		semaphore: make(chan struct{}, cfg.MaxWorkers),
		logger:    logger,
		sleep:     time.Sleep,
	}
}

// Call runs op until it succeeds or attempts are exhausted. Intermediate
// failures are logged, not surfaced; only the final failure crosses this
// boundary.
func (c *Caller) Call(ctx context.Context, op func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	// Acquire a worker slot.
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			c.sleep(c.backoff(attempt - 1))
			if c.OnRetry != nil {
				c.OnRetry()
			}
		}

		out, err := c.attempt(ctx, op)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("generation attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", c.cfg.MaxAttempts, lastErr)
}

func (c *Caller) attempt(ctx context.Context, op func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}
	return op(ctx)
}

// backoff returns base << n capped at MaxDelay.
func (c *Caller) backoff(n int) time.Duration {
	d := c.cfg.BaseDelay << uint(n)
	if c.cfg.MaxDelay > 0 && (d > c.cfg.MaxDelay || d <= 0) {
		d = c.cfg.MaxDelay
	}
	return d
}
