package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCaller(cfg RetryConfig) (*Caller, *[]time.Duration) {
	caller := NewCaller(cfg, nil)
	sleeps := &[]time.Duration{}
	caller.sleep = func(d time.Duration) {
		*sleeps = append(*sleeps, d)
	}
	return caller, sleeps
}

func TestCallSucceedsFirstAttempt(t *testing.T) {
	caller, sleeps := newTestCaller(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxWorkers:  1,
	})

	calls := 0
	out, err := caller.Call(context.Background(), func(context.Context) ([]byte, error) {
		calls++
		return []byte("ok"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *sleeps)
}

func TestCallRetriesWithExponentialBackoff(t *testing.T) {
	caller, sleeps := newTestCaller(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxWorkers:  1,
	})

	calls := 0
	out, err := caller.Call(context.Background(), func(context.Context) ([]byte, error) {
		calls++
		if calls <= 2 {
			return nil, errors.New("upstream busy")
		}
		return []byte("ok"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out)
	assert.Equal(t, 3, calls)
	// Delays double from the base: base*2^0, base*2^1
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestCallDelayCappedAtMax(t *testing.T) {
	caller, sleeps := newTestCaller(RetryConfig{
		MaxAttempts: 6,
		BaseDelay:   time.Second,
		MaxDelay:    4 * time.Second,
		MaxWorkers:  1,
	})

	_, err := caller.Call(context.Background(), func(context.Context) ([]byte, error) {
		return nil, errors.New("always fails")
	})

	require.Error(t, err)
	assert.Equal(t, []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		4 * time.Second,
		4 * time.Second,
	}, *sleeps)
}

func TestCallExhaustsAttempts(t *testing.T) {
	caller, _ := newTestCaller(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxWorkers:  1,
	})

	upstreamErr := errors.New("upstream down")
	calls := 0
	retries := 0
	caller.OnRetry = func() { retries++ }

	_, err := caller.Call(context.Background(), func(context.Context) ([]byte, error) {
		calls++
		return nil, upstreamErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, upstreamErr)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestCallStopsOnCanceledContext(t *testing.T) {
	caller, _ := newTestCaller(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxWorkers:  1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := caller.Call(ctx, func(context.Context) ([]byte, error) {
		calls++
		cancel()
		return nil, errors.New("failed")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
