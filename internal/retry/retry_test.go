package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/regwatch/internal/retry"
)

func fastConfig(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		IsRetryable:  func(error) bool { return true },
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := 0
	err := retry.Do(context.Background(), fastConfig(2), func(context.Context) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, retry.ErrMaxAttemptsExceeded)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestDo_SingleAttemptReturnsErrorUnwrapped(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	err := retry.Do(context.Background(), fastConfig(1), func(context.Context) error { return boom })
	assert.Equal(t, boom, err)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	t.Parallel()

	cfg := fastConfig(5)
	cfg.IsRetryable = func(error) bool { return false }

	calls := 0
	err := retry.Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return errors.New("bad request")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.Do(ctx, fastConfig(3), func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.True(t, retry.IsTransient(errors.New("dial tcp: i/o timeout")))
	assert.True(t, retry.IsTransient(errors.New("read: Connection Reset by peer")))
	assert.False(t, retry.IsTransient(errors.New("status 404")))
	assert.False(t, retry.IsTransient(nil))
}

func TestBackoff_Capped(t *testing.T) {
	t.Parallel()

	cfg := retry.Config{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, cfg.Backoff(1))
	assert.Equal(t, 2*time.Second, cfg.Backoff(2))
	assert.Equal(t, 3*time.Second, cfg.Backoff(3))
}
