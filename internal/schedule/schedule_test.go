package schedule_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
	"github.com/jonesrussell/north-cloud/regwatch/internal/schedule"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"0 6 * * *", false},
		{"*/15 * * * 1-5", false},
		{"@daily", false},
		{"0 6 * *", true},
		{"not a cron", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			t.Parallel()
			err := schedule.Validate(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNext(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	next, err := schedule.Next("0 6 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC), next)
}

func TestNew_RejectsBadSpec(t *testing.T) {
	t.Parallel()

	_, err := schedule.New("61 * * * *", func(context.Context) error { return nil }, logger.NewNop())
	require.Error(t, err)
}

func TestScheduler_FiresAndStops(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s, err := schedule.New("@every 1s", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestScheduler_StopCancelsRun(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	var cancelled atomic.Bool
	s, err := schedule.New("@every 1s", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("run never started")
	}
	s.Stop()
	assert.True(t, cancelled.Load())
}
