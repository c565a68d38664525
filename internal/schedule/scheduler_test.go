package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestScheduleCron(t *testing.T) {
	t.Run("returns job id for valid cron", func(t *testing.T) {
		s := newTestScheduler(t)
		id, err := s.ScheduleCron("publish", "0 */4 * * *", func() {})
		require.NoError(t, err)
		require.NotEmpty(t, id)
	})

	t.Run("rejects invalid cron", func(t *testing.T) {
		s := newTestScheduler(t)
		_, err := s.ScheduleCron("publish", "this is not a cron", func() {})
		require.Error(t, err)
	})
}

func TestScheduleEvery(t *testing.T) {
	t.Run("returns job id for valid interval", func(t *testing.T) {
		s := newTestScheduler(t)
		id, err := s.ScheduleEvery("publish", 10*time.Second, false, func() {})
		require.NoError(t, err)
		require.NotEmpty(t, id)
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		s := newTestScheduler(t)
		_, err := s.ScheduleEvery("publish", 0, false, func() {})
		require.Error(t, err)
	})

	t.Run("runs immediately", func(t *testing.T) {
		s := newTestScheduler(t)
		var runs atomic.Int32
		_, err := s.ScheduleEvery("publish", time.Hour, true, func() { runs.Add(1) })
		require.NoError(t, err)
		s.Start()
		require.Eventually(t, func() bool { return runs.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

		next, ok := s.NextRun("publish")
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Hour), next, time.Minute)
	})
}

func TestNextRunUnknownJob(t *testing.T) {
	s := newTestScheduler(t)
	_, ok := s.NextRun("missing")
	assert.False(t, ok)
}

func TestPublishTask(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var calls int

	PublishTask(context.Background(), logger, func(context.Context) error {
		calls++
		return errors.New("remote unavailable")
	})()
	assert.Equal(t, 1, calls, "failures are logged, not propagated")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	PublishTask(ctx, logger, func(context.Context) error {
		calls++
		return nil
	})()
	assert.Equal(t, 1, calls, "cancelled context skips the run")
}
