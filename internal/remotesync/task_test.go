package remotesync

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskResult(t *testing.T) {
	var mu sync.Mutex
	var seen [][2]int
	report := func(done, total int) {
		mu.Lock()
		seen = append(seen, [2]int{done, total})
		mu.Unlock()
	}

	task := Go(context.Background(), report, func(ctx context.Context, report Reporter) (int, error) {
		c := newCounter(2, report)
		c.inc()
		c.inc()
		return 42, nil
	})
	v, err := task.Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, [][2]int{{0, 2}, {1, 2}, {2, 2}}, seen)

	select {
	case <-task.Done():
	default:
		t.Fatal("Done not closed after Wait")
	}
}

func TestTaskCancel(t *testing.T) {
	started := make(chan struct{})
	task := Go(context.Background(), nil, func(ctx context.Context, _ Reporter) (struct{}, error) {
		close(started)
		<-ctx.Done()
		return struct{}{}, ctx.Err()
	})
	<-started
	task.Cancel()
	_, err := task.Wait()
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestThrottledProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	now := time.Unix(0, 0)
	th := newThrottle(logger, "upload content", time.Second, func() time.Time { return now })

	th.report(1, 10)
	now = now.Add(500 * time.Millisecond)
	th.report(2, 10)
	assert.Empty(t, buf.String(), "updates inside the interval are dropped")

	now = now.Add(600 * time.Millisecond)
	th.report(3, 10)
	assert.Equal(t, 1, strings.Count(buf.String(), "upload content progress"))

	th.report(10, 10)
	assert.Equal(t, 2, strings.Count(buf.String(), "upload content progress"), "final update always logs")
	assert.Contains(t, buf.String(), "done=10")
}
