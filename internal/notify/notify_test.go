package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Notifier = Noop{}
	_ Notifier = (*NATSNotifier)(nil)
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "mdpublish.published.api", Subject("mdpublish.published", "api"))
}

func TestPublishedEventJSON(t *testing.T) {
	ev := PublishedEvent{
		RunID:     "r1",
		Module:    "api",
		Outcome:   "success",
		Uploaded:  3,
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "api", got["module"])
	assert.Equal(t, "2026-01-02T03:04:05Z", got["timestamp"])
	assert.NotContains(t, got, "stale")
	assert.NotContains(t, got, "revision")
}

func TestNoop(t *testing.T) {
	var n Notifier = Noop{}
	assert.NoError(t, n.Published(context.Background(), PublishedEvent{}))
	assert.NoError(t, n.Close())
}

func TestNewNATSNotifierUnreachable(t *testing.T) {
	_, err := NewNATSNotifier("nats://127.0.0.1:1", "mdpublish.published", nil)
	assert.Error(t, err)
}
