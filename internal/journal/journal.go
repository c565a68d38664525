// Package journal records publish runs and the events of their phases, so
// operators can see what a module last published and what it deleted.
package journal

import (
	"context"
	"time"
)

// Event types appended during a run.
const (
	EventPhase    = "phase"
	EventStale    = "stale"
	EventFailure  = "failure"
	EventOrphaned = "orphaned"
)

// Run is one publish invocation.
type Run struct {
	ID         string
	Module     string
	Revision   string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	Pages      int
	Uploaded   int
	Deleted    int
	Failures   int
}

// Duration is zero for runs that have not finished.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Event is one journal entry within a run.
type Event struct {
	ID        int64
	RunID     string
	Type      string
	Timestamp time.Time
	Payload   map[string]any
}

// Journal persists runs and their events.
type Journal interface {
	StartRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, run Run) error
	Append(ctx context.Context, runID, eventType string, payload map[string]any) error
	Recent(ctx context.Context, limit int) ([]Run, error)
	Events(ctx context.Context, runID string) ([]Event, error)
	Close() error
}

// Noop discards everything. It is used when no journal path is configured.
type Noop struct{}

func (Noop) StartRun(context.Context, Run) error                          { return nil }
func (Noop) FinishRun(context.Context, Run) error                         { return nil }
func (Noop) Append(context.Context, string, string, map[string]any) error { return nil }
func (Noop) Recent(context.Context, int) ([]Run, error)                   { return nil, nil }
func (Noop) Events(context.Context, string) ([]Event, error)              { return nil, nil }
func (Noop) Close() error                                                 { return nil }
