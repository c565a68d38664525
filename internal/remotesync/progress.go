package remotesync

import (
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/mdpublish/internal/logfields"
)

// ProgressInterval is the minimum gap between two progress log lines.
const ProgressInterval = time.Second

// LogProgress returns a Reporter that logs "<phase>: done/total" at most once
// per interval. The final update (done == total) is always logged.
func LogProgress(logger *slog.Logger, phase string, interval time.Duration) Reporter {
	return newThrottle(logger, phase, interval, time.Now).report
}

type throttle struct {
	mu       sync.Mutex
	logger   *slog.Logger
	phase    string
	interval time.Duration
	now      func() time.Time
	last     time.Time
}

func newThrottle(logger *slog.Logger, phase string, interval time.Duration, now func() time.Time) *throttle {
	if logger == nil {
		logger = slog.Default()
	}
	return &throttle{logger: logger, phase: phase, interval: interval, now: now, last: now()}
}

func (t *throttle) report(done, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	final := total > 0 && done == total
	if !final && now.Sub(t.last) < t.interval {
		return
	}
	t.last = now
	t.logger.Info(t.phase+" progress",
		logfields.Phase(t.phase),
		slog.Int("done", done),
		logfields.Count(total))
}
