package publish

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/mdpublish/internal/metrics"
)

// Report summarizes one publish run.
type Report struct {
	RunID    string
	Module   string
	Revision string
	DryRun   bool

	Documents    int
	Categories   int
	PagesWritten int
	ManifestPath string
	Merged       []string

	FirstPublish bool
	Stale        []string
	Deleted      int
	// Orphaned are remote keys whose deletion failed. Later publishes do not
	// see them as stale, so they need manual removal.
	Orphaned     []string
	Uploaded     int
	WouldUpload  int
	// Synced is set once the run started changing the remote bucket.
	Synced bool

	Failures []error
	Duration time.Duration

	mu sync.Mutex
}

func (r *Report) addFailure(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	r.Failures = append(r.Failures, err)
	r.mu.Unlock()
}

// Incomplete reports whether any remote operation failed.
func (r *Report) Incomplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Failures) > 0
}

// Outcome classifies the run given the error Run returned.
func (r *Report) Outcome(err error) metrics.OutcomeLabel {
	switch {
	case err != nil:
		return metrics.OutcomeFailed
	case r.Incomplete():
		return metrics.OutcomeIncomplete
	case r.DryRun:
		return metrics.OutcomeDryRun
	default:
		return metrics.OutcomeSuccess
	}
}

// Summary is a short human-readable description of the run.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s: %d documents, %d categories, %d pages written",
		r.Module, r.Documents, r.Categories, r.PagesWritten)
	if len(r.Merged) > 1 {
		fmt.Fprintf(&b, "; merged %d manifests", len(r.Merged))
	}
	switch {
	case r.DryRun:
		fmt.Fprintf(&b, "; dry run: would delete %d, would upload %d", len(r.Stale), r.WouldUpload)
	case r.Synced:
		fmt.Fprintf(&b, "; deleted %d, uploaded %d", r.Deleted, r.Uploaded)
	}
	if n := len(r.Orphaned); n > 0 {
		fmt.Fprintf(&b, "; %d orphaned objects need manual removal", n)
	}
	if n := len(r.Failures); n > 0 {
		fmt.Fprintf(&b, "; %d remote failures (incomplete)", n)
	}
	return b.String()
}
