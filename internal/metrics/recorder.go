package metrics

import "time"

// ResultLabel enumerates phase result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning"
	ResultFatal   ResultLabel = "fatal"
	ResultSkipped ResultLabel = "skipped"
)

// OutcomeLabel is the final status of a publish run.
type OutcomeLabel string

const (
	OutcomeSuccess    OutcomeLabel = "success"
	OutcomeIncomplete OutcomeLabel = "incomplete"
	OutcomeFailed     OutcomeLabel = "failed"
	OutcomeDryRun     OutcomeLabel = "dry_run"
)

// Transfer operations counted by AddObjects.
const (
	OpDownload = "download"
	OpUpload   = "upload"
	OpDelete   = "delete"
)

// Recorder defines observability hooks for publish runs and their phases.
// Implementations may forward to Prometheus or anything else; NoopRecorder is
// the default when metrics are not configured.
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	IncPhaseResult(phase string, result ResultLabel)
	ObservePublishDuration(d time.Duration)
	IncPublishOutcome(outcome OutcomeLabel)
	AddObjects(op string, n int, success bool)
	SetPages(documents, categories int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration) {}
func (NoopRecorder) IncPhaseResult(string, ResultLabel)         {}
func (NoopRecorder) ObservePublishDuration(time.Duration)       {}
func (NoopRecorder) IncPublishOutcome(OutcomeLabel)             {}
func (NoopRecorder) AddObjects(string, int, bool)               {}
func (NoopRecorder) SetPages(int, int)                          {}
