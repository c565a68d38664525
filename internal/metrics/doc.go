// Package metrics provides observability hooks for publish runs.
//
// Components receive a Recorder through their options and default to
// NoopRecorder, so no call site needs a nil check:
//
//	rec := metrics.NewPrometheusRecorder(reg)
//	orch := publish.New(cfg, publish.WithRecorder(rec))
//
// One-shot CLI runs have no scrape window, so the registry is flushed with
// WriteTextfile when a textfile path is configured. Long-running commands
// (preview, daemon) expose HTTPHandler instead.
package metrics
