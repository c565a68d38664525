package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyModule     = "module"
	KeyPhase      = "phase"
	KeyPage       = "page"
	KeyKey        = "key"
	KeyPath       = "path"
	KeyCount      = "count"
	KeyBucket     = "bucket"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Module(name string) slog.Attr    { return slog.String(KeyModule, name) }
func Phase(name string) slog.Attr     { return slog.String(KeyPhase, name) }
func Page(id string) slog.Attr        { return slog.String(KeyPage, id) }
func Key(k string) slog.Attr          { return slog.String(KeyKey, k) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Bucket(b string) slog.Attr       { return slog.String(KeyBucket, b) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
