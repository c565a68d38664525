package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "r1", RunID("r1")},
		{"Module", KeyModule, "api", Module("api")},
		{"Phase", KeyPhase, "upload", Phase("upload")},
		{"Page", KeyPage, "guide-intro", Page("guide-intro")},
		{"Key", KeyKey, "docs/a.html", Key("docs/a.html")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Bucket", KeyBucket, "b", Bucket("b")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if tc.attr.Value.String() != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %s", tc.name, tc.attrVal, tc.attr.Value.String())
		}
	}
}

func TestErrorHelper(t *testing.T) {
	if got := Error(nil).Value.String(); got != "" {
		t.Fatalf("nil error should log empty string, got %q", got)
	}
	if got := Error(errors.New("boom")).Value.String(); got != "boom" {
		t.Fatalf("expected boom, got %q", got)
	}
	if Count(3).Value.Int64() != 3 {
		t.Fatal("count value drift")
	}
}
