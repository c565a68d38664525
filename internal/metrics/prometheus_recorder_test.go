package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObservePhaseDuration("upload", 150*time.Millisecond)
	pr.ObservePublishDuration(500 * time.Millisecond)
	pr.IncPhaseResult("upload", ResultSuccess)
	pr.IncPublishOutcome(OutcomeIncomplete)
	pr.AddObjects(OpUpload, 3, true)
	pr.AddObjects(OpDelete, 1, false)
	pr.SetPages(4, 2)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["mdpublish_remote_objects_total"])
	assert.True(t, names["mdpublish_publish_outcomes_total"])
	assert.True(t, names["mdpublish_pages"])
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObservePhaseDuration("x", time.Second)
		pr.IncPublishOutcome(OutcomeSuccess)
		pr.AddObjects(OpUpload, 1, true)
	})
}

func TestWriteTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncPublishOutcome(OutcomeSuccess)

	path := filepath.Join(t.TempDir(), "mdpublish.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `mdpublish_publish_outcomes_total{outcome="success"} 1`)

	assert.NoError(t, WriteTextfile("", reg))
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).SetPages(1, 1)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mdpublish_pages")
}
