package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	phaseDuration   *prom.HistogramVec
	phaseResults    *prom.CounterVec
	publishDuration prom.Histogram
	publishOutcome  *prom.CounterVec
	objects         *prom.CounterVec
	pages           *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers the publish metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.phaseDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "mdpublish",
			Name:      "phase_duration_seconds",
			Help:      "Duration of individual publish phases",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"})
		pr.phaseResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "mdpublish",
			Name:      "phase_results_total",
			Help:      "Phase result counts by outcome",
		}, []string{"phase", "result"})
		pr.publishDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "mdpublish",
			Name:      "publish_duration_seconds",
			Help:      "Total publish duration",
			Buckets:   prom.DefBuckets,
		})
		pr.publishOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "mdpublish",
			Name:      "publish_outcomes_total",
			Help:      "Publish runs by final status",
		}, []string{"outcome"})
		pr.objects = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "mdpublish",
			Name:      "remote_objects_total",
			Help:      "Remote objects transferred or deleted",
		}, []string{"op", "result"})
		pr.pages = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "mdpublish",
			Name:      "pages",
			Help:      "Pages in the last built tree by kind",
		}, []string{"kind"})
		reg.MustRegister(pr.phaseDuration, pr.phaseResults, pr.publishDuration, pr.publishOutcome, pr.objects, pr.pages)
	})
	return pr
}

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil || p.phaseDuration == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPhaseResult(phase string, result ResultLabel) {
	if p == nil || p.phaseResults == nil {
		return
	}
	p.phaseResults.WithLabelValues(phase, string(result)).Inc()
}

func (p *PrometheusRecorder) ObservePublishDuration(d time.Duration) {
	if p == nil || p.publishDuration == nil {
		return
	}
	p.publishDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPublishOutcome(outcome OutcomeLabel) {
	if p == nil || p.publishOutcome == nil {
		return
	}
	p.publishOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddObjects(op string, n int, success bool) {
	if p == nil || p.objects == nil || n <= 0 {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.objects.WithLabelValues(op, res).Add(float64(n))
}

func (p *PrometheusRecorder) SetPages(documents, categories int) {
	if p == nil || p.pages == nil {
		return
	}
	p.pages.WithLabelValues("document").Set(float64(documents))
	p.pages.WithLabelValues("category").Set(float64(categories))
}
