// Package prompush pushes layoutsync metrics to a Prometheus Pushgateway.
// Runs are short lived (one upload or one CLI invocation), so the registry is
// pushed on Flush rather than scraped.
package prompush

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"layoutsync/internal/metrics"
)

// Backend implements metrics.Backend. The job label is carried by the
// Pushgateway grouping key, not by the series.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec
	stepDuration  *prometheus.SummaryVec
	recordCounter *prometheus.CounterVec
	uploadCounter *prometheus.CounterVec
}

// NewBackend builds a backend pushing to gatewayURL under jobName, which
// defaults to "layoutsync".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, errors.New("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "layoutsync"
	}

	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        reg,
		stepCounter: f.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Table syncs by final step and status.",
		}, []string{"step", "status"}),
		stepDuration: f.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Table sync latency in seconds by final step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		recordCounter: f.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Records by kind: decoded, existing, skipped_null_key, inserted.",
		}, []string{"kind"}),
		uploadCounter: f.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.UploadsTotal,
			Help: "Processed uploads by status.",
		}, []string{"status"}),
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	var c prometheus.Counter
	switch {
	case name == metrics.StepTotal && b.stepCounter != nil:
		c = b.stepCounter.WithLabelValues(labels["step"], labels["status"])
	case name == metrics.RecordsTotal && b.recordCounter != nil:
		c = b.recordCounter.WithLabelValues(labels["kind"])
	case name == metrics.UploadsTotal && b.uploadCounter != nil:
		c = b.uploadCounter.WithLabelValues(labels["status"])
	default:
		return
	}
	c.Add(delta)
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name == metrics.StepDuration && b.stepDuration != nil {
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	}
}

// Flush replaces the job's group on the Pushgateway with the current values.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push()
}
