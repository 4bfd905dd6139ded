// Package metrics records sync counters and latencies through a pluggable
// Backend. The default backend discards everything, so callers never check
// whether metrics are configured. Concrete backends live in prompush and
// datadog.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal    = "layoutsync_step_total"
	StepDuration = "layoutsync_step_duration_seconds"
	RecordsTotal = "layoutsync_records_total"
	UploadsTotal = "layoutsync_uploads_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush is called once before the process exits.
	Flush() error
}

type discard struct{}

func (discard) IncCounter(string, float64, Labels)       {}
func (discard) ObserveHistogram(string, float64, Labels) {}
func (discard) Flush() error                             { return nil }

var backend Backend = discard{}

// SetBackend installs b as the process-wide backend. nil is ignored.
func SetBackend(b Backend) {
	if b != nil {
		backend = b
	}
}

func Flush() error { return backend.Flush() }

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordStep counts one finished table sync and observes its latency. step
// is the stage that failed (layout, schema, decode, snapshot, novelty,
// insert) or "sync" when the table completed.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{"job": job, "step": step, "status": status(err == nil)}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta to the record counter for kind, one of decoded,
// existing, skipped_null_key or inserted. Non-positive deltas are dropped.
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordUpload counts one processed upload. ok means every table succeeded.
func RecordUpload(job string, ok bool) {
	backend.IncCounter(UploadsTotal, 1, Labels{"job": job, "status": status(ok)})
}
