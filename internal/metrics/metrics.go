// Package metrics counts what an import run does: steps, records by outcome,
// committed batches, fetch retries and finished runs.
//
// Calls go to a process-wide Backend installed with SetBackend. Until one is
// installed they are dropped. The Pushgateway and DogStatsD backends live in
// the prompush and datadog subpackages.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal           = "import_step_total"
	StepDurationSeconds = "import_step_duration_seconds"
	RecordsTotal        = "import_records_total"
	BatchesTotal        = "import_batches_total"
	RunsTotal           = "import_runs_total"
	FetchRetriesTotal   = "import_fetch_retries_total"
)

// Labels qualify a metric, e.g. {"job": "ca-unclaimed", "step": "load"}.
type Labels map[string]string

// Backend receives every metric. Names a backend does not know are ignored.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records one duration sample in seconds.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush ships buffered values; push-based backends send here.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil restores the no-op.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the installed backend.
func Flush() error {
	return current().Flush()
}

// RecordStep records latency and success/failure for one pipeline step
// (fetch, extract, count, truncate, load).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter. Kinds are "written",
// "failed", and "discarded_<reason>".
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches increments the committed-batch counter.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}

// RecordFetchRetry counts one retried archive download. reason is
// "transport" or the HTTP status code that triggered the retry.
func RecordFetchRetry(host, reason string) {
	current().IncCounter(FetchRetriesTotal, 1, Labels{"host": host, "reason": reason})
}

// RecordRun counts a finished import run by terminal status.
func RecordRun(job, status string) {
	current().IncCounter(RunsTotal, 1, Labels{"job": job, "status": status})
}
