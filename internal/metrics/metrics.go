// Package metrics defines the minimal metrics seam used by the pipeline.
//
// The core stays independent of any vendor SDK: it emits counters and
// durations through Backend, and the process entry point decides which
// backend (if any) to install. The default is a nop backend, so library code
// can call IncCounter unconditionally.
package metrics

import "sync"

// Labels carries metric dimensions (e.g. {"kind": "inserted"}).
type Labels map[string]string

// Backend receives metric observations.
//
// Implementations must be safe for concurrent use; callers may emit from any
// goroutine.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names emitted by this module.
const (
	MetricRecordsTotal       = "etl_records_total"       // labels: kind=inserted|skipped|error
	MetricPartitionsTotal    = "etl_partitions_total"    // labels: status=ok|empty|error
	MetricRunDurationSeconds = "etl_run_duration_seconds"
)

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the active backend. Passing nil restores the nop backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

// IncCounter increments a counter on the active backend.
func IncCounter(name string, delta float64, labels Labels) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.IncCounter(name, delta, labels)
}

// ObserveHistogram records a sample on the active backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.ObserveHistogram(name, value, labels)
}

// Flush flushes the active backend.
func Flush() error {
	mu.RLock()
	b := backend
	mu.RUnlock()
	return b.Flush()
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }
