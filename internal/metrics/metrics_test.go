package metrics

import "testing"

type captureBackend struct {
	counters   map[string]float64
	histograms map[string][]float64
	flushed    int
}

func newCaptureBackend() *captureBackend {
	return &captureBackend{
		counters:   make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (c *captureBackend) IncCounter(name string, delta float64, _ Labels) {
	c.counters[name] += delta
}

func (c *captureBackend) ObserveHistogram(name string, value float64, _ Labels) {
	c.histograms[name] = append(c.histograms[name], value)
}

func (c *captureBackend) Flush() error {
	c.flushed++
	return nil
}

func TestPackageFuncsRouteToBackend(t *testing.T) {
	b := newCaptureBackend()
	SetBackend(b)
	defer SetBackend(nil)

	IncCounter(MetricRecordsTotal, 3, Labels{"kind": "inserted"})
	IncCounter(MetricRecordsTotal, 2, Labels{"kind": "skipped"})
	ObserveHistogram(MetricRunDurationSeconds, 1.5, nil)
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if b.counters[MetricRecordsTotal] != 5 {
		t.Fatalf("counter = %v, want 5", b.counters[MetricRecordsTotal])
	}
	if len(b.histograms[MetricRunDurationSeconds]) != 1 {
		t.Fatal("histogram sample not recorded")
	}
	if b.flushed != 1 {
		t.Fatalf("flushed %d times, want 1", b.flushed)
	}
}

func TestNopBackendIsDefault(t *testing.T) {
	SetBackend(nil)

	// Must not panic with no backend installed.
	IncCounter(MetricPartitionsTotal, 1, nil)
	ObserveHistogram(MetricRunDurationSeconds, 0.1, nil)
	if err := Flush(); err != nil {
		t.Fatalf("nop Flush: %v", err)
	}
}
