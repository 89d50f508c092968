// Package metrictest provides a Sink that records what it receives.
package metrictest

import (
	"sync"

	"github.com/neox5/statbox/internal/metric"
)

// Recorder is a Sink storing every observation and counting flushes.
// Err, when set, is returned from Write and Flush after recording.
type Recorder struct {
	mu      sync.Mutex
	batches [][]metric.Observation
	flushes int
	closed  bool

	Err error
}

// Write records a copy of batch.
func (r *Recorder) Write(batch []metric.Observation) error {
	cp := make([]metric.Observation, len(batch))
	copy(cp, batch)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, cp)
	return r.Err
}

// Flush counts the call.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return r.Err
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Batches returns all recorded batches.
func (r *Recorder) Batches() [][]metric.Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]metric.Observation, len(r.batches))
	copy(out, r.batches)
	return out
}

// Observations returns all recorded observations in arrival order.
func (r *Recorder) Observations() []metric.Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []metric.Observation
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

// Values maps dotted names to the last recorded value.
func (r *Recorder) Values() map[string]int64 {
	out := make(map[string]int64)
	for _, o := range r.Observations() {
		out[o.Name.String()] = o.Value
	}
	return out
}

// Flushes returns the number of Flush calls.
func (r *Recorder) Flushes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = nil
	r.flushes = 0
}
