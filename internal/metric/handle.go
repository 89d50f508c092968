package metric

import "time"

// write sends a single observation and drops any error: instrumentation
// never fails the caller.
func write(s Sink, name Name, kind Kind, value int64) {
	batch := [1]Observation{{Name: name, Kind: kind, Value: value}}
	_ = s.Write(batch[:])
}

// Counter accumulates caller supplied values.
type Counter struct {
	name Name
	sink Sink
}

// Count records value.
func (c Counter) Count(value int64) {
	write(c.sink, c.name, KindCounter, value)
}

// Name returns the full metric name.
func (c Counter) Name() Name { return c.name }

// Marker counts occurrences of an event.
type Marker struct {
	name Name
	sink Sink
}

// Mark records one occurrence.
func (m Marker) Mark() {
	write(m.sink, m.name, KindMarker, 1)
}

// Name returns the full metric name.
func (m Marker) Name() Name { return m.name }

// Timer records durations in nanoseconds.
type Timer struct {
	name Name
	sink Sink
}

// TimeHandle marks the start of a timed interval.
type TimeHandle struct {
	start time.Time
}

// Elapsed returns the time since the handle was started.
func (h TimeHandle) Elapsed() time.Duration {
	return time.Since(h.start)
}

// Interval records d.
func (t Timer) Interval(d time.Duration) {
	write(t.sink, t.name, KindTimer, d.Nanoseconds())
}

// IntervalNanos records a duration given in nanoseconds.
func (t Timer) IntervalNanos(ns int64) {
	write(t.sink, t.name, KindTimer, ns)
}

// Start returns a handle to pass to Stop.
func (t Timer) Start() TimeHandle {
	return TimeHandle{start: time.Now()}
}

// Stop records the time elapsed since h was started and returns it.
func (t Timer) Stop(h TimeHandle) time.Duration {
	d := h.Elapsed()
	t.Interval(d)
	return d
}

// Time runs fn and records how long it took.
func (t Timer) Time(fn func()) {
	h := t.Start()
	defer t.Stop(h)
	fn()
}

// Name returns the full metric name.
func (t Timer) Name() Name { return t.name }

// Gauge samples instantaneous values.
type Gauge struct {
	name Name
	sink Sink
}

// Value records v.
func (g Gauge) Value(v int64) {
	write(g.sink, g.name, KindGauge, v)
}

// Name returns the full metric name.
func (g Gauge) Name() Name { return g.name }
