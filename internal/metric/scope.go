package metric

// Scope creates instrument handles writing to one Sink under a namespace.
// Scopes are cheap values and safe to share.
type Scope struct {
	sink      Sink
	namespace Name
}

// NewScope returns a Scope writing to sink. A nil sink discards writes.
func NewScope(sink Sink) Scope {
	if sink == nil {
		sink = Discard
	}
	return Scope{sink: sink}
}

// Named returns a sub-scope with segments appended to the namespace.
func (s Scope) Named(segments ...string) Scope {
	return Scope{sink: s.sink, namespace: s.namespace.Append(segments...)}
}

// Namespace returns the prefix applied to handle names.
func (s Scope) Namespace() Name {
	return s.namespace
}

// Sink returns the sink handles write to.
func (s Scope) Sink() Sink {
	return s.sink
}

// Counter returns a counter handle.
func (s Scope) Counter(name string) Counter {
	return Counter{name: s.qualify(name), sink: s.sink}
}

// Marker returns a marker handle.
func (s Scope) Marker(name string) Marker {
	return Marker{name: s.qualify(name), sink: s.sink}
}

// Timer returns a timer handle.
func (s Scope) Timer(name string) Timer {
	return Timer{name: s.qualify(name), sink: s.sink}
}

// Gauge returns a gauge handle.
func (s Scope) Gauge(name string) Gauge {
	return Gauge{name: s.qualify(name), sink: s.sink}
}

// Flush flushes the underlying sink.
func (s Scope) Flush() error {
	return s.sink.Flush()
}

func (s Scope) qualify(name string) Name {
	return ParseName(name).Prepend(s.namespace)
}
