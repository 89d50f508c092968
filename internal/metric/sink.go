package metric

import (
	"errors"
	"sync"
)

// Sink accepts batches of observations and an explicit flush signal.
// Implementations must be safe for concurrent use.
type Sink interface {
	Write(batch []Observation) error
	Flush() error
}

// Closer is implemented by sinks holding resources like connections or
// background workers.
type Closer interface {
	Close() error
}

// Close closes s if it implements Closer.
func Close(s Sink) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Write([]Observation) error { return nil }
func (discard) Flush() error              { return nil }

// namespaced prefixes every observation name before forwarding.
type namespaced struct {
	next   Sink
	prefix Name
}

// WithNamespace returns a Sink prepending prefix to the name of every
// observation written to next.
func WithNamespace(next Sink, prefix Name) Sink {
	if prefix.IsEmpty() {
		return next
	}
	return &namespaced{next: next, prefix: prefix}
}

func (n *namespaced) Write(batch []Observation) error {
	out := make([]Observation, len(batch))
	for i, o := range batch {
		o.Name = o.Name.Prepend(n.prefix)
		out[i] = o
	}
	return n.next.Write(out)
}

func (n *namespaced) Flush() error {
	return n.next.Flush()
}

func (n *namespaced) Close() error {
	return Close(n.next)
}

// buffered accumulates observations until flushed or full.
type buffered struct {
	next Sink
	size int

	mu  sync.Mutex
	buf []Observation
}

// Buffered returns a Sink collecting observations and forwarding them to
// next as a single batch on Flush, or as soon as size observations are held.
func Buffered(next Sink, size int) Sink {
	if size <= 0 {
		return next
	}
	return &buffered{next: next, size: size, buf: make([]Observation, 0, size)}
}

func (b *buffered) Write(batch []Observation) error {
	b.mu.Lock()
	b.buf = append(b.buf, batch...)
	if len(b.buf) < b.size {
		b.mu.Unlock()
		return nil
	}
	out := b.take()
	b.mu.Unlock()
	return b.next.Write(out)
}

func (b *buffered) Flush() error {
	b.mu.Lock()
	out := b.take()
	b.mu.Unlock()

	var err error
	if len(out) > 0 {
		err = b.next.Write(out)
	}
	return errors.Join(err, b.next.Flush())
}

func (b *buffered) Close() error {
	return Close(b.next)
}

// take hands out the buffer and starts a new one. Callers hold mu.
func (b *buffered) take() []Observation {
	out := b.buf
	b.buf = make([]Observation, 0, b.size)
	return out
}
