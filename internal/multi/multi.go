// Package multi broadcasts writes to several sinks.
package multi

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/neox5/statbox/internal/metric"
)

// ErrNoTargets is returned when a Multi is built without sinks.
var ErrNoTargets = errors.New("multi: at least one sink required")

// Multi forwards every write and flush to each sink in order. A failing
// sink does not stop delivery to the others.
type Multi struct {
	sinks    []metric.Sink
	onError  metric.ErrorHandler
	failures atomic.Int64
}

// Option configures a Multi.
type Option func(*Multi)

// WithErrorHandler receives every constituent failure.
func WithErrorHandler(h metric.ErrorHandler) Option {
	return func(m *Multi) { m.onError = h }
}

// New returns a Multi over sinks.
func New(sinks []metric.Sink, opts ...Option) (*Multi, error) {
	if len(sinks) == 0 {
		return nil, ErrNoTargets
	}
	m := &Multi{sinks: append([]metric.Sink(nil), sinks...)}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Write forwards batch to every sink and joins their errors.
func (m *Multi) Write(batch []metric.Observation) error {
	var errs []error
	for i, s := range m.sinks {
		if err := s.Write(batch); err != nil {
			errs = append(errs, m.fail(i, "write", err))
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every sink and joins their errors.
func (m *Multi) Flush() error {
	var errs []error
	for i, s := range m.sinks {
		if err := s.Flush(); err != nil {
			errs = append(errs, m.fail(i, "flush", err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := metric.Close(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Failures returns the number of failed constituent calls so far.
func (m *Multi) Failures() int64 {
	return m.failures.Load()
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

func (m *Multi) fail(i int, op string, err error) error {
	m.failures.Add(1)
	err = fmt.Errorf("sink %d %s: %w", i, op, err)
	if m.onError != nil {
		m.onError(err)
	}
	return err
}
