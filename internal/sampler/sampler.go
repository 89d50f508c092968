// Package sampler drops observations at random to reduce volume.
package sampler

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/neox5/statbox/internal/metric"
)

// ErrInvalidRate is returned for rates outside (0, 1].
var ErrInvalidRate = errors.New("sampler: rate must be in (0, 1]")

// Sampler forwards each observation with probability Rate. Kept
// observations are not rescaled; downstream protocols annotate the rate.
type Sampler struct {
	next metric.Sink
	rate float64
	rand func() float64
}

// New wraps next with the given sampling rate.
func New(next metric.Sink, rate float64) (*Sampler, error) {
	if !(rate > 0 && rate <= 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRate, rate)
	}
	return &Sampler{next: next, rate: rate, rand: rand.Float64}, nil
}

// Rate returns the configured sampling rate.
func (s *Sampler) Rate() float64 {
	return s.rate
}

// Write forwards the retained part of batch. Nothing is forwarded when
// every observation was dropped.
func (s *Sampler) Write(batch []metric.Observation) error {
	if s.rate == 1 {
		return s.next.Write(batch)
	}
	if len(batch) == 1 {
		if s.rand() < s.rate {
			return s.next.Write(batch)
		}
		return nil
	}

	var out []metric.Observation
	for i := range batch {
		if s.rand() < s.rate {
			if out != nil {
				out = append(out, batch[i])
			}
			continue
		}
		// first drop: copy what was kept so far
		if out == nil {
			out = make([]metric.Observation, i, len(batch))
			copy(out, batch[:i])
		}
	}
	if out == nil {
		return s.next.Write(batch)
	}
	if len(out) == 0 {
		return nil
	}
	return s.next.Write(out)
}

// Flush is always forwarded.
func (s *Sampler) Flush() error {
	return s.next.Flush()
}

// Close closes the wrapped sink.
func (s *Sampler) Close() error {
	return metric.Close(s.next)
}
