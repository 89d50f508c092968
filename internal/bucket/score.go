package bucket

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/neox5/statbox/internal/metric"
)

// ScoreSnapshot is a copy of a score taken at flush time.
type ScoreSnapshot struct {
	Kind    metric.Kind
	Count   int64
	Sum     int64
	Min     int64
	Max     int64
	Last    int64
	Elapsed time.Duration
}

// hasRange reports whether min and max were set by at least one write.
// A writer counted just before the swap may not have reached the CAS yet.
func (s ScoreSnapshot) hasRange() bool {
	return s.Min != math.MaxInt64 && s.Max != math.MinInt64
}

// Stats derives the published components of the snapshot.
// Rate is left out when no time elapsed.
func (s ScoreSnapshot) Stats() []Stat {
	if s.Count == 0 {
		return nil
	}
	secs := s.Elapsed.Seconds()
	mean := float64(s.Sum) / float64(s.Count)

	stats := make([]Stat, 0, 6)
	stats = append(stats, Stat{Type: StatCount, Int: s.Count})

	switch s.Kind {
	case metric.KindMarker:
		if secs > 0 {
			stats = append(stats, Stat{Type: StatRate, Float: float64(s.Count) / secs})
		}
		return stats
	case metric.KindGauge:
		stats = append(stats, Stat{Type: StatLast, Int: s.Last})
	default:
		stats = append(stats, Stat{Type: StatSum, Int: s.Sum})
	}

	if s.hasRange() {
		stats = append(stats, Stat{Type: StatMin, Int: s.Min}, Stat{Type: StatMax, Int: s.Max})
	}
	stats = append(stats, Stat{Type: StatMean, Float: mean})

	if secs > 0 {
		switch s.Kind {
		case metric.KindCounter:
			// per second throughput of the summed values, e.g. bytes/s
			stats = append(stats, Stat{Type: StatRate, Float: float64(s.Sum) / secs})
		case metric.KindTimer:
			stats = append(stats, Stat{Type: StatRate, Float: float64(s.Count) / secs})
		}
	}
	return stats
}

// score is the live accumulator of one metric. All fields are updated
// atomically and independently.
type score struct {
	name metric.Name
	kind metric.Kind

	// set once a write of another kind was seen
	mismatch atomic.Bool

	count atomic.Int64
	sum   atomic.Int64
	min   atomic.Int64
	max   atomic.Int64
	last  atomic.Int64

	// eviction bookkeeping
	inflight atomic.Int64
	retired  atomic.Bool
	idle     int // flusher only
}

func newScore(name metric.Name, kind metric.Kind) *score {
	s := &score{name: name, kind: kind}
	s.min.Store(math.MaxInt64)
	s.max.Store(math.MinInt64)
	return s
}

func (s *score) update(v int64) {
	s.count.Add(1)
	if s.kind == metric.KindMarker {
		return
	}
	s.sum.Add(v)
	if s.kind == metric.KindGauge {
		s.last.Store(v)
	}
	for cur := s.min.Load(); v < cur; cur = s.min.Load() {
		if s.min.CompareAndSwap(cur, v) {
			break
		}
	}
	for cur := s.max.Load(); v > cur; cur = s.max.Load() {
		if s.max.CompareAndSwap(cur, v) {
			break
		}
	}
}

// reset swaps the accumulated fields for blank ones. It returns false when
// nothing was written since the previous reset.
func (s *score) reset(elapsed time.Duration) (ScoreSnapshot, bool) {
	snap := ScoreSnapshot{Kind: s.kind, Elapsed: elapsed}

	snap.Count = s.count.Swap(0)
	snap.Sum = s.sum.Swap(0)
	if snap.Count == 0 {
		// a racing writer added its value but was counted after the swap
		if snap.Sum != 0 {
			s.sum.Add(snap.Sum)
			return snap, false
		}
		// drop extremes a writer of the previous period stored after its swap
		s.min.Store(math.MaxInt64)
		s.max.Store(math.MinInt64)
		return snap, false
	}

	snap.Min = s.min.Swap(math.MaxInt64)
	snap.Max = s.max.Swap(math.MinInt64)
	snap.Last = s.last.Load()
	return snap, true
}
