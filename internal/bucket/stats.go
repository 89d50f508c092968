package bucket

import (
	"math"
	"sync/atomic"

	"github.com/neox5/statbox/internal/metric"
)

// StatType identifies one component derived from a score.
type StatType uint8

const (
	StatCount StatType = iota
	StatSum
	StatMin
	StatMax
	StatLast
	StatMean
	StatRate
)

// String returns the suffix used by AllStats.
func (t StatType) String() string {
	switch t {
	case StatCount:
		return "count"
	case StatSum:
		return "sum"
	case StatMin:
		return "min"
	case StatMax:
		return "max"
	case StatLast:
		return "last"
	case StatMean:
		return "mean"
	case StatRate:
		return "rate"
	default:
		return "unknown"
	}
}

// Stat is one derived value. Mean and Rate carry Float, the rest Int.
type Stat struct {
	Type  StatType
	Int   int64
	Float float64
}

// Value returns the stat as an integer, rounding Mean and Rate.
func (s Stat) Value() int64 {
	switch s.Type {
	case StatMean, StatRate:
		return int64(math.Round(s.Float))
	default:
		return s.Int
	}
}

// Strategy maps one stat of a metric to at most one published observation.
type Strategy func(kind metric.Kind, name metric.Name, stat Stat) (metric.Kind, metric.Name, int64, bool)

// AllStats publishes every stat under the metric name with the stat type
// appended, e.g. requests.count.
func AllStats(kind metric.Kind, name metric.Name, stat Stat) (metric.Kind, metric.Name, int64, bool) {
	out := name.Append(stat.Type.String())
	switch stat.Type {
	case StatCount:
		return metric.KindCounter, out, stat.Value(), true
	case StatSum, StatMean:
		return kind, out, stat.Value(), true
	default:
		return metric.KindGauge, out, stat.Value(), true
	}
}

// Summary publishes a single stat per metric under the metric's own name:
// the count for markers, the sum for counters and timers and the mean
// for gauges.
func Summary(kind metric.Kind, name metric.Name, stat Stat) (metric.Kind, metric.Name, int64, bool) {
	switch kind {
	case metric.KindMarker:
		if stat.Type == StatCount {
			return metric.KindCounter, name, stat.Value(), true
		}
	case metric.KindCounter, metric.KindTimer:
		if stat.Type == StatSum {
			return kind, name, stat.Value(), true
		}
	case metric.KindGauge:
		if stat.Type == StatMean {
			return metric.KindGauge, name, stat.Value(), true
		}
	}
	return 0, metric.Name{}, 0, false
}

// Average publishes the mean of every metric, or the count for markers.
func Average(kind metric.Kind, name metric.Name, stat Stat) (metric.Kind, metric.Name, int64, bool) {
	if kind == metric.KindMarker {
		if stat.Type == StatCount {
			return metric.KindCounter, name, stat.Value(), true
		}
		return 0, metric.Name{}, 0, false
	}
	if stat.Type == StatMean {
		return metric.KindGauge, name, stat.Value(), true
	}
	return 0, metric.Name{}, 0, false
}

// ParseStrategy looks up a preset by its config name.
func ParseStrategy(s string) (Strategy, bool) {
	switch s {
	case "all_stats":
		return AllStats, true
	case "summary":
		return Summary, true
	case "average":
		return Average, true
	default:
		return nil, false
	}
}

var defaultStrategy atomic.Pointer[Strategy]

// DefaultStrategy returns the strategy used by buckets that have none set.
func DefaultStrategy() Strategy {
	if s := defaultStrategy.Load(); s != nil {
		return *s
	}
	return Summary
}

// SetDefaultStrategy replaces the process wide default strategy.
func SetDefaultStrategy(s Strategy) {
	if s == nil {
		ResetDefaultStrategy()
		return
	}
	defaultStrategy.Store(&s)
}

// ResetDefaultStrategy restores Summary as the default.
func ResetDefaultStrategy() {
	defaultStrategy.Store(nil)
}
