package metric

import "fmt"

// Kind defines the semantic type of a metric.
type Kind uint8

const (
	// KindCounter accumulates caller supplied values.
	KindCounter Kind = iota
	// KindMarker counts occurrences; every write has the value 1.
	KindMarker
	// KindTimer accumulates durations in nanoseconds.
	KindTimer
	// KindGauge samples an instantaneous value.
	KindGauge
)

// String returns the lower case kind name.
func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindMarker:
		return "marker"
	case KindTimer:
		return "timer"
	case KindGauge:
		return "gauge"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Unit returns the unit of values written for this kind.
func (k Kind) Unit() string {
	if k == KindTimer {
		return "ns"
	}
	return ""
}

// ParseKind looks up a Kind by its name.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "counter":
		return KindCounter, nil
	case "marker":
		return KindMarker, nil
	case "timer":
		return KindTimer, nil
	case "gauge":
		return KindGauge, nil
	default:
		return 0, fmt.Errorf("unknown metric kind: %q", s)
	}
}

// Observation is a single value recorded for a named metric.
type Observation struct {
	Name  Name
	Kind  Kind
	Value int64
}
