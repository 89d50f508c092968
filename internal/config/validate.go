package config

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"strings"

	"github.com/neox5/statbox/internal/metric"
)

// Validate checks the raw configuration for errors that defaults cannot fix.
func Validate(raw *RawConfig) error {
	if err := validateAggregate(&raw.Aggregate); err != nil {
		return err
	}
	for i := range raw.Outputs {
		if err := validateOutput(&raw.Outputs[i]); err != nil {
			return fmt.Errorf("config: output %d: %w", i, err)
		}
	}

	seen := make(map[string]bool)
	for i := range raw.Workload {
		w := &raw.Workload[i]
		if err := validateWorkload(w); err != nil {
			return fmt.Errorf("config: workload %d: %w", i, err)
		}
		if seen[w.Name] {
			return fmt.Errorf("config: workload %d: duplicate name %q", i, w.Name)
		}
		seen[w.Name] = true
	}

	if raw.Monitor.Interval < 0 {
		return fmt.Errorf("config: monitor interval must not be negative")
	}
	return nil
}

func validateAggregate(a *RawAggregateConfig) error {
	switch a.Stats {
	case "", "all_stats", "summary", "average":
	default:
		return fmt.Errorf("config: unknown aggregate stats %q (must be all_stats, summary or average)", a.Stats)
	}
	if a.Interval < 0 {
		return fmt.Errorf("config: aggregate interval must not be negative")
	}
	if a.EvictAfter < 0 {
		return fmt.Errorf("config: evict_after must not be negative")
	}
	return nil
}

func validateOutput(o *RawOutputConfig) error {
	if math.IsNaN(o.SampleRate) || o.SampleRate < 0 || o.SampleRate > 1 {
		return fmt.Errorf("sample_rate %v out of range (0, 1]", o.SampleRate)
	}
	if o.Queue < 0 {
		return fmt.Errorf("queue must not be negative")
	}
	if o.Buffered < 0 {
		return fmt.Errorf("buffered must not be negative")
	}

	switch OutputType(o.Type) {
	case OutputStdout, OutputStderr:
	case OutputLog:
		if o.Level != "" {
			var lvl slog.Level
			if err := lvl.UnmarshalText([]byte(o.Level)); err != nil {
				return fmt.Errorf("invalid log level %q", o.Level)
			}
		}
	case OutputStatsd, OutputGraphite:
		if o.Address == "" {
			return fmt.Errorf("%s requires an address", o.Type)
		}
		if _, _, err := net.SplitHostPort(o.Address); err != nil {
			return fmt.Errorf("invalid address %q: %w", o.Address, err)
		}
		if o.MaxPacket < 0 {
			return fmt.Errorf("max_packet must not be negative")
		}
	case OutputPrometheus:
		if o.Port < 0 || o.Port > 65535 {
			return fmt.Errorf("invalid prometheus port: %d", o.Port)
		}
		if o.Path != "" && !strings.HasPrefix(o.Path, "/") {
			return fmt.Errorf("prometheus path must start with /: %q", o.Path)
		}
	case OutputOTEL:
		switch o.Protocol {
		case "", "http", "grpc":
		default:
			return fmt.Errorf("invalid protocol: %s (must be grpc or http)", o.Protocol)
		}
		if o.Interval < 0 {
			return fmt.Errorf("otel interval must not be negative")
		}
	case "":
		return fmt.Errorf("missing type")
	default:
		return fmt.Errorf("unknown type %q", o.Type)
	}
	return nil
}

func validateWorkload(w *RawWorkloadConfig) error {
	if w.Name == "" {
		return fmt.Errorf("missing name")
	}
	if _, err := metric.ParseKind(w.Kind); err != nil {
		return err
	}
	if w.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}
	if w.Min > w.Max {
		return fmt.Errorf("min %d greater than max %d", w.Min, w.Max)
	}
	return nil
}
