package config

import (
	"log/slog"
	"time"

	"github.com/neox5/statbox/internal/metric"
)

const (
	// Aggregation defaults
	DefaultAggregateInterval = 10 * time.Second
	DefaultAggregateStats    = "summary"

	// Stream defaults
	DefaultFormat = "{name} {value}\n"

	// Statsd defaults
	DefaultMaxPacket = 1432

	// Prometheus defaults
	DefaultPrometheusPort = 9090
	DefaultPrometheusPath = "/metrics"

	// OTEL defaults
	DefaultOTELProtocol     = "http"
	DefaultOTELEndpointHTTP = "localhost:4318"
	DefaultOTELEndpointGRPC = "localhost:4317"
	DefaultOTELInterval     = 10 * time.Second
	DefaultServiceName      = "statbox"

	// Workload and monitor defaults
	DefaultWorkloadInterval = 1 * time.Second
	DefaultMonitorInterval  = 5 * time.Second
)

// OutputType names a concrete sink.
type OutputType string

const (
	OutputStdout     OutputType = "stdout"
	OutputStderr     OutputType = "stderr"
	OutputLog        OutputType = "log"
	OutputStatsd     OutputType = "statsd"
	OutputGraphite   OutputType = "graphite"
	OutputPrometheus OutputType = "prometheus"
	OutputOTEL       OutputType = "otel"
)

// Config holds the complete resolved application configuration.
type Config struct {
	Settings  SettingsConfig
	Aggregate AggregateConfig
	Outputs   []OutputConfig
	Workload  []WorkloadConfig
	Monitor   MonitorConfig
}

// SettingsConfig holds general application settings.
type SettingsConfig struct {
	Namespace metric.Name
	SentryDSN string
	Watch     bool
}

// AggregateConfig controls the bucket in front of the outputs.
type AggregateConfig struct {
	Enabled      bool
	Interval     time.Duration
	Stats        string
	PeriodLength bool
	EvictAfter   int
}

// OutputConfig is one fully resolved output.
type OutputConfig struct {
	Type       OutputType
	Namespace  metric.Name
	SampleRate float64
	Queue      int
	Buffered   int

	Stream     StreamConfig
	Statsd     StatsdConfig
	Graphite   GraphiteConfig
	Prometheus PrometheusConfig
	OTEL       OTELConfig
}

// StreamConfig applies to stdout, stderr and log outputs.
type StreamConfig struct {
	Format     string
	Level      slog.Level
	LineBuffer bool
}

// StatsdConfig defines the statsd UDP target.
type StatsdConfig struct {
	Address   string
	MaxPacket int
}

// GraphiteConfig defines the graphite TCP target.
type GraphiteConfig struct {
	Address string
}

// PrometheusConfig defines the pull endpoint.
type PrometheusConfig struct {
	Port            int
	Path            string
	InternalMetrics bool
}

// OTELConfig defines OTLP push settings.
type OTELConfig struct {
	Endpoint string
	Protocol string
	Interval time.Duration
	Headers  map[string]string
	Resource map[string]string
}

// WorkloadConfig defines one synthetic metric.
type WorkloadConfig struct {
	Name       string
	Kind       metric.Kind
	Interval   time.Duration
	Min        int
	Max        int
	Accumulate bool
}

// MonitorConfig controls process self-monitoring.
type MonitorConfig struct {
	Enabled  bool
	Interval time.Duration
}

// LogValue implements slog.LogValuer for structured logging
func (o OutputConfig) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("type", string(o.Type)),
	}
	if !o.Namespace.IsEmpty() {
		attrs = append(attrs, slog.String("namespace", o.Namespace.String()))
	}
	if o.SampleRate < 1 {
		attrs = append(attrs, slog.Float64("sample_rate", o.SampleRate))
	}
	if o.Queue > 0 {
		attrs = append(attrs, slog.Int("queue", o.Queue))
	}
	if o.Buffered > 0 {
		attrs = append(attrs, slog.Int("buffered", o.Buffered))
	}
	switch o.Type {
	case OutputStatsd:
		attrs = append(attrs, slog.String("address", o.Statsd.Address))
	case OutputGraphite:
		attrs = append(attrs, slog.String("address", o.Graphite.Address))
	case OutputPrometheus:
		attrs = append(attrs, slog.Int("port", o.Prometheus.Port), slog.String("path", o.Prometheus.Path))
	case OutputOTEL:
		attrs = append(attrs, slog.String("endpoint", o.OTEL.Endpoint), slog.String("protocol", o.OTEL.Protocol))
	}
	return slog.GroupValue(attrs...)
}

// LogValue implements slog.LogValuer for structured logging
func (w WorkloadConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", w.Name),
		slog.String("kind", w.Kind.String()),
		slog.Duration("interval", w.Interval),
		slog.Int("min", w.Min),
		slog.Int("max", w.Max),
		slog.Bool("accumulate", w.Accumulate),
	)
}
