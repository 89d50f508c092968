package config

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/neox5/statbox/internal/metric"
	"github.com/neox5/statbox/internal/version"
)

// Resolve applies defaults to a validated raw configuration.
func Resolve(raw *RawConfig) (*Config, error) {
	cfg := &Config{
		Settings: SettingsConfig{
			Namespace: metric.ParseName(raw.Settings.Namespace),
			SentryDSN: raw.Settings.SentryDSN,
			Watch:     raw.Settings.Watch,
		},
		Aggregate: resolveAggregate(&raw.Aggregate),
		Monitor:   resolveMonitor(&raw.Monitor),
	}

	// Default to a single stdout output
	if len(raw.Outputs) == 0 {
		raw.Outputs = []RawOutputConfig{{Type: string(OutputStdout)}}
	}
	for i := range raw.Outputs {
		out, err := resolveOutput(&raw.Outputs[i])
		if err != nil {
			return nil, fmt.Errorf("failed to resolve output %d: %w", i, err)
		}
		slog.Debug("resolved output", "output", out)
		cfg.Outputs = append(cfg.Outputs, out)
	}

	for i := range raw.Workload {
		w, err := resolveWorkload(&raw.Workload[i])
		if err != nil {
			return nil, fmt.Errorf("failed to resolve workload %d: %w", i, err)
		}
		slog.Debug("resolved workload", "workload", w)
		cfg.Workload = append(cfg.Workload, w)
	}

	return cfg, nil
}

func resolveAggregate(raw *RawAggregateConfig) AggregateConfig {
	a := AggregateConfig{
		Enabled:      true,
		Interval:     raw.Interval,
		Stats:        raw.Stats,
		PeriodLength: raw.PeriodLength,
		EvictAfter:   raw.EvictAfter,
	}
	if raw.Enabled != nil {
		a.Enabled = *raw.Enabled
	}
	if a.Interval == 0 {
		a.Interval = DefaultAggregateInterval
	}
	if a.Stats == "" {
		a.Stats = DefaultAggregateStats
	}
	return a
}

func resolveMonitor(raw *RawMonitorConfig) MonitorConfig {
	m := MonitorConfig{Enabled: raw.Enabled, Interval: raw.Interval}
	if m.Interval == 0 {
		m.Interval = DefaultMonitorInterval
	}
	return m
}

func resolveOutput(raw *RawOutputConfig) (OutputConfig, error) {
	o := OutputConfig{
		Type:       OutputType(raw.Type),
		Namespace:  metric.ParseName(raw.Namespace),
		SampleRate: raw.SampleRate,
		Queue:      raw.Queue,
		Buffered:   raw.Buffered,
	}
	if o.SampleRate == 0 {
		o.SampleRate = 1
	}

	switch o.Type {
	case OutputStdout, OutputStderr, OutputLog:
		o.Stream = StreamConfig{Format: raw.Format, Level: slog.LevelInfo, LineBuffer: raw.LineBuffer}
		if o.Stream.Format == "" {
			o.Stream.Format = DefaultFormat
		}
		if raw.Level != "" {
			if err := o.Stream.Level.UnmarshalText([]byte(raw.Level)); err != nil {
				return o, fmt.Errorf("failed to parse level: %w", err)
			}
		}

	case OutputStatsd:
		o.Statsd = StatsdConfig{Address: raw.Address, MaxPacket: raw.MaxPacket}
		if o.Statsd.MaxPacket == 0 {
			o.Statsd.MaxPacket = DefaultMaxPacket
		}

	case OutputGraphite:
		o.Graphite = GraphiteConfig{Address: raw.Address}

	case OutputPrometheus:
		o.Prometheus = PrometheusConfig{
			Port:            raw.Port,
			Path:            raw.Path,
			InternalMetrics: raw.InternalMetrics,
		}
		if o.Prometheus.Port == 0 {
			o.Prometheus.Port = DefaultPrometheusPort
		}
		if o.Prometheus.Path == "" {
			o.Prometheus.Path = DefaultPrometheusPath
		}

	case OutputOTEL:
		o.OTEL = resolveOTEL(raw)
	}
	return o, nil
}

func resolveOTEL(raw *RawOutputConfig) OTELConfig {
	c := OTELConfig{
		Endpoint: raw.Endpoint,
		Protocol: raw.Protocol,
		Interval: raw.Interval,
		Headers:  maps.Clone(raw.Headers),
		Resource: maps.Clone(raw.Resource),
	}
	if c.Protocol == "" {
		c.Protocol = DefaultOTELProtocol
	}
	if c.Endpoint == "" {
		if c.Protocol == "grpc" {
			c.Endpoint = DefaultOTELEndpointGRPC
		} else {
			c.Endpoint = DefaultOTELEndpointHTTP
		}
	}
	if c.Interval == 0 {
		c.Interval = DefaultOTELInterval
	}

	if c.Resource == nil {
		c.Resource = make(map[string]string)
	}
	if _, exists := c.Resource["service.name"]; !exists {
		c.Resource["service.name"] = DefaultServiceName
	}
	if _, exists := c.Resource["service.version"]; !exists {
		c.Resource["service.version"] = version.String()
	}
	return c
}

func resolveWorkload(raw *RawWorkloadConfig) (WorkloadConfig, error) {
	kind, err := metric.ParseKind(raw.Kind)
	if err != nil {
		return WorkloadConfig{}, err
	}
	w := WorkloadConfig{
		Name:       raw.Name,
		Kind:       kind,
		Interval:   raw.Interval,
		Min:        raw.Min,
		Max:        raw.Max,
		Accumulate: raw.Accumulate,
	}
	if w.Interval == 0 {
		w.Interval = DefaultWorkloadInterval
	}
	return w, nil
}
