package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neox5/statbox/internal/metric"
)

func resolveYAML(t *testing.T, data string) *Config {
	t.Helper()
	raw, err := ParseBytes([]byte(data))
	require.NoError(t, err)
	cfg, err := Resolve(raw)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := resolveYAML(t, "{}")

	assert.True(t, cfg.Aggregate.Enabled)
	assert.Equal(t, DefaultAggregateInterval, cfg.Aggregate.Interval)
	assert.Equal(t, "summary", cfg.Aggregate.Stats)
	require.Len(t, cfg.Outputs, 1)
	assert.Equal(t, OutputStdout, cfg.Outputs[0].Type)
	assert.Equal(t, 1.0, cfg.Outputs[0].SampleRate)
	assert.Equal(t, DefaultFormat, cfg.Outputs[0].Stream.Format)
	assert.Equal(t, DefaultMonitorInterval, cfg.Monitor.Interval)
	assert.False(t, cfg.Monitor.Enabled)
}

func TestFullConfig(t *testing.T) {
	cfg := resolveYAML(t, `
settings:
  namespace: app.web
  watch: true
aggregate:
  enabled: false
  interval: 5s
  stats: all_stats
  period_length: true
  evict_after: 3
outputs:
  - stderr
  - type: log
    level: debug
    format: "{name}={value}"
    line_buffer: true
  - type: statsd
    address: 127.0.0.1:8125
    sample_rate: 0.5
    queue: 100
    namespace: edge
  - type: graphite
    address: localhost:2003
    buffered: 50
  - type: prometheus
    port: 9999
  - type: otel
    protocol: grpc
    headers: { x-token: abc }
workload:
  - { name: requests, kind: counter, min: 1, max: 5 }
  - { name: latency, kind: timer, interval: 250ms, min: 10, max: 100, accumulate: true }
monitor:
  enabled: true
`)

	assert.Equal(t, metric.NewName("app", "web"), cfg.Settings.Namespace)
	assert.True(t, cfg.Settings.Watch)

	assert.Equal(t, AggregateConfig{Enabled: false, Interval: 5 * time.Second, Stats: "all_stats", PeriodLength: true, EvictAfter: 3}, cfg.Aggregate)

	require.Len(t, cfg.Outputs, 6)
	assert.Equal(t, OutputStderr, cfg.Outputs[0].Type)

	log := cfg.Outputs[1]
	assert.Equal(t, slog.LevelDebug, log.Stream.Level)
	assert.Equal(t, "{name}={value}", log.Stream.Format)
	assert.True(t, log.Stream.LineBuffer)

	statsd := cfg.Outputs[2]
	assert.Equal(t, "127.0.0.1:8125", statsd.Statsd.Address)
	assert.Equal(t, DefaultMaxPacket, statsd.Statsd.MaxPacket)
	assert.Equal(t, 0.5, statsd.SampleRate)
	assert.Equal(t, 100, statsd.Queue)
	assert.Equal(t, "edge", statsd.Namespace.String())

	assert.Equal(t, 50, cfg.Outputs[3].Buffered)

	prom := cfg.Outputs[4].Prometheus
	assert.Equal(t, 9999, prom.Port)
	assert.Equal(t, DefaultPrometheusPath, prom.Path)

	otel := cfg.Outputs[5].OTEL
	assert.Equal(t, DefaultOTELEndpointGRPC, otel.Endpoint)
	assert.Equal(t, DefaultOTELInterval, otel.Interval)
	assert.Equal(t, "abc", otel.Headers["x-token"])
	assert.Equal(t, DefaultServiceName, otel.Resource["service.name"])
	assert.Contains(t, otel.Resource, "service.version")

	require.Len(t, cfg.Workload, 2)
	assert.Equal(t, metric.KindCounter, cfg.Workload[0].Kind)
	assert.Equal(t, DefaultWorkloadInterval, cfg.Workload[0].Interval)
	assert.Equal(t, 250*time.Millisecond, cfg.Workload[1].Interval)
	assert.True(t, cfg.Workload[1].Accumulate)

	assert.True(t, cfg.Monitor.Enabled)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"unknown output", "outputs: [kafka]", `unknown type "kafka"`},
		{"missing address", "outputs: [statsd]", "requires an address"},
		{"bad address", "outputs: [{type: graphite, address: nohost}]", "invalid address"},
		{"bad rate", "outputs: [{type: stdout, sample_rate: 1.5}]", "sample_rate"},
		{"bad protocol", "outputs: [{type: otel, protocol: udp}]", "invalid protocol"},
		{"bad port", "outputs: [{type: prometheus, port: 70000}]", "invalid prometheus port"},
		{"bad level", "outputs: [{type: log, level: loud}]", "invalid log level"},
		{"bad stats", "aggregate: {stats: p99}", "unknown aggregate stats"},
		{"bad kind", "workload: [{name: a, kind: histogram}]", "unknown metric kind"},
		{"min max", "workload: [{name: a, kind: gauge, min: 5, max: 1}]", "greater than max"},
		{"duplicate", "workload: [{name: a, kind: gauge}, {name: a, kind: gauge}]", "duplicate name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Contains(t, err.Error(), "config:")
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("outputs: [stdout]\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Outputs, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
