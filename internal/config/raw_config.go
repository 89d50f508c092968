package config

import (
	"time"

	"go.yaml.in/yaml/v4"
)

// RawConfig is the configuration as read from YAML, before defaults.
type RawConfig struct {
	Settings  RawSettingsConfig   `yaml:"settings"`
	Aggregate RawAggregateConfig  `yaml:"aggregate"`
	Outputs   []RawOutputConfig   `yaml:"outputs"`
	Workload  []RawWorkloadConfig `yaml:"workload,omitempty"`
	Monitor   RawMonitorConfig    `yaml:"monitor"`
}

// RawSettingsConfig holds general application settings
type RawSettingsConfig struct {
	Namespace string `yaml:"namespace"`
	SentryDSN string `yaml:"sentry_dsn"`
	Watch     bool   `yaml:"watch"`
}

// RawAggregateConfig controls the bucket in front of the outputs
type RawAggregateConfig struct {
	Enabled      *bool         `yaml:"enabled,omitempty"`
	Interval     time.Duration `yaml:"interval"`
	Stats        string        `yaml:"stats"`
	PeriodLength bool          `yaml:"period_length"`
	EvictAfter   int           `yaml:"evict_after"`
}

// RawOutputConfig describes one output and its decorators
type RawOutputConfig struct {
	Type       string  `yaml:"type"`
	Namespace  string  `yaml:"namespace,omitempty"`
	SampleRate float64 `yaml:"sample_rate,omitempty"`
	Queue      int     `yaml:"queue,omitempty"`
	Buffered   int     `yaml:"buffered,omitempty"`

	// stdout, stderr, log
	Format     string `yaml:"format,omitempty"`
	Level      string `yaml:"level,omitempty"`
	LineBuffer bool   `yaml:"line_buffer,omitempty"`

	// statsd, graphite
	Address   string `yaml:"address,omitempty"`
	MaxPacket int    `yaml:"max_packet,omitempty"`

	// prometheus
	Port            int    `yaml:"port,omitempty"`
	Path            string `yaml:"path,omitempty"`
	InternalMetrics bool   `yaml:"internal_metrics,omitempty"`

	// otel
	Endpoint string            `yaml:"endpoint,omitempty"`
	Protocol string            `yaml:"protocol,omitempty"`
	Interval time.Duration     `yaml:"interval,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Resource map[string]string `yaml:"resource,omitempty"`
}

// UnmarshalYAML handles both short (stdout) and full (type: stdout) forms
func (o *RawOutputConfig) UnmarshalYAML(value *yaml.Node) error {
	var shortForm string
	if err := value.Decode(&shortForm); err == nil {
		*o = RawOutputConfig{Type: shortForm}
		return nil
	}

	type rawOutputConfig RawOutputConfig // Avoid recursion
	var fullForm rawOutputConfig
	if err := value.Decode(&fullForm); err != nil {
		return err
	}
	*o = RawOutputConfig(fullForm)
	return nil
}

// RawWorkloadConfig defines one synthetic metric
type RawWorkloadConfig struct {
	Name       string        `yaml:"name"`
	Kind       string        `yaml:"kind"`
	Interval   time.Duration `yaml:"interval"`
	Min        int           `yaml:"min"`
	Max        int           `yaml:"max"`
	Accumulate bool          `yaml:"accumulate"`
}

// RawMonitorConfig controls process self-monitoring
type RawMonitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}
