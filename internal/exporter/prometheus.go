package exporter

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/neox5/statbox/internal/metric"
	"github.com/neox5/statbox/internal/version"
)

// Prometheus keeps the latest value of every metric written to it and
// exposes them through its own registry. Counters and markers accumulate,
// everything else is a gauge.
type Prometheus struct {
	errorCount

	registry *prometheus.Registry

	mu     sync.RWMutex
	values map[string]*promValue
}

// promValue holds metadata and the current value of a Prometheus metric.
type promValue struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     float64
}

// NewPrometheus returns a sink with a private registry that also carries
// the build info collector.
func NewPrometheus() (*Prometheus, error) {
	p := &Prometheus{
		errorCount: errorCount{sink: "prometheus"},
		registry:   prometheus.NewRegistry(),
		values:     make(map[string]*promValue),
	}
	if err := p.registry.Register(collector{p}); err != nil {
		return nil, fmt.Errorf("failed to register collector: %w", err)
	}
	if err := p.registry.Register(version.Collector()); err != nil {
		return nil, fmt.Errorf("failed to register version collector: %w", err)
	}
	return p, nil
}

// Registry returns the registry to serve.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Write updates the stored values.
func (p *Prometheus) Write(batch []metric.Observation) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var encErr error
	for _, o := range batch {
		name := PrometheusName(o.Name)
		v, ok := p.values[name]
		if !ok {
			v = newPromValue(name, o)
			p.values[name] = v
			slog.Debug("registered prometheus metric", "name", name, "kind", o.Kind)
		}

		if v.valueType == prometheus.CounterValue {
			if o.Value < 0 {
				if encErr == nil {
					encErr = p.fail(metric.ErrEncoding, fmt.Errorf("negative counter increment %s=%d", name, o.Value))
				}
				continue
			}
			v.value += float64(o.Value)
		} else {
			v.value = float64(o.Value)
		}
	}
	return encErr
}

// Flush is a no-op; values are read on scrape.
func (p *Prometheus) Flush() error {
	return nil
}

func newPromValue(name string, o metric.Observation) *promValue {
	vt := prometheus.GaugeValue
	if o.Kind == metric.KindCounter || o.Kind == metric.KindMarker {
		vt = prometheus.CounterValue
	}
	help := fmt.Sprintf("statbox %s %s", o.Kind, o.Name)
	if unit := o.Kind.Unit(); unit != "" {
		help += " (" + unit + ")"
	}
	return &promValue{
		desc:      prometheus.NewDesc(name, help, nil, nil),
		valueType: vt,
	}
}

// collector implements prometheus.Collector over the stored values.
// It is unchecked since metrics appear as they are written.
type collector struct {
	p *Prometheus
}

// Describe sends no descriptors.
func (collector) Describe(chan<- *prometheus.Desc) {}

// Collect sends the current value of every metric.
func (c collector) Collect(ch chan<- prometheus.Metric) {
	c.p.mu.RLock()
	defer c.p.mu.RUnlock()

	for _, v := range c.p.values {
		m, err := prometheus.NewConstMetric(v.desc, v.valueType, v.value)
		if err != nil {
			continue
		}
		ch <- m
	}
}

// PrometheusName joins name segments with underscores and replaces
// characters outside [a-zA-Z0-9_:].
func PrometheusName(n metric.Name) string {
	var b strings.Builder
	for i, seg := range n.Segments() {
		if i > 0 {
			b.WriteByte('_')
		}
		for _, r := range seg {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
				b.WriteRune(r)
			default:
				b.WriteByte('_')
			}
		}
	}
	s := b.String()
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "_" + s
	}
	return s
}
