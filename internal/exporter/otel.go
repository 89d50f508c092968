package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/neox5/statbox/internal/config"
	"github.com/neox5/statbox/internal/metric"
)

const otelTimeout = 5 * time.Second

// OTEL records observations into OTel SDK instruments pushed over OTLP.
// Counters, markers and timers are monotonic counters; gauges are gauges.
type OTEL struct {
	errorCount

	meterProvider *sdkmetric.MeterProvider
	meter         otelmetric.Meter

	mu       sync.Mutex
	counters map[string]otelmetric.Int64Counter
	gauges   map[string]otelmetric.Int64Gauge
}

// NewOTEL creates an OTEL sink pushing to the configured collector.
func NewOTEL(cfg *config.OTELConfig) (*OTEL, error) {
	res, err := createOTELResource(cfg.Resource)
	if err != nil {
		return nil, err
	}
	mp, err := createMeterProvider(cfg, res)
	if err != nil {
		return nil, err
	}

	slog.Info("created otel exporter",
		"endpoint", cfg.Endpoint,
		"protocol", cfg.Protocol,
		"push_interval", cfg.Interval,
	)
	return newOTEL(mp), nil
}

func newOTEL(mp *sdkmetric.MeterProvider) *OTEL {
	return &OTEL{
		errorCount:    errorCount{sink: "otel"},
		meterProvider: mp,
		meter:         mp.Meter("statbox"),
		counters:      make(map[string]otelmetric.Int64Counter),
		gauges:        make(map[string]otelmetric.Int64Gauge),
	}
}

// Write records every observation on its instrument, creating it on first use.
func (e *OTEL) Write(batch []metric.Observation) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx := context.Background()
	var firstErr error
	for _, o := range batch {
		if err := e.record(ctx, o); err != nil && firstErr == nil {
			firstErr = e.fail(metric.ErrEncoding, err)
		}
	}
	return firstErr
}

// record is called with mu held.
func (e *OTEL) record(ctx context.Context, o metric.Observation) error {
	name := o.Name.String()

	if o.Kind == metric.KindGauge {
		g, ok := e.gauges[name]
		if !ok {
			var err error
			g, err = e.meter.Int64Gauge(name)
			if err != nil {
				return fmt.Errorf("failed to create gauge %q: %w", name, err)
			}
			e.gauges[name] = g
			slog.Debug("registered otel metric", "name", name, "kind", o.Kind)
		}
		g.Record(ctx, o.Value)
		return nil
	}

	if o.Value < 0 {
		return fmt.Errorf("negative counter increment %s=%d", name, o.Value)
	}
	c, ok := e.counters[name]
	if !ok {
		opts := []otelmetric.Int64CounterOption{}
		if unit := o.Kind.Unit(); unit != "" {
			opts = append(opts, otelmetric.WithUnit(unit))
		}
		var err error
		c, err = e.meter.Int64Counter(name, opts...)
		if err != nil {
			return fmt.Errorf("failed to create counter %q: %w", name, err)
		}
		e.counters[name] = c
		slog.Debug("registered otel metric", "name", name, "kind", o.Kind)
	}
	c.Add(ctx, o.Value)
	return nil
}

// Flush pushes everything recorded so far.
func (e *OTEL) Flush() error {
	ctx, cancel := context.WithTimeout(context.Background(), otelTimeout)
	defer cancel()

	if err := e.meterProvider.ForceFlush(ctx); err != nil {
		return e.fail(metric.ErrTargetUnavailable, err)
	}
	return nil
}

// Close flushes and shuts the meter provider down.
func (e *OTEL) Close() error {
	slog.Info("shutting down otel exporter")

	ctx, cancel := context.WithTimeout(context.Background(), otelTimeout)
	defer cancel()

	return e.meterProvider.Shutdown(ctx)
}
