package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/neox5/statbox/internal/metric"
)

// Monitor tracks process resource usage, logs it and records it as gauges.
type Monitor struct {
	interval time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
	proc     *process.Process
	gauges   *metric.CachedScope
}

// New creates a new monitor with specified collection interval. Gauges are
// named process.* under scope.
func New(interval time.Duration, logger *slog.Logger, scope metric.Scope) (*Monitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process handle: %w", err)
	}

	gauges, err := metric.Cached(scope.Named("process"), 8)
	if err != nil {
		return nil, err
	}
	return &Monitor{
		interval: interval,
		logger:   logger,
		proc:     proc,
		gauges:   gauges,
	}, nil
}

// Run starts the monitoring loop in a background goroutine.
// It stops when ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.wg.Go(func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		// Immediate first collection
		m.collect()

		for {
			select {
			case <-ctx.Done():
				m.logger.Info("monitor shutdown complete")
				return
			case <-ticker.C:
				m.collect()
			}
		}
	})
}

// Wait blocks until the monitor goroutine exits.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// collect reads current usage, records the gauges and logs one line.
func (m *Monitor) collect() {
	processCPU, err := m.proc.CPUPercent()
	if err != nil {
		m.logger.Warn("failed to get CPU percent", "error", err)
		processCPU = 0
	}

	cores := runtime.GOMAXPROCS(-1)
	maxCPU := float64(cores * 100)

	utilization := 0.0
	if maxCPU > 0 {
		utilization = processCPU / maxCPU
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	goroutines := runtime.NumGoroutine()

	m.gauges.Gauge("cpu_permille").Value(int64(processCPU * 10))
	m.gauges.Gauge("goroutines").Value(int64(goroutines))
	m.gauges.Gauge("heap_alloc_bytes").Value(int64(ms.HeapAlloc))
	m.gauges.Gauge("gc_count").Value(int64(ms.NumGC))

	saturation := "normal"
	if utilization > 0.95 {
		saturation = "saturated"
	} else if utilization > 0.80 {
		saturation = "high"
	}

	mb := func(b uint64) float64 {
		return float64(b) / (1024 * 1024)
	}
	kb := func(b uint64) float64 {
		return float64(b) / 1024
	}

	m.logger.LogAttrs(
		context.Background(),
		slog.LevelInfo,
		"resource",
		slog.String("cpu", fmt.Sprintf("%.4f%%", processCPU)),
		slog.String("util", fmt.Sprintf("%.4f%%", utilization*100)),
		slog.Int("cores", cores),
		slog.Int("gor", goroutines),
		slog.String(
			"mem",
			fmt.Sprintf(
				"alloc:%.2fMB sys:%.2fMB stack:%.0fKB",
				mb(ms.HeapAlloc),
				mb(ms.HeapSys),
				kb(ms.StackInuse),
			),
		),
		slog.Uint64("gc", uint64(ms.NumGC)),
		slog.String("sat", saturation),
	)

	if saturation == "saturated" {
		m.logger.Warn(
			"cpu saturation detected",
			"cpu", processCPU,
			"util_pct", utilization*100,
			"action", "reduce load or increase GOMAXPROCS",
		)
	}
}
