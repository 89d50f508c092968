package generator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/neox5/simv/clock"
	"github.com/neox5/simv/source"
	"github.com/neox5/simv/transform"
	"github.com/neox5/simv/value"

	"github.com/neox5/statbox/internal/config"
	"github.com/neox5/statbox/internal/metric"
)

// Generator drives synthetic workload through metric handles.
// Every workload has its own simv clock and random source; a sampling
// loop reads the value on the same interval and records it.
type Generator struct {
	workloads []*workload

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// sampler is the read side of a simv value.
type sampler interface {
	Value() int
}

type workload struct {
	cfg    config.WorkloadConfig
	clock  clock.Clock
	value  sampler
	record func(v int)
}

// New creates a generator writing to scope.
func New(scope metric.Scope, workloads []config.WorkloadConfig) (*Generator, error) {
	g := &Generator{}
	for _, w := range workloads {
		wl, err := newWorkload(scope, w)
		if err != nil {
			return nil, err
		}
		g.workloads = append(g.workloads, wl)
	}
	return g, nil
}

func newWorkload(scope metric.Scope, cfg config.WorkloadConfig) (*workload, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("workload %q: invalid interval %s", cfg.Name, cfg.Interval)
	}
	if cfg.Min > cfg.Max {
		return nil, fmt.Errorf("workload %q: min %d above max %d", cfg.Name, cfg.Min, cfg.Max)
	}

	clk := clock.NewPeriodicClock(cfg.Interval)
	src := source.NewRandomIntSource(clk, cfg.Min, cfg.Max)

	base := value.New(src)
	wl := &workload{cfg: cfg, clock: clk, value: base}
	if cfg.Accumulate {
		acc := base.AddTransform(transform.NewAccumulate[int]())
		wl.value = acc
		if cfg.Kind == metric.KindCounter {
			// counters report what was added since the last sample
			wl.value = acc.EnableResetOnRead(0)
		}
	}

	switch cfg.Kind {
	case metric.KindCounter:
		c := scope.Counter(cfg.Name)
		wl.record = func(v int) { c.Count(int64(v)) }
	case metric.KindMarker:
		m := scope.Marker(cfg.Name)
		wl.record = func(v int) {
			for range v {
				m.Mark()
			}
		}
	case metric.KindTimer:
		t := scope.Timer(cfg.Name)
		wl.record = func(v int) { t.Interval(time.Duration(v) * time.Millisecond) }
	case metric.KindGauge:
		ga := scope.Gauge(cfg.Name)
		wl.record = func(v int) { ga.Value(int64(v)) }
	default:
		return nil, fmt.Errorf("workload %q: unsupported kind %s", cfg.Name, cfg.Kind)
	}

	slog.Debug("created workload", "workload", cfg)
	return wl, nil
}

// Len returns the number of workloads.
func (g *Generator) Len() int {
	return len(g.workloads)
}

// Start begins value generation. Starting a running generator is a no-op.
func (g *Generator) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return
	}
	g.running = true
	stop := make(chan struct{})
	g.stop = stop

	for _, wl := range g.workloads {
		wl.clock.Start()
		g.wg.Go(func() { wl.run(stop) })
	}
}

// Stop halts value generation and waits for the sampling loops to exit.
func (g *Generator) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return
	}
	g.running = false

	close(g.stop)
	g.wg.Wait()
	for _, wl := range g.workloads {
		wl.clock.Stop()
	}
}

func (wl *workload) run(stop <-chan struct{}) {
	ticker := time.NewTicker(wl.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			wl.record(wl.value.Value())
		}
	}
}
