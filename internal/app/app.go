package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getsentry/raven-go"

	"github.com/neox5/statbox/internal/bucket"
	"github.com/neox5/statbox/internal/config"
	"github.com/neox5/statbox/internal/exporter"
	"github.com/neox5/statbox/internal/metric"
	"github.com/neox5/statbox/internal/multi"
	"github.com/neox5/statbox/internal/proxy"
	"github.com/neox5/statbox/internal/queue"
	"github.com/neox5/statbox/internal/sampler"
	"github.com/neox5/statbox/internal/server"
)

// ErrClosed is returned by Reload after Close.
var ErrClosed = errors.New("app: pipeline closed")

// App holds the routed output chain and the components writing into it.
type App struct {
	Registry *proxy.Registry

	onError metric.ErrorHandler

	mu    sync.Mutex
	cfg   *config.Config
	chain *chain

	// prometheus endpoints outlive reloads since their port stays bound
	endpoints map[int]*endpoint
	serveCtx  context.Context
	serveWG   sync.WaitGroup
}

type endpoint struct {
	path   string
	sink   *exporter.Prometheus
	server *server.Server
}

// chain is one generation of outputs behind the root route.
type chain struct {
	head   metric.Sink
	bucket *bucket.Bucket
	multi  *multi.Multi
}

// New builds the output chain for cfg and routes the root slot to it.
func New(cfg *config.Config) (*App, error) {
	a := &App{
		Registry:  proxy.New(),
		onError:   errorHandler(cfg.Settings.SentryDSN),
		endpoints: make(map[int]*endpoint),
	}

	c, err := a.build(cfg)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	a.chain = c
	a.Registry.Route(metric.Name{}, c.head)

	slog.Info("created pipeline",
		"outputs", len(cfg.Outputs),
		"aggregate", cfg.Aggregate.Enabled,
		"namespace", cfg.Settings.Namespace.String(),
	)
	return a, nil
}

// errorHandler logs pipeline errors and reports them to Sentry when a DSN
// is configured.
func errorHandler(dsn string) metric.ErrorHandler {
	report := false
	if dsn != "" {
		if err := raven.SetDSN(dsn); err != nil {
			slog.Error("failed to configure sentry", "error", err)
		} else {
			report = true
		}
	}
	return func(err error) {
		slog.Warn("metrics pipeline error", "error", err)
		if report {
			raven.CaptureError(err, map[string]string{"component": "pipeline"})
		}
	}
}

// Config returns the configuration currently in effect.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Scope returns the scope application handles are created from. Handles
// keep working across reloads.
func (a *App) Scope() metric.Scope {
	return a.Registry.Scope(a.Config().Settings.Namespace)
}

// Flush flushes the current chain.
func (a *App) Flush() error {
	a.mu.Lock()
	c := a.chain
	a.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.head.Flush()
}

// Reload builds a chain for cfg, routes it and retires the previous one.
// On error the running chain is left untouched.
func (a *App) Reload(cfg *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.chain == nil {
		return ErrClosed
	}

	c, err := a.build(cfg)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	a.Registry.Route(metric.Name{}, c.head)

	old := a.chain
	a.chain = c
	a.cfg = cfg

	if err := old.retire(); err != nil {
		a.onError(fmt.Errorf("failed to retire pipeline: %w", err))
	}
	slog.Info("reloaded pipeline", "outputs", len(cfg.Outputs))
	return nil
}

// Close unroutes and retires the current chain.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.chain == nil {
		return nil
	}
	a.Registry.Unroute(metric.Name{})
	err := a.chain.retire()
	a.chain = nil
	return err
}

// Serve runs the prometheus endpoints until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	a.mu.Lock()
	a.serveCtx = ctx
	errChan := make(chan error, len(a.endpoints))
	for _, ep := range a.endpoints {
		a.startEndpoint(ctx, ep, errChan)
	}
	a.mu.Unlock()

	var err error
	select {
	case err = <-errChan:
	case <-ctx.Done():
	}
	a.serveWG.Wait()
	return err
}

func (a *App) startEndpoint(ctx context.Context, ep *endpoint, errChan chan<- error) {
	a.serveWG.Go(func() {
		if err := ep.server.Start(ctx); err != nil {
			err = fmt.Errorf("prometheus endpoint %s: %w", ep.path, err)
			if errChan == nil {
				a.onError(err)
				return
			}
			select {
			case errChan <- err:
			default:
			}
		}
	})
}

// Servers returns the prometheus endpoints.
func (a *App) Servers() []*server.Server {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*server.Server, 0, len(a.endpoints))
	for _, ep := range a.endpoints {
		out = append(out, ep.server)
	}
	return out
}

// build creates every output, the fan-out and the aggregating bucket.
// Callers hold mu or own a.
func (a *App) build(cfg *config.Config) (*chain, error) {
	sinks := make([]metric.Sink, 0, len(cfg.Outputs))
	for i, o := range cfg.Outputs {
		s, err := a.buildOutput(o)
		if err != nil {
			for _, built := range sinks {
				_ = metric.Close(built)
			}
			return nil, fmt.Errorf("output %d (%s): %w", i, o.Type, err)
		}
		slog.Debug("created output", "output", o)
		sinks = append(sinks, s)
	}

	m, err := multi.New(sinks, multi.WithErrorHandler(a.onError))
	if err != nil {
		return nil, err
	}
	c := &chain{head: m, multi: m}

	if cfg.Aggregate.Enabled {
		strategy, ok := bucket.ParseStrategy(cfg.Aggregate.Stats)
		if !ok {
			_ = m.Close()
			return nil, fmt.Errorf("unknown stats strategy %q", cfg.Aggregate.Stats)
		}
		opts := []bucket.Option{
			bucket.WithTarget(m),
			bucket.WithStrategy(strategy),
			bucket.WithErrorHandler(a.onError),
		}
		if cfg.Aggregate.PeriodLength {
			opts = append(opts, bucket.WithPeriodLength())
		}
		if cfg.Aggregate.EvictAfter > 0 {
			opts = append(opts, bucket.WithIdleEviction(cfg.Aggregate.EvictAfter))
		}
		b := bucket.New(opts...)
		b.FlushEvery(cfg.Aggregate.Interval)
		c.bucket = b
		c.head = b
	}
	return c, nil
}

// buildOutput creates the concrete sink of o and wraps it in its
// decorators, innermost first: buffered, namespace, sampler, queue.
func (a *App) buildOutput(o config.OutputConfig) (metric.Sink, error) {
	s, err := a.concrete(o)
	if err != nil {
		return nil, err
	}

	s = metric.Buffered(s, o.Buffered)
	s = metric.WithNamespace(s, o.Namespace)
	if o.SampleRate < 1 {
		sp, err := sampler.New(s, o.SampleRate)
		if err != nil {
			_ = metric.Close(s)
			return nil, err
		}
		s = sp
	}
	if o.Queue > 0 {
		s = queue.New(s, o.Queue,
			queue.WithErrorHandler(a.onError),
			queue.WithLogger(slog.Default().With("output", string(o.Type))),
		)
	}
	return s, nil
}

func (a *App) concrete(o config.OutputConfig) (metric.Sink, error) {
	switch o.Type {
	case config.OutputStdout:
		return exporter.ToStdout(textOptions(o.Stream)...)
	case config.OutputStderr:
		return exporter.ToStderr(textOptions(o.Stream)...)
	case config.OutputLog:
		return exporter.NewLog(slog.Default(), textOptions(o.Stream)...)
	case config.OutputStatsd:
		opts := []exporter.StatsdOption{
			exporter.Peer(o.Statsd.Address),
			exporter.MaxPacket(o.Statsd.MaxPacket),
		}
		if o.SampleRate < 1 {
			// the sampler in front drops the rest
			opts = append(opts, exporter.SampleRate(o.SampleRate))
		}
		return exporter.NewStatsd(opts...)
	case config.OutputGraphite:
		return exporter.NewGraphite(o.Graphite.Address)
	case config.OutputPrometheus:
		return a.prometheus(o.Prometheus)
	case config.OutputOTEL:
		return exporter.NewOTEL(&o.OTEL)
	default:
		return nil, fmt.Errorf("unknown output type %q", o.Type)
	}
}

func textOptions(c config.StreamConfig) []exporter.TextOption {
	opts := []exporter.TextOption{exporter.Format(c.Format), exporter.Level(c.Level)}
	if c.LineBuffer {
		opts = append(opts, exporter.LineBuffer())
	}
	return opts
}

// prometheus returns the sink serving on c.Port, creating the endpoint on
// first use.
func (a *App) prometheus(c config.PrometheusConfig) (metric.Sink, error) {
	if ep, ok := a.endpoints[c.Port]; ok {
		if ep.path != c.Path {
			slog.Warn("prometheus path change needs a restart",
				"port", c.Port, "path", ep.path, "configured", c.Path)
		}
		return ep.sink, nil
	}

	p, err := exporter.NewPrometheus()
	if err != nil {
		return nil, err
	}
	ep := &endpoint{
		path:   c.Path,
		sink:   p,
		server: server.New(c.Port, c.Path, p.Registry(), c.InternalMetrics),
	}
	a.endpoints[c.Port] = ep

	// endpoints added by a reload start right away
	if a.serveCtx != nil {
		a.startEndpoint(a.serveCtx, ep, nil)
	}
	return p, nil
}

// retire stops scheduled flushing, flushes what is left and closes every
// output.
func (c *chain) retire() error {
	var flushErr error
	if c.bucket != nil {
		c.bucket.Stop()
		flushErr = c.bucket.Flush()
	} else {
		flushErr = c.multi.Flush()
	}
	return errors.Join(flushErr, c.multi.Close())
}
