// Package bucket aggregates observations into per metric scores and
// periodically publishes derived statistics.
package bucket

import (
	"errors"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neox5/statbox/internal/metric"
)

var periodLengthName = metric.NewName("_period_length")

// Bucket is a Sink aggregating writes until flushed. Writes never lock;
// flushes are serialized among themselves.
type Bucket struct {
	scores sync.Map // name key -> *score

	target   atomic.Pointer[sinkRef]
	strategy atomic.Pointer[Strategy]

	now          func() time.Time
	periodLength bool
	evictAfter   int
	onError      metric.ErrorHandler

	flushMu     sync.Mutex
	periodStart time.Time

	sched schedule
}

type sinkRef struct {
	sink metric.Sink
}

// Option configures a Bucket.
type Option func(*Bucket)

// WithTarget sets the sink flushed stats are written to.
func WithTarget(s metric.Sink) Option {
	return func(b *Bucket) { b.SetTarget(s) }
}

// WithStrategy overrides the default strategy for this bucket.
func WithStrategy(s Strategy) Option {
	return func(b *Bucket) { b.SetStrategy(s) }
}

// WithPeriodLength publishes the length of each non-empty flush period in
// milliseconds as the _period_length timer.
func WithPeriodLength() Option {
	return func(b *Bucket) { b.periodLength = true }
}

// WithIdleEviction removes metrics that stayed silent for n consecutive
// flushes. Zero keeps every metric forever.
func WithIdleEviction(n int) Option {
	return func(b *Bucket) { b.evictAfter = n }
}

// WithClock replaces time.Now for period measurement.
func WithClock(now func() time.Time) Option {
	return func(b *Bucket) { b.now = now }
}

// WithErrorHandler receives errors of scheduled flushes.
func WithErrorHandler(h metric.ErrorHandler) Option {
	return func(b *Bucket) { b.onError = h }
}

// New returns an empty bucket. Without a target flushed stats are dropped.
func New(opts ...Option) *Bucket {
	b := &Bucket{
		now: time.Now,
		onError: func(err error) {
			slog.Warn("bucket flush failed", "error", err)
		},
	}
	b.target.Store(&sinkRef{sink: metric.Discard})
	for _, opt := range opts {
		opt(b)
	}
	b.periodStart = b.now()
	return b
}

// SetTarget replaces the sink used by subsequent flushes.
func (b *Bucket) SetTarget(s metric.Sink) {
	if s == nil {
		s = metric.Discard
	}
	b.target.Store(&sinkRef{sink: s})
}

// SetStrategy replaces the strategy used by subsequent flushes. Nil falls
// back to the process default.
func (b *Bucket) SetStrategy(s Strategy) {
	if s == nil {
		b.strategy.Store(nil)
		return
	}
	b.strategy.Store(&s)
}

func (b *Bucket) currentStrategy() Strategy {
	if s := b.strategy.Load(); s != nil {
		return *s
	}
	return DefaultStrategy()
}

// Scope returns a scope whose handles write directly into the bucket.
func (b *Bucket) Scope() metric.Scope {
	return metric.NewScope(b)
}

// Write adds every observation to its score. It never fails.
func (b *Bucket) Write(batch []metric.Observation) error {
	for i := range batch {
		b.record(batch[i])
	}
	return nil
}

func (b *Bucket) lookup(o metric.Observation) *score {
	key := o.Name.Key()
	if v, ok := b.scores.Load(key); ok {
		return v.(*score)
	}
	v, _ := b.scores.LoadOrStore(key, newScore(o.Name, o.Kind))
	return v.(*score)
}

// checkKind logs the first write whose kind differs from the kind the
// score was created with. The score keeps its original kind.
func (s *score) checkKind(k metric.Kind) {
	if k != s.kind && s.mismatch.CompareAndSwap(false, true) {
		slog.Debug("metric kind mismatch",
			"name", s.name.String(), "kind", s.kind, "written", k)
	}
}

func (b *Bucket) record(o metric.Observation) {
	if b.evictAfter <= 0 {
		s := b.lookup(o)
		s.checkKind(o.Kind)
		s.update(o.Value)
		return
	}
	for {
		s := b.lookup(o)
		s.inflight.Add(1)
		if s.retired.Load() {
			s.inflight.Add(-1)
			b.scores.CompareAndDelete(o.Name.Key(), s)
			continue
		}
		s.checkKind(o.Kind)
		s.update(o.Value)
		s.inflight.Add(-1)
		return
	}
}

// Len returns the number of metrics currently tracked.
func (b *Bucket) Len() int {
	n := 0
	b.scores.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Flush publishes the stats of the current period to the target using the
// bucket strategy.
func (b *Bucket) Flush() error {
	return b.FlushTo(b.target.Load().sink, b.currentStrategy())
}

// FlushTo publishes the stats of the current period to target using
// strategy. The period is reset either way.
func (b *Bucket) FlushTo(target metric.Sink, strategy Strategy) error {
	if strategy == nil {
		strategy = b.currentStrategy()
	}

	b.flushMu.Lock()
	now := b.now()
	elapsed := now.Sub(b.periodStart)
	b.periodStart = now

	type entry struct {
		name  metric.Name
		kind  metric.Kind
		stats []Stat
	}
	var entries []entry

	b.scores.Range(func(_, v any) bool {
		s := v.(*score)
		snap, ok := s.reset(elapsed)
		if ok {
			s.idle = 0
		} else if b.evictAfter > 0 {
			s.idle++
			if s.idle >= b.evictAfter {
				snap, ok = b.retire(s, elapsed)
			}
		}
		if ok {
			entries = append(entries, entry{name: s.name, kind: s.kind, stats: snap.Stats()})
		}
		return true
	})

	if len(entries) > 0 && b.periodLength {
		entries = append(entries, entry{
			name:  periodLengthName,
			kind:  metric.KindTimer,
			stats: []Stat{{Type: StatSum, Int: elapsed.Milliseconds()}},
		})
	}
	b.flushMu.Unlock()

	slices.SortFunc(entries, func(x, y entry) int {
		return strings.Compare(x.name.Key(), y.name.Key())
	})

	var batch []metric.Observation
	for _, e := range entries {
		for _, st := range e.stats {
			kind, name, v, ok := strategy(e.kind, e.name, st)
			if !ok {
				continue
			}
			batch = append(batch, metric.Observation{Name: name, Kind: kind, Value: v})
		}
	}

	var werr error
	if len(batch) > 0 {
		werr = target.Write(batch)
	}
	return errors.Join(werr, target.Flush())
}

// retire removes an idle score once no writer holds it and returns
// whatever landed on it in the meantime.
func (b *Bucket) retire(s *score, elapsed time.Duration) (ScoreSnapshot, bool) {
	s.retired.Store(true)
	for s.inflight.Load() != 0 {
		runtime.Gosched()
	}
	b.scores.CompareAndDelete(s.name.Key(), s)
	return s.reset(elapsed)
}
