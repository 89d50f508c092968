package bucket_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neox5/statbox/internal/bucket"
	"github.com/neox5/statbox/internal/metric"
	"github.com/neox5/statbox/internal/metric/metrictest"
)

type mockClock struct {
	mu sync.Mutex
	t  time.Time
}

func newMockClock() *mockClock {
	return &mockClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func makeStats(t *testing.T, strategy bucket.Strategy) map[string]int64 {
	t.Helper()
	clock := newMockClock()
	b := bucket.New(bucket.WithClock(clock.Now))
	s := b.Scope().Named("test")

	marker := s.Marker("marker_a")
	marker.Mark()
	marker.Mark()
	marker.Mark()

	s.Counter("counter_a").Count(10)
	s.Counter("counter_a").Count(20)

	s.Timer("timer_a").IntervalNanos(10_000_000)
	s.Timer("timer_a").IntervalNanos(20_000_000)

	s.Gauge("gauge_a").Value(10)
	s.Gauge("gauge_a").Value(20)

	clock.Advance(3 * time.Second)

	rec := &metrictest.Recorder{}
	require.NoError(t, b.FlushTo(rec, strategy))
	require.Len(t, rec.Batches(), 1, "one batch per flush")
	assert.Equal(t, 1, rec.Flushes())
	return rec.Values()
}

func TestAllStats(t *testing.T) {
	m := makeStats(t, bucket.AllStats)

	assert.EqualValues(t, 2, m["test.counter_a.count"])
	assert.EqualValues(t, 30, m["test.counter_a.sum"])
	assert.EqualValues(t, 15, m["test.counter_a.mean"])
	assert.EqualValues(t, 10, m["test.counter_a.rate"])
	assert.EqualValues(t, 10, m["test.counter_a.min"])
	assert.EqualValues(t, 20, m["test.counter_a.max"])

	assert.EqualValues(t, 2, m["test.timer_a.count"])
	assert.EqualValues(t, 30_000_000, m["test.timer_a.sum"])
	assert.EqualValues(t, 10_000_000, m["test.timer_a.min"])
	assert.EqualValues(t, 20_000_000, m["test.timer_a.max"])
	assert.EqualValues(t, 15_000_000, m["test.timer_a.mean"])
	assert.EqualValues(t, 1, m["test.timer_a.rate"])

	assert.EqualValues(t, 15, m["test.gauge_a.mean"])
	assert.EqualValues(t, 10, m["test.gauge_a.min"])
	assert.EqualValues(t, 20, m["test.gauge_a.max"])
	assert.EqualValues(t, 20, m["test.gauge_a.last"])

	assert.EqualValues(t, 3, m["test.marker_a.count"])
	assert.EqualValues(t, 1, m["test.marker_a.rate"])
	assert.NotContains(t, m, "test.marker_a.sum")
}

func TestSummary(t *testing.T) {
	m := makeStats(t, bucket.Summary)

	assert.Equal(t, map[string]int64{
		"test.counter_a": 30,
		"test.timer_a":   30_000_000,
		"test.gauge_a":   15,
		"test.marker_a":  3,
	}, m)
}

func TestAverage(t *testing.T) {
	m := makeStats(t, bucket.Average)

	assert.Equal(t, map[string]int64{
		"test.counter_a": 15,
		"test.timer_a":   15_000_000,
		"test.gauge_a":   15,
		"test.marker_a":  3,
	}, m)
}

func TestFlushOrderAndKinds(t *testing.T) {
	rec := &metrictest.Recorder{}
	b := bucket.New(bucket.WithTarget(rec), bucket.WithStrategy(bucket.Summary))
	s := b.Scope()
	s.Gauge("z").Value(1)
	s.Marker("a").Mark()
	s.Timer("m").IntervalNanos(5)

	require.NoError(t, b.Flush())
	got := rec.Observations()
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Name.String())
	assert.Equal(t, metric.KindCounter, got[0].Kind)
	assert.Equal(t, "m", got[1].Name.String())
	assert.Equal(t, metric.KindTimer, got[1].Kind)
	assert.Equal(t, "z", got[2].Name.String())
	assert.Equal(t, metric.KindGauge, got[2].Kind)
}

func TestRateOmittedWithoutElapsedTime(t *testing.T) {
	clock := newMockClock()
	rec := &metrictest.Recorder{}
	b := bucket.New(bucket.WithClock(clock.Now), bucket.WithTarget(rec), bucket.WithStrategy(bucket.AllStats))
	b.Scope().Marker("m").Mark()

	require.NoError(t, b.Flush())
	assert.Equal(t, map[string]int64{"m.count": 1}, rec.Values())
}

func TestConcurrentWritesExact(t *testing.T) {
	const (
		writers = 8
		writes  = 10_000
	)
	rec := &metrictest.Recorder{}
	b := bucket.New(bucket.WithTarget(rec), bucket.WithStrategy(bucket.AllStats))
	c := b.Scope().Counter("c")

	var wg sync.WaitGroup
	done := make(chan struct{})
	flusher := make(chan struct{})
	go func() {
		defer close(flusher)
		for {
			select {
			case <-done:
				return
			default:
				_ = b.Flush()
			}
		}
	}()

	for range writers {
		wg.Go(func() {
			for range writes {
				c.Count(3)
			}
		})
	}
	wg.Wait()
	close(done)
	<-flusher
	require.NoError(t, b.Flush())

	var count, sum int64
	for _, o := range rec.Observations() {
		switch o.Name.String() {
		case "c.count":
			count += o.Value
		case "c.sum":
			sum += o.Value
		}
	}
	assert.EqualValues(t, writers*writes, count)
	assert.EqualValues(t, 3*writers*writes, sum)
}

func TestFlushResets(t *testing.T) {
	rec := &metrictest.Recorder{}
	b := bucket.New(bucket.WithTarget(rec), bucket.WithStrategy(bucket.AllStats))
	b.Scope().Counter("c").Count(4)

	require.NoError(t, b.Flush())
	require.Len(t, rec.Batches(), 1)

	require.NoError(t, b.Flush())
	assert.Len(t, rec.Batches(), 1, "no stale values on the second flush")
	assert.Equal(t, 2, rec.Flushes())
	assert.Equal(t, 1, b.Len(), "silent metrics stay registered")
}

func TestRequestsEndToEnd(t *testing.T) {
	rec := &metrictest.Recorder{}
	b := bucket.New(bucket.WithTarget(rec), bucket.WithStrategy(bucket.AllStats))
	requests := b.Scope().Counter("requests")

	var wg sync.WaitGroup
	for range 3 {
		wg.Go(func() { requests.Count(1) })
	}
	wg.Wait()

	require.NoError(t, b.Flush())
	m := rec.Values()
	assert.EqualValues(t, 3, m["requests.count"])
	assert.EqualValues(t, 3, m["requests.sum"])
}

func TestGaugeEndToEnd(t *testing.T) {
	rec := &metrictest.Recorder{}
	b := bucket.New(bucket.WithTarget(rec), bucket.WithStrategy(bucket.AllStats))
	temp := b.Scope().Gauge("temp")
	temp.Value(10)
	temp.Value(20)
	temp.Value(15)

	require.NoError(t, b.Flush())
	m := rec.Values()
	assert.EqualValues(t, 20, m["temp.max"])
	assert.EqualValues(t, 10, m["temp.min"])
	assert.EqualValues(t, 15, m["temp.last"])

	rec.Reset()
	require.NoError(t, b.Flush())
	assert.Empty(t, rec.Observations())
}

func TestPeriodLength(t *testing.T) {
	clock := newMockClock()
	rec := &metrictest.Recorder{}
	b := bucket.New(
		bucket.WithClock(clock.Now),
		bucket.WithTarget(rec),
		bucket.WithStrategy(bucket.Summary),
		bucket.WithPeriodLength(),
	)
	b.Scope().Marker("m").Mark()
	clock.Advance(2 * time.Second)

	require.NoError(t, b.Flush())
	assert.EqualValues(t, 2000, rec.Values()["_period_length"])

	rec.Reset()
	clock.Advance(time.Second)
	require.NoError(t, b.Flush())
	assert.Empty(t, rec.Observations(), "empty periods publish nothing")
}

func TestDefaultStrategy(t *testing.T) {
	bucket.SetDefaultStrategy(bucket.AllStats)
	defer bucket.ResetDefaultStrategy()

	rec := &metrictest.Recorder{}
	b := bucket.New(bucket.WithTarget(rec))
	b.Scope().Counter("c").Count(2)
	require.NoError(t, b.Flush())
	assert.Contains(t, rec.Values(), "c.count")

	bucket.ResetDefaultStrategy()
	rec.Reset()
	b.Scope().Counter("c").Count(2)
	require.NoError(t, b.Flush())
	assert.Equal(t, map[string]int64{"c": 2}, rec.Values())
}

func TestSetTarget(t *testing.T) {
	first := &metrictest.Recorder{}
	second := &metrictest.Recorder{}
	b := bucket.New(bucket.WithTarget(first))
	b.Scope().Counter("c").Count(1)
	require.NoError(t, b.Flush())

	b.SetTarget(second)
	b.Scope().Counter("c").Count(1)
	require.NoError(t, b.Flush())

	assert.Len(t, first.Observations(), 1)
	assert.Len(t, second.Observations(), 1)
}

func TestFlushReturnsTargetError(t *testing.T) {
	boom := errors.New("boom")
	b := bucket.New(bucket.WithTarget(&metrictest.Recorder{Err: boom}))
	b.Scope().Counter("c").Count(1)
	assert.ErrorIs(t, b.Flush(), boom)
}

func TestIdleEviction(t *testing.T) {
	rec := &metrictest.Recorder{}
	b := bucket.New(bucket.WithTarget(rec), bucket.WithIdleEviction(2))
	b.Scope().Counter("c").Count(1)

	require.NoError(t, b.Flush())
	require.NoError(t, b.Flush())
	assert.Equal(t, 1, b.Len())
	require.NoError(t, b.Flush())
	assert.Equal(t, 0, b.Len())

	b.Scope().Counter("c").Count(5)
	assert.Equal(t, 1, b.Len())
	rec.Reset()
	require.NoError(t, b.Flush())
	assert.Equal(t, map[string]int64{"c": 5}, rec.Values())
}

func TestIdleEvictionLosesNothing(t *testing.T) {
	const (
		writers = 4
		writes  = 5_000
	)
	rec := &metrictest.Recorder{}
	b := bucket.New(bucket.WithTarget(rec), bucket.WithStrategy(bucket.AllStats), bucket.WithIdleEviction(1))
	scope := b.Scope()

	var wg sync.WaitGroup
	var stop atomic.Bool
	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		for !stop.Load() {
			_ = b.Flush()
		}
	}()
	for range writers {
		wg.Go(func() {
			for i := range writes {
				// alternate names so entries go idle and get retired
				if i%2 == 0 {
					scope.Marker("even").Mark()
				} else {
					scope.Marker("odd").Mark()
				}
			}
		})
	}
	wg.Wait()
	stop.Store(true)
	<-flushed
	require.NoError(t, b.Flush())

	var total int64
	for _, o := range rec.Observations() {
		if o.Name.Leaf() == "count" {
			total += o.Value
		}
	}
	assert.EqualValues(t, writers*writes, total)
}

func TestFlushEvery(t *testing.T) {
	rec := &metrictest.Recorder{}
	b := bucket.New(bucket.WithTarget(rec))
	b.FlushEvery(5 * time.Millisecond)
	defer b.Stop()

	b.Scope().Marker("tick").Mark()
	require.Eventually(t, func() bool {
		return rec.Values()["tick"] == 1
	}, time.Second, time.Millisecond)

	// retune while running
	b.FlushEvery(time.Millisecond)
	b.Stop()
	b.Stop()

	flushes := rec.Flushes()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, flushes, rec.Flushes(), "stopped schedule must not flush")
}

func TestScheduledFlushErrors(t *testing.T) {
	var got atomic.Int64
	b := bucket.New(
		bucket.WithTarget(&metrictest.Recorder{Err: metric.ErrTargetUnavailable}),
		bucket.WithErrorHandler(func(err error) {
			if errors.Is(err, metric.ErrTargetUnavailable) {
				got.Add(1)
			}
		}),
	)
	b.FlushEvery(time.Millisecond)
	defer b.Stop()

	require.Eventually(t, func() bool { return got.Load() > 0 }, time.Second, time.Millisecond)
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"all_stats", "summary", "average"} {
		_, ok := bucket.ParseStrategy(name)
		assert.True(t, ok, name)
	}
	_, ok := bucket.ParseStrategy("p99")
	assert.False(t, ok)
}

func TestKindMismatchLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	rec := &metrictest.Recorder{}
	b := bucket.New(bucket.WithTarget(rec), bucket.WithStrategy(bucket.AllStats))
	s := b.Scope()
	s.Counter("load").Count(4)
	s.Gauge("load").Value(6)
	s.Gauge("load").Value(8)

	assert.Equal(t, 1, strings.Count(buf.String(), "metric kind mismatch"))
	assert.Contains(t, buf.String(), "name=load")

	// the score keeps its counter semantics
	require.NoError(t, b.Flush())
	m := rec.Values()
	assert.EqualValues(t, 18, m["load.sum"])
	assert.NotContains(t, m, "load.last")
}
