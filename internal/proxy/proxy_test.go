package proxy_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neox5/statbox/internal/metric"
	"github.com/neox5/statbox/internal/metric/metrictest"
	"github.com/neox5/statbox/internal/proxy"
)

func TestRouteUnboundThenAThenB(t *testing.T) {
	reg := proxy.New()
	c := reg.Scope(metric.Name{}).Counter("requests")

	c.Count(1) // unbound, dropped

	a := &metrictest.Recorder{}
	reg.Route(metric.Name{}, a)
	c.Count(2)

	b := &metrictest.Recorder{}
	reg.Route(metric.Name{}, b)
	c.Count(3)

	require.Len(t, a.Observations(), 1)
	assert.EqualValues(t, 2, a.Observations()[0].Value)
	require.Len(t, b.Observations(), 1)
	assert.EqualValues(t, 3, b.Observations()[0].Value)
}

func TestAncestorResolution(t *testing.T) {
	reg := proxy.New()
	root := &metrictest.Recorder{}
	db := &metrictest.Recorder{}
	reg.Route(metric.Name{}, root)
	reg.Route(metric.ParseName("app.db"), db)

	reg.Scope(metric.ParseName("app.db.pool")).Gauge("idle").Value(4)
	reg.Scope(metric.ParseName("app.http")).Marker("hits").Mark()

	require.Len(t, db.Observations(), 1)
	assert.Equal(t, "app.db.pool.idle", db.Observations()[0].Name.String())
	require.Len(t, root.Observations(), 1)
	assert.Equal(t, "app.http.hits", root.Observations()[0].Name.String())

	reg.Unroute(metric.ParseName("app.db"))
	s, ok := reg.Bound(metric.ParseName("app.db.pool"))
	require.True(t, ok)
	assert.Same(t, root, s)
}

func TestUnboundFlush(t *testing.T) {
	reg := proxy.New()
	tgt := reg.Target(metric.ParseName("x"))
	assert.NoError(t, tgt.Flush())
	assert.NoError(t, tgt.Write([]metric.Observation{{Name: metric.ParseName("a")}}))

	_, ok := reg.Bound(metric.ParseName("x"))
	assert.False(t, ok)

	rec := &metrictest.Recorder{}
	reg.Route(metric.ParseName("x"), rec)
	require.NoError(t, tgt.Flush())
	assert.Equal(t, 1, rec.Flushes())

	reg.Route(metric.ParseName("x"), nil)
	_, ok = reg.Bound(metric.ParseName("x"))
	assert.False(t, ok)
}

func TestIndependentRegistries(t *testing.T) {
	one, two := proxy.New(), proxy.New()
	rec := &metrictest.Recorder{}
	one.Route(metric.Name{}, rec)

	two.Scope(metric.Name{}).Counter("c").Count(1)
	assert.Empty(t, rec.Observations())
}

type countSink struct {
	n atomic.Int64
}

func (c *countSink) Write(b []metric.Observation) error {
	c.n.Add(int64(len(b)))
	return nil
}

func (c *countSink) Flush() error { return nil }

func TestRouteConcurrentWithWrites(t *testing.T) {
	reg := proxy.New()
	a, b := &countSink{}, &countSink{}
	reg.Route(metric.Name{}, a)
	m := reg.Scope(metric.ParseName("svc")).Marker("m")

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			for range 1000 {
				m.Mark()
			}
		})
	}
	wg.Go(func() {
		for i := range 100 {
			if i%2 == 0 {
				reg.Route(metric.Name{}, b)
			} else {
				reg.Route(metric.Name{}, a)
			}
		}
	})
	wg.Wait()

	assert.EqualValues(t, 4000, a.n.Load()+b.n.Load())
}
