// Package proxy lets handles be created before their output exists and
// rebinds them when it changes.
package proxy

import (
	"maps"
	"sync"
	"sync/atomic"

	"github.com/neox5/statbox/internal/metric"
)

// Registry maps slots to sinks. Reads are lock-free; routing copies the
// table and publishes the copy.
type Registry struct {
	mu     sync.Mutex // writers only
	routes atomic.Pointer[map[string]metric.Sink]
}

// New returns a registry with no routes.
func New() *Registry {
	r := &Registry{}
	empty := map[string]metric.Sink{}
	r.routes.Store(&empty)
	return r
}

// Route binds slot to target. Writes issued after Route returns reach target.
func (r *Registry) Route(slot metric.Name, target metric.Sink) {
	if target == nil {
		r.Unroute(slot)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	next := maps.Clone(*r.routes.Load())
	next[slot.Key()] = target
	r.routes.Store(&next)
}

// Unroute removes the binding of slot. Its writes fall back to the nearest
// routed ancestor.
func (r *Registry) Unroute(slot metric.Name) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := *r.routes.Load()
	if _, ok := cur[slot.Key()]; !ok {
		return
	}
	next := maps.Clone(cur)
	delete(next, slot.Key())
	r.routes.Store(&next)
}

// Bound returns the sink writes to slot currently reach: the slot itself,
// else its nearest routed ancestor, else the root.
func (r *Registry) Bound(slot metric.Name) (metric.Sink, bool) {
	routes := *r.routes.Load()
	if len(routes) == 0 {
		return nil, false
	}
	for n := slot; ; n = n.Parent() {
		if s, ok := routes[n.Key()]; ok {
			return s, true
		}
		if n.IsEmpty() {
			return nil, false
		}
	}
}

// Target returns a sink resolving the binding of slot on every call.
// Unbound writes are dropped.
func (r *Registry) Target(slot metric.Name) metric.Sink {
	return &target{reg: r, slot: slot}
}

// Scope returns a scope named after slot whose handles write through
// Target(slot).
func (r *Registry) Scope(slot metric.Name) metric.Scope {
	return metric.NewScope(r.Target(slot)).Named(slot.Segments()...)
}

type target struct {
	reg  *Registry
	slot metric.Name
}

func (t *target) Write(batch []metric.Observation) error {
	s, ok := t.reg.Bound(t.slot)
	if !ok {
		return nil
	}
	return s.Write(batch)
}

func (t *target) Flush() error {
	s, ok := t.reg.Bound(t.slot)
	if !ok {
		return nil
	}
	return s.Flush()
}
