// Package queue decouples producers from a slow sink with a bounded buffer
// drained by one worker.
package queue

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/neox5/statbox/internal/metric"
)

type item struct {
	batch []metric.Observation
	flush bool
}

// Queue is a Sink forwarding writes and flushes to the wrapped sink in
// submission order from a single goroutine. Producers block while the
// buffer is full.
type Queue struct {
	next    metric.Sink
	onError metric.ErrorHandler
	logger  *slog.Logger

	ch       chan item
	closing  chan struct{}
	done     chan struct{}
	closed   atomic.Bool
	inflight atomic.Int64
	once     sync.Once
}

// Option configures a Queue.
type Option func(*Queue)

// WithErrorHandler receives errors returned by the wrapped sink.
func WithErrorHandler(h metric.ErrorHandler) Option {
	return func(q *Queue) { q.onError = h }
}

// WithLogger sets the logger for worker errors.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// New starts a queue of the given capacity in front of next.
func New(next metric.Sink, capacity int, opts ...Option) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue{
		next:    next,
		logger:  slog.Default(),
		ch:      make(chan item, capacity),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	go q.run()
	return q
}

// Write enqueues a copy of batch.
func (q *Queue) Write(batch []metric.Observation) error {
	if len(batch) == 0 {
		return nil
	}
	cp := make([]metric.Observation, len(batch))
	copy(cp, batch)
	return q.enqueue(item{batch: cp})
}

// Flush enqueues a flush marker behind everything written so far.
func (q *Queue) Flush() error {
	return q.enqueue(item{flush: true})
}

// Len returns the number of buffered items.
func (q *Queue) Len() int {
	return len(q.ch)
}

func (q *Queue) enqueue(it item) error {
	q.inflight.Add(1)
	defer q.inflight.Add(-1)

	if q.closed.Load() {
		return metric.ErrQueueClosed
	}
	select {
	case q.ch <- it:
		return nil
	default:
	}
	select {
	case q.ch <- it:
		return nil
	case <-q.closing:
		return metric.ErrQueueClosed
	}
}

// Close stops accepting items, waits until the worker delivered everything
// already enqueued and closes the wrapped sink. Blocked producers get
// ErrQueueClosed.
func (q *Queue) Close() error {
	var err error
	q.once.Do(func() {
		q.closed.Store(true)
		close(q.closing)
		for q.inflight.Load() != 0 {
			runtime.Gosched()
		}
		close(q.ch)
		<-q.done
		err = metric.Close(q.next)
	})
	<-q.done
	return err
}

func (q *Queue) run() {
	defer close(q.done)

	for it := range q.ch {
		var err error
		if it.flush {
			err = q.next.Flush()
		} else {
			err = q.next.Write(it.batch)
		}
		if err != nil {
			q.logger.Debug("queued sink failed", "flush", it.flush, "error", err)
			if q.onError != nil {
				q.onError(err)
			}
		}
	}
}
