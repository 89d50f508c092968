package bucket

import (
	"sync"
	"sync/atomic"
	"time"
)

// schedule drives periodic flushes. The interval can be changed while
// running; the loop picks it up after a kick.
type schedule struct {
	mu       sync.Mutex
	interval atomic.Int64
	kick     chan struct{}
	stop     chan struct{}
	done     chan struct{}
}

// FlushEvery starts flushing the bucket every d in the background, or
// changes the interval of an already running schedule. A non-positive d
// stops the schedule.
func (b *Bucket) FlushEvery(d time.Duration) {
	if d <= 0 {
		b.Stop()
		return
	}

	s := &b.sched
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interval.Store(int64(d))
	if s.stop != nil {
		select {
		case s.kick <- struct{}{}:
		default:
			// already booked
		}
		return
	}

	s.kick = make(chan struct{}, 1)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go b.run(s.stop, s.kick, s.done)
}

// Stop terminates scheduled flushing and waits for the loop to exit. It
// does not flush.
func (b *Bucket) Stop() {
	s := &b.sched
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop, s.kick, s.done = nil, nil, nil
}

func (b *Bucket) run(stop, kick <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		ticker := time.NewTicker(time.Duration(b.sched.interval.Load()))
	LOOP:
		for {
			select {
			case <-stop:
				ticker.Stop()
				return
			case <-kick:
				ticker.Stop()
				break LOOP
			case <-ticker.C:
				if err := b.Flush(); err != nil && b.onError != nil {
					b.onError(err)
				}
			}
		}
	}
}
