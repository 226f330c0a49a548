// Package scheduler orders and throttles outbound provider calls for the
// whole process. Waiters are served highest priority first, FIFO within a
// priority, at the configured rate.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Priority int

const (
	PriorityInteractive Priority = iota
	PriorityBackground
)

var (
	ErrQueueFull = errors.New("scheduler queue full")
	ErrClosed    = errors.New("scheduler closed")
)

type Config struct {
	RatePerSecond float64
	Burst         int
	MaxQueue      int
}

type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	limiter *rate.Limiter
	queue   waitQueue
	seq     uint64
	max     int
	armed   bool
	closed  chan struct{}
	isDone  bool
}

func New(clock Clock, cfg Config) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Scheduler{
		clock:   clock,
		limiter: rate.NewLimiter(limit, burst),
		max:     cfg.MaxQueue,
		closed:  make(chan struct{}),
	}
}

// Acquire blocks until the caller may issue one call, ctx is done, or the
// scheduler is closed.
func (s *Scheduler) Acquire(ctx context.Context, prio Priority) error {
	s.mu.Lock()
	if s.isDone {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.queue.Len() == 0 && s.limiter.AllowN(s.clock.Now(), 1) {
		s.mu.Unlock()
		return nil
	}
	if s.max > 0 && s.queue.Len() >= s.max {
		s.mu.Unlock()
		return ErrQueueFull
	}
	w := &waiter{prio: prio, seq: s.seq, ready: make(chan struct{})}
	s.seq++
	heap.Push(&s.queue, w)
	s.dispatchLocked()
	s.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		s.mu.Lock()
		defer s.mu.Unlock()
		if w.granted {
			// Lost the race with dispatch; the slot is ours anyway.
			return nil
		}
		heap.Remove(&s.queue, w.index)
		return ctx.Err()
	}
}

// Pending reports how many callers are waiting.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isDone {
		return
	}
	s.isDone = true
	close(s.closed)
}

func (s *Scheduler) dispatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = false
	s.dispatchLocked()
}

func (s *Scheduler) dispatchLocked() {
	now := s.clock.Now()
	for s.queue.Len() > 0 && s.limiter.AllowN(now, 1) {
		w := heap.Pop(&s.queue).(*waiter)
		w.granted = true
		close(w.ready)
	}
	if s.queue.Len() == 0 || s.armed || s.isDone {
		return
	}
	s.armed = true
	fire := s.clock.After(s.nextTokenIn(now))
	go func() {
		select {
		case <-fire:
			s.dispatch()
		case <-s.closed:
		}
	}()
}

func (s *Scheduler) nextTokenIn(now time.Time) time.Duration {
	limit := float64(s.limiter.Limit())
	if limit <= 0 || math.IsInf(limit, 1) {
		return time.Millisecond
	}
	missing := 1 - s.limiter.TokensAt(now)
	if missing <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(missing / limit * float64(time.Second)))
}

type waiter struct {
	prio    Priority
	seq     uint64
	index   int
	granted bool
	ready   chan struct{}
}

type waitQueue []*waiter

func (q waitQueue) Len() int { return len(q) }

func (q waitQueue) Less(i, j int) bool {
	if q[i].prio != q[j].prio {
		return q[i].prio < q[j].prio
	}
	return q[i].seq < q[j].seq
}

func (q waitQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *waitQueue) Push(x any) {
	w := x.(*waiter)
	w.index = len(*q)
	*q = append(*q, w)
}

func (q *waitQueue) Pop() any {
	old := *q
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	*q = old[:n-1]
	return w
}
