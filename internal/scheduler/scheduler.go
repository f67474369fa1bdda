package scheduler

import (
	"sync"

	logpkg "github.com/rzbill/haywire/pkg/log"
)

// Scheduler runs each scheduled callback exactly once, eventually, on a
// goroutine other than the one that called Schedule.
type Scheduler interface {
	Schedule(fn func())
}

// IOScheduler is a drain-on-demand FIFO. No goroutine is kept alive while
// the queue is empty: Schedule starts a drainer when none is queued, and a
// drainer that finds more work behind the callback it took starts the next
// drainer before running its own callback.
type IOScheduler struct {
	mu      sync.Mutex
	pending []func()
	head    int
	queued  bool
	logger  logpkg.Logger
}

// New returns an IOScheduler that logs recovered panics to logger.
func New(logger logpkg.Logger) *IOScheduler {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	return &IOScheduler{logger: logger.WithComponent("scheduler")}
}

// Schedule queues fn. A nil fn is ignored.
func (s *IOScheduler) Schedule(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, fn)
	start := !s.queued
	s.queued = true
	s.mu.Unlock()
	if start {
		go s.drain()
	}
}

// Len reports callbacks queued but not yet started.
func (s *IOScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) - s.head
}

// compactAt is the consumed prefix length past which pending is shifted
// down, once that prefix is also at least half the slice.
const compactAt = 32

func (s *IOScheduler) drain() {
	fn, more := s.take()
	if more {
		go s.drain()
	}
	s.run(fn)
}

// take pops the oldest callback and reports whether more remain. When none
// remain the drainer flag is cleared, so the next Schedule starts a drainer.
func (s *IOScheduler) take() (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn := s.pending[s.head]
	s.pending[s.head] = nil
	s.head++
	switch {
	case s.head == len(s.pending):
		s.pending = s.pending[:0]
		s.head = 0
		s.queued = false
		return fn, false
	case s.head >= compactAt && s.head*2 >= len(s.pending):
		n := copy(s.pending, s.pending[s.head:])
		clear(s.pending[n:])
		s.pending = s.pending[:n]
		s.head = 0
	}
	return fn, true
}

func (s *IOScheduler) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled callback panicked", logpkg.Recovered(r))
		}
	}()
	fn()
}

// Func adapts an ordinary function to the Scheduler interface.
type Func func(fn func())

func (f Func) Schedule(fn func()) { f(fn) }
