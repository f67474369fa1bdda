package inputqueue

import (
	"math"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// InfiniteTimeout never arms a timer. Negative durations behave the same.
const InfiniteTimeout = time.Duration(math.MaxInt64)

func isInfinite(d time.Duration) bool { return d < 0 || d == InfiniteTimeout }

// timerSlot holds the single-shot timer owned by one reader or waiter.
// The timer is armed after registration, outside the queue mutex, so the
// owner may already be resolved by the time arm runs.
type timerSlot struct {
	mu       sync.Mutex
	timer    clock.Timer
	disarmed bool
}

func (s *timerSlot) arm(c clock.WithDelayedExecution, d time.Duration, fire func()) {
	if isInfinite(d) {
		return
	}
	t := c.AfterFunc(d, fire)
	s.mu.Lock()
	if s.disarmed {
		s.mu.Unlock()
		t.Stop()
		return
	}
	s.timer = t
	s.mu.Unlock()
}

func (s *timerSlot) disarm() {
	s.mu.Lock()
	s.disarmed = true
	t := s.timer
	s.timer = nil
	s.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}
