package inputqueue

import (
	"k8s.io/utils/clock"

	"github.com/rzbill/haywire/internal/scheduler"
	logpkg "github.com/rzbill/haywire/pkg/log"
)

type options struct {
	scheduler scheduler.Scheduler
	clock     clock.WithDelayedExecution
	logger    logpkg.Logger
}

// Option configures an InputQueue.
type Option func(*options)

// WithScheduler sets the scheduler used for deferred dispatch and timer
// expiry. Queues sharing a scheduler share its FIFO.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithClock sets the clock that arms reader and waiter timeouts.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l logpkg.Logger) Option {
	return func(o *options) { o.logger = l }
}
