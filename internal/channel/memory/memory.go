// Package memory is the in-process Channel: one input queue per address.
package memory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/rzbill/haywire/internal/channel"
	"github.com/rzbill/haywire/internal/inputqueue"
	"github.com/rzbill/haywire/internal/scheduler"
	logpkg "github.com/rzbill/haywire/pkg/log"
	"github.com/rzbill/haywire/pkg/message"
)

// Options configures a Channel. Zero values pick real-time defaults.
type Options struct {
	Logger    logpkg.Logger
	Scheduler scheduler.Scheduler
	Clock     clock.WithDelayedExecution
	// OnDelivered runs once for every message that leaves an address,
	// whether received or discarded at close.
	OnDelivered func(address string, msg *message.Message)
}

// Channel owns the registry of addresses. Every address shares the
// channel's scheduler and clock.
type Channel struct {
	logger      logpkg.Logger
	sched       scheduler.Scheduler
	clock       clock.WithDelayedExecution
	onDelivered func(string, *message.Message)

	mu     sync.RWMutex
	queues map[string]*inputqueue.InputQueue[*message.Message]
	closed bool
}

var _ channel.Channel = (*Channel)(nil)

func New(opts Options) *Channel {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNop()
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = scheduler.New(logger)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Channel{
		logger:      logger.WithComponent("channel"),
		sched:       sched,
		clock:       clk,
		onDelivered: opts.OnDelivered,
		queues:      make(map[string]*inputqueue.InputQueue[*message.Message]),
	}
}

// Open registers address. Opening an address twice is ErrAddressExists.
func (c *Channel) Open(address string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("%w: blank", channel.ErrInvalidAddress)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return channel.ErrClosed
	}
	if _, ok := c.queues[address]; ok {
		return fmt.Errorf("%w: %s", channel.ErrAddressExists, address)
	}
	c.queues[address] = inputqueue.New[*message.Message](nil,
		inputqueue.WithScheduler(c.sched),
		inputqueue.WithClock(c.clock),
		inputqueue.WithLogger(c.logger.With(logpkg.Str("address", address))),
	)
	c.logger.Debug("address opened", logpkg.Str("address", address))
	return nil
}

// Send hands msg to the address, delivering directly to a blocked receiver
// when there is one.
func (c *Channel) Send(address string, msg *message.Message) error {
	return c.send(address, msg, true)
}

// SendDeferred is Send without running receiver code on this goroutine.
func (c *Channel) SendDeferred(address string, msg *message.Message) error {
	return c.send(address, msg, false)
}

func (c *Channel) send(address string, msg *message.Message, direct bool) error {
	if msg == nil {
		return errors.New("send: nil message")
	}
	q, err := c.queue(address)
	if err != nil {
		return err
	}
	if !q.TryEnqueueAndDispatch(inputqueue.ValueItem(msg, c.delivered(address, msg)), direct) {
		return fmt.Errorf("%w: %s", channel.ErrShutdown, address)
	}
	return nil
}

func (c *Channel) Receive(address string, timeout time.Duration) (*message.Message, error) {
	q, err := c.queue(address)
	if err != nil {
		return nil, err
	}
	return q.Dequeue(timeout)
}

func (c *Channel) BeginReceive(address string, timeout time.Duration, done func(channel.ReceiveResult)) error {
	q, err := c.queue(address)
	if err != nil {
		return err
	}
	q.BeginDequeue(timeout, func(r *inputqueue.DequeueResult[*message.Message]) {
		if done == nil {
			return
		}
		m, err := r.Result()
		done(channel.ReceiveResult{Message: m, Err: err})
	})
	return nil
}

func (c *Channel) WaitForMessage(address string, timeout time.Duration) (bool, error) {
	q, err := c.queue(address)
	if err != nil {
		return false, err
	}
	return q.WaitForItem(timeout), nil
}

// Pending returns the number of buffered messages at address.
func (c *Channel) Pending(address string) (int, error) {
	q, err := c.queue(address)
	if err != nil {
		return 0, err
	}
	return q.PendingCount(), nil
}

// Waiting returns the number of receivers blocked on address.
func (c *Channel) Waiting(address string) (int, error) {
	q, err := c.queue(address)
	if err != nil {
		return 0, err
	}
	return q.ReaderCount(), nil
}

// Shutdown stops accepting messages at address. Buffered messages remain
// receivable; receivers blocked on an empty address fail with ErrShutdown.
func (c *Channel) Shutdown(address string) error {
	q, err := c.queue(address)
	if err != nil {
		return err
	}
	q.Shutdown(func() error { return fmt.Errorf("%w: %s", channel.ErrShutdown, address) })
	return nil
}

// CloseAddress closes and unregisters address.
func (c *Channel) CloseAddress(address string) error {
	c.mu.Lock()
	q, ok := c.queues[address]
	delete(c.queues, address)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", channel.ErrAddressNotFound, address)
	}
	q.Close()
	return nil
}

// Addresses lists open addresses in sorted order.
func (c *Channel) Addresses() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.queues))
	for a := range c.queues {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Close closes every address. Further calls fail with ErrClosed.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	queues := c.queues
	c.queues = make(map[string]*inputqueue.InputQueue[*message.Message])
	c.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
	c.logger.Debug("channel closed", logpkg.Int("addresses", len(queues)))
	return nil
}

func (c *Channel) queue(address string) (*inputqueue.InputQueue[*message.Message], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, channel.ErrClosed
	}
	q, ok := c.queues[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", channel.ErrAddressNotFound, address)
	}
	return q, nil
}

func (c *Channel) delivered(address string, msg *message.Message) func() {
	if c.onDelivered == nil {
		return nil
	}
	return func() { c.onDelivered(address, msg) }
}
