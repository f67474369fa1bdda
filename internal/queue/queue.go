// Package queue binds a store and a channel into named message queues.
//
// Enqueue persists a message under the next sequence and then sends it to
// the channel address of the same name; Dequeue receives from that address.
// Enqueues on one queue are serialised so delivery order matches sequence
// order.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/haywire/internal/channel"
	"github.com/rzbill/haywire/internal/inputqueue"
	"github.com/rzbill/haywire/internal/store"
	logpkg "github.com/rzbill/haywire/pkg/log"
	"github.com/rzbill/haywire/pkg/message"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrQueueShutdown   = errors.New("queue is shut down")
	ErrQueueClosed     = errors.New("queue is closed")
)

// Options configures queues built by New and Factory.
type Options struct {
	Logger   logpkg.Logger
	Observer Observer
	// Now stamps EnqueuedAt. Defaults to time.Now.
	Now func() time.Time
	// DeferDispatch keeps receiver callbacks off the enqueuing goroutine.
	DeferDispatch bool
}

// Stats is a point-in-time view of a queue.
type Stats struct {
	Name         string `json:"name"`
	Stored       uint64 `json:"stored"`
	Pending      int    `json:"pending"`
	LastSequence uint64 `json:"lastSequence"`
	Delivered    uint64 `json:"delivered"`
}

// BrowseOptions selects stored messages.
type BrowseOptions struct {
	Filter  string
	FromSeq uint64
	Limit   int
}

// MessageQueue is one named queue.
type MessageQueue struct {
	id       string
	store    store.Store
	ch       channel.Channel
	obs      Observer
	now      func() time.Time
	logger   logpkg.Logger
	deferred bool

	// enqueueMu orders sequence allocation, persistence and send.
	enqueueMu sync.Mutex

	mu        sync.Mutex
	delivered uint64
	shutdown  bool
	closed    bool
}

// New builds a queue over st and ch. The channel address is not opened
// until Open.
func New(id string, st store.Store, ch channel.Channel, opts Options) (*MessageQueue, error) {
	if err := store.ValidateQueueName(id); err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("%w: nil store", ErrInvalidArgument)
	}
	if ch == nil {
		return nil, fmt.Errorf("%w: nil channel", ErrInvalidArgument)
	}
	obs := opts.Observer
	if obs == nil {
		obs = NoopObserver{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNop()
	}
	return &MessageQueue{
		id:       id,
		store:    st,
		ch:       ch,
		obs:      obs,
		now:      now,
		logger:   logger.WithComponent("queue").With(logpkg.Str("queue", id)),
		deferred: opts.DeferDispatch,
	}, nil
}

// ID returns the queue name.
func (q *MessageQueue) ID() string { return q.id }

// Open registers the queue's channel address. Messages already stored are
// not replayed into the channel; the delivered cursor starts after them.
func (q *MessageQueue) Open() error {
	last, err := q.store.LastSequence(q.id)
	if err != nil {
		return fmt.Errorf("open queue %s: %w", q.id, err)
	}
	if err := q.ch.Open(q.id); err != nil {
		return fmt.Errorf("open queue %s: %w", q.id, err)
	}
	q.mu.Lock()
	q.delivered = last
	q.mu.Unlock()
	q.logger.Debug("queue opened", logpkg.Uint64("lastSequence", last))
	return nil
}

// Enqueue stores msg under the next sequence and delivers it. msg is
// updated with the assigned ID, sequence and enqueue time. A queue that is
// shut down or closed refuses the message before anything is stored; a
// shutdown that lands after the message was stored surfaces as
// ErrQueueShutdown, never as a silent drop.
func (q *MessageQueue) Enqueue(ctx context.Context, msg *message.Message) (*message.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrInvalidArgument)
	}

	q.enqueueMu.Lock()
	defer q.enqueueMu.Unlock()

	if err := q.acceptErr(); err != nil {
		return nil, err
	}
	seq, err := q.store.NextSequence(q.id)
	if err != nil {
		return nil, fmt.Errorf("allocate sequence: %w", err)
	}
	// The sequence is burned if the queue stopped meanwhile; readers skip gaps.
	if err := q.acceptErr(); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Sequence = seq
	msg.EnqueuedAt = q.now().UTC()
	if err := q.store.StoreMessage(ctx, q.id, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	if err := q.send(msg.Clone()); err != nil {
		if errors.Is(err, channel.ErrShutdown) {
			err = fmt.Errorf("%w: %w", ErrQueueShutdown, err)
		}
		return nil, fmt.Errorf("send message %d: %w", seq, err)
	}

	q.obs.ObserveEnqueue(q.id, len(msg.Body))
	q.observeDepth()
	return msg, nil
}

func (q *MessageQueue) acceptErr() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case q.closed:
		return fmt.Errorf("%w: %s", ErrQueueClosed, q.id)
	case q.shutdown:
		return fmt.Errorf("%w: %s", ErrQueueShutdown, q.id)
	}
	return nil
}

func (q *MessageQueue) send(m *message.Message) error {
	if q.deferred {
		return q.ch.SendDeferred(q.id, m)
	}
	return q.ch.Send(q.id, m)
}

// Dequeue receives the next message. A nil message with a nil error means
// the queue was closed, or shut down with nothing left to deliver.
func (q *MessageQueue) Dequeue(timeout time.Duration) (*message.Message, error) {
	m, err := q.ch.Receive(q.id, timeout)
	q.afterReceive(m, err)
	return m, err
}

// BeginDequeue receives asynchronously; done runs exactly once.
func (q *MessageQueue) BeginDequeue(timeout time.Duration, done func(*message.Message, error)) error {
	return q.ch.BeginReceive(q.id, timeout, func(r channel.ReceiveResult) {
		q.afterReceive(r.Message, r.Err)
		if done != nil {
			done(r.Message, r.Err)
		}
	})
}

// Wait reports whether a message became available within timeout, without
// consuming it.
func (q *MessageQueue) Wait(timeout time.Duration) (bool, error) {
	return q.ch.WaitForMessage(q.id, timeout)
}

// Peek returns the next stored message not yet handed to a receiver, or nil.
// It is best effort: a concurrent Dequeue may take the message first.
func (q *MessageQueue) Peek() (*message.Message, error) {
	q.mu.Lock()
	from := q.delivered + 1
	q.mu.Unlock()
	last, err := q.store.LastSequence(q.id)
	if err != nil {
		return nil, err
	}
	for seq := from; seq <= last; seq++ {
		m, err := q.store.Message(q.id, seq)
		if errors.Is(err, store.ErrMessageNotFound) {
			continue
		}
		return m, err
	}
	return nil, nil
}

// Browse returns stored messages in sequence order that match the filter,
// delivered or not.
func (q *MessageQueue) Browse(ctx context.Context, opts BrowseOptions) ([]*message.Message, error) {
	f, err := CompileFilter(opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: filter: %v", ErrInvalidArgument, err)
	}
	last, err := q.store.LastSequence(q.id)
	if err != nil {
		return nil, err
	}
	from := opts.FromSeq
	if from == 0 {
		from = 1
	}
	var out []*message.Message
	for seq := from; seq <= last; seq++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		m, err := q.store.Message(q.id, seq)
		if errors.Is(err, store.ErrMessageNotFound) {
			continue
		}
		if err != nil {
			return out, err
		}
		if !f.Match(m) {
			continue
		}
		out = append(out, m)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func (q *MessageQueue) Stats() (Stats, error) {
	stored, err := q.store.MessageCount(q.id)
	if err != nil {
		return Stats{}, err
	}
	last, err := q.store.LastSequence(q.id)
	if err != nil {
		return Stats{}, err
	}
	pending, err := q.ch.Pending(q.id)
	if err != nil {
		return Stats{}, err
	}
	q.mu.Lock()
	delivered := q.delivered
	q.mu.Unlock()
	return Stats{Name: q.id, Stored: stored, Pending: pending, LastSequence: last, Delivered: delivered}, nil
}

// Shutdown stops new enqueues. Buffered messages stay receivable;
// receivers waiting on an empty queue fail with channel.ErrShutdown.
func (q *MessageQueue) Shutdown() error {
	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		return nil
	}
	q.shutdown = true
	q.mu.Unlock()
	q.logger.Info("queue shutting down")
	return q.ch.Shutdown(q.id)
}

// Close releases the channel address. Blocked receivers get an empty result
// and later enqueues fail with ErrQueueClosed.
func (q *MessageQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	err := q.ch.CloseAddress(q.id)
	if errors.Is(err, channel.ErrAddressNotFound) || errors.Is(err, channel.ErrClosed) {
		return nil
	}
	return err
}

func (q *MessageQueue) afterReceive(m *message.Message, err error) {
	switch {
	case errors.Is(err, inputqueue.ErrTimeout):
		q.obs.ObserveTimeout(q.id)
	case m != nil:
		q.mu.Lock()
		if m.Sequence > q.delivered {
			q.delivered = m.Sequence
		}
		q.mu.Unlock()
		q.obs.ObserveDequeue(q.id, q.now().Sub(m.EnqueuedAt))
		q.observeDepth()
	}
}

func (q *MessageQueue) observeDepth() {
	if n, err := q.ch.Pending(q.id); err == nil {
		q.obs.ObserveDepth(q.id, n)
	}
}
