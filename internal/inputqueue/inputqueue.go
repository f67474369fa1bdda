package inputqueue

import (
	"container/list"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/rzbill/haywire/internal/scheduler"
	logpkg "github.com/rzbill/haywire/pkg/log"
)

// State is the lifecycle state of an InputQueue.
type State int

const (
	StateOpen State = iota
	StateShutdown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateShutdown:
		return "shutdown"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type reader[T any] struct {
	elem     *list.Element
	timeout  time.Duration
	slot     timerSlot
	result   *DequeueResult[T]
	callback func(*DequeueResult[T])
}

type waiter struct {
	registered bool
	slot       timerSlot
	result     *WaitResult
	callback   func(*WaitResult)
}

// InputQueue hands items from producers to consumers. The zero value is not
// usable; construct with New.
type InputQueue[T any] struct {
	mu      sync.Mutex
	state   State
	items   *itemQueue[T]
	readers *list.List
	waiters map[*waiter]struct{}

	release func(T)
	sched   scheduler.Scheduler
	clock   clock.WithDelayedExecution
	logger  logpkg.Logger
}

// New creates an open queue. release is invoked for every value the queue
// discards (on Close, or when an item arrives after Shutdown); nil means
// values need no release.
func New[T any](release func(T), opts ...Option) *InputQueue[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logpkg.NewNop()
	}
	if o.scheduler == nil {
		o.scheduler = scheduler.New(o.logger)
	}
	if o.clock == nil {
		o.clock = clock.RealClock{}
	}
	return &InputQueue[T]{
		items:   newItemQueue[T](),
		readers: list.New(),
		waiters: make(map[*waiter]struct{}),
		release: release,
		sched:   o.scheduler,
		clock:   o.clock,
		logger:  o.logger.WithComponent("inputqueue"),
	}
}

// State returns the current lifecycle state.
func (q *InputQueue[T]) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// PendingCount returns the number of buffered items, available or pending.
func (q *InputQueue[T]) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.count()
}

// AvailableCount returns the number of buffered items a Dequeue could take
// right now.
func (q *InputQueue[T]) AvailableCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.availableCount()
}

// ReaderCount returns the number of readers blocked waiting for an item.
func (q *InputQueue[T]) ReaderCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.readers.Len()
}

// WaiterCount returns the number of outstanding WaitForItem calls.
func (q *InputQueue[T]) WaiterCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}

// Enqueue buffers v or hands it to the oldest reader on this goroutine.
func (q *InputQueue[T]) Enqueue(v T) {
	q.EnqueueAndDispatch(ValueItem(v, nil), true)
}

// EnqueueAndDispatch adds item to the queue. With allowDirectDispatch the
// oldest blocked reader, if any, receives the item on this goroutine;
// otherwise the item is buffered as pending and handed over by a scheduled
// Dispatch. After Shutdown or Close the item is not buffered: its dequeued
// callback runs and its value is released.
func (q *InputQueue[T]) EnqueueAndDispatch(item Item[T], allowDirectDispatch bool) {
	if !q.enqueue(item, allowDirectDispatch) {
		q.discard(item)
	}
}

// TryEnqueueAndDispatch is EnqueueAndDispatch that reports false instead of
// discarding when the queue is no longer open. A refused item is left
// untouched: its dequeued callback does not run.
func (q *InputQueue[T]) TryEnqueueAndDispatch(item Item[T], allowDirectDispatch bool) bool {
	return q.enqueue(item, allowDirectDispatch)
}

// enqueue decides under the mutex whether item is accepted, so a concurrent
// Shutdown either sees the item buffered or the caller sees the refusal.
func (q *InputQueue[T]) enqueue(item Item[T], allowDirectDispatch bool) bool {
	var (
		r             *reader[T]
		waiters       []*waiter
		available     bool
		dispatchLater bool
	)

	q.mu.Lock()
	waiters = q.takeWaitersLocked()
	accepted := q.state == StateOpen
	if accepted {
		available = true
		switch {
		case q.readers.Len() == 0:
			q.items.enqueueAvailable(item)
		case allowDirectDispatch:
			r = q.popReaderLocked()
		default:
			q.items.enqueuePending(item)
			dispatchLater = true
		}
	}
	q.mu.Unlock()

	if len(waiters) > 0 {
		if allowDirectDispatch {
			q.completeWaiters(waiters, available)
		} else {
			q.sched.Schedule(func() { q.completeWaiters(waiters, available) })
		}
	}
	if r != nil {
		q.completeReader(r, item)
	}
	if dispatchLater {
		q.sched.Schedule(q.Dispatch)
	}
	return accepted
}

// EnqueueWithoutDispatch buffers item without delivering it. It returns true
// when readers or waiters are outstanding, in which case the item is pending
// and the caller must call Dispatch to hand it over.
func (q *InputQueue[T]) EnqueueWithoutDispatch(item Item[T]) bool {
	q.mu.Lock()
	if q.state != StateOpen {
		q.mu.Unlock()
		q.discard(item)
		return false
	}
	if q.readers.Len() == 0 && len(q.waiters) == 0 {
		q.items.enqueueAvailable(item)
		q.mu.Unlock()
		return false
	}
	q.items.enqueuePending(item)
	q.mu.Unlock()
	return true
}

// Dispatch promotes the oldest pending item and delivers the head of the
// queue to the oldest reader. During Shutdown, readers left over once the
// backlog is gone are resolved with an empty result.
func (q *InputQueue[T]) Dispatch() {
	var (
		r             *reader[T]
		item          Item[T]
		excess        []*reader[T]
		waiters       []*waiter
		available     bool
		dispatchLater bool
	)

	q.mu.Lock()
	if q.state != StateClosed {
		promoted := q.items.makePendingAvailable()
		if q.readers.Len() > 0 && q.items.hasAvailable() {
			item = q.items.dequeueAvailable()
			r = q.popReaderLocked()
		}
		if q.state == StateShutdown && q.readers.Len() > 0 && !q.items.hasAny() {
			excess = q.popAllReadersLocked()
		}
		if len(q.waiters) > 0 && (promoted || q.state == StateShutdown) {
			available = promoted || q.items.hasAny()
			waiters = q.takeWaitersLocked()
		}
		dispatchLater = q.readers.Len() > 0 && q.items.hasAvailable()
	}
	q.mu.Unlock()

	if dispatchLater {
		q.sched.Schedule(q.Dispatch)
	}
	if r != nil {
		q.completeReader(r, item)
	}
	for _, er := range excess {
		q.completeReader(er, Item[T]{})
	}
	q.completeWaiters(waiters, available)
}

// Dequeue blocks until an item is handed over, the timeout elapses, or the
// queue can no longer produce one. An exhausted or closed queue yields the
// zero value and a nil error; an elapsed timeout yields a *TimeoutError.
func (q *InputQueue[T]) Dequeue(timeout time.Duration) (T, error) {
	return q.EndDequeue(q.BeginDequeue(timeout, nil))
}

// BeginDequeue starts a dequeue and returns its handle. callback, if set,
// runs once the handle resolves, possibly before BeginDequeue returns.
func (q *InputQueue[T]) BeginDequeue(timeout time.Duration, callback func(*DequeueResult[T])) *DequeueResult[T] {
	res := newDequeueResult[T]()
	var (
		item Item[T]
		r    *reader[T]
	)

	q.mu.Lock()
	switch q.state {
	case StateOpen:
		if q.items.hasAvailable() {
			item = q.items.dequeueAvailable()
		} else {
			r = q.addReaderLocked(res, timeout, callback)
		}
	case StateShutdown:
		if q.items.hasAvailable() {
			item = q.items.dequeueAvailable()
		} else if q.items.hasAny() {
			r = q.addReaderLocked(res, timeout, callback)
		}
	}
	q.mu.Unlock()

	if r != nil {
		r.slot.arm(q.clock, timeout, func() {
			q.sched.Schedule(func() { q.expireReader(r) })
		})
		return res
	}

	res.sync = true
	v, err := q.take(item)
	res.complete(v, err)
	q.notifyDequeue(callback, res)
	return res
}

// EndDequeue waits for res to resolve and returns its outcome.
func (q *InputQueue[T]) EndDequeue(res *DequeueResult[T]) (T, error) {
	return res.Result()
}

// WaitForItem blocks until an item is available, without taking it. It
// reports false on timeout, on Close, and after Shutdown once the backlog
// is gone.
func (q *InputQueue[T]) WaitForItem(timeout time.Duration) bool {
	return q.EndWaitForItem(q.BeginWaitForItem(timeout, nil))
}

func (q *InputQueue[T]) BeginWaitForItem(timeout time.Duration, callback func(*WaitResult)) *WaitResult {
	res := newWaitResult()
	var (
		w         *waiter
		available bool
	)

	q.mu.Lock()
	switch q.state {
	case StateOpen:
		if q.items.hasAvailable() {
			available = true
		} else {
			w = q.addWaiterLocked(res, callback)
		}
	case StateShutdown:
		if q.items.hasAvailable() {
			available = true
		} else if q.items.hasAny() {
			w = q.addWaiterLocked(res, callback)
		}
	}
	q.mu.Unlock()

	if w != nil {
		w.slot.arm(q.clock, timeout, func() {
			q.sched.Schedule(func() { q.expireWaiter(w) })
		})
		return res
	}

	res.sync = true
	res.complete(available)
	if callback != nil {
		q.safely("wait callback", func() { callback(res) })
	}
	return res
}

func (q *InputQueue[T]) EndWaitForItem(res *WaitResult) bool {
	return res.Result()
}

// Shutdown stops the queue accepting items. Buffered items stay drainable.
// If readers are blocked and nothing is buffered, each is resolved with a
// failure from failureGenerator, or with an empty result when it is nil or
// returns nil. Calls after the first have no effect.
func (q *InputQueue[T]) Shutdown(failureGenerator func() error) {
	var (
		outstanding []*reader[T]
		waiters     []*waiter
		available   bool
	)

	q.mu.Lock()
	if q.state != StateOpen {
		q.mu.Unlock()
		return
	}
	q.state = StateShutdown
	if q.readers.Len() > 0 && q.items.count() == 0 {
		outstanding = q.popAllReadersLocked()
	}
	if len(q.waiters) > 0 {
		available = q.items.hasAny()
		waiters = q.takeWaitersLocked()
	}
	q.mu.Unlock()

	for _, r := range outstanding {
		var item Item[T]
		if failureGenerator != nil {
			if err := failureGenerator(); err != nil {
				item = FailureItem[T](err, nil)
			}
		}
		q.completeReader(r, item)
	}
	q.completeWaiters(waiters, available)
}

// Close resolves every blocked reader with an empty result, every waiter
// with false, then drains the buffer, running each item's dequeued callback
// and releasing its value. Calls after the first have no effect.
func (q *InputQueue[T]) Close() {
	var (
		readers []*reader[T]
		waiters []*waiter
		items   []Item[T]
	)

	q.mu.Lock()
	if q.state == StateClosed {
		q.mu.Unlock()
		return
	}
	q.state = StateClosed
	readers = q.popAllReadersLocked()
	waiters = q.takeWaitersLocked()
	for q.items.hasAny() {
		items = append(items, q.items.dequeueAny())
	}
	q.mu.Unlock()

	for _, r := range readers {
		q.completeReader(r, Item[T]{})
	}
	q.completeWaiters(waiters, false)
	for _, item := range items {
		q.discard(item)
	}
	if len(items) > 0 {
		q.logger.Debug("closed with buffered items", logpkg.Int("discarded", len(items)))
	}
}

func (q *InputQueue[T]) addReaderLocked(res *DequeueResult[T], timeout time.Duration, callback func(*DequeueResult[T])) *reader[T] {
	r := &reader[T]{timeout: timeout, result: res, callback: callback}
	r.elem = q.readers.PushBack(r)
	return r
}

func (q *InputQueue[T]) popReaderLocked() *reader[T] {
	front := q.readers.Front()
	r := q.readers.Remove(front).(*reader[T])
	r.elem = nil
	return r
}

func (q *InputQueue[T]) popAllReadersLocked() []*reader[T] {
	if q.readers.Len() == 0 {
		return nil
	}
	out := make([]*reader[T], 0, q.readers.Len())
	for q.readers.Len() > 0 {
		out = append(out, q.popReaderLocked())
	}
	return out
}

func (q *InputQueue[T]) addWaiterLocked(res *WaitResult, callback func(*WaitResult)) *waiter {
	w := &waiter{registered: true, result: res, callback: callback}
	q.waiters[w] = struct{}{}
	return w
}

func (q *InputQueue[T]) takeWaitersLocked() []*waiter {
	if len(q.waiters) == 0 {
		return nil
	}
	out := make([]*waiter, 0, len(q.waiters))
	for w := range q.waiters {
		w.registered = false
		out = append(out, w)
	}
	clear(q.waiters)
	return out
}

func (q *InputQueue[T]) expireReader(r *reader[T]) {
	q.mu.Lock()
	if r.elem == nil {
		q.mu.Unlock()
		return
	}
	q.readers.Remove(r.elem)
	r.elem = nil
	q.mu.Unlock()

	r.slot.disarm()
	var zero T
	r.result.complete(zero, &TimeoutError{Op: "Dequeue", Timeout: r.timeout})
	q.notifyDequeue(r.callback, r.result)
}

func (q *InputQueue[T]) expireWaiter(w *waiter) {
	q.mu.Lock()
	if !w.registered {
		q.mu.Unlock()
		return
	}
	delete(q.waiters, w)
	w.registered = false
	q.mu.Unlock()

	q.completeWaiter(w, false)
}

// completeReader resolves a reader the caller has already removed.
func (q *InputQueue[T]) completeReader(r *reader[T], item Item[T]) {
	r.slot.disarm()
	v, err := q.take(item)
	r.result.complete(v, err)
	q.notifyDequeue(r.callback, r.result)
}

func (q *InputQueue[T]) completeWaiters(waiters []*waiter, available bool) {
	for _, w := range waiters {
		q.completeWaiter(w, available)
	}
}

func (q *InputQueue[T]) completeWaiter(w *waiter, available bool) {
	w.slot.disarm()
	w.result.complete(available)
	if w.callback != nil {
		q.safely("wait callback", func() { w.callback(w.result) })
	}
}

func (q *InputQueue[T]) notifyDequeue(callback func(*DequeueResult[T]), res *DequeueResult[T]) {
	if callback != nil {
		q.safely("dequeue callback", func() { callback(res) })
	}
}

// take runs the item's dequeued callback and unwraps it.
func (q *InputQueue[T]) take(item Item[T]) (T, error) {
	if item.dequeued != nil {
		q.safely("dequeued callback", item.dequeued)
	}
	return item.value, item.err
}

func (q *InputQueue[T]) discard(item Item[T]) {
	if item.dequeued != nil {
		q.safely("dequeued callback", item.dequeued)
	}
	if item.err == nil && q.release != nil {
		q.safely("release", func() { q.release(item.value) })
	}
}

func (q *InputQueue[T]) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("recovered panic", logpkg.Str("in", what), logpkg.Recovered(r))
		}
	}()
	fn()
}
