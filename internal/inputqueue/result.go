package inputqueue

// DequeueResult is the handle returned by BeginDequeue. It resolves exactly
// once, with a value, a carried failure, a timeout, or an empty result.
type DequeueResult[T any] struct {
	done  chan struct{}
	sync  bool
	value T
	err   error
}

func newDequeueResult[T any]() *DequeueResult[T] {
	return &DequeueResult[T]{done: make(chan struct{})}
}

func (r *DequeueResult[T]) complete(v T, err error) {
	r.value = v
	r.err = err
	close(r.done)
}

// Done is closed once the result is resolved.
func (r *DequeueResult[T]) Done() <-chan struct{} { return r.done }

// CompletedSynchronously reports whether BeginDequeue resolved the result
// before returning.
func (r *DequeueResult[T]) CompletedSynchronously() bool { return r.sync }

// Result blocks until resolution.
func (r *DequeueResult[T]) Result() (T, error) {
	<-r.done
	return r.value, r.err
}

// WaitResult is the handle returned by BeginWaitForItem.
type WaitResult struct {
	done      chan struct{}
	sync      bool
	available bool
}

func newWaitResult() *WaitResult {
	return &WaitResult{done: make(chan struct{})}
}

func (r *WaitResult) complete(available bool) {
	r.available = available
	close(r.done)
}

func (r *WaitResult) Done() <-chan struct{} { return r.done }

func (r *WaitResult) CompletedSynchronously() bool { return r.sync }

// Result blocks until resolution and reports whether an item became
// available. Timeouts, shutdown with an empty backlog and Close report false.
func (r *WaitResult) Result() bool {
	<-r.done
	return r.available
}
