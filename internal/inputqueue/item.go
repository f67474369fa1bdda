package inputqueue

// Item is a unit of delivery: a value or a carried failure, plus an optional
// callback run exactly once when the item leaves the queue by any path.
type Item[T any] struct {
	value    T
	err      error
	dequeued func()
}

// ValueItem wraps v. dequeued may be nil.
func ValueItem[T any](v T, dequeued func()) Item[T] {
	return Item[T]{value: v, dequeued: dequeued}
}

// FailureItem carries err to whichever consumer receives it.
func FailureItem[T any](err error, dequeued func()) Item[T] {
	return Item[T]{err: err, dequeued: dequeued}
}

// Value returns the payload and the carried failure, if any.
func (i Item[T]) Value() (T, error) { return i.value, i.err }

// Failed reports whether the item carries a failure instead of a value.
func (i Item[T]) Failed() bool { return i.err != nil }
