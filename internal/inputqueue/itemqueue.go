package inputqueue

// itemQueue is a growable ring buffer of items. Pending items are counted,
// not segregated: the head is dequeued only while at least one buffered item
// is available. Callers hold the InputQueue mutex.
type itemQueue[T any] struct {
	items        []Item[T]
	head         int
	totalCount   int
	pendingCount int
}

func newItemQueue[T any]() *itemQueue[T] {
	return &itemQueue[T]{items: make([]Item[T], 1)}
}

func (q *itemQueue[T]) enqueueAvailable(item Item[T]) {
	q.push(item)
}

func (q *itemQueue[T]) enqueuePending(item Item[T]) {
	q.push(item)
	q.pendingCount++
}

// makePendingAvailable promotes the oldest pending item. It reports whether
// there was one.
func (q *itemQueue[T]) makePendingAvailable() bool {
	if q.pendingCount == 0 {
		return false
	}
	q.pendingCount--
	return true
}

func (q *itemQueue[T]) dequeueAvailable() Item[T] {
	if !q.hasAvailable() {
		panic("inputqueue: dequeueAvailable with no available item")
	}
	return q.pop()
}

// dequeueAny removes the head regardless of pending state. Teardown only.
func (q *itemQueue[T]) dequeueAny() Item[T] {
	if q.totalCount == 0 {
		panic("inputqueue: dequeueAny on empty queue")
	}
	if q.pendingCount == q.totalCount {
		q.pendingCount--
	}
	return q.pop()
}

func (q *itemQueue[T]) hasAvailable() bool { return q.totalCount > q.pendingCount }
func (q *itemQueue[T]) hasAny() bool       { return q.totalCount > 0 }
func (q *itemQueue[T]) count() int         { return q.totalCount }
func (q *itemQueue[T]) availableCount() int {
	return q.totalCount - q.pendingCount
}

func (q *itemQueue[T]) push(item Item[T]) {
	if q.totalCount == len(q.items) {
		q.grow()
	}
	q.items[(q.head+q.totalCount)%len(q.items)] = item
	q.totalCount++
}

func (q *itemQueue[T]) pop() Item[T] {
	item := q.items[q.head]
	q.items[q.head] = Item[T]{}
	q.head = (q.head + 1) % len(q.items)
	q.totalCount--
	return item
}

func (q *itemQueue[T]) grow() {
	next := make([]Item[T], len(q.items)*2)
	for i := 0; i < q.totalCount; i++ {
		next[i] = q.items[(q.head+i)%len(q.items)]
	}
	q.items = next
	q.head = 0
}
