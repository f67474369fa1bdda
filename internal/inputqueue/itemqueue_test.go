package inputqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemQueueGrowsAndKeepsOrder(t *testing.T) {
	q := newItemQueue[int]()
	require.Len(t, q.items, 1)

	// Wrap the head before growing so the copy has to unroll the ring.
	q.enqueueAvailable(ValueItem(0, nil))
	q.dequeueAvailable()
	for i := 1; i <= 9; i++ {
		q.enqueueAvailable(ValueItem(i, nil))
	}
	assert.Equal(t, 9, q.count())
	assert.Len(t, q.items, 16)

	for i := 1; i <= 9; i++ {
		v, err := q.dequeueAvailable().Value()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.False(t, q.hasAny())
}

func TestItemQueuePendingAccounting(t *testing.T) {
	q := newItemQueue[string]()
	q.enqueuePending(ValueItem("a", nil))
	q.enqueuePending(ValueItem("b", nil))

	assert.True(t, q.hasAny())
	assert.False(t, q.hasAvailable())
	assert.Equal(t, 0, q.availableCount())
	assert.Panics(t, func() { q.dequeueAvailable() })

	require.True(t, q.makePendingAvailable())
	assert.Equal(t, 1, q.availableCount())
	v, _ := q.dequeueAvailable().Value()
	assert.Equal(t, "a", v)

	require.True(t, q.makePendingAvailable())
	assert.False(t, q.makePendingAvailable(), "nothing left to promote")
	assert.Equal(t, 0, q.pendingCount)
}

func TestItemQueueDequeueAnyIgnoresPending(t *testing.T) {
	q := newItemQueue[int]()
	q.enqueueAvailable(ValueItem(1, nil))
	q.enqueuePending(ValueItem(2, nil))

	first, _ := q.dequeueAny().Value()
	second, _ := q.dequeueAny().Value()
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, 0, q.count())
	assert.Equal(t, 0, q.pendingCount)
}
