// Package storetest runs the behaviour every store.Store must share.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/haywire/internal/store"
	"github.com/rzbill/haywire/pkg/message"
)

// Run exercises the store returned by open. open is called once per subtest.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("CreateQueue", func(t *testing.T) {
		s := open(t)
		created, err := s.CreateQueue("orders")
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.CreateQueue("orders")
		require.NoError(t, err)
		assert.False(t, created, "second create reports the queue already exists")

		exists, err := s.QueueExists("orders")
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = s.QueueExists("missing")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = s.CreateQueue(" ")
		assert.ErrorIs(t, err, store.ErrInvalidQueueName)
	})

	t.Run("Queues", func(t *testing.T) {
		s := open(t)
		for _, name := range []string{"b", "a", "c"} {
			_, err := s.CreateQueue(name)
			require.NoError(t, err)
		}
		names, err := s.Queues()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, names)
	})

	t.Run("SequenceStartsAtOne", func(t *testing.T) {
		s := open(t)
		mustCreate(t, s, "q")
		mustCreate(t, s, "other")
		for want := uint64(1); want <= 3; want++ {
			got, err := s.NextSequence("q")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		got, err := s.NextSequence("other")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), got, "sequences are per queue")

		last, err := s.LastSequence("q")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), last)
	})

	t.Run("SequenceIsAtomic", func(t *testing.T) {
		s := open(t)
		mustCreate(t, s, "q")
		const workers, each = 8, 50
		var mu sync.Mutex
		seen := map[uint64]bool{}
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < each; i++ {
					n, err := s.NextSequence("q")
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					assert.False(t, seen[n], "duplicate sequence %d", n)
					seen[n] = true
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Len(t, seen, workers*each)
		assert.True(t, seen[1])
		assert.True(t, seen[workers*each])
	})

	t.Run("StoreAndGet", func(t *testing.T) {
		s := open(t)
		mustCreate(t, s, "Q")
		ctx := context.Background()
		var stored []*message.Message
		for i := 0; i < 3; i++ {
			seq, err := s.NextSequence("Q")
			require.NoError(t, err)
			m := message.New([]byte{byte('a' + i)})
			m.Sequence = seq
			m.CorrelationID = "corr"
			m.Headers = map[string]string{"n": string(rune('0' + i))}
			require.NoError(t, s.StoreMessage(ctx, "Q", m))
			stored = append(stored, m)
		}

		got, err := s.Message("Q", 2)
		require.NoError(t, err)
		assert.Equal(t, stored[1].ID, got.ID)
		assert.Equal(t, uint64(2), got.Sequence)
		assert.Equal(t, "b", string(got.Body))
		assert.Equal(t, "corr", got.CorrelationID)
		assert.Equal(t, "1", got.Headers["n"])

		count, err := s.MessageCount("Q")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), count)

		_, err = s.Message("Q", 99)
		assert.ErrorIs(t, err, store.ErrMessageNotFound)
	})

	t.Run("StoreAssignsSequence", func(t *testing.T) {
		s := open(t)
		mustCreate(t, s, "Q")
		m := message.New([]byte("x"))
		require.NoError(t, s.StoreMessage(context.Background(), "Q", m))
		assert.Equal(t, uint64(1), m.Sequence)
		assert.False(t, m.EnqueuedAt.IsZero())

		next, err := s.NextSequence("Q")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), next)
	})

	t.Run("UnknownQueue", func(t *testing.T) {
		s := open(t)
		_, err := s.NextSequence("nope")
		assert.ErrorIs(t, err, store.ErrQueueNotFound)
		_, err = s.MessageCount("nope")
		assert.ErrorIs(t, err, store.ErrQueueNotFound)
		err = s.StoreMessage(context.Background(), "nope", message.New(nil))
		assert.ErrorIs(t, err, store.ErrQueueNotFound)
	})
}

func mustCreate(t *testing.T, s store.Store, name string) {
	t.Helper()
	_, err := s.CreateQueue(name)
	require.NoError(t, err)
}
