package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rzbill/haywire/internal/store"
	"github.com/rzbill/haywire/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s := New(nil)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestClosedStoreRejectsCalls(t *testing.T) {
	s := New(nil)
	_, _ = s.CreateQueue("q")
	assert.NoError(t, s.Close())
	_, err := s.Queues()
	assert.ErrorIs(t, err, store.ErrClosed)
	_, err = s.NextSequence("q")
	assert.ErrorIs(t, err, store.ErrClosed)
}
