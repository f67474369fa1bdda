package pebblequeue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pebblestore "github.com/rzbill/haywire/internal/storage/pebble"
	"github.com/rzbill/haywire/internal/store"
	"github.com/rzbill/haywire/internal/store/storetest"
	"github.com/rzbill/haywire/pkg/message"
)

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(Options{DataDir: dir, Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s := openTestStore(t, t.TempDir())
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStateSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)
	_, err := s.CreateQueue("orders")
	require.NoError(t, err)
	m := message.New([]byte("hello"))
	m.Headers = map[string]string{"content-type": "text/plain"}
	require.NoError(t, s.StoreMessage(context.Background(), "orders", m))
	_, err = s.NextSequence("orders")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = openTestStore(t, dir)
	defer s.Close()

	names, err := s.Queues()
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, names)

	next, err := s.NextSequence("orders")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), next, "allocated sequences are never reused")

	count, err := s.MessageCount("orders")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	got, err := s.Message("orders", 1)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "hello", string(got.Body))
	assert.Equal(t, "text/plain", got.Headers["content-type"])
	assert.WithinDuration(t, m.EnqueuedAt, got.EnqueuedAt, time.Millisecond)
}

func TestRestoringSameSequenceDoesNotRecount(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()
	_, err := s.CreateQueue("q")
	require.NoError(t, err)

	m := message.New([]byte("v1"))
	m.Sequence = 1
	require.NoError(t, s.StoreMessage(context.Background(), "q", m))
	m.Body = []byte("v2")
	require.NoError(t, s.StoreMessage(context.Background(), "q", m))

	count, err := s.MessageCount("q")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	got, err := s.Message("q", 1)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got.Body))
}

func TestRecordChecksum(t *testing.T) {
	rec := encodeRecord([]byte(`{"id":"x"}`), []byte("body"))
	header, body, ok := decodeRecord(rec)
	require.True(t, ok)
	assert.Equal(t, `{"id":"x"}`, string(header))
	assert.Equal(t, "body", string(body))

	rec[len(rec)-5] ^= 0xff
	_, _, ok = decodeRecord(rec)
	assert.False(t, ok)

	_, _, ok = decodeRecord([]byte{0x7f, 0, 0, 0, 0})
	assert.False(t, ok, "header length past the end")

	_, err := decodeMessage(1, rec)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestEntryKeysSortBySequence(t *testing.T) {
	a := keyEntry("q", 2)
	b := keyEntry("q", 256)
	assert.Less(t, string(a), string(b))
	assert.Equal(t, uint64(256), decodeBE8(b))
}
