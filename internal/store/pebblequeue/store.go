// Package pebblequeue is a Store persisted in Pebble. Sequence allocation
// and message counts survive a reopen.
package pebblequeue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	pebblestore "github.com/rzbill/haywire/internal/storage/pebble"
	"github.com/rzbill/haywire/internal/store"
	logpkg "github.com/rzbill/haywire/pkg/log"
	"github.com/rzbill/haywire/pkg/message"
)

type queueMeta struct {
	Name        string `json:"name"`
	CreatedAtMs int64  `json:"createdAtMs"`
}

type queueState struct {
	lastSeq uint64
	count   uint64
}

// Options configures Open.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Metrics       pebblestore.MetricsHook
	Names         *store.NameValidator
	Logger        logpkg.Logger
}

// Store keeps queue metadata, counters and message records in Pebble.
// Writes are serialised by one mutex; the in-memory counters are the
// write-through cache of the persisted ones.
type Store struct {
	db     *pebblestore.DB
	ownsDB bool
	names  *store.NameValidator
	logger logpkg.Logger

	mu     sync.Mutex
	queues map[string]*queueState
	closed bool
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) a store in opts.DataDir.
func Open(opts Options) (*Store, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	s, err := New(db, opts.Names, opts.Logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// New builds a store over an already open DB, which the caller keeps
// ownership of.
func New(db *pebblestore.DB, names *store.NameValidator, logger logpkg.Logger) (*Store, error) {
	if names == nil {
		names, _ = store.NewNameValidator("")
	}
	if logger == nil {
		logger = logpkg.NewNop()
	}
	s := &Store{
		db:     db,
		names:  names,
		logger: logger.WithComponent("store.pebble"),
		queues: make(map[string]*queueState),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var names []string
	err := s.db.ScanPrefix(metaPrefix, func(_, value []byte) bool {
		var m queueMeta
		if err := json.Unmarshal(value, &m); err != nil {
			s.logger.Warn("skipping unreadable queue metadata", logpkg.Err(err))
			return true
		}
		names = append(names, m.Name)
		return true
	})
	if err != nil {
		return fmt.Errorf("scan queue metadata: %w", err)
	}
	for _, name := range names {
		st := &queueState{}
		if st.lastSeq, err = s.readCounter(keySeq(name)); err != nil {
			return err
		}
		if st.count, err = s.readCounter(keyCount(name)); err != nil {
			return err
		}
		s.queues[name] = st
	}
	s.logger.Debug("loaded queues", logpkg.Int("count", len(names)))
	return nil
}

func (s *Store) readCounter(key []byte) (uint64, error) {
	b, err := s.db.Get(key)
	if errors.Is(err, pebblestore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decodeBE8(b), nil
}

func (s *Store) CreateQueue(name string) (bool, error) {
	if err := s.names.Validate(name); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, store.ErrClosed
	}
	if _, ok := s.queues[name]; ok {
		return false, nil
	}
	meta, err := json.Marshal(queueMeta{Name: name, CreatedAtMs: time.Now().UnixMilli()})
	if err != nil {
		return false, err
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyMeta(name), meta, nil); err != nil {
		return false, err
	}
	if err := b.Set(keySeq(name), appendBE8(nil, 0), nil); err != nil {
		return false, err
	}
	if err := b.Set(keyCount(name), appendBE8(nil, 0), nil); err != nil {
		return false, err
	}
	if err := s.db.CommitBatch(context.Background(), b); err != nil {
		return false, fmt.Errorf("create queue %s: %w", name, err)
	}
	s.queues[name] = &queueState{}
	return true, nil
}

func (s *Store) QueueExists(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, store.ErrClosed
	}
	_, ok := s.queues[name]
	return ok, nil
}

func (s *Store) Queues() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// NextSequence allocates and persists the next sequence for name.
func (s *Store) NextSequence(name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.stateLocked(name)
	if err != nil {
		return 0, err
	}
	next := st.lastSeq + 1
	if err := s.db.Set(keySeq(name), appendBE8(nil, next)); err != nil {
		return 0, fmt.Errorf("persist sequence for %s: %w", name, err)
	}
	st.lastSeq = next
	return next, nil
}

func (s *Store) LastSequence(name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.stateLocked(name)
	if err != nil {
		return 0, err
	}
	return st.lastSeq, nil
}

func (s *Store) MessageCount(name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.stateLocked(name)
	if err != nil {
		return 0, err
	}
	return st.count, nil
}

func (s *Store) Message(name string, seq uint64) (*message.Message, error) {
	s.mu.Lock()
	_, err := s.stateLocked(name)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	b, err := s.db.Get(keyEntry(name, seq))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s/%d", store.ErrMessageNotFound, name, seq)
	}
	if err != nil {
		return nil, err
	}
	m, err := decodeMessage(seq, b)
	if err != nil {
		return nil, fmt.Errorf("%s/%d: %w", name, seq, err)
	}
	return m, nil
}

// StoreMessage writes the record and bumps the message count in one batch.
// A zero msg.Sequence is allocated in the same batch.
func (s *Store) StoreMessage(ctx context.Context, name string, msg *message.Message) error {
	if msg == nil {
		return errors.New("store message: nil message")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.stateLocked(name)
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()
	seq := msg.Sequence
	allocated := seq == 0
	if allocated {
		seq = st.lastSeq + 1
		if err := b.Set(keySeq(name), appendBE8(nil, seq), nil); err != nil {
			return err
		}
	}
	enqueuedAt := msg.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now().UTC()
	}

	rec := msg.Clone()
	rec.Sequence = seq
	rec.EnqueuedAt = enqueuedAt
	val, err := encodeMessage(rec)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	key := keyEntry(name, seq)
	_, getErr := s.db.Get(key)
	replacing := getErr == nil
	if err := b.Set(key, val, nil); err != nil {
		return err
	}
	count := st.count
	if !replacing {
		count++
		if err := b.Set(keyCount(name), appendBE8(nil, count), nil); err != nil {
			return err
		}
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return fmt.Errorf("store message in %s: %w", name, err)
	}

	if allocated {
		st.lastSeq = seq
	}
	st.count = count
	msg.Sequence = seq
	msg.EnqueuedAt = enqueuedAt
	return nil
}

// Close closes the underlying DB when the store opened it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func (s *Store) stateLocked(name string) (*queueState, error) {
	if s.closed {
		return nil, store.ErrClosed
	}
	st, ok := s.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrQueueNotFound, name)
	}
	return st, nil
}
