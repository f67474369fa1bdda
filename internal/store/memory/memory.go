// Package memory is the in-process Store. Everything is lost on Close.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/haywire/internal/store"
	"github.com/rzbill/haywire/pkg/message"
)

type queue struct {
	seq      atomic.Uint64
	mu       sync.RWMutex
	messages map[uint64]*message.Message
}

// Store keeps queues in a map owned by the instance.
type Store struct {
	mu     sync.RWMutex
	queues map[string]*queue
	names  *store.NameValidator
	closed bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty store. A nil validator applies the default naming rule.
func New(names *store.NameValidator) *Store {
	if names == nil {
		names, _ = store.NewNameValidator("")
	}
	return &Store{queues: make(map[string]*queue), names: names}
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
	s.queues[name] = &queue{messages: make(map[uint64]*message.Message)}
	return true, nil
}

func (s *Store) QueueExists(name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, store.ErrClosed
	}
	_, ok := s.queues[name]
	return ok, nil
}

func (s *Store) Queues() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
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

func (s *Store) NextSequence(name string) (uint64, error) {
	q, err := s.queue(name)
	if err != nil {
		return 0, err
	}
	return q.seq.Add(1), nil
}

func (s *Store) LastSequence(name string) (uint64, error) {
	q, err := s.queue(name)
	if err != nil {
		return 0, err
	}
	return q.seq.Load(), nil
}

func (s *Store) MessageCount(name string) (uint64, error) {
	q, err := s.queue(name)
	if err != nil {
		return 0, err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	return uint64(len(q.messages)), nil
}

func (s *Store) Message(name string, seq uint64) (*message.Message, error) {
	q, err := s.queue(name)
	if err != nil {
		return nil, err
	}
	q.mu.RLock()
	m, ok := q.messages[seq]
	q.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s/%d", store.ErrMessageNotFound, name, seq)
	}
	return m.Clone(), nil
}

func (s *Store) StoreMessage(ctx context.Context, name string, msg *message.Message) error {
	if msg == nil {
		return fmt.Errorf("store message: nil message")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	q, err := s.queue(name)
	if err != nil {
		return err
	}
	if msg.Sequence == 0 {
		msg.Sequence = q.seq.Add(1)
	}
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}
	q.mu.Lock()
	q.messages[msg.Sequence] = msg.Clone()
	q.mu.Unlock()
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queues = map[string]*queue{}
	return nil
}

func (s *Store) queue(name string) (*queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	q, ok := s.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrQueueNotFound, name)
	}
	return q, nil
}
