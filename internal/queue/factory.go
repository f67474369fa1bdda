package queue

import (
	"fmt"
	"strings"

	"github.com/rzbill/haywire/internal/channel"
	"github.com/rzbill/haywire/internal/store"
)

// Factory creates queues that share one store and one channel.
type Factory struct {
	store store.Store
	ch    channel.Channel
	opts  Options
}

func NewFactory(st store.Store, ch channel.Channel, opts Options) *Factory {
	return &Factory{store: st, ch: ch, opts: opts}
}

// Create creates queue name in the store and opens it. A blank name is an
// argument error; an existing queue is store.ErrQueueExists.
func (f *Factory) Create(name string) (*MessageQueue, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: queue name is blank", store.ErrInvalidQueueName)
	}
	exists, err := f.store.QueueExists(name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", store.ErrQueueExists, name)
	}
	created, err := f.store.CreateQueue(name)
	if err != nil {
		return nil, fmt.Errorf("create queue %s: %w", name, err)
	}
	if !created {
		return nil, fmt.Errorf("%w: %s", store.ErrQueueExists, name)
	}
	return f.Load(name)
}

// Load opens a queue that already exists in the store.
func (f *Factory) Load(name string) (*MessageQueue, error) {
	q, err := New(name, f.store, f.ch, f.opts)
	if err != nil {
		return nil, err
	}
	if err := q.Open(); err != nil {
		return nil, err
	}
	return q, nil
}
