package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"k8s.io/utils/clock"

	"github.com/rzbill/haywire/internal/channel"
	cfgpkg "github.com/rzbill/haywire/internal/config"
	"github.com/rzbill/haywire/internal/driver"
	"github.com/rzbill/haywire/internal/metrics"
	"github.com/rzbill/haywire/internal/queue"
	pebblestore "github.com/rzbill/haywire/internal/storage/pebble"
	"github.com/rzbill/haywire/internal/store"
	logpkg "github.com/rzbill/haywire/pkg/log"
)

var (
	ErrClosed         = errors.New("runtime closed")
	ErrTooManyQueues  = errors.New("queue limit reached")
	ErrAutoCreateDeny = errors.New("queue does not exist and auto-create is disabled")
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// Catalog defaults to driver.DefaultCatalog().
	Catalog *driver.Catalog
	Logger  logpkg.Logger
	// Metrics is optional; when set it observes queues and pebble storage.
	Metrics *metrics.Metrics
	Clock   clock.WithDelayedExecution
}

// Runtime owns the store, the channel and the registry of open queues for a
// single-node instance.
type Runtime struct {
	config        cfgpkg.Config
	logger        logpkg.Logger
	metrics       *metrics.Metrics
	store         store.Store
	channel       channel.Channel
	factory       *queue.Factory
	storeDriver   string
	channelDriver string

	mu     sync.RWMutex
	queues map[string]*queue.MessageQueue
	closed bool
}

// Open resolves the configured drivers and opens the store and channel.
// Queues are not loaded until Start.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNop()
	}
	logger = logger.WithComponent("runtime")
	catalog := opts.Catalog
	if catalog == nil {
		catalog = driver.DefaultCatalog()
	}

	names, err := store.NewNameValidator(cfg.QueueNameRegex)
	if err != nil {
		return nil, err
	}
	fsync, err := pebblestore.ParseFsyncMode(cfg.Fsync)
	if err != nil {
		return nil, err
	}
	settings := driver.Settings{
		DataDir:       cfg.DataDir,
		Fsync:         fsync,
		FsyncInterval: cfg.FsyncInterval(),
		Names:         names,
		Logger:        logger,
		Clock:         opts.Clock,
	}
	if opts.Metrics != nil {
		settings.StorageHook = opts.Metrics
	}

	storeName, newStore, err := catalog.ResolveStore(cfg.StoreDriver)
	if err != nil {
		return nil, err
	}
	channelName, newChannel, err := catalog.ResolveChannel(cfg.ChannelDriver)
	if err != nil {
		return nil, err
	}
	st, err := newStore(settings)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", storeName, err)
	}
	ch, err := newChannel(settings)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("open %s channel: %w", channelName, err), st.Close())
	}

	qopts := queue.Options{Logger: logger, DeferDispatch: cfg.DeferredDispatch}
	if opts.Metrics != nil {
		qopts.Observer = opts.Metrics
	}
	rt := &Runtime{
		config:        cfg,
		logger:        logger,
		metrics:       opts.Metrics,
		store:         st,
		channel:       ch,
		factory:       queue.NewFactory(st, ch, qopts),
		storeDriver:   storeName,
		channelDriver: channelName,
		queues:        make(map[string]*queue.MessageQueue),
	}
	logger.Info("runtime opened",
		logpkg.Str("store", storeName),
		logpkg.Str("channel", channelName))
	return rt, nil
}

// Start loads every queue the store knows about, then creates the
// configured bootstrap queues that are still missing.
func (r *Runtime) Start(ctx context.Context) error {
	names, err := r.store.Queues()
	if err != nil {
		return fmt.Errorf("list stored queues: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := r.queues[name]; ok {
			continue
		}
		q, err := r.factory.Load(name)
		if err != nil {
			return fmt.Errorf("load queue %s: %w", name, err)
		}
		r.queues[name] = q
	}
	for _, name := range r.config.BootstrapQueues {
		if _, ok := r.queues[name]; ok {
			continue
		}
		if _, err := r.createLocked(name); err != nil {
			return fmt.Errorf("bootstrap queue %s: %w", name, err)
		}
	}
	r.observeQueuesLocked()
	r.logger.Info("runtime started", logpkg.Int("queues", len(r.queues)))
	return nil
}

// CreateQueue creates and opens a new queue.
func (r *Runtime) CreateQueue(name string) (*queue.MessageQueue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	q, err := r.createLocked(name)
	if err != nil {
		return nil, err
	}
	r.observeQueuesLocked()
	return q, nil
}

func (r *Runtime) createLocked(name string) (*queue.MessageQueue, error) {
	if _, ok := r.queues[name]; ok {
		return nil, fmt.Errorf("%w: %s", store.ErrQueueExists, name)
	}
	if r.config.MaxQueues > 0 && len(r.queues) >= r.config.MaxQueues {
		return nil, fmt.Errorf("%w: max %d", ErrTooManyQueues, r.config.MaxQueues)
	}
	q, err := r.factory.Create(name)
	if err != nil {
		return nil, err
	}
	r.queues[name] = q
	r.logger.Info("queue created", logpkg.Str("queue", name))
	return q, nil
}

// Queue returns an open queue or store.ErrQueueNotFound.
func (r *Runtime) Queue(name string) (*queue.MessageQueue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	q, ok := r.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrQueueNotFound, name)
	}
	return q, nil
}

// QueueForSend returns the named queue, creating it when it is missing and
// auto-create is allowed.
func (r *Runtime) QueueForSend(name string) (*queue.MessageQueue, error) {
	q, err := r.Queue(name)
	if !errors.Is(err, store.ErrQueueNotFound) {
		return q, err
	}
	if !r.config.AllowAutoCreateQueues {
		return nil, fmt.Errorf("%w: %s", ErrAutoCreateDeny, name)
	}
	q, err = r.CreateQueue(name)
	if errors.Is(err, store.ErrQueueExists) {
		// lost a race with another creator
		return r.Queue(name)
	}
	return q, err
}

// Queues returns the open queue names in sorted order.
func (r *Runtime) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth reports whether the store still answers.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if _, err := r.store.Queues(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// Close closes every queue, then the channel, then the store. All errors
// are returned combined. Calling Close again is a no-op.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	queues := r.queues
	r.queues = make(map[string]*queue.MessageQueue)
	r.mu.Unlock()

	var err error
	for name, q := range queues {
		if cerr := q.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close queue %s: %w", name, cerr))
		}
	}
	err = multierr.Append(err, r.channel.Close())
	err = multierr.Append(err, r.store.Close())
	if r.metrics != nil {
		r.metrics.SetQueues(0)
	}
	r.logger.Info("runtime closed")
	return err
}

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Drivers returns the resolved store and channel driver names.
func (r *Runtime) Drivers() (storeDriver, channelDriver string) {
	return r.storeDriver, r.channelDriver
}

func (r *Runtime) observeQueuesLocked() {
	if r.metrics != nil {
		r.metrics.SetQueues(len(r.queues))
	}
}
