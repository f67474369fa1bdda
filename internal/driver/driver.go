// Package driver maps store and channel driver names to constructors.
//
// A Catalog resolves a configured driver name to a factory. An empty name
// picks the one non-default driver when exactly one is registered, and
// otherwise falls back to the default in-memory driver.
package driver

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/rzbill/haywire/internal/channel"
	memchannel "github.com/rzbill/haywire/internal/channel/memory"
	pebblestore "github.com/rzbill/haywire/internal/storage/pebble"
	"github.com/rzbill/haywire/internal/store"
	memstore "github.com/rzbill/haywire/internal/store/memory"
	"github.com/rzbill/haywire/internal/store/pebblequeue"
	logpkg "github.com/rzbill/haywire/pkg/log"
	"github.com/rzbill/haywire/pkg/message"
)

const (
	Memory = "memory"
	Pebble = "pebble"

	// Default is used when no name is configured and the choice is ambiguous.
	Default = Memory
)

var ErrDriverNotFound = errors.New("driver not found")

// Settings carries everything a driver may need to build its instance.
type Settings struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Names         *store.NameValidator
	Logger        logpkg.Logger
	StorageHook   pebblestore.MetricsHook
	Clock         clock.WithDelayedExecution
	OnDelivered   func(address string, msg *message.Message)
}

type (
	StoreFactory   func(Settings) (store.Store, error)
	ChannelFactory func(Settings) (channel.Channel, error)
)

// Catalog holds the registered drivers. It is safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	stores   map[string]StoreFactory
	channels map[string]ChannelFactory
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		stores:   make(map[string]StoreFactory),
		channels: make(map[string]ChannelFactory),
	}
}

// DefaultCatalog registers the built-in drivers: memory and pebble stores,
// and the memory channel.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	c.RegisterStore(Memory, newMemoryStore)
	c.RegisterStore(Pebble, newPebbleStore)
	c.RegisterChannel(Memory, newMemoryChannel)
	return c
}

// RegisterStore adds or replaces a store driver.
func (c *Catalog) RegisterStore(name string, f StoreFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores[name] = f
}

// RegisterChannel adds or replaces a channel driver.
func (c *Catalog) RegisterChannel(name string, f ChannelFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[name] = f
}

func (c *Catalog) StoreDrivers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.stores)
}

func (c *Catalog) ChannelDrivers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.channels)
}

// ResolveStore returns the resolved driver name and its factory.
func (c *Catalog) ResolveStore(name string) (string, StoreFactory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resolved, err := resolve(name, c.stores)
	if err != nil {
		return "", nil, fmt.Errorf("store: %w", err)
	}
	return resolved, c.stores[resolved], nil
}

// ResolveChannel returns the resolved driver name and its factory.
func (c *Catalog) ResolveChannel(name string) (string, ChannelFactory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resolved, err := resolve(name, c.channels)
	if err != nil {
		return "", nil, fmt.Errorf("channel: %w", err)
	}
	return resolved, c.channels[resolved], nil
}

func resolve[F any](name string, registry map[string]F) (string, error) {
	if name != "" {
		if _, ok := registry[name]; !ok {
			return "", fmt.Errorf("%w: %q", ErrDriverNotFound, name)
		}
		return name, nil
	}
	var others []string
	for n := range registry {
		if n != Default {
			others = append(others, n)
		}
	}
	if len(others) == 1 {
		return others[0], nil
	}
	if _, ok := registry[Default]; ok {
		return Default, nil
	}
	return "", fmt.Errorf("%w: no driver configured", ErrDriverNotFound)
}

func sortedKeys[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func newMemoryStore(s Settings) (store.Store, error) {
	return memstore.New(s.Names), nil
}

func newPebbleStore(s Settings) (store.Store, error) {
	if s.DataDir == "" {
		return nil, errors.New("pebble store requires a data directory")
	}
	return pebblequeue.Open(pebblequeue.Options{
		DataDir:       s.DataDir,
		Fsync:         s.Fsync,
		FsyncInterval: s.FsyncInterval,
		Metrics:       s.StorageHook,
		Names:         s.Names,
		Logger:        s.Logger,
	})
}

func newMemoryChannel(s Settings) (channel.Channel, error) {
	return memchannel.New(memchannel.Options{
		Logger:      s.Logger,
		Clock:       s.Clock,
		OnDelivered: s.OnDelivered,
	}), nil
}
