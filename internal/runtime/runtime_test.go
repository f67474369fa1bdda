package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/rzbill/haywire/internal/config"
	"github.com/rzbill/haywire/internal/driver"
	"github.com/rzbill/haywire/internal/metrics"
	"github.com/rzbill/haywire/internal/store"
	"github.com/rzbill/haywire/pkg/message"
)

func memoryConfig() cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.StoreDriver = driver.Memory
	cfg.DataDir = ""
	return cfg
}

func TestOpenCloseHealth(t *testing.T) {
	rt, err := Open(Options{Config: memoryConfig()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("health after close: %v", err)
	}
}

func TestDefaultDriversPickPebble(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	rt, err := Open(Options{Config: cfg})
	require.NoError(t, err)
	defer rt.Close()
	st, ch := rt.Drivers()
	require.Equal(t, driver.Pebble, st)
	require.Equal(t, driver.Memory, ch)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreDriver = "redis"
	_, err := Open(Options{Config: cfg})
	require.ErrorIs(t, err, driver.ErrDriverNotFound)

	cfg = memoryConfig()
	cfg.QueueNameRegex = "(["
	_, err = Open(Options{Config: cfg})
	require.Error(t, err)
}

func TestCreateSendReceive(t *testing.T) {
	rt, err := Open(Options{Config: memoryConfig()})
	require.NoError(t, err)
	defer rt.Close()
	require.NoError(t, rt.Start(context.Background()))

	q, err := rt.CreateQueue("orders")
	require.NoError(t, err)
	_, err = rt.CreateQueue("orders")
	require.ErrorIs(t, err, store.ErrQueueExists)
	_, err = rt.CreateQueue("bad name")
	require.ErrorIs(t, err, store.ErrInvalidQueueName)

	_, err = q.Enqueue(context.Background(), message.New([]byte("hi")))
	require.NoError(t, err)
	got, err := rt.Queue("orders")
	require.NoError(t, err)
	m, err := got.Dequeue(time.Second)
	require.NoError(t, err)
	require.Equal(t, "hi", string(m.Body))

	_, err = rt.Queue("missing")
	require.ErrorIs(t, err, store.ErrQueueNotFound)
	require.Equal(t, []string{"orders"}, rt.Queues())
}

func TestDeferredDispatchSendReceive(t *testing.T) {
	cfg := memoryConfig()
	cfg.DeferredDispatch = true
	rt, err := Open(Options{Config: cfg})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()

	q, err := rt.CreateQueue("jobs")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got := make(chan *message.Message, 1)
	if err := q.BeginDequeue(time.Second, func(m *message.Message, _ error) { got <- m }); err != nil {
		t.Fatalf("begin dequeue: %v", err)
	}
	if _, err := q.Enqueue(context.Background(), message.New([]byte("job"))); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case m := <-got:
		if m == nil || string(m.Body) != "job" {
			t.Fatalf("received %v, want job", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("deferred dispatch never delivered")
	}
}

func TestQueueForSendAutoCreate(t *testing.T) {
	cfg := memoryConfig()
	rt, err := Open(Options{Config: cfg})
	require.NoError(t, err)
	defer rt.Close()

	q, err := rt.QueueForSend("events")
	require.NoError(t, err)
	require.Equal(t, "events", q.ID())
	again, err := rt.QueueForSend("events")
	require.NoError(t, err)
	require.Same(t, q, again)

	cfg.AllowAutoCreateQueues = false
	strict, err := Open(Options{Config: cfg})
	require.NoError(t, err)
	defer strict.Close()
	_, err = strict.QueueForSend("events")
	require.ErrorIs(t, err, ErrAutoCreateDeny)
}

func TestMaxQueues(t *testing.T) {
	cfg := memoryConfig()
	cfg.MaxQueues = 1
	rt, err := Open(Options{Config: cfg})
	require.NoError(t, err)
	defer rt.Close()
	_, err = rt.CreateQueue("a")
	require.NoError(t, err)
	_, err = rt.CreateQueue("b")
	require.ErrorIs(t, err, ErrTooManyQueues)
}

func TestStartLoadsStoredAndBootstrapQueues(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.StoreDriver = driver.Pebble
	cfg.DataDir = t.TempDir()

	rt, err := Open(Options{Config: cfg})
	require.NoError(t, err)
	require.NoError(t, rt.Start(context.Background()))
	q, err := rt.CreateQueue("orders")
	require.NoError(t, err)
	_, err = q.Enqueue(context.Background(), message.New([]byte("kept")))
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	cfg.BootstrapQueues = []string{"audit", "orders"}
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	rt, err = Open(Options{Config: cfg, Metrics: m})
	require.NoError(t, err)
	defer rt.Close()
	require.NoError(t, rt.Start(context.Background()))
	require.Equal(t, []string{"audit", "orders"}, rt.Queues())

	q, err = rt.Queue("orders")
	require.NoError(t, err)
	stats, err := q.Stats()
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.Stored)
	require.Equal(t, uint64(1), stats.LastSequence)
}

func TestCloseResolvesBlockedReceivers(t *testing.T) {
	rt, err := Open(Options{Config: memoryConfig()})
	require.NoError(t, err)
	q, err := rt.CreateQueue("orders")
	require.NoError(t, err)

	done := make(chan *message.Message, 1)
	go func() {
		m, _ := q.Dequeue(-1)
		done <- m
	}()
	require.Eventually(t, func() bool {
		n, err := rt.channel.(interface {
			Waiting(string) (int, error)
		}).Waiting("orders")
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, rt.Close())
	select {
	case m := <-done:
		require.Nil(t, m)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked receiver not released by Close")
	}
	_, err = rt.Queue("orders")
	require.ErrorIs(t, err, ErrClosed)
}
