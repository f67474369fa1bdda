package memory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"

	"github.com/rzbill/haywire/internal/channel"
	"github.com/rzbill/haywire/internal/inputqueue"
	"github.com/rzbill/haywire/pkg/message"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	c := New(Options{})
	defer c.Close()
	require.NoError(t, c.Open("orders"))

	sent := message.New([]byte("hi"))
	require.NoError(t, c.Send("orders", sent))
	pending, err := c.Pending("orders")
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	got, err := c.Receive("orders", time.Second)
	require.NoError(t, err)
	assert.Same(t, sent, got)
}

func TestUnknownAddress(t *testing.T) {
	c := New(Options{})
	defer c.Close()
	assert.ErrorIs(t, c.Send("nope", message.New(nil)), channel.ErrAddressNotFound)
	_, err := c.Receive("nope", time.Millisecond)
	assert.ErrorIs(t, err, channel.ErrAddressNotFound)
	assert.ErrorIs(t, c.CloseAddress("nope"), channel.ErrAddressNotFound)
}

func TestOpenValidation(t *testing.T) {
	c := New(Options{})
	defer c.Close()
	assert.ErrorIs(t, c.Open(""), channel.ErrInvalidAddress)
	require.NoError(t, c.Open("a"))
	assert.ErrorIs(t, c.Open("a"), channel.ErrAddressExists)
	assert.Equal(t, []string{"a"}, c.Addresses())
}

func TestAddressesAreIsolatedPerChannel(t *testing.T) {
	a := New(Options{})
	b := New(Options{})
	defer a.Close()
	defer b.Close()
	require.NoError(t, a.Open("q"))
	assert.ErrorIs(t, b.Send("q", message.New(nil)), channel.ErrAddressNotFound)
}

func TestBeginReceiveDeliversToWaitingReceiver(t *testing.T) {
	c := New(Options{})
	defer c.Close()
	require.NoError(t, c.Open("q"))

	results := make(chan channel.ReceiveResult, 1)
	require.NoError(t, c.BeginReceive("q", inputqueue.InfiniteTimeout, func(r channel.ReceiveResult) { results <- r }))
	require.Eventually(t, func() bool {
		n, _ := c.Waiting("q")
		return n == 1
	}, time.Second, time.Millisecond)

	m := message.New([]byte("x"))
	require.NoError(t, c.SendDeferred("q", m))
	select {
	case r := <-results:
		require.NoError(t, r.Err)
		assert.Same(t, m, r.Message)
	case <-time.After(time.Second):
		t.Fatal("receiver never resolved")
	}
}

func TestReceiveTimeout(t *testing.T) {
	fc := testclock.NewFakeClock(time.Now())
	c := New(Options{Clock: fc})
	defer c.Close()
	require.NoError(t, c.Open("q"))

	errs := make(chan error, 1)
	go func() {
		_, err := c.Receive("q", 100*time.Millisecond)
		errs <- err
	}()
	require.Eventually(t, fc.HasWaiters, time.Second, time.Millisecond)
	fc.Step(100 * time.Millisecond)
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, inputqueue.ErrTimeout)
	case <-time.After(time.Second):
		t.Fatal("receive did not time out")
	}
}

func TestShutdownFailsStrandedReceivers(t *testing.T) {
	c := New(Options{})
	defer c.Close()
	require.NoError(t, c.Open("q"))

	errs := make(chan error, 1)
	go func() {
		_, err := c.Receive("q", inputqueue.InfiniteTimeout)
		errs <- err
	}()
	require.Eventually(t, func() bool {
		n, _ := c.Waiting("q")
		return n == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, c.Shutdown("q"))
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, channel.ErrShutdown)
	case <-time.After(time.Second):
		t.Fatal("receiver still blocked after shutdown")
	}
}

func TestSendAfterShutdownIsRefused(t *testing.T) {
	var delivered int
	c := New(Options{OnDelivered: func(string, *message.Message) { delivered++ }})
	defer c.Close()
	if err := c.Open("q"); err != nil {
		t.Fatal(err)
	}
	if err := c.Send("q", message.New([]byte("kept"))); err != nil {
		t.Fatalf("Send before shutdown: %v", err)
	}
	if err := c.Shutdown("q"); err != nil {
		t.Fatal(err)
	}

	for name, send := range map[string]func(string, *message.Message) error{
		"direct":   c.Send,
		"deferred": c.SendDeferred,
	} {
		if err := send("q", message.New([]byte(name))); !errors.Is(err, channel.ErrShutdown) {
			t.Fatalf("%s send after shutdown: err = %v, want ErrShutdown", name, err)
		}
	}
	if n, _ := c.Pending("q"); n != 1 {
		t.Fatalf("Pending = %d, want 1", n)
	}
	m, err := c.Receive("q", time.Second)
	if err != nil || m == nil || string(m.Body) != "kept" {
		t.Fatalf("Receive = %v, %v; want the message sent before shutdown", m, err)
	}
	if delivered != 1 {
		t.Fatalf("OnDelivered ran %d times, want 1", delivered)
	}
}

func TestCloseReportsDiscardedMessages(t *testing.T) {
	var mu sync.Mutex
	var delivered []string
	c := New(Options{OnDelivered: func(address string, m *message.Message) {
		mu.Lock()
		delivered = append(delivered, address+":"+string(m.Body))
		mu.Unlock()
	}})
	require.NoError(t, c.Open("q"))
	require.NoError(t, c.Send("q", message.New([]byte("1"))))
	require.NoError(t, c.Send("q", message.New([]byte("2"))))

	_, err := c.Receive("q", time.Second)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"q:1", "q:2"}, delivered)
	assert.ErrorIs(t, c.Open("r"), channel.ErrClosed)
}
