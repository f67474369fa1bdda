package serverrun

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfgpkg "github.com/rzbill/haywire/internal/config"
	"github.com/rzbill/haywire/internal/driver"
	logpkg "github.com/rzbill/haywire/pkg/log"
)

func TestRunServesAndStops(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.StoreDriver = driver.Pebble
	cfg.DataDir = t.TempDir()
	cfg.BootstrapQueues = []string{"orders"}

	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{
			Config:       cfg,
			Logger:       logpkg.NewNop(),
			HTTPListener: httpLis,
			GRPCListener: grpcLis,
			Ready:        ready,
		})
	}()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("run exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server not ready")
	}

	base := fmt.Sprintf("http://%s", httpLis.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/v1/healthz")
		if err != nil {
			return false
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/v1/queues")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Contains(t, string(body), "orders")

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Contains(t, string(body), "haywire_queues 1")
	require.Contains(t, string(body), "go_goroutines")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRunFailsOnBadConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.StoreDriver = "nope"
	err := Run(context.Background(), Options{Config: cfg, Logger: logpkg.NewNop()})
	require.ErrorIs(t, err, driver.ErrDriverNotFound)
}

func TestRunFailsOnBusyAddress(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := cfgpkg.Default()
	cfg.StoreDriver = driver.Memory
	cfg.Server.HTTPAddr = busy.Addr().String()
	err = Run(context.Background(), Options{Config: cfg, Logger: logpkg.NewNop()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "http listen")
}
