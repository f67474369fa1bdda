package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.AllowAutoCreateQueues {
		t.Fatalf("default allow auto create should be true")
	}
	if cfg.Fsync != "always" {
		t.Fatalf("default fsync")
	}
	if cfg.ReceiveTimeout() != 30*time.Second {
		t.Fatalf("default receive timeout: %v", cfg.ReceiveTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "haywire.json")
	data := []byte(`{"storeDriver":"pebble","allowAutoCreateQueues":false,"bootstrapQueues":["orders","audit"],"log":{"level":"debug"}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AllowAutoCreateQueues {
		t.Fatalf("expected false")
	}
	if cfg.StoreDriver != "pebble" {
		t.Fatalf("expected pebble")
	}
	require.Equal(t, []string{"orders", "audit"}, cfg.BootstrapQueues)
	require.Equal(t, "debug", cfg.Log.Level)
	// untouched fields keep their defaults
	require.Equal(t, "text", cfg.Log.Format)
}

func TestLoadRejectsYAMLAndGarbage(t *testing.T) {
	dir := t.TempDir()
	y := filepath.Join(dir, "haywire.yaml")
	require.NoError(t, os.WriteFile(y, []byte("a: b"), 0644))
	_, err := Load(y)
	require.Error(t, err)

	j := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(j, []byte("{"), 0644))
	_, err = Load(j)
	require.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("HAYWIRE_ALLOW_AUTO_CREATE_QUEUES", "false")
	t.Setenv("HAYWIRE_STORE_DRIVER", "pebble")
	t.Setenv("HAYWIRE_BOOTSTRAP_QUEUES", "a,b")
	t.Setenv("HAYWIRE_RECEIVE_TIMEOUT_MS", "250")
	t.Setenv("HAYWIRE_LOG_FORMAT", "json")
	t.Setenv("HAYWIRE_SERVER_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("HAYWIRE_DEFERRED_DISPATCH", "true")

	require.NoError(t, FromEnv(&cfg))
	require.True(t, cfg.DeferredDispatch)
	require.False(t, cfg.AllowAutoCreateQueues)
	require.Equal(t, "pebble", cfg.StoreDriver)
	require.Equal(t, []string{"a", "b"}, cfg.BootstrapQueues)
	require.Equal(t, 250*time.Millisecond, cfg.ReceiveTimeout())
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.HTTPAddr)
	// unset variables leave defaults alone
	require.Equal(t, ":50051", cfg.Server.GRPCAddr)
}

func TestFromEnvBadValue(t *testing.T) {
	cfg := Default()
	t.Setenv("HAYWIRE_MAX_QUEUES", "many")
	require.Error(t, FromEnv(&cfg))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.QueueNameRegex = "(["
	cfg.Fsync = "sometimes"
	cfg.MaxQueues = -1
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "queueNameRegex")
	require.Contains(t, err.Error(), "fsync")
	require.Contains(t, err.Error(), "maxQueues")
}
