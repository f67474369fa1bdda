package pebblestore

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type testMetrics struct {
	mu           sync.Mutex
	wrote        int
	read         int
	batchCommits int
	batchOps     int
	batchBytes   int
}

func (m *testMetrics) ObserveWrite(_ time.Duration, bytes int) {
	m.mu.Lock()
	m.wrote += bytes
	m.mu.Unlock()
}

func (m *testMetrics) ObserveRead(_ time.Duration, bytes int) {
	m.mu.Lock()
	m.read += bytes
	m.mu.Unlock()
}

func (m *testMetrics) ObserveBatchCommit(_ time.Duration, numOps int, bytes int) {
	m.mu.Lock()
	m.batchCommits++
	m.batchOps += numOps
	m.batchBytes += bytes
	m.mu.Unlock()
}

func newTestDB(t *testing.T) (*DB, *testMetrics) {
	t.Helper()
	metrics := &testMetrics{}
	db, err := Open(Options{
		DataDir:       t.TempDir(),
		Fsync:         FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, metrics
}

func TestSetGet(t *testing.T) {
	db, metrics := newTestDB(t)

	if err := db.Set([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := db.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("got %q want v1", got)
	}
	if metrics.read == 0 || metrics.wrote == 0 {
		t.Fatalf("expected read and write metrics, got read=%d wrote=%d", metrics.read, metrics.wrote)
	}
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestBatchCommitMetrics(t *testing.T) {
	db, metrics := newTestDB(t)

	b := db.NewBatch()
	defer b.Close()
	for _, k := range []string{"a", "b"} {
		if err := b.Set([]byte(k), []byte("1"), nil); err != nil {
			t.Fatalf("batch set: %v", err)
		}
	}
	if err := db.CommitBatch(context.Background(), b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if metrics.batchCommits != 1 || metrics.batchOps != 2 {
		t.Fatalf("want 1 commit of 2 ops, got %d commits %d ops", metrics.batchCommits, metrics.batchOps)
	}
	if metrics.batchBytes <= 0 {
		t.Fatalf("expected positive batch bytes")
	}
}

func TestCommitBatchHonoursContext(t *testing.T) {
	db, _ := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := db.NewBatch()
	defer b.Close()
	_ = b.Set([]byte("k"), []byte("v"), nil)
	if err := db.CommitBatch(ctx, b); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestScanPrefix(t *testing.T) {
	db, _ := newTestDB(t)
	for _, k := range []string{"q/a/1", "q/a/2", "q/b/1", "r/a/1"} {
		if err := db.Set([]byte(k), []byte(k)); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	var keys []string
	if err := db.ScanPrefix([]byte("q/a/"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(keys) != 2 || keys[0] != "q/a/1" || keys[1] != "q/a/2" {
		t.Fatalf("unexpected keys %v", keys)
	}

	var first []string
	_ = db.ScanPrefix([]byte("q/"), func(k, _ []byte) bool {
		first = append(first, string(k))
		return false
	})
	if len(first) != 1 {
		t.Fatalf("scan did not stop early: %v", first)
	}
}

func TestPrefixUpperBound(t *testing.T) {
	if got := PrefixUpperBound([]byte("ab")); !bytes.Equal(got, []byte("ac")) {
		t.Fatalf("got %q", got)
	}
	if got := PrefixUpperBound([]byte{'a', 0xff}); !bytes.Equal(got, []byte("b")) {
		t.Fatalf("got %q", got)
	}
	if got := PrefixUpperBound([]byte{0xff, 0xff}); got != nil {
		t.Fatalf("want nil, got %v", got)
	}
}

func TestParseFsyncMode(t *testing.T) {
	cases := map[string]FsyncMode{
		"":         FsyncModeUnspecified,
		"always":   FsyncModeAlways,
		"Interval": FsyncModeInterval,
		"never":    FsyncModeNever,
	}
	for in, want := range cases {
		got, err := ParseFsyncMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseFsyncMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFsyncMode("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
}
