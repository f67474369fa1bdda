package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = New(reg)
	require.Error(t, err, "registering twice must fail")
}

func TestQueueObservations(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveEnqueue("orders", 10)
	m.ObserveEnqueue("orders", 5)
	m.ObserveDequeue("orders", 20*time.Millisecond)
	m.ObserveTimeout("orders")
	m.ObserveDepth("orders", 1)
	m.SetQueues(3)

	require.Equal(t, 2.0, testutil.ToFloat64(m.enqueued.WithLabelValues("orders")))
	require.Equal(t, 15.0, testutil.ToFloat64(m.enqueuedBytes.WithLabelValues("orders")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.dequeued.WithLabelValues("orders")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.timeouts.WithLabelValues("orders")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.depth.WithLabelValues("orders")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.queuesGauge))
}

func TestStorageHook(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveWrite(time.Millisecond, 100)
	m.ObserveRead(time.Millisecond, 40)
	m.ObserveBatchCommit(time.Millisecond, 3, 200)

	require.Equal(t, 100.0, testutil.ToFloat64(m.storageBytes.WithLabelValues("write")))
	require.Equal(t, 40.0, testutil.ToFloat64(m.storageBytes.WithLabelValues("read")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.batchOps))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	m.ObserveEnqueue("orders", 1)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `haywire_queue_enqueued_total{queue="orders"} 1`))
}
