// Package metrics exports queue and storage activity to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzbill/haywire/internal/queue"
	pebblestore "github.com/rzbill/haywire/internal/storage/pebble"
)

const Namespace = "haywire"

var latencyBuckets = []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics implements queue.Observer and pebblestore.MetricsHook.
type Metrics struct {
	enqueued      *prometheus.CounterVec
	enqueuedBytes *prometheus.CounterVec
	dequeued      *prometheus.CounterVec
	timeouts      *prometheus.CounterVec
	depth         *prometheus.GaugeVec
	dequeueWait   *prometheus.HistogramVec

	storageOps   *prometheus.HistogramVec
	storageBytes *prometheus.CounterVec
	batchOps     prometheus.Counter
	queuesGauge  prometheus.Gauge
}

var (
	_ queue.Observer          = (*Metrics)(nil)
	_ pebblestore.MetricsHook = (*Metrics)(nil)
)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "queue",
			Name:      "enqueued_total",
			Help:      "Messages enqueued, by queue",
		}, []string{"queue"}),
		enqueuedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "queue",
			Name:      "enqueued_bytes_total",
			Help:      "Body bytes enqueued, by queue",
		}, []string{"queue"}),
		dequeued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "queue",
			Name:      "dequeued_total",
			Help:      "Messages handed to receivers, by queue",
		}, []string{"queue"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "queue",
			Name:      "dequeue_timeouts_total",
			Help:      "Dequeue calls that timed out, by queue",
		}, []string{"queue"}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Messages buffered awaiting a receiver",
		}, []string{"queue"}),
		dequeueWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "queue",
			Name:      "time_in_queue_seconds",
			Help:      "Time from enqueue to delivery",
			Buckets:   latencyBuckets,
		}, []string{"queue"}),
		storageOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "storage",
			Name:      "op_duration_seconds",
			Help:      "Storage operation latency by op",
			Buckets:   latencyBuckets,
		}, []string{"op"}),
		storageBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "storage",
			Name:      "bytes_total",
			Help:      "Bytes moved by storage op",
		}, []string{"op"}),
		batchOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "storage",
			Name:      "batch_ops_total",
			Help:      "Operations committed through batches",
		}),
		queuesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "queues",
			Help:      "Queues currently loaded",
		}),
	}

	err := errors.Join(
		reg.Register(m.enqueued),
		reg.Register(m.enqueuedBytes),
		reg.Register(m.dequeued),
		reg.Register(m.timeouts),
		reg.Register(m.depth),
		reg.Register(m.dequeueWait),
		reg.Register(m.storageOps),
		reg.Register(m.storageBytes),
		reg.Register(m.batchOps),
		reg.Register(m.queuesGauge),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) ObserveEnqueue(q string, bytes int) {
	m.enqueued.WithLabelValues(q).Inc()
	m.enqueuedBytes.WithLabelValues(q).Add(float64(bytes))
}

func (m *Metrics) ObserveDequeue(q string, wait time.Duration) {
	m.dequeued.WithLabelValues(q).Inc()
	if wait < 0 {
		wait = 0
	}
	m.dequeueWait.WithLabelValues(q).Observe(wait.Seconds())
}

func (m *Metrics) ObserveTimeout(q string) {
	m.timeouts.WithLabelValues(q).Inc()
}

func (m *Metrics) ObserveDepth(q string, depth int) {
	m.depth.WithLabelValues(q).Set(float64(depth))
}

// SetQueues records how many queues the runtime has loaded.
func (m *Metrics) SetQueues(n int) {
	m.queuesGauge.Set(float64(n))
}

func (m *Metrics) ObserveWrite(elapsed time.Duration, bytes int) {
	m.storageOps.WithLabelValues("write").Observe(elapsed.Seconds())
	m.storageBytes.WithLabelValues("write").Add(float64(bytes))
}

func (m *Metrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.storageOps.WithLabelValues("read").Observe(elapsed.Seconds())
	m.storageBytes.WithLabelValues("read").Add(float64(bytes))
}

func (m *Metrics) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	m.storageOps.WithLabelValues("commit").Observe(elapsed.Seconds())
	m.storageBytes.WithLabelValues("commit").Add(float64(bytes))
	m.batchOps.Add(float64(numOps))
}

// Handler serves the gatherer in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
