// Package metrics exposes Prometheus instrumentation for the cache, the
// backing store connections and the worker pool.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store operation labels.
const (
	OpUpsert = "upsert"
	OpSelect = "select"
	OpDelete = "delete"
	OpPing   = "ping"
)

// Collector holds all Prometheus metrics for the server. Each Collector owns
// its registry so tests can build as many as they like.
//
// All methods are safe to call on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	// Cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec

	// Connection lifecycle metrics
	ConnectionDials     *prometheus.CounterVec
	ConnectionProbes    *prometheus.CounterVec
	ConnectionReconnect *prometheus.CounterVec

	// Worker pool metrics
	WorkersBusy prometheus.Gauge
	JobsTotal   *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with the given namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of entries evicted for capacity",
		}),
		StoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of backing store operations",
			},
			[]string{"operation", "status"},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Backing store operation duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		ConnectionDials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_dials_total",
				Help:      "Total number of backing store connection attempts",
			},
			[]string{"status"},
		),
		ConnectionProbes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_probes_total",
				Help:      "Total number of liveness probes issued on idle connections",
			},
			[]string{"status"},
		),
		ConnectionReconnect: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_reconnects_total",
				Help:      "Total number of reconnect attempts after a failed probe",
			},
			[]string{"status"},
		),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_busy",
			Help:      "Number of workers currently executing a job",
		}),
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_jobs_total",
				Help:      "Total number of jobs executed by the worker pool",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		c.CacheHits,
		c.CacheMisses,
		c.CacheEvictions,
		c.StoreOperations,
		c.StoreDuration,
		c.ConnectionDials,
		c.ConnectionProbes,
		c.ConnectionReconnect,
		c.WorkersBusy,
		c.JobsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the collector's metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordCacheLookup counts a cache hit or miss.
func (c *Collector) RecordCacheLookup(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.Inc()
		return
	}
	c.CacheMisses.Inc()
}

// RecordEviction counts one capacity eviction.
func (c *Collector) RecordEviction() {
	if c == nil {
		return
	}
	c.CacheEvictions.Inc()
}

// RecordStoreOp records the outcome and latency of one store call.
func (c *Collector) RecordStoreOp(op string, start time.Time, err error) {
	if c == nil {
		return
	}
	c.StoreOperations.WithLabelValues(op, status(err)).Inc()
	c.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// RecordDial counts a connection attempt.
func (c *Collector) RecordDial(err error) {
	if c == nil {
		return
	}
	c.ConnectionDials.WithLabelValues(status(err)).Inc()
}

// RecordProbe counts a liveness probe.
func (c *Collector) RecordProbe(err error) {
	if c == nil {
		return
	}
	c.ConnectionProbes.WithLabelValues(status(err)).Inc()
}

// RecordReconnect counts the single reconnect attempt following a failed probe.
func (c *Collector) RecordReconnect(err error) {
	if c == nil {
		return
	}
	c.ConnectionReconnect.WithLabelValues(status(err)).Inc()
}

// JobStarted marks a worker busy.
func (c *Collector) JobStarted() {
	if c == nil {
		return
	}
	c.WorkersBusy.Inc()
}

// JobFinished marks a worker idle and counts the job outcome.
func (c *Collector) JobFinished(err error) {
	if c == nil {
		return
	}
	c.WorkersBusy.Dec()
	c.JobsTotal.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
