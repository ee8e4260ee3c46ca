// Package metrics implements the observability hooks with Prometheus
// collectors.
//
//	m := metrics.New("rootline")
//	m.Install()
//	router.Handle("/metrics", m.Handler())
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rootline/rootline/pkg/observability"
)

// Collector holds rootline's Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	traversals        *prometheus.CounterVec
	traversalDuration prometheus.Histogram
	traversalNodes    prometheus.Histogram
	superseded        prometheus.Counter
	hops              prometheus.Counter

	lookups        *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	batchFailures  prometheus.Counter

	cacheOps *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var (
	_ observability.TreeHooks    = (*Collector)(nil)
	_ observability.ResolveHooks = (*Collector)(nil)
	_ observability.CacheHooks   = (*Collector)(nil)
	_ observability.HTTPHooks    = (*Collector)(nil)
)

// New creates a collector whose metric names start with namespace.
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		traversals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traversals_total",
			Help:      "Tree traversals by outcome.",
		}, []string{"outcome"}),
		traversalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "traversal_duration_seconds",
			Help:      "Time to fetch and build a tree traversal.",
			Buckets:   prometheus.DefBuckets,
		}),
		traversalNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "traversal_nodes",
			Help:      "Appearances per loaded traversal.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traversals_superseded_total",
			Help:      "Traversals abandoned for a newer request.",
		}),
		hops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hops_total",
			Help:      "Jumps between appearances of the same person.",
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_lookups_total",
			Help:      "Reference lookups by kind and outcome.",
		}, []string{"kind", "outcome"}),
		lookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reference_lookup_duration_seconds",
			Help:      "Reference lookup latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		batchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_batch_failures_total",
			Help:      "References left unresolved after a batch.",
		}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Cache hits, misses and writes.",
		}, []string{"op", "type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend HTTP requests by method and status.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend HTTP latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	c.registry.MustRegister(
		c.traversals, c.traversalDuration, c.traversalNodes, c.superseded, c.hops,
		c.lookups, c.lookupDuration, c.batchFailures,
		c.cacheOps,
		c.httpRequests, c.httpDuration,
	)
	return c
}

// Install registers c as the process-wide observability hooks.
func (c *Collector) Install() {
	observability.SetTreeHooks(c)
	observability.SetResolveHooks(c)
	observability.SetCacheHooks(c)
	observability.SetHTTPHooks(c)
}

// Registry returns the registry holding c's metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) OnTraversalStart(context.Context, string) {}

func (c *Collector) OnTraversalComplete(_ context.Context, _ string, nodeCount int, d time.Duration, err error) {
	c.traversals.WithLabelValues(outcome(err)).Inc()
	c.traversalDuration.Observe(d.Seconds())
	if err == nil {
		c.traversalNodes.Observe(float64(nodeCount))
	}
}

func (c *Collector) OnTraversalSuperseded(context.Context, string) { c.superseded.Inc() }

func (c *Collector) OnHop(context.Context, string, int) { c.hops.Inc() }

func (c *Collector) OnLookup(_ context.Context, kind, _ string, d time.Duration, err error) {
	c.lookups.WithLabelValues(kind, outcome(err)).Inc()
	c.lookupDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (c *Collector) OnBatch(_ context.Context, _, failed int, _ time.Duration) {
	c.batchFailures.Add(float64(failed))
}

func (c *Collector) OnCacheHit(_ context.Context, keyType string) {
	c.cacheOps.WithLabelValues("hit", keyType).Inc()
}

func (c *Collector) OnCacheMiss(_ context.Context, keyType string) {
	c.cacheOps.WithLabelValues("miss", keyType).Inc()
}

func (c *Collector) OnCacheSet(_ context.Context, keyType string, _ int) {
	c.cacheOps.WithLabelValues("set", keyType).Inc()
}

func (c *Collector) OnRequest(context.Context, string, string, string) {}

func (c *Collector) OnResponse(_ context.Context, method, _, _ string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (c *Collector) OnError(_ context.Context, method, _, _ string, _ error) {
	c.httpRequests.WithLabelValues(method, "error").Inc()
}
