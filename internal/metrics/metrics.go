// Package metrics defines the Prometheus instrumentation exposed by
// the storage adapter, grounded in progressdb's server/pkg/api/http.go
// convention of package-level collectors registered once via
// promauto/MustRegister against a shared registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the collector registry the adapter's metrics are bound
// to. Callers that expose a /metrics endpoint should serve this
// registry; tests can construct their own via New to avoid colliding
// with the package-level default.
var Registry = prometheus.NewRegistry()

// Metrics bundles every counter/histogram the storage adapter updates.
type Metrics struct {
	SplitsTotal      prometheus.Counter
	RollbacksTotal   prometheus.Counter
	ReassembliesTotal *prometheus.CounterVec
	ReassemblyLatency prometheus.Histogram
}

// New registers a fresh Metrics bundle against reg. Tests should pass
// a throwaway prometheus.NewRegistry() rather than the package-level
// Registry to avoid "duplicate metrics collector registration" panics
// across test runs.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SplitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkpoint_splits_total",
			Help: "Number of checkpoint writes that required sharding.",
		}),
		RollbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkpoint_split_rollbacks_total",
			Help: "Number of shard writes that exhausted retries and rolled back.",
		}),
		ReassembliesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_reassemblies_total",
			Help: "Number of reassembly attempts, partitioned by outcome.",
		}, []string{"outcome"}),
		ReassemblyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkpoint_reassembly_latency_ms",
			Help:    "Time spent gathering and reconstructing a checkpoint's shards.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12),
		}),
	}
}

// Default is the adapter's metrics bundle bound to the package-level
// Registry. Most callers should use this; it exists so a single
// process-wide /metrics handler can serve every adapter instance.
var Default = New(Registry)
