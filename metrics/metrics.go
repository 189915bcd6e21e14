// Package metrics exposes Prometheus collectors for the cache pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the collectors the State Engine updates as it runs. Faults
// is registered but nothing in this module increments it.
type Metrics struct {
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	StoresTotal prometheus.Counter
	Faults      *prometheus.CounterVec
	TTLSeconds  prometheus.Histogram
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subzero",
			Name:      "cache_hits_total",
			Help:      "Total requests served from the cache (state >= WARM).",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subzero",
			Name:      "cache_misses_total",
			Help:      "Total cache-eligible requests not served from the cache and forwarded to origin (state < WARM).",
		}),
		StoresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subzero",
			Name:      "stores_total",
			Help:      "Total cache entries written.",
		}),
		Faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subzero",
			Name:      "faults_total",
			Help:      "Total request-fatal faults, by kind.",
		}, []string{"kind"}),
		TTLSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "subzero",
			Name:      "stored_ttl_seconds",
			Help:      "Distribution of TTLs computed for stored entries.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}

	reg.MustRegister(m.CacheHits, m.CacheMisses, m.StoresTotal, m.Faults, m.TTLSeconds)
	return m
}
