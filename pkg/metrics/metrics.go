// Package metrics holds the Prometheus collectors shared by the engine's components.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "menuserve"

// Cache metrics, labelled by cache name.
var (
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by result",
		},
		[]string{"cache", "result"}, // "hit" / "miss"
	)

	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries evicted to stay within capacity",
		},
		[]string{"cache"},
	)
)

// Search metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by domain",
		},
		[]string{"domain"},
	)

	BloomRejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bloom_rejects_total",
			Help:      "Queries answered empty by the membership filter without a trie walk",
		},
		[]string{"domain"},
	)

	IndexRebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_rebuilds_total",
			Help:      "Index rebuilds by outcome",
		},
		[]string{"status"}, // "ok" / "failed"
	)

	IndexRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_rebuild_duration_seconds",
			Help:      "Time to build and publish a new index snapshot",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	IndexedEntities = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_entities",
			Help:      "Entities in the live snapshot",
		},
		[]string{"domain"},
	)
)

// Dispatch metrics.
var (
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Live and tombstoned entries in the dispatch heap",
		},
		[]string{"state"}, // "live" / "tombstoned"
	)

	QueueOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_ops_total",
			Help:      "Dispatch queue operations",
		},
		[]string{"op"}, // push, pop, remove, compact
	)
)

// Recommendation metrics.
var RecommendationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recommendations_total",
		Help:      "Recommendation requests by path taken",
	},
	[]string{"path"}, // "cached" / "cold" / "personal"
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		CacheRequestsTotal,
		CacheEvictionsTotal,
		SearchRequestsTotal,
		BloomRejectsTotal,
		IndexRebuildsTotal,
		IndexRebuildDuration,
		IndexedEntities,
		QueueDepth,
		QueueOpsTotal,
		RecommendationsTotal,
	}
}

// NewRegistry returns a fresh registry with every engine collector registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors()...)
	return reg
}

// Snapshot flattens the counters and gauges in g into name{labels} -> value,
// for the stats request and the CLI.
func Snapshot(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				name += "{"
				for i, l := range labels {
					if i > 0 {
						name += ","
					}
					name += l.GetName() + "=" + l.GetValue()
				}
				name += "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[name] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[name] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[name+"_count"] = float64(m.GetHistogram().GetSampleCount())
				out[name+"_sum"] = m.GetHistogram().GetSampleSum()
			}
		}
	}
	return out, nil
}
