// Package metrics registers Prometheus collectors for the service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	initOnce sync.Once

	// FetchesTotal counts outbound page fetches by outcome (ok, cached, failed).
	FetchesTotal *prometheus.CounterVec
	// FetchDuration observes wall time of live fetches, politeness wait included.
	FetchDuration prometheus.Histogram
	// PolitenessWait observes time spent sleeping to honor the inter-request delay.
	PolitenessWait prometheus.Histogram
	// SourceLookupsTotal counts OSINT source adapter calls by source and status.
	SourceLookupsTotal *prometheus.CounterVec
	// ProfileOpsTotal counts profiling operations by entity kind and status.
	ProfileOpsTotal *prometheus.CounterVec
	// ContactsSavedTotal counts persisted contacts by type (email, phone).
	ContactsSavedTotal *prometheus.CounterVec
	// StoreQueryCacheHits counts read-cache hits in the persistence layer.
	StoreQueryCacheHits prometheus.Counter
)

// Init registers all collectors exactly once. Safe to call from multiple
// packages; later calls are no-ops.
func Init() {
	initOnce.Do(func() {
		FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "browsint",
			Name:      "fetches_total",
			Help:      "Outbound page fetches by outcome.",
		}, []string{"outcome"})
		FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "browsint",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of live page fetches.",
			Buckets:   prometheus.DefBuckets,
		})
		PolitenessWait = promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "browsint",
			Name:      "politeness_wait_seconds",
			Help:      "Time spent waiting for the inter-request delay window.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5},
		})
		SourceLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "browsint",
			Name:      "source_lookups_total",
			Help:      "OSINT source adapter calls by source and status.",
		}, []string{"source", "status"})
		ProfileOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "browsint",
			Name:      "profile_ops_total",
			Help:      "Profiling operations by entity kind and status.",
		}, []string{"kind", "status"})
		ContactsSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "browsint",
			Name:      "contacts_saved_total",
			Help:      "Contacts persisted by contact type.",
		}, []string{"type"})
		StoreQueryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "browsint",
			Name:      "store_query_cache_hits_total",
			Help:      "Read-cache hits in the persistence layer.",
		})
	})
}

// ObserveFetch records one fetch outcome and, for live fetches, its duration.
func ObserveFetch(outcome string, seconds float64) {
	if FetchesTotal == nil {
		return
	}
	FetchesTotal.WithLabelValues(outcome).Inc()
	if outcome != "cached" && FetchDuration != nil {
		FetchDuration.Observe(seconds)
	}
}

// ObserveSourceLookup records one source adapter call.
func ObserveSourceLookup(source, status string) {
	if SourceLookupsTotal == nil {
		return
	}
	SourceLookupsTotal.WithLabelValues(source, status).Inc()
}

// ObserveProfileOp records one profiling operation.
func ObserveProfileOp(kind, status string) {
	if ProfileOpsTotal == nil {
		return
	}
	ProfileOpsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveContactSaved records one persisted contact.
func ObserveContactSaved(contactType string) {
	if ContactsSavedTotal == nil {
		return
	}
	ContactsSavedTotal.WithLabelValues(contactType).Inc()
}
