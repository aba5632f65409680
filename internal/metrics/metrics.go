// Package metrics records credential resolution counters with Prometheus.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsTotal      *prometheus.CounterVec
	storeOperationsTotal   *prometheus.CounterVec
	authorityRequestsTotal *prometheus.CounterVec
	resolutionsTotal       *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered atomic.Bool
	registry          *prometheus.Registry
)

// InitMetrics registers all counters with a dedicated registry. Safe to call more than once.
// Recording before InitMetrics is a no-op.
func InitMetrics() {
	metricsOnce.Do(func() {
		registry = prometheus.NewRegistry()
		factory := promauto.With(registry)

		cacheLookupsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credbroker_cache_lookups_total",
				Help: "Total number of in-memory secret cache lookups",
			},
			[]string{"kind", "result"},
		)

		storeOperationsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credbroker_store_operations_total",
				Help: "Total number of native secure store operations",
			},
			[]string{"op", "result"},
		)

		authorityRequestsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credbroker_authority_requests_total",
				Help: "Total number of requests sent to identity authorities",
			},
			[]string{"authority", "outcome"},
		)

		resolutionsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credbroker_broker_resolutions_total",
				Help: "Total number of credential resolutions by policy and the path that satisfied them",
			},
			[]string{"policy", "path"},
		)

		metricsRegistered.Store(true)
	})
}

// Gatherer returns the registry backing the counters, nil before InitMetrics.
func Gatherer() prometheus.Gatherer {
	if !metricsRegistered.Load() {
		return nil
	}
	return registry
}

// WriteTextfile dumps the counters in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if !metricsRegistered.Load() {
		return nil
	}
	return prometheus.WriteToTextfile(path, registry)
}

func CacheLookup(kind string, hit bool) {
	if metricsRegistered.Load() {
		cacheLookupsTotal.WithLabelValues(kind, hitLabel(hit)).Inc()
	}
}

func StoreOperation(op string, err error) {
	if metricsRegistered.Load() {
		storeOperationsTotal.WithLabelValues(op, errLabel(err)).Inc()
	}
}

func AuthorityRequest(authority, outcome string) {
	if metricsRegistered.Load() {
		authorityRequestsTotal.WithLabelValues(authority, outcome).Inc()
	}
}

func Resolution(policy, path string) {
	if metricsRegistered.Load() {
		resolutionsTotal.WithLabelValues(policy, path).Inc()
	}
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func errLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
