package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradesLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trades_loaded_total",
		Help: "Total number of trade records loaded",
	}, []string{"source", "status"})

	TradesProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trades_processing_duration_seconds",
		Help:    "Duration of trade processing",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	PositionsComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "positions_computed_total",
		Help: "Total number of positions aggregated",
	})

	UnpricedPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "unpriced_positions",
		Help: "Positions without market data in the last report",
	})

	ValuationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dcf_runs_total",
		Help: "Total number of DCF projections",
	}, []string{"status"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of cache misses",
	})

	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Total number of requests to market data providers",
	}, []string{"provider", "endpoint", "status"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Duration of requests to market data providers",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "endpoint"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
	}, []string{"provider"})

	DatabaseQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "database_queries_total",
		Help: "Total number of database queries",
	}, []string{"query_type", "status"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "database_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query_type"})

	ActiveGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_goroutines",
		Help: "Number of active goroutines",
	})
)

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}

func RecordDatabaseQuery(queryType, status string, duration float64) {
	DatabaseQueries.WithLabelValues(queryType, status).Inc()
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(duration)
}

func RecordTradesLoaded(source, status string, count int) {
	TradesLoaded.WithLabelValues(source, status).Add(float64(count))
}

func RecordValuation(err error) {
	status := "success"
	if err != nil {
		status = "rejected"
	}
	ValuationRuns.WithLabelValues(status).Inc()
}

func RecordUpstream(provider, endpoint, status string, duration time.Duration) {
	UpstreamRequests.WithLabelValues(provider, endpoint, status).Inc()
	UpstreamDuration.WithLabelValues(provider, endpoint).Observe(duration.Seconds())
}

type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
