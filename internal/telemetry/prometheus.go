package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exports core telemetry as Prometheus metrics. Metric names
// follow the athena namespace used by the surrounding application.
type PrometheusSink struct {
	providerCalls    *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	providerSkips    *prometheus.CounterVec
	callDuration     *prometheus.HistogramVec
	cacheOps         *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	retriesTotal     *prometheus.CounterVec
	breakerOpen      *prometheus.GaugeVec
	queueDepth       prometheus.Gauge
}

// NewPrometheusSink creates a sink and registers its metrics with the given
// registerer. Pass prometheus.DefaultRegisterer for the process default.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "athena",
			Name:      "provider_calls_total",
			Help:      "Total successful provider analysis calls",
		}, []string{"provider", "analysis_type"}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "athena",
			Name:      "provider_failures_total",
			Help:      "Total failed or timed-out provider calls",
		}, []string{"provider", "analysis_type"}),
		providerSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "athena",
			Name:      "provider_skips_total",
			Help:      "Provider calls skipped because the circuit breaker was open",
		}, []string{"provider"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "athena",
			Name:      "provider_call_duration_seconds",
			Help:      "Provider call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "athena",
			Name:      "cache_operations_total",
			Help:      "Result cache hits, misses, and evictions",
		}, []string{"operation"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "athena",
			Name:      "batch_requests_total",
			Help:      "Terminal batch request outcomes",
		}, []string{"outcome"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "athena",
			Name:      "batch_retries_total",
			Help:      "Batch request retry requeues",
		}, []string{"analysis_type"}),
		breakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "athena",
			Name:      "breaker_open",
			Help:      "1 when the provider's circuit breaker is open",
		}, []string{"provider"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "athena",
			Name:      "queue_depth",
			Help:      "Requests pending in the scheduler queue",
		}),
	}

	reg.MustRegister(
		s.providerCalls,
		s.providerFailures,
		s.providerSkips,
		s.callDuration,
		s.cacheOps,
		s.requestsTotal,
		s.retriesTotal,
		s.breakerOpen,
		s.queueDepth,
	)

	return s
}

// Record implements Sink
func (s *PrometheusSink) Record(event Event) {
	switch event.Kind {
	case EventProviderCall:
		s.providerCalls.WithLabelValues(event.Provider, event.AnalysisType).Inc()
		s.callDuration.WithLabelValues(event.Provider).Observe(event.Duration.Seconds())
	case EventProviderFailure:
		s.providerFailures.WithLabelValues(event.Provider, event.AnalysisType).Inc()
		s.callDuration.WithLabelValues(event.Provider).Observe(event.Duration.Seconds())
	case EventProviderSkipped:
		s.providerSkips.WithLabelValues(event.Provider).Inc()
	case EventCacheHit:
		s.cacheOps.WithLabelValues("hit").Inc()
	case EventCacheMiss:
		s.cacheOps.WithLabelValues("miss").Inc()
	case EventCacheEviction:
		s.cacheOps.WithLabelValues("eviction").Inc()
	case EventRequestComplete:
		s.requestsTotal.WithLabelValues("completed").Inc()
	case EventRequestFailed:
		s.requestsTotal.WithLabelValues("failed").Inc()
	case EventRequestDropped:
		s.requestsTotal.WithLabelValues("cancelled").Inc()
	case EventRequestRetried:
		s.retriesTotal.WithLabelValues(event.AnalysisType).Inc()
	case EventBreakerOpened:
		s.breakerOpen.WithLabelValues(event.Provider).Set(1)
	case EventBreakerClosed:
		s.breakerOpen.WithLabelValues(event.Provider).Set(0)
	case EventQueueDepth:
		s.queueDepth.Set(event.Value)
	}
}
