// Package metrics provides Prometheus instrumentation for the decision service.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fraudgate"

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DecisionsTotal counts engine decisions by outcome.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total decisions by outcome (allow, review, block).",
		},
		[]string{"decision"},
	)

	// PolicyTriggersTotal counts fired policy triggers.
	PolicyTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_triggers_total",
			Help:      "Total policy triggers fired, by trigger identifier.",
		},
		[]string{"trigger"},
	)

	// DecisionDuration observes time spent inside the engine per event.
	DecisionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "decision_duration_seconds",
		Help:      "Engine evaluation latency in seconds.",
		Buckets:   []float64{.00001, .000025, .00005, .0001, .00025, .0005, .001, .0025, .01},
	})

	// TrackedEntityKeys is the number of keys held per rate-limit dimension.
	TrackedEntityKeys = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_entity_keys",
			Help:      "Number of entity keys tracked by the sliding-window counters.",
		},
		[]string{"dimension"},
	)

	// StateResetsTotal counts explicit rate-limit state resets.
	StateResetsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_resets_total",
		Help:      "Total rate-limit state resets.",
	})

	// SweptKeysTotal counts idle keys removed by the sweeper.
	SweptKeysTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swept_keys_total",
		Help:      "Total idle entity keys removed by the sweeper.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DecisionsTotal,
		PolicyTriggersTotal,
		DecisionDuration,
		TrackedEntityKeys,
		StateResetsTotal,
		SweptKeysTotal,
	)
}

// ObserveDecision records one engine decision and its triggers.
func ObserveDecision(decision string, triggers []string, seconds float64) {
	DecisionsTotal.WithLabelValues(decision).Inc()
	for _, t := range triggers {
		PolicyTriggersTotal.WithLabelValues(t).Inc()
	}
	DecisionDuration.Observe(seconds)
}

// SetTrackedKeys publishes the per-dimension key counts.
func SetTrackedKeys(counts map[string]int) {
	for dim, n := range counts {
		TrackedEntityKeys.WithLabelValues(dim).Set(float64(n))
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
