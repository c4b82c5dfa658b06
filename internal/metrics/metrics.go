package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "expenses"

var (
	resolverDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "resolver_duration_seconds",
			Help:      "Time spent in a GraphQL resolver, by operation and error status.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "error"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by path and status code.",
		},
		[]string{"path", "code"},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		},
		[]string{"path"},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Change events handed to the broker, by type and error status.",
		},
		[]string{"type", "error"},
	)

	eventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "consumed_total",
			Help:      "Change events received by the consumer, by type and whether they were redeliveries.",
		},
		[]string{"type", "duplicate"},
	)
)

// ObserveResolver records one resolver call.
func ObserveResolver(operation string, elapsed time.Duration, failed bool) {
	resolverDuration.
		WithLabelValues(operation, strconv.FormatBool(failed)).
		Observe(elapsed.Seconds())
}

func CountRequest(path string, code int) {
	httpRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
}

func CountRateLimited(path string) {
	rateLimited.WithLabelValues(path).Inc()
}

func CountEventPublished(eventType string, failed bool) {
	eventsPublished.WithLabelValues(eventType, strconv.FormatBool(failed)).Inc()
}

func CountEventConsumed(eventType string, duplicate bool) {
	eventsConsumed.WithLabelValues(eventType, strconv.FormatBool(duplicate)).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
