package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce         sync.Once
	relayConnections     prometheus.Gauge
	relayEventsTotal     *prometheus.CounterVec
	relayDeliveriesTotal *prometheus.CounterVec
	relayDropsTotal      *prometheus.CounterVec
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used by the relay.
func RegisterMetrics() {
	registerOnce.Do(func() {
		relayConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "Number of currently connected relay clients.",
		})

		relayEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_events_total",
			Help: "Total number of activity events recorded by the relay.",
		}, []string{"action"})

		relayDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Total number of frames delivered to group members.",
		}, []string{"event"})

		relayDropsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_drops_total",
			Help: "Total number of frames dropped for slow relay clients.",
		}, []string{"event"})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of standalone HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_http_latency_seconds",
			Help:    "Latency distribution for standalone HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		prometheus.MustRegister(relayConnections, relayEventsTotal, relayDeliveriesTotal, relayDropsTotal, httpRequestsTotal, httpLatencySeconds)
	})
}

// RelayConnections exposes the active connection gauge.
func RelayConnections() prometheus.Gauge {
	RegisterMetrics()
	return relayConnections
}

// RelayEvents exposes the recorded activity event counter.
func RelayEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return relayEventsTotal
}

// RelayDeliveries exposes the fan-out delivery counter.
func RelayDeliveries() *prometheus.CounterVec {
	RegisterMetrics()
	return relayDeliveriesTotal
}

// RelayDrops exposes the slow-client drop counter.
func RelayDrops() *prometheus.CounterVec {
	RegisterMetrics()
	return relayDropsTotal
}

// HTTPRequests exposes the counter for standalone HTTP requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for standalone HTTP requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
