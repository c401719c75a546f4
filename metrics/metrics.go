package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cuwep_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cuwep_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Account lifecycle metrics
	authOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cuwep_auth_operations_total",
			Help: "Total number of authentication operations",
		},
		[]string{"operation", "outcome"}, // register/login/confirm/reset x success/failure
	)

	emailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cuwep_emails_total",
			Help: "Total number of outbound emails",
		},
		[]string{"kind", "status"}, // confirmation/reset x sent/failed
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cuwep_websocket_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	// Error metrics
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cuwep_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

// PrometheusMiddleware creates a Fiber middleware recording request
// counts and latencies per route
func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		method := c.Method()
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		statusCode := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// IncrementAuthOperation increments the auth operation counter
func IncrementAuthOperation(operation, outcome string) {
	authOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// IncrementEmail increments the outbound email counter
func IncrementEmail(kind, status string) {
	emailsTotal.WithLabelValues(kind, status).Inc()
}

// UpdateWebSocketConnections updates the WebSocket connections gauge
func UpdateWebSocketConnections(count int) {
	websocketConnections.Set(float64(count))
}

// IncrementError increments the error counter
func IncrementError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
