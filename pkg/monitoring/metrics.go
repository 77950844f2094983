package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Registry operation metrics
	registryOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_operations_total",
			Help: "Total number of registry operations",
		},
		[]string{"operation", "status", "service"},
	)

	// Authorization metrics
	authDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_decisions_total",
			Help: "Total number of role authentication decisions",
		},
		[]string{"role", "outcome", "service"},
	)

	// Grant lifecycle metrics
	grantsIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grants_issued_total",
			Help: "Total number of authorization grants issued",
		},
		[]string{"service"},
	)

	grantsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grants_consumed_total",
			Help: "Total number of authorization grants consumed",
		},
		[]string{"service"},
	)

	grantsRevokedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grants_revoked_total",
			Help: "Total number of authorization grants revoked by producers",
		},
		[]string{"service"},
	)

	// Settlement metrics
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Total number of payment settlements",
		},
		[]string{"status", "service"},
	)

	withdrawalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdrawals_total",
			Help: "Total number of balance withdrawals",
		},
		[]string{"account_kind", "status", "service"},
	)

	// Database metrics
	dbQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"query_type", "service"},
	)
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		registryOperationsTotal,
		authDecisionsTotal,
		grantsIssuedTotal,
		grantsConsumedTotal,
		grantsRevokedTotal,
		paymentsTotal,
		withdrawalsTotal,
		dbQueryDuration,
	)

	return &MetricsCollector{
		serviceName: serviceName,
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordOperation records a registry operation outcome
func (m *MetricsCollector) RecordOperation(operation, status string) {
	registryOperationsTotal.WithLabelValues(operation, status, m.serviceName).Inc()
}

// RecordAuthDecision records a role authentication decision
func (m *MetricsCollector) RecordAuthDecision(role string, granted bool) {
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	authDecisionsTotal.WithLabelValues(role, outcome, m.serviceName).Inc()
}

// RecordGrantIssued records a grant creation
func (m *MetricsCollector) RecordGrantIssued() {
	grantsIssuedTotal.WithLabelValues(m.serviceName).Inc()
}

// RecordGrantConsumed records a one-time grant consumption
func (m *MetricsCollector) RecordGrantConsumed() {
	grantsConsumedTotal.WithLabelValues(m.serviceName).Inc()
}

// RecordGrantRevoked records a producer-initiated revocation
func (m *MetricsCollector) RecordGrantRevoked() {
	grantsRevokedTotal.WithLabelValues(m.serviceName).Inc()
}

// RecordPayment records a payment settlement outcome
func (m *MetricsCollector) RecordPayment(status string) {
	paymentsTotal.WithLabelValues(status, m.serviceName).Inc()
}

// RecordWithdrawal records a withdrawal outcome
func (m *MetricsCollector) RecordWithdrawal(accountKind, status string) {
	withdrawalsTotal.WithLabelValues(accountKind, status, m.serviceName).Inc()
}

// RecordDBQuery records database query metrics
func (m *MetricsCollector) RecordDBQuery(queryType string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(queryType, m.serviceName).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		statusCode := strconv.Itoa(wrapper.statusCode)

		m.RecordHTTPRequest(r.Method, r.URL.Path, statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
