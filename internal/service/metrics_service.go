package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the auth
// service. All observation methods are nil-safe so callers never need to
// guard instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	logins          *prometheus.CounterVec
	signups         prometheus.Counter
	rotations       prometheus.Counter
	replays         prometheus.Counter
	revocations     prometheus.Counter
}

// NewMetricsService registers the core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	signups := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_signups_total",
		Help: "Accounts provisioned, local and oauth",
	})

	rotations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_token_rotations_total",
		Help: "Successful refresh token rotations",
	})

	replays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_refresh_replays_total",
		Help: "Refresh calls presenting a rotated-away token",
	})

	revocations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_sessions_revoked_total",
		Help: "Sessions revoked by logout or reuse detection",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, logins, signups, rotations, replays, revocations, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		logins:          logins,
		signups:         signups,
		rotations:       rotations,
		replays:         replays,
		revocations:     revocations,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveHTTPRequest records duration and count for one request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// IncLogin counts a login attempt with the given result label.
func (m *MetricsService) IncLogin(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// IncSignup counts a provisioned account.
func (m *MetricsService) IncSignup() {
	if m == nil {
		return
	}
	m.signups.Inc()
}

// IncRotation counts a successful refresh rotation.
func (m *MetricsService) IncRotation() {
	if m == nil {
		return
	}
	m.rotations.Inc()
}

// IncReplayDetected counts a refresh reuse signal.
func (m *MetricsService) IncReplayDetected() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

// IncSessionRevoked counts a revoked session.
func (m *MetricsService) IncSessionRevoked() {
	if m == nil {
		return
	}
	m.revocations.Inc()
}
