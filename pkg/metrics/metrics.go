package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request counts and latency per route.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers the HTTP metrics on the provided registerer.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		return &HTTPMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route, and status.",
	}, []string{"method", "route", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	reg.MustRegister(requests, duration)
	return &HTTPMetrics{requests: requests, duration: duration}
}

// Observe records one completed request.
func (m *HTTPMetrics) Observe(method, route string, status int, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(method, normalizeRoute(route), strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, normalizeRoute(route)).Observe(elapsed.Seconds())
}

// BillingMetrics counts payment and subscription state changes.
type BillingMetrics struct {
	paymentsStarted  *prometheus.CounterVec
	paymentsResolved *prometheus.CounterVec
	activations      *prometheus.CounterVec
}

// NewBillingMetrics registers the billing metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	started := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_started_total",
		Help: "STK push attempts by plan.",
	}, []string{"plan"})
	resolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_resolved_total",
		Help: "Payment requests reaching a terminal status.",
	}, []string{"status"})
	activations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_activated_total",
		Help: "Subscription rows created by plan.",
	}, []string{"plan"})
	reg.MustRegister(started, resolved, activations)
	return &BillingMetrics{
		paymentsStarted:  started,
		paymentsResolved: resolved,
		activations:      activations,
	}
}

// IncPaymentStarted counts one STK push attempt for the plan.
func (m *BillingMetrics) IncPaymentStarted(plan string) {
	if m == nil || m.paymentsStarted == nil {
		return
	}
	m.paymentsStarted.WithLabelValues(normalizeLabel(plan)).Inc()
}

// IncPaymentResolved counts one payment reaching a terminal status.
func (m *BillingMetrics) IncPaymentResolved(status string) {
	if m == nil || m.paymentsResolved == nil {
		return
	}
	m.paymentsResolved.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncSubscriptionActivated counts one subscription row created for the plan.
func (m *BillingMetrics) IncSubscriptionActivated(plan string) {
	if m == nil || m.activations == nil {
		return
	}
	m.activations.WithLabelValues(normalizeLabel(plan)).Inc()
}

func normalizeRoute(route string) string {
	if route == "" {
		return "unmatched"
	}
	return route
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
