package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes recorded by PaymentStatusMetrics.
const (
	RefreshFetched = "fetched"
	RefreshFresh   = "fresh"
	RefreshSkipped = "skipped"
	RefreshFailed  = "failed"
)

// PaymentStatusMetrics records payment-status cache lookups and refreshes.
type PaymentStatusMetrics struct {
	lookups   *prometheus.CounterVec
	refreshes *prometheus.CounterVec
}

// NewPaymentStatusMetrics registers the cache metrics on the provided
// registerer. A nil registerer yields a recorder that drops everything.
func NewPaymentStatusMetrics(reg prometheus.Registerer) *PaymentStatusMetrics {
	if reg == nil {
		return &PaymentStatusMetrics{}
	}
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_status_cache_lookups_total",
		Help: "Purchase-order ids looked up in the payment-status cache.",
	}, []string{"result"})
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_status_cache_refreshes_total",
		Help: "Payment-status refresh attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(lookups, refreshes)
	return &PaymentStatusMetrics{lookups: lookups, refreshes: refreshes}
}

// ObserveLookup counts fresh and stale ids of one refresh.
func (m *PaymentStatusMetrics) ObserveLookup(hits int, misses int) {
	if m == nil || m.lookups == nil {
		return
	}
	m.lookups.WithLabelValues("hit").Add(float64(hits))
	m.lookups.WithLabelValues("miss").Add(float64(misses))
}

func (m *PaymentStatusMetrics) IncRefresh(outcome string) {
	if m == nil || m.refreshes == nil {
		return
	}
	m.refreshes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// UpstreamMetrics records calls to the pharmacy backend.
type UpstreamMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewUpstreamMetrics(reg prometheus.Registerer) *UpstreamMetrics {
	if reg == nil {
		return &UpstreamMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Requests sent to the pharmacy backend.",
	}, []string{"endpoint", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Latency of requests sent to the pharmacy backend.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	reg.MustRegister(requests, duration)
	return &UpstreamMetrics{requests: requests, duration: duration}
}

// ObserveRequest records one request. status is the HTTP status class such
// as "2xx", or "error" when no response arrived.
func (m *UpstreamMetrics) ObserveRequest(endpoint string, status string, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	endpoint = normalizeLabel(endpoint)
	m.requests.WithLabelValues(endpoint, normalizeLabel(status)).Inc()
	m.duration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// StatusClass folds an HTTP status code into its class label.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "error"
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
