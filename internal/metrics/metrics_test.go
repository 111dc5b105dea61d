package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatusMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPaymentStatusMetrics(reg)
	m.ObserveLookup(3, 2)
	m.ObserveLookup(1, 0)
	m.IncRefresh(RefreshFetched)
	m.IncRefresh("")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	hits, err := fetchCounterValue(mfs, "payment_status_cache_lookups_total", "result", "hit")
	require.NoError(t, err)
	assert.Equal(t, 4.0, hits)

	misses, err := fetchCounterValue(mfs, "payment_status_cache_lookups_total", "result", "miss")
	require.NoError(t, err)
	assert.Equal(t, 2.0, misses)

	fetched, err := fetchCounterValue(mfs, "payment_status_cache_refreshes_total", "outcome", RefreshFetched)
	require.NoError(t, err)
	assert.Equal(t, 1.0, fetched)

	unknown, err := fetchCounterValue(mfs, "payment_status_cache_refreshes_total", "outcome", "unknown")
	require.NoError(t, err)
	assert.Equal(t, 1.0, unknown)
}

func TestUpstreamMetricsExportsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewUpstreamMetrics(reg)
	m.ObserveRequest("fifo_report", StatusClass(200), 120*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	count, err := fetchCounterValue(mfs, "upstream_requests_total", "endpoint", "fifo_report")
	require.NoError(t, err)
	assert.Equal(t, 1.0, count)

	sum, err := fetchHistogramSum(mfs, "upstream_request_duration_seconds", "endpoint", "fifo_report")
	require.NoError(t, err)
	assert.Greater(t, sum, 0.0)
}

func TestNilRecordersAreSafe(t *testing.T) {
	var ps *PaymentStatusMetrics
	var up *UpstreamMetrics
	assert.NotPanics(t, func() {
		ps.ObserveLookup(1, 1)
		ps.IncRefresh(RefreshFailed)
		up.ObserveRequest("sale", "error", time.Second)
		NewUpstreamMetrics(nil).ObserveRequest("sale", "2xx", time.Second)
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", StatusClass(204))
	assert.Equal(t, "4xx", StatusClass(404))
	assert.Equal(t, "5xx", StatusClass(502))
	assert.Equal(t, "error", StatusClass(0))
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
