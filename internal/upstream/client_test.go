package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henry1266/pharmacy-pos-sub005/internal/domain"
	"github.com/henry1266/pharmacy-pos-sub005/internal/metrics"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Options{
		BaseURL: srv.URL + "/",
		Timeout: 2 * time.Second,
		Signer:  NewTokenSigner(testSecret, time.Minute, ""),
		Metrics: metrics.NewUpstreamMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return client
}

func requireServiceToken(t *testing.T, r *http.Request) {
	t.Helper()
	auth := r.Header.Get("Authorization")
	require.True(t, strings.HasPrefix(auth, "Bearer "), "missing bearer token")
	sub, err := NewTokenSigner(testSecret, time.Minute, "").parseToken(strings.TrimPrefix(auth, "Bearer "))
	require.NoError(t, err)
	assert.Equal(t, tokenIssuer, sub)
}

func TestFetchPaymentStatuses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/purchase-orders/payment-status", r.URL.Path)
		requireServiceToken(t, r)

		var req domain.PaymentStatusRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"po-1", "po-2", "po-3"}, req.PurchaseOrderIDs)

		_, _ = w.Write([]byte(`{"success":true,"data":[
			{"purchaseOrderId":"po-1","hasPaidAmount":true},
			{"purchaseOrderId":"po-2"},
			{"hasPaidAmount":true},
			{"purchaseOrderId":"po-x","hasPaidAmount":true}
		]}`))
	})

	got, err := client.FetchPaymentStatuses(context.Background(), []string{"po-1", "po-2", "po-3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"po-1": true, "po-2": false}, got)
}

func TestFetchPaymentStatusesUnsuccessful(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	})
	_, err := client.FetchPaymentStatuses(context.Background(), []string{"po-1"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchPaymentStatusesEmptySkipsRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	})
	got, err := client.FetchPaymentStatuses(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchSaleUnwrapsEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sales/s-1", r.URL.Path)
		requireServiceToken(t, r)
		_, _ = w.Write([]byte(`{"success":true,"data":{"_id":"s-1","items":[{"product":{"_id":"p1","name":"Aspirin"},"price":"12.50","quantity":2,"subtotal":25}]}}`))
	})

	sale, err := client.FetchSale(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", sale.ID)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, "p1", sale.Items[0].Product.Resolve())
	assert.Equal(t, "25", sale.Items[0].Subtotal.String())
}

func TestFetchFifoReportBareDocument(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/fifo/sale/s-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"summary":{"totalCost":10,"totalProfit":15,"totalProfitMargin":"60.00%"},"items":[{"product":"p1","totalCost":10,"profitMargin":"60.00%"}]}`))
	})

	report, err := client.FetchFifoReport(context.Background(), "s-1")
	require.NoError(t, err)
	require.NotNil(t, report.Summary)
	assert.Equal(t, "15", report.Summary.TotalProfit.String())
	require.Len(t, report.Items, 1)
	assert.Equal(t, "p1", report.Items[0].Product.Resolve())
}

func TestErrorMapping(t *testing.T) {
	notFound := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := notFound.FetchSale(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	broken := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err = broken.FetchFifoReport(context.Background(), "s-1")
	assert.ErrorIs(t, err, ErrUnavailable)

	garbage := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err = garbage.FetchFifoReport(context.Background(), "s-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	client, err := New(Options{BaseURL: base, Timeout: time.Second})
	require.NoError(t, err)
	_, err = client.FetchPaymentStatuses(context.Background(), []string{"po-1"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	assert.Error(t, err)
	_, err = New(Options{BaseURL: ""})
	assert.Error(t, err)
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	token, err := NewTokenSigner(testSecret, time.Minute, "svc").Sign()
	require.NoError(t, err)

	sub, err := NewTokenSigner(testSecret, time.Minute, "").parseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "svc", sub)

	_, err = NewTokenSigner("another-secret-another-secret-xx", time.Minute, "").parseToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	signer := NewTokenSigner(testSecret, time.Minute, "")
	signer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := signer.Sign()
	require.NoError(t, err)

	_, err = NewTokenSigner(testSecret, time.Minute, "").parseToken(token)
	assert.Error(t, err)
}
