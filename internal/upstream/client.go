// Package upstream talks to the pharmacy backend that owns sales, purchase
// orders and FIFO cost consumption.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/henry1266/pharmacy-pos-sub005/internal/domain"
	"github.com/henry1266/pharmacy-pos-sub005/internal/logger"
	"github.com/henry1266/pharmacy-pos-sub005/internal/metrics"
)

var (
	ErrUnavailable = errors.New("upstream unavailable")
	ErrNotFound    = errors.New("upstream resource not found")
)

const maxResponseBytes = 4 << 20

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Signer     *TokenSigner
	HTTPClient *http.Client
	Metrics    *metrics.UpstreamMetrics
	Logger     *logger.Logger
}

// Client has no retry policy; callers surface failures instead.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	signer  *TokenSigner
	metrics *metrics.UpstreamMetrics
	log     *logger.Logger
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base url %q", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL: base,
		http:    httpClient,
		signer:  opts.Signer,
		metrics: opts.Metrics,
		log:     log.WithComponent("upstream"),
	}, nil
}

// envelope is the backend's usual {success, data} wrapper. Endpoints that
// answer with a bare document are accepted too.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// FetchPaymentStatuses asks for the payment state of every id in one request.
func (c *Client) FetchPaymentStatuses(ctx context.Context, ids []string) (map[string]bool, error) {
	statuses := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return statuses, nil
	}

	body, err := c.do(ctx, "payment_status", http.MethodPost, domain.PaymentStatusRequest{PurchaseOrderIDs: ids}, "api", "purchase-orders", "payment-status")
	if err != nil {
		return nil, err
	}

	var resp domain.PaymentStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode payment status: %v", ErrUnavailable, err)
	}
	if resp.Success != nil && !*resp.Success {
		return nil, fmt.Errorf("%w: payment status request was not successful", ErrUnavailable)
	}

	requested := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		requested[id] = struct{}{}
	}
	for _, record := range resp.Data {
		if _, ok := requested[record.PurchaseOrderID]; !ok {
			continue
		}
		statuses[record.PurchaseOrderID] = record.HasPaidAmount != nil && *record.HasPaidAmount
	}
	return statuses, nil
}

func (c *Client) FetchSale(ctx context.Context, saleID string) (domain.Sale, error) {
	var sale domain.Sale
	body, err := c.do(ctx, "sale", http.MethodGet, nil, "api", "sales", saleID)
	if err != nil {
		return sale, err
	}
	if err := decodeEnvelope(body, &sale); err != nil {
		return sale, fmt.Errorf("%w: decode sale %s: %v", ErrUnavailable, saleID, err)
	}
	if sale.ID == "" {
		sale.ID = saleID
	}
	return sale, nil
}

func (c *Client) FetchFifoReport(ctx context.Context, saleID string) (domain.FifoReport, error) {
	var report domain.FifoReport
	body, err := c.do(ctx, "fifo_report", http.MethodGet, nil, "api", "fifo", "sale", saleID)
	if err != nil {
		return report, err
	}
	if err := decodeEnvelope(body, &report); err != nil {
		return report, fmt.Errorf("%w: decode fifo report %s: %v", ErrUnavailable, saleID, err)
	}
	return report, nil
}

func decodeEnvelope(body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Success != nil && !*env.Success {
			return fmt.Errorf("request was not successful: %s", env.Message)
		}
		if len(env.Data) > 0 && !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
			return json.Unmarshal(env.Data, out)
		}
	}
	return json.Unmarshal(body, out)
}

func (c *Client) do(ctx context.Context, endpoint string, method string, payload any, segments ...string) ([]byte, error) {
	target := c.baseURL.JoinPath(segments...)

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.signer != nil {
		token, err := c.signer.Sign()
		if err != nil {
			return nil, fmt.Errorf("sign service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, "error", time.Since(started))
		c.log.Warn(ctx, fmt.Sprintf("%s %s failed", method, target.Path), err)
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, target.Path, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(endpoint, metrics.StatusClass(resp.StatusCode), time.Since(started))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, target.Path, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target.Path)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, target.Path, resp.StatusCode)
	}
	return body, nil
}
