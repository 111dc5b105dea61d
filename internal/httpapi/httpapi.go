package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/henry1266/pharmacy-pos-sub005/internal/domain"
	"github.com/henry1266/pharmacy-pos-sub005/internal/logger"
	"github.com/henry1266/pharmacy-pos-sub005/internal/service"
	"github.com/henry1266/pharmacy-pos-sub005/internal/upstream"
)

const maxBodyBytes = 1 << 20

type Options struct {
	AllowedOrigin      string
	RateLimitPerMinute int
	Production         bool
	Logger             *logger.Logger
	// MetricsHandler serves /metrics; the default Prometheus registry is used
	// when nil.
	MetricsHandler http.Handler
}

type API struct {
	service *service.Service
	opts    Options
	log     *logger.Logger
}

func New(svc *service.Service, opts Options) *API {
	if opts.RateLimitPerMinute < 1 {
		opts.RateLimitPerMinute = 300
	}
	if opts.MetricsHandler == nil {
		opts.MetricsHandler = promhttp.Handler()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &API{service: svc, opts: opts, log: log.WithComponent("http")}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogging(a.log))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(a.opts.Production))
	r.Use(corsPolicy(a.opts.AllowedOrigin))
	r.Use(limitBody(maxBodyBytes))

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", a.opts.MetricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.Limit(a.opts.RateLimitPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))

		r.Post("/sales/totals", a.handleSaleTotals)
		r.Get("/sales/{saleID}/profit", a.handleSaleProfit)

		r.Post("/purchase-orders/totals", a.handlePurchaseOrderTotals)
		r.Post("/purchase-orders/line-items/reconcile", a.handleReconcileQuantity)
		r.Post("/purchase-orders/prepare", a.handlePreparePurchaseOrder)
		r.Post("/purchase-orders/payment-status", a.handlePaymentStatuses)
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleSaleTotals(w http.ResponseWriter, r *http.Request) {
	var req domain.TotalsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.SaleTotals(req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePurchaseOrderTotals(w http.ResponseWriter, r *http.Request) {
	var req domain.TotalsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.PurchaseOrderTotals(req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleReconcileQuantity(w http.ResponseWriter, r *http.Request) {
	var req domain.QuantityEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.ReconcileQuantity(req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePreparePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseOrderPrepareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.PreparePurchaseOrder(req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchaseOrder": resp})
}

func (a *API) handleSaleProfit(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.SaleProfit(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePaymentStatuses(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentStatusesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.PaymentStatuses(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		a.log.Error(r.Context(), "request failed", err)
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, upstream.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, upstream.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; upstream and storage details go to the log.
	msg := err.Error()
	switch {
	case status == http.StatusBadGateway:
		msg = "pharmacy backend unavailable"
	case status >= 500:
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
