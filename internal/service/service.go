package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/henry1266/pharmacy-pos-sub005/internal/cache"
	"github.com/henry1266/pharmacy-pos-sub005/internal/domain"
	"github.com/henry1266/pharmacy-pos-sub005/internal/logger"
	"github.com/henry1266/pharmacy-pos-sub005/internal/money"
	"github.com/henry1266/pharmacy-pos-sub005/internal/profit"
	"github.com/henry1266/pharmacy-pos-sub005/internal/quantity"
	"github.com/henry1266/pharmacy-pos-sub005/internal/rounding"
	"github.com/henry1266/pharmacy-pos-sub005/internal/totals"
	"github.com/henry1266/pharmacy-pos-sub005/internal/xid"
)

var ErrInvalidRequest = errors.New("invalid request")

// PaymentStatusWarning is shown when statuses could not be refreshed and the
// last known values are returned instead.
const PaymentStatusWarning = "payment status could not be refreshed; showing last known values"

const DefaultReportTTL = 2 * time.Minute

// SaleSource provides the sale documents and FIFO reports owned by the
// pharmacy backend.
type SaleSource interface {
	FetchSale(ctx context.Context, saleID string) (domain.Sale, error)
	FetchFifoReport(ctx context.Context, saleID string) (domain.FifoReport, error)
}

type StatusCache interface {
	GetStatuses(ctx context.Context, ids []string) (map[string]bool, error)
}

type Dependencies struct {
	Sales         SaleSource
	Reports       cache.ReportCache
	ReportTTL     time.Duration
	PaymentStatus StatusCache
	Logger        *logger.Logger
}

type Service struct {
	sales         SaleSource
	reports       cache.ReportCache
	reportTTL     time.Duration
	paymentStatus StatusCache
	log           *logger.Logger
	validate      *validator.Validate
}

func New(deps Dependencies) *Service {
	reports := deps.Reports
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	reportTTL := deps.ReportTTL
	if reportTTL <= 0 {
		reportTTL = DefaultReportTTL
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Service{
		sales:         deps.Sales,
		reports:       reports,
		reportTTL:     reportTTL,
		paymentStatus: deps.PaymentStatus,
		log:           log.WithComponent("service"),
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SaleTotals prices the sale form lines and computes its totals.
func (s *Service) SaleTotals(req domain.TotalsRequest) (domain.TotalsResponse, error) {
	return s.calculateTotals(req)
}

// PurchaseOrderTotals is the same computation for the purchase-order form.
func (s *Service) PurchaseOrderTotals(req domain.TotalsRequest) (domain.TotalsResponse, error) {
	return s.calculateTotals(req)
}

func (s *Service) calculateTotals(req domain.TotalsRequest) (domain.TotalsResponse, error) {
	if err := s.validateStruct(req); err != nil {
		return domain.TotalsResponse{}, err
	}

	mode := priceMode(req.PriceMode)
	items := make([]domain.LineItem, 0, len(req.Items))
	for _, in := range req.Items {
		items = append(items, in.LineItem().Reprice(mode))
	}

	return domain.TotalsResponse{
		Items:  items,
		Totals: totals.Calculate(items, req.Discount.Decimal),
	}, nil
}

// ReconcileQuantity applies one edit event to a line's quantity fields.
func (s *Service) ReconcileQuantity(req domain.QuantityEventRequest) (domain.QuantityEventResponse, error) {
	if err := s.validateStruct(req.Event); err != nil {
		return domain.QuantityEventResponse{}, err
	}
	switch req.Event.Type {
	case domain.QuantityEventFocus, domain.QuantityEventChange, domain.QuantityEventBlur:
		if req.Event.Field == domain.QuantityFieldNone {
			return domain.QuantityEventResponse{}, fmt.Errorf("%w: event %s needs a field", ErrInvalidRequest, req.Event.Type)
		}
	}

	state := quantity.Apply(req.State, req.Event)
	return domain.QuantityEventResponse{
		Product:            req.Product,
		State:              state,
		Phase:              string(quantity.PhaseOf(state)),
		TotalDisabled:      quantity.TotalDisabled(state),
		PackageBoxDisabled: quantity.PackageBoxDisabled(state),
		SuppressSubmit:     req.Event.Type == domain.QuantityEventKey && quantity.SuppressesSubmit(req.Event.Key),
	}, nil
}

// PreparePurchaseOrder settles every line's quantity, applies the multiplier
// and builds the payload for the order service. Nothing is persisted here.
func (s *Service) PreparePurchaseOrder(req domain.PurchaseOrderPrepareRequest) (domain.PurchaseOrderSubmission, error) {
	if err := s.validateStruct(req); err != nil {
		return domain.PurchaseOrderSubmission{}, err
	}

	mode := priceMode(req.PriceMode)
	costs := make([]domain.CostLine, 0, len(req.Items))
	quantities := make([]decimal.Decimal, 0, len(req.Items))
	var problems []string
	for i, line := range req.Items {
		productID := line.Product.Resolve()
		if productID == "" {
			problems = append(problems, fmt.Sprintf("items[%d]: product is required", i))
			continue
		}
		qty := quantity.TotalQuantity(quantity.Finalize(line.Quantity))
		if !qty.IsPositive() {
			problems = append(problems, fmt.Sprintf("items[%d]: quantity must be positive", i))
			continue
		}

		cost := money.Round2(line.UnitPrice.Mul(qty))
		if mode == domain.PriceModeSubtotal {
			cost = money.Round2(line.Subtotal.Decimal)
		}
		if cost.IsNegative() {
			problems = append(problems, fmt.Sprintf("items[%d]: cost must not be negative", i))
			continue
		}
		costs = append(costs, domain.CostLine{ProductID: productID, Cost: cost})
		quantities = append(quantities, qty)
	}
	if len(problems) > 0 {
		return domain.PurchaseOrderSubmission{}, fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}

	adjusted := applyMultiplierMode(costs, req.MultiplierPercent.Decimal)
	amounts := make([]decimal.Decimal, 0, len(adjusted.AdjustedItems))
	lines := make([]domain.PurchaseOrderSubmissionLine, 0, len(adjusted.AdjustedItems))
	for i, item := range adjusted.AdjustedItems {
		amounts = append(amounts, item.Cost)
		lines = append(lines, domain.PurchaseOrderSubmissionLine{
			ProductID: item.ProductID,
			Quantity:  quantities[i],
			UnitCost:  money.Round2(item.Cost.Div(quantities[i])),
			Cost:      item.Cost,
		})
	}

	return domain.PurchaseOrderSubmission{
		IdempotencyKey: xid.New("po"),
		SupplierID:     strings.TrimSpace(req.SupplierID),
		Multiplier:     adjusted.Multiplier,
		RoundedTotal:   adjusted.RoundedTotal,
		Totals:         totals.FromSubtotals(amounts, req.Discount.Decimal),
		Items:          lines,
	}, nil
}

// applyMultiplierMode only rounds the batch to a whole unit when a multiplier
// is actually in effect.
func applyMultiplierMode(costs []domain.CostLine, percent decimal.Decimal) domain.MultiplierResult {
	if !percent.IsZero() {
		return rounding.ApplyMultiplier(costs, percent)
	}
	total := decimal.Zero
	for _, c := range costs {
		total = total.Add(c.Cost)
	}
	return domain.MultiplierResult{
		Multiplier:    decimal.NewFromInt(1),
		AdjustedItems: costs,
		RoundedTotal:  money.Round2(total),
	}
}

// SaleProfit joins a sale with its FIFO report. Both are fetched
// concurrently; the report goes through the report cache.
func (s *Service) SaleProfit(ctx context.Context, saleID string) (domain.ProfitReport, error) {
	saleID = strings.TrimSpace(saleID)
	if err := s.validate.Var(saleID, "required,max=64,excludesall=/?#%"); err != nil {
		return domain.ProfitReport{}, fmt.Errorf("%w: sale id %q", ErrInvalidRequest, saleID)
	}
	if s.sales == nil {
		return domain.ProfitReport{}, errors.New("sale source is not configured")
	}

	var (
		sale   domain.Sale
		report domain.FifoReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sale, err = s.sales.FetchSale(gctx, saleID)
		return err
	})
	g.Go(func() error {
		var err error
		report, err = s.fifoReport(gctx, saleID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ProfitReport{}, err
	}

	result := profit.Match(sale.Items, report)
	result.SaleID = saleID

	for _, row := range result.Rows {
		if row.ProfitDiverges() {
			logCtx := s.log.WithFields(ctx, map[string]any{
				"sale_id":       saleID,
				"product_id":    row.ProductID,
				"profit":        row.Profit.String(),
				"local_profit":  row.LocalProfit.String(),
				"profit_source": string(row.ProfitSource),
			})
			s.log.Warn(logCtx, "upstream profit differs from revenue minus cost", nil)
		}
	}
	return result, nil
}

func (s *Service) fifoReport(ctx context.Context, saleID string) (domain.FifoReport, error) {
	cached, ok, err := s.reports.Get(ctx, saleID)
	if err != nil {
		s.log.Warn(s.log.WithField(ctx, "sale_id", saleID), "fifo report cache read failed", err)
	}
	if ok && cached != nil {
		return *cached, nil
	}

	report, err := s.sales.FetchFifoReport(ctx, saleID)
	if err != nil {
		return domain.FifoReport{}, err
	}
	if err := s.reports.Set(ctx, saleID, &report, s.reportTTL); err != nil {
		s.log.Warn(s.log.WithField(ctx, "sale_id", saleID), "fifo report cache write failed", err)
	}
	return report, nil
}

// PaymentStatuses returns a definite status for every requested purchase
// order. A failed refresh is reported as a warning next to the best-known
// statuses rather than as an error.
func (s *Service) PaymentStatuses(ctx context.Context, req domain.PaymentStatusesRequest) (domain.PaymentStatusesResponse, error) {
	if err := s.validateStruct(req); err != nil {
		return domain.PaymentStatusesResponse{}, err
	}
	if s.paymentStatus == nil {
		return domain.PaymentStatusesResponse{}, errors.New("payment status cache is not configured")
	}

	statuses, err := s.paymentStatus.GetStatuses(ctx, req.PurchaseOrderIDs)
	resp := domain.PaymentStatusesResponse{Statuses: statuses}
	if resp.Statuses == nil {
		resp.Statuses = map[string]bool{}
	}
	if err != nil {
		s.log.Warn(ctx, "payment status refresh failed", err)
		resp.Warning = PaymentStatusWarning
	}
	return resp, nil
}

func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(details, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

func priceMode(mode domain.PriceMode) domain.PriceMode {
	if mode == domain.PriceModeSubtotal {
		return domain.PriceModeSubtotal
	}
	return domain.PriceModePrice
}
