package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/henry1266/pharmacy-pos-sub005/internal/money"
)

func init() {
	// The POS front-end reads amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type PriceMode string

const (
	PriceModePrice    PriceMode = "price"
	PriceModeSubtotal PriceMode = "subtotal"
)

// LineItem is one product line of a sale or purchase order.
type LineItem struct {
	Product   ProductRef      `json:"product"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  decimal.Decimal `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Reprice restores the price/subtotal relationship for the given mode. In
// price mode the subtotal follows unitPrice*quantity; in subtotal mode the
// unit price is derived from the subtotal (zero when quantity is zero).
func (l LineItem) Reprice(mode PriceMode) LineItem {
	switch mode {
	case PriceModeSubtotal:
		if l.Quantity.IsZero() {
			l.UnitPrice = decimal.Zero
		} else {
			l.UnitPrice = money.Round2(l.Subtotal.Div(l.Quantity))
		}
	default:
		l.Subtotal = money.Round2(l.UnitPrice.Mul(l.Quantity))
	}
	return l
}

type LineItemInput struct {
	Product   ProductRef   `json:"product"`
	UnitPrice money.Amount `json:"unitPrice"`
	Quantity  money.Amount `json:"quantity"`
	Subtotal  money.Amount `json:"subtotal"`
}

func (in LineItemInput) LineItem() LineItem {
	return LineItem{
		Product:   in.Product,
		UnitPrice: in.UnitPrice.Decimal,
		Quantity:  in.Quantity.Decimal,
		Subtotal:  in.Subtotal.Decimal,
	}
}

type SaleTotals struct {
	GrossAmount    decimal.Decimal `json:"grossAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	NetAmount      decimal.Decimal `json:"netAmount"`
}

type TotalsRequest struct {
	PriceMode PriceMode       `json:"priceMode" validate:"omitempty,oneof=price subtotal"`
	Discount  money.Amount    `json:"discount"`
	Items     []LineItemInput `json:"items" validate:"max=500"`
}

type TotalsResponse struct {
	Items  []LineItem `json:"items"`
	Totals SaleTotals `json:"totals"`
}

type QuantityField string

const (
	QuantityFieldNone    QuantityField = ""
	QuantityFieldTotal   QuantityField = "total"
	QuantityFieldPackage QuantityField = "package"
	QuantityFieldBox     QuantityField = "box"
)

// QuantityFieldState is the per-line quantity editing state of a purchase
// order row. Quantities stay strings so an empty box is distinct from zero.
type QuantityFieldState struct {
	TotalQuantity   string        `json:"totalQuantity"`
	PackageQuantity string        `json:"packageQuantity"`
	BoxQuantity     string        `json:"boxQuantity"`
	ActiveField     QuantityField `json:"activeField"`
}

type QuantityEventType string

const (
	QuantityEventFocus         QuantityEventType = "focus"
	QuantityEventChange        QuantityEventType = "change"
	QuantityEventBlur          QuantityEventType = "blur"
	QuantityEventSelectProduct QuantityEventType = "select_product"
	QuantityEventKey           QuantityEventType = "key"
)

type QuantityEvent struct {
	Type  QuantityEventType `json:"type" validate:"required,oneof=focus change blur select_product key"`
	Field QuantityField     `json:"field" validate:"omitempty,oneof=total package box"`
	Value string            `json:"value" validate:"max=32"`
	Key   string            `json:"key" validate:"max=32"`
}

type QuantityEventRequest struct {
	Product ProductRef         `json:"product"`
	State   QuantityFieldState `json:"state"`
	Event   QuantityEvent      `json:"event"`
}

type QuantityEventResponse struct {
	Product            ProductRef         `json:"product"`
	State              QuantityFieldState `json:"state"`
	Phase              string             `json:"phase"`
	TotalDisabled      bool               `json:"totalDisabled"`
	PackageBoxDisabled bool               `json:"packageBoxDisabled"`
	SuppressSubmit     bool               `json:"suppressSubmit"`
}

type CostLine struct {
	ProductID string          `json:"productId,omitempty"`
	Cost      decimal.Decimal `json:"cost"`
}

type MultiplierResult struct {
	Multiplier    decimal.Decimal `json:"multiplier"`
	AdjustedItems []CostLine      `json:"adjustedItems"`
	RoundedTotal  decimal.Decimal `json:"roundedTotal"`
}

type PurchaseOrderLineInput struct {
	Product   ProductRef         `json:"product"`
	UnitPrice money.Amount       `json:"unitPrice"`
	Subtotal  money.Amount       `json:"subtotal"`
	Quantity  QuantityFieldState `json:"quantity"`
}

type PurchaseOrderPrepareRequest struct {
	SupplierID        string                   `json:"supplierId" validate:"required,max=64"`
	PriceMode         PriceMode                `json:"priceMode" validate:"omitempty,oneof=price subtotal"`
	MultiplierPercent money.Amount             `json:"multiplierPercent"`
	Discount          money.Amount             `json:"discount"`
	Items             []PurchaseOrderLineInput `json:"items" validate:"required,min=1,max=500"`
}

type PurchaseOrderSubmissionLine struct {
	ProductID string          `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unitCost"`
	Cost      decimal.Decimal `json:"cost"`
}

// PurchaseOrderSubmission is the payload handed to the order service once
// quantities, multiplier mode and totals have been reconciled.
type PurchaseOrderSubmission struct {
	IdempotencyKey string                        `json:"idempotencyKey"`
	SupplierID     string                        `json:"supplierId"`
	Multiplier     decimal.Decimal               `json:"multiplier"`
	RoundedTotal   decimal.Decimal               `json:"roundedTotal"`
	Totals         SaleTotals                    `json:"totals"`
	Items          []PurchaseOrderSubmissionLine `json:"items"`
}

type SaleLineItem struct {
	Product  ProductRef      `json:"product"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Revenue is the recorded subtotal, or price*quantity when the sale line was
// stored without one.
func (s SaleLineItem) Revenue() decimal.Decimal {
	if !s.Subtotal.IsZero() {
		return s.Subtotal
	}
	return s.Price.Mul(s.Quantity)
}

type Sale struct {
	ID         string          `json:"_id"`
	SaleNumber string          `json:"saleNumber,omitempty"`
	Discount   decimal.Decimal `json:"discount"`
	Items      []SaleLineItem  `json:"items"`
}

type FifoSummary struct {
	TotalCost         *decimal.Decimal `json:"totalCost,omitempty"`
	TotalProfit       *decimal.Decimal `json:"totalProfit,omitempty"`
	GrossProfit       *decimal.Decimal `json:"grossProfit,omitempty"`
	TotalProfitMargin *string          `json:"totalProfitMargin,omitempty"`
}

type FifoProfit struct {
	TotalProfit *decimal.Decimal `json:"totalProfit,omitempty"`
}

type FifoConsumptionRecord struct {
	Product      ProductRef       `json:"productId"`
	TotalCost    decimal.Decimal  `json:"totalCost"`
	TotalProfit  *decimal.Decimal `json:"totalProfit,omitempty"`
	FifoProfit   *FifoProfit      `json:"fifoProfit,omitempty"`
	ProfitMargin string           `json:"profitMargin"`
}

// UnmarshalJSON also accepts the reference under "product", which older
// report endpoints use instead of "productId".
func (r *FifoConsumptionRecord) UnmarshalJSON(data []byte) error {
	type record FifoConsumptionRecord
	var raw struct {
		record
		Alias ProductRef `json:"product"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = FifoConsumptionRecord(raw.record)
	if r.Product.IsZero() {
		r.Product = raw.Alias
	}
	return nil
}

type FifoReport struct {
	Summary *FifoSummary            `json:"summary,omitempty"`
	Items   []FifoConsumptionRecord `json:"items,omitempty"`
}

type ProfitSource string

const (
	ProfitSourceNone     ProfitSource = ""
	ProfitSourceUpstream ProfitSource = "upstream"
	ProfitSourceFifo     ProfitSource = "fifo"
	ProfitSourceLocal    ProfitSource = "local"
)

type MatchedRow struct {
	Item         SaleLineItem     `json:"item"`
	ProductID    string           `json:"productId"`
	Matched      bool             `json:"matched"`
	Cost         *decimal.Decimal `json:"cost"`
	Profit       *decimal.Decimal `json:"profit"`
	LocalProfit  *decimal.Decimal `json:"localProfit"`
	ProfitMargin *string          `json:"profitMargin"`
	ProfitSource ProfitSource     `json:"profitSource,omitempty"`
}

// ProfitDiverges reports whether an upstream profit figure disagrees with the
// revenue minus cost derived locally.
func (m MatchedRow) ProfitDiverges() bool {
	if !m.Matched || m.Profit == nil || m.LocalProfit == nil || m.ProfitSource == ProfitSourceLocal {
		return false
	}
	return !m.Profit.Equal(*m.LocalProfit)
}

type ProfitReport struct {
	SaleID  string       `json:"saleId,omitempty"`
	Rows    []MatchedRow `json:"rows"`
	Summary *FifoSummary `json:"summary"`
}

// PaymentStatusRequest and PaymentStatusResponse are the wire shapes of the
// upstream batch payment-status endpoint.
type PaymentStatusRequest struct {
	PurchaseOrderIDs []string `json:"purchaseOrderIds"`
}

type PaymentStatusRecord struct {
	PurchaseOrderID string `json:"purchaseOrderId,omitempty"`
	HasPaidAmount   *bool  `json:"hasPaidAmount,omitempty"`
}

type PaymentStatusResponse struct {
	Success *bool                 `json:"success,omitempty"`
	Data    []PaymentStatusRecord `json:"data,omitempty"`
}

type PaymentStatusesRequest struct {
	PurchaseOrderIDs []string `json:"purchaseOrderIds" validate:"required,max=500,dive,required,max=64"`
}

type PaymentStatusesResponse struct {
	Statuses map[string]bool `json:"statuses"`
	Warning  string          `json:"warning,omitempty"`
}
