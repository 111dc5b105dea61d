// Package quantity keeps a purchase-order line's direct total quantity and its
// package x box decomposition consistent while the user edits either one.
//
// The state is a value: every transition takes a state and returns the next
// one. Whether a field is editable is derived from the current values and the
// active field on every call and is never stored.
package quantity

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/henry1266/pharmacy-pos-sub005/internal/domain"
	"github.com/henry1266/pharmacy-pos-sub005/internal/money"
)

type Phase string

const (
	PhaseIdle                Phase = "idle"
	PhaseEditingTotal        Phase = "editing_total"
	PhaseEditingPackageOrBox Phase = "editing_package_or_box"
)

func PhaseOf(s domain.QuantityFieldState) Phase {
	switch s.ActiveField {
	case domain.QuantityFieldTotal:
		return PhaseEditingTotal
	case domain.QuantityFieldPackage, domain.QuantityFieldBox:
		return PhaseEditingPackageOrBox
	default:
		return PhaseIdle
	}
}

// Empty is the state of a freshly selected product.
func Empty() domain.QuantityFieldState {
	return domain.QuantityFieldState{}
}

// TotalDisabled reports whether the total quantity input is read-only: a
// package or box quantity is set and the total is not the field being edited.
func TotalDisabled(s domain.QuantityFieldState) bool {
	hasDecomposition := positive(s.PackageQuantity) || positive(s.BoxQuantity)
	return hasDecomposition && s.ActiveField != domain.QuantityFieldTotal
}

// PackageBoxDisabled reports whether the package and box inputs are
// read-only: a positive total is set and neither sub-field is being edited.
func PackageBoxDisabled(s domain.QuantityFieldState) bool {
	if s.ActiveField == domain.QuantityFieldPackage || s.ActiveField == domain.QuantityFieldBox {
		return false
	}
	return positive(s.TotalQuantity)
}

func Disabled(s domain.QuantityFieldState, field domain.QuantityField) bool {
	switch field {
	case domain.QuantityFieldTotal:
		return TotalDisabled(s)
	case domain.QuantityFieldPackage, domain.QuantityFieldBox:
		return PackageBoxDisabled(s)
	default:
		return true
	}
}

// Focus makes field the active one. The disable flags are derived for
// rendering and do not gate events.
func Focus(s domain.QuantityFieldState, field domain.QuantityField) domain.QuantityFieldState {
	switch field {
	case domain.QuantityFieldTotal, domain.QuantityFieldPackage, domain.QuantityFieldBox:
		s.ActiveField = field
	}
	return s
}

// Change records a keystroke into field while it or no field is active. A
// non-empty total supersedes the decomposition and clears it. Sub-field
// edits never touch the total until the field is blurred.
func Change(s domain.QuantityFieldState, field domain.QuantityField, value string) domain.QuantityFieldState {
	if s.ActiveField != domain.QuantityFieldNone && s.ActiveField != field {
		return s
	}
	switch field {
	case domain.QuantityFieldTotal:
		s.TotalQuantity = value
		if strings.TrimSpace(value) != "" {
			s.PackageQuantity = ""
			s.BoxQuantity = ""
		}
	case domain.QuantityFieldPackage:
		s.PackageQuantity = value
	case domain.QuantityFieldBox:
		s.BoxQuantity = value
	}
	return s
}

// Blur leaves a field. Leaving package or box recomputes the total as their
// product, or clears it when the product is not a positive quantity. A blur
// of a field that is neither active nor editable is ignored so a stray event
// cannot overwrite a directly entered total.
func Blur(s domain.QuantityFieldState, field domain.QuantityField) domain.QuantityFieldState {
	if Disabled(s, field) {
		return s
	}
	if field == domain.QuantityFieldPackage || field == domain.QuantityFieldBox {
		s.TotalQuantity = decomposedTotal(s.PackageQuantity, s.BoxQuantity)
	}
	if s.ActiveField == field {
		s.ActiveField = domain.QuantityFieldNone
	}
	return s
}

// SelectProduct resets every quantity field for a newly chosen product.
func SelectProduct(domain.QuantityFieldState) domain.QuantityFieldState {
	return Empty()
}

// Finalize settles a state before submission by blurring whichever field is
// still active, so a half-edited decomposition is folded into the total.
func Finalize(s domain.QuantityFieldState) domain.QuantityFieldState {
	if s.ActiveField == domain.QuantityFieldNone {
		return s
	}
	return Blur(s, s.ActiveField)
}

// SuppressesSubmit reports whether a key press inside a quantity input must be
// kept from submitting the surrounding form.
func SuppressesSubmit(key string) bool {
	return key == "Enter" || key == "Tab"
}

// Apply dispatches an event. Unknown events leave the state as it is.
func Apply(s domain.QuantityFieldState, event domain.QuantityEvent) domain.QuantityFieldState {
	switch event.Type {
	case domain.QuantityEventFocus:
		return Focus(s, event.Field)
	case domain.QuantityEventChange:
		return Change(s, event.Field, event.Value)
	case domain.QuantityEventBlur:
		return Blur(s, event.Field)
	case domain.QuantityEventSelectProduct:
		return SelectProduct(s)
	default:
		return s
	}
}

// TotalQuantity is the reconciled quantity used in calculations.
func TotalQuantity(s domain.QuantityFieldState) decimal.Decimal {
	return money.ParseQuantity(s.TotalQuantity)
}

func decomposedTotal(packageQty string, boxQty string) string {
	pkg := money.ParseQuantity(packageQty)
	box := money.ParseQuantity(boxQty)
	if pkg.IsNegative() || box.IsNegative() {
		return ""
	}
	product := pkg.Mul(box)
	if !product.IsPositive() {
		return ""
	}
	return product.String()
}

func positive(raw string) bool {
	return money.ParseQuantity(raw).IsPositive()
}
