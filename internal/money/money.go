package money

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds to whole cents, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RoundWhole rounds to the nearest whole currency unit, half away from zero.
func RoundWhole(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// Coerce converts loosely typed input into a decimal. Anything that is not a
// finite number or a numeric string becomes zero.
func Coerce(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return bounded(val)
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero
		}
		return bounded(*val)
	case Amount:
		return bounded(val.Decimal)
	case float64:
		return fromFloat(val)
	case float32:
		return fromFloat(float64(val))
	case int:
		return decimal.NewFromInt(int64(val))
	case int32:
		return decimal.NewFromInt32(val)
	case int64:
		return decimal.NewFromInt(val)
	case json.Number:
		return parse(string(val))
	case string:
		return parse(val)
	default:
		return decimal.Zero
	}
}

// ParseQuantity parses a quantity typed into a form field. Empty or invalid
// input is zero.
func ParseQuantity(raw string) decimal.Decimal {
	return parse(raw)
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return bounded(decimal.NewFromFloat(f))
}

func parse(raw string) decimal.Decimal {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero
	}
	return bounded(d)
}

const (
	maxScale         = 12
	minExponent      = -40
	maxIntegerDigits = 12
)

var maxMagnitude = decimal.New(1, maxIntegerDigits)

// bounded keeps inputs inside the range a pharmacy amount or quantity can
// take. Exponent notation such as "1e20000000" would otherwise expand into
// millions of digits on the first Round or String. Values at or beyond 1e12
// and exponents below 1e-40 count as invalid and become zero; finer
// fractions are rounded to 12 places.
func bounded(d decimal.Decimal) decimal.Decimal {
	exp := d.Exponent()
	if exp >= maxIntegerDigits || exp < minExponent {
		return decimal.Zero
	}
	if exp < -maxScale {
		d = d.Round(maxScale)
	}
	if d.Abs().GreaterThanOrEqual(maxMagnitude) {
		return decimal.Zero
	}
	return d
}

// Amount is a decimal that decodes leniently from JSON: numbers, numeric
// strings, null and garbage are all accepted, the latter two as zero.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// MustAmount builds an Amount from a literal. It panics on invalid input and
// is meant for tests and constants.
func MustAmount(raw string) Amount {
	return Amount{Decimal: decimal.RequireFromString(raw)}
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw any
	if err := decoder.Decode(&raw); err != nil {
		a.Decimal = decimal.Zero
		return nil
	}
	a.Decimal = Coerce(raw)
	return nil
}
