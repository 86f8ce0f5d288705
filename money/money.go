/*
Package money provides the monetary value helpers shared by every ledger component.

PURPOSE:
  Balances and amounts arrive from many places: user input, Gateway responses
  that may omit fields, persisted snapshots. This package turns all of them
  into exact decimal amounts and back into human-readable strings.

REPRESENTATION:
  Amounts are decimal.Decimal in major units (e.g. 12.34 dollars), rounded to
  cents on input. Arithmetic on decimals is exact, so repeated
  apply/reverse cycles never drift.

USAGE:
  amount := money.ToAmount(req.Amount)     // never fails, bad input -> 0
  amount = money.Round(amount)             // 2 fractional digits
  money.Format(amount, "USD")              // "$12.34"
*/
package money

import (
	"encoding/json"
	"math"
	"math/big"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for every amount.
const Scale = 2

// Cent is the smallest representable amount.
var Cent = decimal.New(1, -Scale)

// maxExponent caps the decimal exponent of an amount. Rescaling cost grows
// with the exponent, so anything above it is treated as malformed.
const maxExponent = 18

// ToAmount coerces any raw value into a decimal amount.
// nil, non-numeric, NaN, infinite and out-of-range inputs become zero.
// Never panics.
func ToAmount(raw any) decimal.Decimal {
	return bounded(coerce(raw))
}

func coerce(raw any) decimal.Decimal {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero
		}
		return *v
	case decimal.NullDecimal:
		if !v.Valid {
			return decimal.Zero
		}
		return v.Decimal
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt32(v)
	case int64:
		return decimal.NewFromInt(v)
	case uint:
		return fromUint(uint64(v))
	case uint32:
		return fromUint(uint64(v))
	case uint64:
		return fromUint(v)
	case float32:
		return fromFloat(float64(v))
	case float64:
		return fromFloat(v)
	case json.Number:
		return fromString(v.String())
	case string:
		return fromString(v)
	case *string:
		if v == nil {
			return decimal.Zero
		}
		return fromString(*v)
	default:
		return decimal.Zero
	}
}

// bounded zeroes amounts whose exponent would make rounding to cents
// unbounded work: huge magnitudes, and values too small to survive rounding.
func bounded(d decimal.Decimal) decimal.Decimal {
	exp := int64(d.Exponent())
	if exp > maxExponent {
		return decimal.Zero
	}
	if exp < -Scale {
		digits := int64(len(new(big.Int).Abs(d.Coefficient()).String()))
		if digits+exp < -Scale {
			return decimal.Zero
		}
	}
	return d
}

func fromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func fromString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Round rounds half away from zero to cents. Out-of-range amounts round to
// zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return bounded(d).Round(Scale)
}

// Sum adds raw values after coercing each with ToAmount.
func Sum(values ...any) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(ToAmount(v))
	}
	return total
}

// Percent returns base * rate / 100, rounded to cents.
func Percent(base, rate decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(rate).Div(decimal.NewFromInt(100)))
}

// Format renders an amount in the given ISO currency, e.g. "$1,234.50".
// Unknown currencies fall back to a plain fixed-point string.
func Format(d decimal.Decimal, currency string) string {
	cur := gomoney.GetCurrency(strings.ToUpper(currency))
	if cur == nil {
		return d.StringFixed(Scale)
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
