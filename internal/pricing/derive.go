package pricing

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// publicMargin leaves a 20% margin on cost for the public price
	publicMargin = decimal.RequireFromString("0.8")
	// frequentMargin leaves a 10% margin on cost for frequent customers
	frequentMargin = decimal.RequireFromString("0.9")
	// taxFactor applies the 16% sales tax
	taxFactor = decimal.RequireFromString("1.16")

	hundred = decimal.NewFromInt(100)
)

// Quote holds the values derived from a product cost
type Quote struct {
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
}

// IsZero reports whether the quote carries no price
func (q Quote) IsZero() bool {
	return q.Price.IsZero() && q.Discount.IsZero()
}

// Derive computes the public price and the frequent-customer discount
// (percentage off the public price) for the given cost.
func Derive(cost decimal.Decimal) Quote {
	if !cost.IsPositive() {
		return Quote{Price: decimal.Zero, Discount: decimal.Zero}
	}

	publicPrice := cost.Div(publicMargin).Mul(taxFactor)
	frequentPrice := cost.Div(frequentMargin).Mul(taxFactor)
	discount := publicPrice.Sub(frequentPrice).Div(publicPrice).Mul(hundred)

	return Quote{
		Price:    publicPrice.Round(2),
		Discount: discount.Round(2),
	}
}

// DeriveRaw derives a quote from a raw user-typed cost. Anything that is not
// a positive number yields a zero quote.
func DeriveRaw(raw string) Quote {
	return Derive(Coerce(raw))
}

// DeriveFloat derives a quote from a float cost, treating NaN and infinities as zero
func DeriveFloat(cost float64) Quote {
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return Derive(decimal.Zero)
	}
	return Derive(decimal.NewFromFloat(cost))
}

// Coerce parses a raw numeric field. Invalid or negative input becomes zero,
// it never fails.
func Coerce(raw string) decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || value.IsNegative() {
		return decimal.Zero
	}
	return value
}

// CoerceInt parses a raw integer field, truncating fractions. Invalid or
// negative input becomes zero.
func CoerceInt(raw string) int {
	value := Coerce(raw)
	if value.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return math.MaxInt32
	}
	return int(value.IntPart())
}

// Float converts a decimal to the float64 the backend expects
func Float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
