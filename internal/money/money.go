// Package money holds the pure monetary arithmetic shared by checkout and
// invoicing. All amounts are fixed-point decimals; intermediate results keep
// full precision and only Round produces the 2-decimal wire value.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round rounds a monetary amount to two decimal places, half up.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// VATExclusive converts a VAT-inclusive amount to its VAT-exclusive base
// using amount / (1 + rate/100). The result keeps full precision; callers
// round once at the end of their computation.
func VATExclusive(amountWithVAT, vatRatePercent decimal.Decimal) decimal.Decimal {
	divisor := decimal.NewFromInt(1).Add(vatRatePercent.Div(hundred))
	return amountWithVAT.Div(divisor)
}

// VATPortion returns the tax component of a VAT-inclusive amount at full
// precision.
func VATPortion(amountWithVAT, vatRatePercent decimal.Decimal) decimal.Decimal {
	return amountWithVAT.Sub(VATExclusive(amountWithVAT, vatRatePercent))
}

// LineTotal multiplies a VAT-inclusive unit price by a quantity.
func LineTotal(unitPriceWithVAT decimal.Decimal, quantity int) decimal.Decimal {
	return unitPriceWithVAT.Mul(decimal.NewFromInt(int64(quantity)))
}

// Percentage returns pct percent of amount, rounded.
func Percentage(amount, pct decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(pct).Div(hundred))
}

// ClampNonNegative floors an amount at zero.
func ClampNonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Min returns the smaller of two amounts.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
