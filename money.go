package fundnova

import (
	"github.com/shopspring/decimal"
)

// Amounts are fixed-point decimals with two digits of scale, matching the
// numeric(12,2) columns they are persisted into. Totals are additive and are
// never allowed to go negative.

func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Statusf(400, "Invalid amount %q", s)
	}
	return amount.Round(2), nil
}

func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive()
}

// AmountDiscrepancy returns the absolute difference between an expected and
// an actually received amount.
func AmountDiscrepancy(expected, actual decimal.Decimal) decimal.Decimal {
	return expected.Sub(actual).Abs()
}

// ExceedsTolerance reports whether the difference between expected and actual
// is larger than tolerancePct percent of the expected amount. A zero expected
// amount never exceeds tolerance, since there is nothing to compare against.
func ExceedsTolerance(expected, actual decimal.Decimal, tolerancePct int64) bool {
	if expected.IsZero() {
		return false
	}
	limit := expected.Mul(decimal.NewFromInt(tolerancePct)).Div(decimal.NewFromInt(100))
	return AmountDiscrepancy(expected, actual).GreaterThan(limit)
}
