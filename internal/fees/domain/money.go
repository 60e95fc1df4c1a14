package fees

import "github.com/shopspring/decimal"

// RoundMoney quantizes an amount to two fractional digits. Decimal Round
// is half away from zero, which for the non-negative amounts handled here
// is exactly round-half-up, matching how a human auditor totals by hand.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// PercentOf computes percent of amount, rounded to two fractional digits.
func PercentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(percent).Div(decimal.NewFromInt(100)))
}

// CapAt returns amount limited to cap. A zero cap is treated as no cap.
func CapAt(amount, cap decimal.Decimal) decimal.Decimal {
	if cap.IsZero() || amount.LessThanOrEqual(cap) {
		return amount
	}
	return cap
}

// FloorZero clamps a negative amount to zero.
func FloorZero(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
