package fees

import (
	"time"

	"github.com/shopspring/decimal"
)

// SumCompleted totals every completed payment. The ledger never trusts a
// cached running total; it always recomputes over the authoritative set so
// a missed or duplicated event cannot corrupt the balance.
func SumCompleted(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Counted() {
			total = total.Add(p.Amount)
		}
	}
	return RoundMoney(total)
}

// Recompute derives total paid, balance due and status from the full
// payment set. Waived fees keep their status; overdue is entered when the
// due date has elapsed with a balance outstanding.
func Recompute(fee *StudentFee, payments []Payment, now time.Time) error {
	if fee == nil {
		return ErrNilFee
	}

	fee.TotalPaid = SumCompleted(payments)
	fee.BalanceDue = FloorZero(fee.TotalAmountDue.Sub(fee.TotalPaid))

	if fee.Status == FeeStatusWaived {
		fee.UpdatedAt = now
		return nil
	}

	// A fee is paid when money covered it, never merely because nothing
	// was owed: a fully-bursaried fee starts out pending like any other.
	switch {
	case fee.BalanceDue.IsZero() && (fee.TotalPaid.IsPositive() || fee.TotalAmountDue.IsPositive()):
		fee.Status = FeeStatusPaid
	case fee.TotalPaid.IsPositive():
		fee.Status = FeeStatusPartial
	default:
		fee.Status = FeeStatusPending
	}

	if fee.Status != FeeStatusPaid && fee.BalanceDue.IsPositive() && !fee.DueDate.IsZero() && now.After(fee.DueDate) {
		fee.Status = FeeStatusOverdue
	}

	fee.UpdatedAt = now
	return nil
}
