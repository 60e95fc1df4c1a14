package fees

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingFee(t *testing.T, due string) *StudentFee {
	t.Helper()
	structure := gradeOneStructure()
	fee, err := Resolve(structure, studentFor(structure, "student-ledger"), FrequencyYearly, 1, nil, testNow)
	require.NoError(t, err)
	fee.TotalAmountDue = dec(due)
	fee.BalanceDue = dec(due)
	return fee
}

func completedPayment(fee *StudentFee, amount, receipt string) Payment {
	return Payment{
		ID:            uuid.New(),
		FeeID:         fee.ID,
		Amount:        dec(amount),
		PaymentDate:   testNow,
		PaymentMethod: "cash",
		ReceiptNumber: receipt,
		Status:        PaymentStatusCompleted,
		CreatedAt:     testNow,
	}
}

func TestRecomputePartialThenPaid(t *testing.T) {
	fee := pendingFee(t, "3825.00")
	payments := []Payment{
		completedPayment(fee, "2000.00", "RCPT-2026-0001"),
		completedPayment(fee, "1000.00", "RCPT-2026-0002"),
	}

	require.NoError(t, Recompute(fee, payments, testNow))
	assert.True(t, fee.TotalPaid.Equal(dec("3000.00")))
	assert.True(t, fee.BalanceDue.Equal(dec("825.00")))
	assert.Equal(t, FeeStatusPartial, fee.Status)

	payments = append(payments, completedPayment(fee, "825.00", "RCPT-2026-0003"))
	require.NoError(t, Recompute(fee, payments, testNow))
	assert.True(t, fee.BalanceDue.IsZero())
	assert.Equal(t, FeeStatusPaid, fee.Status)
}

func TestRecomputeIgnoresUncountedPayments(t *testing.T) {
	fee := pendingFee(t, "1000.00")
	pending := completedPayment(fee, "400.00", "RCPT-2026-0010")
	pending.Status = PaymentStatusPending
	failed := completedPayment(fee, "400.00", "RCPT-2026-0011")
	failed.Status = PaymentStatusFailed
	cancelled := completedPayment(fee, "400.00", "RCPT-2026-0012")
	cancelled.Status = PaymentStatusCancelled

	require.NoError(t, Recompute(fee, []Payment{pending, failed, cancelled}, testNow))
	assert.True(t, fee.TotalPaid.IsZero())
	assert.Equal(t, FeeStatusPending, fee.Status)
}

func TestRecomputeOverpaymentFloorsBalance(t *testing.T) {
	fee := pendingFee(t, "1000.00")
	payments := []Payment{completedPayment(fee, "1200.00", "RCPT-2026-0020")}

	require.NoError(t, Recompute(fee, payments, testNow))
	assert.True(t, fee.TotalPaid.Equal(dec("1200.00")))
	assert.True(t, fee.BalanceDue.IsZero())
	assert.Equal(t, FeeStatusPaid, fee.Status)
}

func TestRecomputeOverdue(t *testing.T) {
	fee := pendingFee(t, "1000.00")
	fee.DueDate = testNow.AddDate(0, 0, -1)

	require.NoError(t, Recompute(fee, nil, testNow))
	assert.Equal(t, FeeStatusOverdue, fee.Status)

	// A settled fee never goes overdue.
	require.NoError(t, Recompute(fee, []Payment{completedPayment(fee, "1000.00", "RCPT-2026-0030")}, testNow))
	assert.Equal(t, FeeStatusPaid, fee.Status)
}

func TestRecomputeZeroDueStaysPending(t *testing.T) {
	fee := pendingFee(t, "0")

	require.NoError(t, Recompute(fee, nil, testNow))
	assert.Equal(t, FeeStatusPending, fee.Status, "a fully-covered fee starts pending, not paid")

	// Nothing is owed, so a lapsed due date changes nothing either.
	fee.DueDate = testNow.AddDate(0, 0, -1)
	require.NoError(t, Recompute(fee, nil, testNow))
	assert.Equal(t, FeeStatusPending, fee.Status)
}

func TestRecomputeKeepsWaivedStatus(t *testing.T) {
	fee := pendingFee(t, "1000.00")
	require.NoError(t, fee.Waive("hardship", testNow))

	require.NoError(t, Recompute(fee, []Payment{completedPayment(fee, "100.00", "RCPT-2026-0040")}, testNow))
	assert.Equal(t, FeeStatusWaived, fee.Status)
	assert.True(t, fee.TotalPaid.Equal(dec("100.00")))
}

func TestWaiveTransitions(t *testing.T) {
	fee := pendingFee(t, "1000.00")
	require.NoError(t, fee.Waive("pilot program", testNow))
	assert.ErrorIs(t, fee.Waive("again", testNow), ErrFeeWaived)

	paid := pendingFee(t, "500.00")
	require.NoError(t, Recompute(paid, []Payment{completedPayment(paid, "500.00", "RCPT-2026-0041")}, testNow))
	assert.ErrorIs(t, paid.Waive("too late", testNow), ErrInvalidPaymentState)
}

func TestPaymentTransitions(t *testing.T) {
	fee := pendingFee(t, "1000.00")
	payment := completedPayment(fee, "250.00", "RCPT-2026-0050")

	require.NoError(t, payment.Refund("duplicate charge", testNow))
	assert.Equal(t, PaymentStatusRefunded, payment.Status)
	assert.Equal(t, testNow, payment.RefundedAt)
	assert.ErrorIs(t, payment.Refund("twice", testNow), ErrInvalidPaymentState)

	authorization := completedPayment(fee, "250.00", "RCPT-2026-0051")
	authorization.Status = PaymentStatusPending
	require.NoError(t, authorization.Cancel())
	assert.Equal(t, PaymentStatusCancelled, authorization.Status)

	settled := completedPayment(fee, "250.00", "RCPT-2026-0052")
	assert.ErrorIs(t, settled.Cancel(), ErrInvalidPaymentState)
}

func TestValidateReceiptNumber(t *testing.T) {
	assert.NoError(t, ValidateReceiptNumber("RCPT-2026-0001"))
	assert.NoError(t, ValidateReceiptNumber("RCPT-2026-123456"))
	for _, bad := range []string{"", "RCPT-26-0001", "rcpt-2026-0001", "2026-0001", "RCPT-2026-1"} {
		assert.ErrorIs(t, ValidateReceiptNumber(bad), ErrInvalidReceiptNumber, "receipt %q", bad)
	}
}

func TestRecomputeBalancesNeverNegative(t *testing.T) {
	fee := pendingFee(t, "100.00")
	payments := []Payment{
		completedPayment(fee, "60.00", "RCPT-2026-0060"),
		completedPayment(fee, "60.00", "RCPT-2026-0061"),
	}
	require.NoError(t, Recompute(fee, payments, testNow))
	assert.False(t, fee.BalanceDue.IsNegative())

	refunded := payments[1]
	require.NoError(t, refunded.Refund("overpayment return", testNow.Add(time.Hour)))
	require.NoError(t, Recompute(fee, []Payment{payments[0], refunded}, testNow.Add(time.Hour)))
	assert.True(t, fee.TotalPaid.Equal(dec("60.00")))
	assert.True(t, fee.BalanceDue.Equal(dec("40.00")))
	assert.Equal(t, FeeStatusPartial, fee.Status)
}
