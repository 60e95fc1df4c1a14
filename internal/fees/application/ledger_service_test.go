package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolfees-cloud/internal/auth"
	"schoolfees-cloud/internal/eventing"
	fees "schoolfees-cloud/internal/fees/domain"
	feesmem "schoolfees-cloud/internal/fees/infrastructure/memory"
)

type ledgerFixture struct {
	service  *LedgerService
	feeRepo  *feesmem.StudentFeeRepository
	payments *feesmem.PaymentRepository
	bus      *eventing.Bus
	feeID    fees.FeeID
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	feeRepo := feesmem.NewStudentFeeRepository()
	payments := feesmem.NewPaymentRepository()
	bus := eventing.NewBus()
	service, err := NewLedgerService(feeRepo, payments, bus, fixedClock{now: testNow})
	require.NoError(t, err)

	feeID, err := fees.BuildFeeID("school-a", "stu-1", "2025-2026")
	require.NoError(t, err)
	fee := &fees.StudentFee{
		ID:             feeID,
		SchoolID:       "school-a",
		StudentID:      "stu-1",
		GradeLevel:     1,
		AcademicYear:   "2025-2026",
		Frequency:      fees.FrequencyYearly,
		TotalAmountDue: dec("7500"),
		BalanceDue:     dec("7500"),
		Status:         fees.FeeStatusPending,
		DueDate:        testNow.AddDate(0, 0, 30),
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
	require.NoError(t, feeRepo.Save(context.Background(), fee))

	return &ledgerFixture{
		service:  service,
		feeRepo:  feeRepo,
		payments: payments,
		bus:      bus,
		feeID:    feeID,
	}
}

func (f *ledgerFixture) apply(t *testing.T, amount, receipt string) *fees.Payment {
	t.Helper()
	_, payment, err := f.service.ApplyPayment(context.Background(), f.feeID, ApplyPaymentInput{
		Amount:        dec(amount),
		PaymentMethod: "cash",
		ReceiptNumber: receipt,
	})
	require.NoError(t, err)
	return payment
}

func TestLedgerService_ApplyPayment(t *testing.T) {
	f := newLedgerFixture(t)

	fee, payment, err := f.service.ApplyPayment(context.Background(), f.feeID, ApplyPaymentInput{
		Amount:        dec("2000"),
		PaymentMethod: "cash",
		ReceiptNumber: "RCPT-2025-0001",
	})
	require.NoError(t, err)
	assert.Equal(t, fees.PaymentStatusCompleted, payment.Status)
	assert.True(t, fee.TotalPaid.Equal(dec("2000")))
	assert.True(t, fee.BalanceDue.Equal(dec("5500")))
	assert.Equal(t, fees.FeeStatusPartial, fee.Status)
}

func TestLedgerService_DuplicateReceipt(t *testing.T) {
	f := newLedgerFixture(t)
	f.apply(t, "2000", "RCPT-2025-0001")

	_, _, err := f.service.ApplyPayment(context.Background(), f.feeID, ApplyPaymentInput{
		Amount:        dec("100"),
		PaymentMethod: "cash",
		ReceiptNumber: "RCPT-2025-0001",
	})
	assert.ErrorIs(t, err, fees.ErrDuplicateReceipt)

	fee, ledger, err := f.service.Get(context.Background(), f.feeID)
	require.NoError(t, err)
	assert.Len(t, ledger, 1, "failed apply must not append to the ledger")
	assert.True(t, fee.TotalPaid.Equal(dec("2000")))
}

func TestLedgerService_OverpaymentFloorsBalance(t *testing.T) {
	f := newLedgerFixture(t)

	fee, _, err := f.service.ApplyPayment(context.Background(), f.feeID, ApplyPaymentInput{
		Amount:        dec("8000"),
		PaymentMethod: "bank_transfer",
		ReceiptNumber: "RCPT-2025-0002",
	})
	require.NoError(t, err)
	assert.True(t, fee.TotalPaid.Equal(dec("8000")))
	assert.True(t, fee.BalanceDue.IsZero())
	assert.Equal(t, fees.FeeStatusPaid, fee.Status)
}

func TestLedgerService_RefundExceedsPaid(t *testing.T) {
	f := newLedgerFixture(t)

	// A completed payment whose amount exceeds the recorded total, as
	// after an external ledger repair, must not refund past zero.
	stray := &fees.Payment{
		ID:            uuid.New(),
		FeeID:         f.feeID,
		Amount:        dec("500"),
		PaymentDate:   testNow,
		PaymentMethod: "cash",
		ReceiptNumber: "RCPT-2025-0003",
		Status:        fees.PaymentStatusCompleted,
		CreatedAt:     testNow,
	}
	require.NoError(t, f.payments.Save(context.Background(), stray))

	_, _, err := f.service.RefundPayment(context.Background(), f.feeID, stray.ID, "repair")
	assert.ErrorIs(t, err, fees.ErrRefundExceedsPaid)
}

func TestLedgerService_RefundedPaymentCannotRefundTwice(t *testing.T) {
	f := newLedgerFixture(t)
	payment := f.apply(t, "1000", "RCPT-2025-0013")

	fee, _, err := f.service.RefundPayment(context.Background(), f.feeID, payment.ID, "clerical error")
	require.NoError(t, err)
	assert.True(t, fee.TotalPaid.IsZero())

	_, _, err = f.service.RefundPayment(context.Background(), f.feeID, payment.ID, "again")
	assert.ErrorIs(t, err, fees.ErrInvalidPaymentState)
}

func TestLedgerService_RefundMoreThanPaidRejected(t *testing.T) {
	f := newLedgerFixture(t)
	big := f.apply(t, "1000", "RCPT-2025-0006")
	small := f.apply(t, "200", "RCPT-2025-0007")

	_, _, err := f.service.RefundPayment(context.Background(), f.feeID, small.ID, "partial out")
	require.NoError(t, err)
	fee, _, err := f.service.Get(context.Background(), f.feeID)
	require.NoError(t, err)
	assert.True(t, fee.TotalPaid.Equal(dec("1000")))

	_, _, err = f.service.RefundPayment(context.Background(), f.feeID, big.ID, "rest out")
	require.NoError(t, err)
	fee, _, err = f.service.Get(context.Background(), f.feeID)
	require.NoError(t, err)
	assert.True(t, fee.TotalPaid.IsZero())
	assert.True(t, fee.BalanceDue.Equal(dec("7500")))
	assert.Equal(t, fees.FeeStatusPending, fee.Status)
}

func TestLedgerService_PendingThenSettle(t *testing.T) {
	f := newLedgerFixture(t)

	fee, payment, err := f.service.ApplyPayment(context.Background(), f.feeID, ApplyPaymentInput{
		Amount:        dec("3000"),
		PaymentMethod: "card",
		ReceiptNumber: "RCPT-2025-0008",
		Pending:       true,
	})
	require.NoError(t, err)
	assert.True(t, fee.TotalPaid.IsZero(), "pending payments never count")

	fee, payment, err = f.service.SettlePayment(context.Background(), f.feeID, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, fees.PaymentStatusCompleted, payment.Status)
	assert.True(t, fee.TotalPaid.Equal(dec("3000")))
	assert.Equal(t, fees.FeeStatusPartial, fee.Status)
}

func TestLedgerService_CancelPending(t *testing.T) {
	f := newLedgerFixture(t)

	_, payment, err := f.service.ApplyPayment(context.Background(), f.feeID, ApplyPaymentInput{
		Amount:        dec("3000"),
		PaymentMethod: "card",
		ReceiptNumber: "RCPT-2025-0009",
		Pending:       true,
	})
	require.NoError(t, err)

	fee, payment, err := f.service.CancelPayment(context.Background(), f.feeID, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, fees.PaymentStatusCancelled, payment.Status)
	assert.True(t, fee.TotalPaid.IsZero())

	completed := f.apply(t, "100", "RCPT-2025-0010")
	_, _, err = f.service.CancelPayment(context.Background(), f.feeID, completed.ID)
	assert.ErrorIs(t, err, fees.ErrInvalidPaymentState)
}

func TestLedgerService_WaiveBlocksMutation(t *testing.T) {
	f := newLedgerFixture(t)

	fee, err := f.service.Waive(context.Background(), f.feeID, "hardship")
	require.NoError(t, err)
	assert.Equal(t, fees.FeeStatusWaived, fee.Status)

	_, _, err = f.service.ApplyPayment(context.Background(), f.feeID, ApplyPaymentInput{
		Amount:        dec("100"),
		PaymentMethod: "cash",
		ReceiptNumber: "RCPT-2025-0011",
	})
	assert.ErrorIs(t, err, fees.ErrFeeWaived)
}

func TestLedgerService_MarkOverdue(t *testing.T) {
	f := newLedgerFixture(t)

	lateClock := fixedClock{now: testNow.AddDate(0, 2, 0)}
	service, err := NewLedgerService(f.feeRepo, f.payments, f.bus, lateClock)
	require.NoError(t, err)

	transitioned, err := service.MarkOverdue(context.Background(), "school-a", "2025-2026")
	require.NoError(t, err)
	assert.Equal(t, 1, transitioned)

	fee, _, err := service.Get(context.Background(), f.feeID)
	require.NoError(t, err)
	assert.Equal(t, fees.FeeStatusOverdue, fee.Status)
}

func TestLedgerService_TenantScoping(t *testing.T) {
	f := newLedgerFixture(t)

	ctx := auth.WithIdentity(context.Background(), "school-b", auth.RoleClerk, "user-1")
	_, _, err := f.service.Get(ctx, f.feeID)
	assert.ErrorIs(t, err, auth.ErrTenantMismatch)

	_, err = f.service.ListFees(ctx, "school-a", "2025-2026")
	assert.ErrorIs(t, err, auth.ErrTenantMismatch)
}

func TestLedgerService_ConcurrentApplies(t *testing.T) {
	f := newLedgerFixture(t)

	var wg sync.WaitGroup
	receipts := []string{
		"RCPT-2025-1001", "RCPT-2025-1002", "RCPT-2025-1003",
		"RCPT-2025-1004", "RCPT-2025-1005",
	}
	for _, receipt := range receipts {
		wg.Add(1)
		go func(receipt string) {
			defer wg.Done()
			_, _, err := f.service.ApplyPayment(context.Background(), f.feeID, ApplyPaymentInput{
				Amount:        dec("100"),
				PaymentMethod: "cash",
				ReceiptNumber: receipt,
			})
			assert.NoError(t, err)
		}(receipt)
	}
	wg.Wait()

	fee, ledger, err := f.service.Get(context.Background(), f.feeID)
	require.NoError(t, err)
	assert.Len(t, ledger, 5)
	assert.True(t, fee.TotalPaid.Equal(dec("500")))
	assert.True(t, fee.BalanceDue.Equal(dec("7000")))
}

func TestLedgerService_PublishesPaymentApplied(t *testing.T) {
	f := newLedgerFixture(t)

	var events []PaymentApplied
	eventing.Subscribe(f.bus, func(ctx context.Context, event PaymentApplied) error {
		events = append(events, event)
		return nil
	})

	f.apply(t, "2000", "RCPT-2025-0012")
	require.Len(t, events, 1)
	assert.True(t, events[0].Amount.Equal(dec("2000")))
	assert.True(t, events[0].BalanceDue.Equal(dec("5500")))
	assert.Equal(t, fees.FeeStatusPartial, events[0].FeeStatus)
}

// brokenRepoErr stands in for a storage outage in the tests below.
var brokenRepoErr = errors.New("memory: repository unavailable")

type failingFeeRepo struct {
	*feesmem.StudentFeeRepository
	remaining int
}

func (r *failingFeeRepo) Save(ctx context.Context, fee *fees.StudentFee) error {
	if r.remaining > 0 {
		r.remaining--
		return brokenRepoErr
	}
	return r.StudentFeeRepository.Save(ctx, fee)
}

type failingPaymentRepo struct {
	*feesmem.PaymentRepository
	remaining int
}

func (r *failingPaymentRepo) Save(ctx context.Context, payment *fees.Payment) error {
	if r.remaining > 0 {
		r.remaining--
		return brokenRepoErr
	}
	return r.PaymentRepository.Save(ctx, payment)
}

func TestLedgerService_FeeSaveFailureLeavesNoPayment(t *testing.T) {
	f := newLedgerFixture(t)
	feeRepo := &failingFeeRepo{StudentFeeRepository: f.feeRepo, remaining: 1}
	service, err := NewLedgerService(feeRepo, f.payments, f.bus, fixedClock{now: testNow})
	require.NoError(t, err)

	input := ApplyPaymentInput{
		Amount:        dec("2000"),
		PaymentMethod: "cash",
		ReceiptNumber: "RCPT-2025-0301",
	}
	_, _, err = service.ApplyPayment(context.Background(), f.feeID, input)
	require.ErrorIs(t, err, brokenRepoErr)

	ledger, err := f.payments.ListByFee(context.Background(), f.feeID)
	require.NoError(t, err)
	assert.Empty(t, ledger, "a payment must not outlive a failed fee save")

	stored, err := f.feeRepo.Get(context.Background(), f.feeID)
	require.NoError(t, err)
	assert.True(t, stored.TotalPaid.IsZero())
	assert.Equal(t, fees.FeeStatusPending, stored.Status)

	// The receipt was never consumed, so the caller's retry goes through.
	fee, _, err := service.ApplyPayment(context.Background(), f.feeID, input)
	require.NoError(t, err)
	assert.True(t, fee.TotalPaid.Equal(dec("2000")))
}

func TestLedgerService_PaymentSaveFailureRestoresFee(t *testing.T) {
	f := newLedgerFixture(t)
	payments := &failingPaymentRepo{PaymentRepository: f.payments, remaining: 1}
	service, err := NewLedgerService(f.feeRepo, payments, f.bus, fixedClock{now: testNow})
	require.NoError(t, err)

	input := ApplyPaymentInput{
		Amount:        dec("2000"),
		PaymentMethod: "cash",
		ReceiptNumber: "RCPT-2025-0302",
	}
	_, _, err = service.ApplyPayment(context.Background(), f.feeID, input)
	require.ErrorIs(t, err, brokenRepoErr)

	stored, err := f.feeRepo.Get(context.Background(), f.feeID)
	require.NoError(t, err)
	assert.True(t, stored.TotalPaid.IsZero(), "fee totals must roll back with the payment")
	assert.True(t, stored.BalanceDue.Equal(dec("7500")))

	fee, _, err := service.ApplyPayment(context.Background(), f.feeID, input)
	require.NoError(t, err)
	assert.True(t, fee.BalanceDue.Equal(dec("5500")))
}
