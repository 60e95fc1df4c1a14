package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"schoolfees-cloud/internal/auth"
	"schoolfees-cloud/internal/eventing"
	fees "schoolfees-cloud/internal/fees/domain"
	"schoolfees-cloud/internal/observability/metrics"
)

// ApplyPaymentInput carries a payment event from the payment-processing
// boundary. The receipt number is caller-supplied and globally unique.
type ApplyPaymentInput struct {
	Amount        decimal.Decimal
	PaymentDate   time.Time
	PaymentMethod string
	ReceiptNumber string
	// Pending records an authorization that is not yet settled. Pending
	// payments never count toward total paid until settled.
	Pending bool
}

// LedgerService maintains total paid, balance due and fee status as a
// derived view over the payment ledger. Every mutation to a single fee is
// serialized behind a per-fee lock and recomputed from the authoritative
// set of completed payments, never from a cached running total.
type LedgerService struct {
	feeRepo  fees.StudentFeeRepository
	payments fees.PaymentRepository
	bus      eventing.Publisher
	clock    Clock
	locks    *feeLocks
}

// NewLedgerService constructs the service.
func NewLedgerService(feeRepo fees.StudentFeeRepository, payments fees.PaymentRepository, bus eventing.Publisher, clock Clock) (*LedgerService, error) {
	if feeRepo == nil {
		return nil, errors.New("ledger service: nil fee repository")
	}
	if payments == nil {
		return nil, errors.New("ledger service: nil payment repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &LedgerService{
		feeRepo:  feeRepo,
		payments: payments,
		bus:      bus,
		clock:    clock,
		locks:    newFeeLocks(),
	}, nil
}

// Get returns a fee snapshot with its full payment ledger.
func (s *LedgerService) Get(ctx context.Context, feeID fees.FeeID) (*fees.StudentFee, []fees.Payment, error) {
	fee, err := s.loadFee(ctx, feeID)
	if err != nil {
		return nil, nil, err
	}
	ledger, err := s.payments.ListByFee(ctx, feeID)
	if err != nil {
		return nil, nil, err
	}
	return fee, ledger, nil
}

// GetPayment returns a payment together with its fee snapshot.
func (s *LedgerService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*fees.StudentFee, *fees.Payment, error) {
	payment, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if payment == nil {
		return nil, nil, fees.ErrPaymentNotFound
	}
	fee, err := s.loadFee(ctx, payment.FeeID)
	if err != nil {
		return nil, nil, err
	}
	return fee, payment, nil
}

// ApplyPayment records a payment against a fee and folds it into the
// ledger. Validation happens before any state mutation; a failure leaves
// prior state untouched. Overpayment is accepted and recorded; the balance
// floors at zero and the excess stays visible in total paid for the caller
// to reconcile via a later refund.
func (s *LedgerService) ApplyPayment(ctx context.Context, feeID fees.FeeID, input ApplyPaymentInput) (*fees.StudentFee, *fees.Payment, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObservePaymentApply(result, time.Since(start))
	}()

	status := fees.PaymentStatusCompleted
	if input.Pending {
		status = fees.PaymentStatusPending
	}
	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = s.clock.Now()
	}
	payment := &fees.Payment{
		ID:            uuid.New(),
		FeeID:         feeID,
		Amount:        fees.RoundMoney(input.Amount),
		PaymentDate:   paymentDate,
		PaymentMethod: input.PaymentMethod,
		ReceiptNumber: input.ReceiptNumber,
		Status:        status,
		CreatedAt:     s.clock.Now(),
	}
	if err := payment.Validate(); err != nil {
		result = metrics.ResultError
		return nil, nil, err
	}

	unlock := s.locks.acquire(feeID)
	defer unlock()

	fee, _, err := s.mutate(ctx, feeID, func(*fees.StudentFee) (*fees.Payment, error) {
		existing, err := s.payments.FindByReceipt(ctx, input.ReceiptNumber)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fees.ErrDuplicateReceipt
		}
		return payment, nil
	})
	if err != nil {
		result = metrics.ResultError
		return nil, nil, err
	}

	if s.bus != nil && payment.Counted() {
		_ = s.bus.Publish(ctx, PaymentApplied{
			FeeID:         fee.ID,
			PaymentID:     payment.ID,
			ReceiptNumber: payment.ReceiptNumber,
			Amount:        payment.Amount,
			BalanceDue:    fee.BalanceDue,
			FeeStatus:     fee.Status,
			OccurredAt:    s.clock.Now(),
		})
	}
	return fee, payment, nil
}

// SettlePayment transitions a pending authorization to completed and folds
// it into the ledger.
func (s *LedgerService) SettlePayment(ctx context.Context, feeID fees.FeeID, paymentID uuid.UUID) (*fees.StudentFee, *fees.Payment, error) {
	unlock := s.locks.acquire(feeID)
	defer unlock()

	fee, payment, err := s.mutate(ctx, feeID, func(*fees.StudentFee) (*fees.Payment, error) {
		payment, err := s.loadPayment(ctx, feeID, paymentID)
		if err != nil {
			return nil, err
		}
		if payment.Status != fees.PaymentStatusPending {
			return nil, fees.ErrInvalidPaymentState
		}
		payment.Status = fees.PaymentStatusCompleted
		return payment, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return fee, payment, nil
}

// RefundPayment reverses a completed payment. A refund may reopen a paid
// fee; it can never push total paid below zero.
func (s *LedgerService) RefundPayment(ctx context.Context, feeID fees.FeeID, paymentID uuid.UUID, reason string) (*fees.StudentFee, *fees.Payment, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObservePaymentRefund(result, time.Since(start))
	}()

	unlock := s.locks.acquire(feeID)
	defer unlock()

	fee, payment, err := s.mutate(ctx, feeID, func(fee *fees.StudentFee) (*fees.Payment, error) {
		payment, err := s.loadPayment(ctx, feeID, paymentID)
		if err != nil {
			return nil, err
		}
		if payment.Status != fees.PaymentStatusCompleted {
			return nil, fees.ErrInvalidPaymentState
		}
		if payment.Amount.GreaterThan(fee.TotalPaid) {
			return nil, fees.ErrRefundExceedsPaid
		}
		if err := payment.Refund(reason, s.clock.Now()); err != nil {
			return nil, err
		}
		return payment, nil
	})
	if err != nil {
		result = metrics.ResultError
		return nil, nil, err
	}

	if s.bus != nil {
		_ = s.bus.Publish(ctx, PaymentRefunded{
			FeeID:      fee.ID,
			PaymentID:  payment.ID,
			Amount:     payment.Amount,
			Reason:     reason,
			BalanceDue: fee.BalanceDue,
			FeeStatus:  fee.Status,
			OccurredAt: s.clock.Now(),
		})
	}
	return fee, payment, nil
}

// CancelPayment voids a pending authorization. It never touches totals:
// pending payments were never counted.
func (s *LedgerService) CancelPayment(ctx context.Context, feeID fees.FeeID, paymentID uuid.UUID) (*fees.StudentFee, *fees.Payment, error) {
	unlock := s.locks.acquire(feeID)
	defer unlock()

	fee, payment, err := s.mutate(ctx, feeID, func(*fees.StudentFee) (*fees.Payment, error) {
		payment, err := s.loadPayment(ctx, feeID, paymentID)
		if err != nil {
			return nil, err
		}
		if err := payment.Cancel(); err != nil {
			return nil, err
		}
		return payment, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return fee, payment, nil
}

// Waive marks a fee as administratively waived.
func (s *LedgerService) Waive(ctx context.Context, feeID fees.FeeID, reason string) (*fees.StudentFee, error) {
	unlock := s.locks.acquire(feeID)
	defer unlock()

	fee, err := s.loadFee(ctx, feeID)
	if err != nil {
		return nil, err
	}
	if err := fee.Waive(reason, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.saveWithRetry(ctx, fee); err != nil {
		return nil, err
	}
	return fee, nil
}

// ListFees returns fee snapshots for a school and academic year.
func (s *LedgerService) ListFees(ctx context.Context, schoolID, academicYear string) ([]*fees.StudentFee, error) {
	if caller := auth.SchoolIDFromContext(ctx); caller != "" && caller != schoolID {
		return nil, auth.ErrTenantMismatch
	}
	return s.feeRepo.ListBySchool(ctx, schoolID, academicYear)
}

// MarkOverdue sweeps a school's fees for the year and transitions those
// past due with a balance outstanding. It returns how many transitioned.
func (s *LedgerService) MarkOverdue(ctx context.Context, schoolID, academicYear string) (int, error) {
	list, err := s.feeRepo.ListBySchool(ctx, schoolID, academicYear)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	transitioned := 0
	for _, fee := range list {
		if fee.Status != fees.FeeStatusPending && fee.Status != fees.FeeStatusPartial {
			continue
		}
		if fee.DueDate.IsZero() || !now.After(fee.DueDate) {
			continue
		}
		unlock := s.locks.acquire(fee.ID)
		if _, _, err := s.mutate(ctx, fee.ID, func(*fees.StudentFee) (*fees.Payment, error) { return nil, nil }); err != nil {
			unlock()
			return transitioned, err
		}
		unlock()
		transitioned++
	}
	return transitioned, nil
}

// ledgerOp inspects the fee and returns the payment row the mutation
// wants persisted, without persisting it. The staged payment is written
// only after the recomputed fee saves, so a failed fee save leaves the
// payment ledger untouched.
type ledgerOp func(fee *fees.StudentFee) (*fees.Payment, error)

// mutate loads the fee, stages the op's payment, then recomputes and
// saves fee and payment in that order. On a version conflict it re-reads
// the authoritative state and retries the whole operation exactly once
// before surfacing ErrConcurrentModification. Re-running the op is safe
// because it has no side effects of its own.
func (s *LedgerService) mutate(ctx context.Context, feeID fees.FeeID, op ledgerOp) (*fees.StudentFee, *fees.Payment, error) {
	fee, payment, err := s.recomputeOnce(ctx, feeID, op)
	if err == nil || !errors.Is(err, fees.ErrConcurrentModification) {
		return fee, payment, err
	}
	metrics.ObserveLedgerConflict()
	return s.recomputeOnce(ctx, feeID, op)
}

func (s *LedgerService) recomputeOnce(ctx context.Context, feeID fees.FeeID, op ledgerOp) (*fees.StudentFee, *fees.Payment, error) {
	fee, err := s.loadFee(ctx, feeID)
	if err != nil {
		return nil, nil, err
	}
	var staged *fees.Payment
	if op != nil {
		if fee.Closed() {
			return nil, nil, fees.ErrFeeWaived
		}
		staged, err = op(fee)
		if err != nil {
			return nil, nil, err
		}
	}
	ledger, err := s.payments.ListByFee(ctx, feeID)
	if err != nil {
		return nil, nil, err
	}
	now := s.clock.Now()
	if err := fees.Recompute(fee, overlayLedger(ledger, staged), now); err != nil {
		return nil, nil, err
	}
	if err := s.feeRepo.Save(ctx, fee); err != nil {
		return nil, nil, err
	}
	if staged != nil {
		if err := s.payments.Save(ctx, staged); err != nil {
			// The fee already counted the staged payment. Put it back
			// on the persisted ledger before surfacing the error.
			if recErr := fees.Recompute(fee, ledger, now); recErr == nil {
				_ = s.feeRepo.Save(ctx, fee)
			}
			return nil, nil, err
		}
	}
	return fee, staged, nil
}

// overlayLedger views the persisted ledger with the staged payment
// applied, replacing its persisted row or appending it.
func overlayLedger(ledger []fees.Payment, staged *fees.Payment) []fees.Payment {
	if staged == nil {
		return ledger
	}
	view := make([]fees.Payment, 0, len(ledger)+1)
	replaced := false
	for _, p := range ledger {
		if p.ID == staged.ID {
			view = append(view, *staged)
			replaced = true
			continue
		}
		view = append(view, p)
	}
	if !replaced {
		view = append(view, *staged)
	}
	return view
}

func (s *LedgerService) loadFee(ctx context.Context, feeID fees.FeeID) (*fees.StudentFee, error) {
	fee, err := s.feeRepo.Get(ctx, feeID)
	if err != nil {
		return nil, err
	}
	if fee == nil {
		return nil, fees.ErrFeeNotFound
	}
	if schoolID := auth.SchoolIDFromContext(ctx); schoolID != "" && fee.SchoolID != schoolID {
		return nil, auth.ErrTenantMismatch
	}
	return fee, nil
}

func (s *LedgerService) loadPayment(ctx context.Context, feeID fees.FeeID, paymentID uuid.UUID) (*fees.Payment, error) {
	payment, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.FeeID != feeID {
		return nil, fees.ErrPaymentNotFound
	}
	return payment, nil
}

// saveWithRetry mirrors the resolver's conflict handling for direct saves.
func (s *LedgerService) saveWithRetry(ctx context.Context, fee *fees.StudentFee) error {
	err := s.feeRepo.Save(ctx, fee)
	if err == nil || !errors.Is(err, fees.ErrConcurrentModification) {
		return err
	}
	metrics.ObserveLedgerConflict()
	current, getErr := s.feeRepo.Get(ctx, fee.ID)
	if getErr != nil {
		return getErr
	}
	if current != nil {
		fee.Version = current.Version
	}
	return s.feeRepo.Save(ctx, fee)
}
