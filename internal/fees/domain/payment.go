package fees

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment lifecycle states. Payments are never deleted, only transitioned.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
	PaymentStatusCancelled = "cancelled"
)

// receiptPattern matches the RCPT-YYYY-NNNN receipt convention.
var receiptPattern = regexp.MustCompile(`^RCPT-\d{4}-\d{4,}$`)

// ValidateReceiptNumber checks the caller-supplied receipt number format.
func ValidateReceiptNumber(receipt string) error {
	if !receiptPattern.MatchString(receipt) {
		return ErrInvalidReceiptNumber
	}
	return nil
}

// Payment is one transaction against a student fee.
type Payment struct {
	ID            uuid.UUID       `json:"id"`
	FeeID         FeeID           `json:"fee_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"payment_date"`
	PaymentMethod string          `json:"payment_method"`
	ReceiptNumber string          `json:"receipt_number"`
	Status        string          `json:"status"`
	RefundReason  string          `json:"refund_reason,omitempty"`
	RefundedAt    time.Time       `json:"refunded_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Validate checks payment invariants.
func (p Payment) Validate() error {
	if !p.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if err := ValidateReceiptNumber(p.ReceiptNumber); err != nil {
		return err
	}
	switch p.Status {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed,
		PaymentStatusRefunded, PaymentStatusCancelled:
		return nil
	default:
		return ErrInvalidPaymentState
	}
}

// Refund transitions a completed payment to refunded.
func (p *Payment) Refund(reason string, at time.Time) error {
	if p.Status != PaymentStatusCompleted {
		return ErrInvalidPaymentState
	}
	p.Status = PaymentStatusRefunded
	p.RefundReason = reason
	p.RefundedAt = at
	return nil
}

// Cancel voids a pending payment. Settled payments must be refunded
// instead.
func (p *Payment) Cancel() error {
	if p.Status != PaymentStatusPending {
		return ErrInvalidPaymentState
	}
	p.Status = PaymentStatusCancelled
	return nil
}

// Counted reports whether the payment contributes to total paid.
func (p Payment) Counted() bool {
	return p.Status == PaymentStatusCompleted
}
