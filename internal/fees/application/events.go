package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	fees "schoolfees-cloud/internal/fees/domain"
)

// FeeResolved is emitted when a student fee snapshot is created or
// recalculated.
type FeeResolved struct {
	FeeID          fees.FeeID
	StudentID      string
	AcademicYear   string
	TotalAmountDue decimal.Decimal
	Recalculated   bool
	OccurredAt     time.Time
}

// PaymentApplied is emitted after a completed payment is folded into the
// ledger.
type PaymentApplied struct {
	FeeID         fees.FeeID
	PaymentID     uuid.UUID
	ReceiptNumber string
	Amount        decimal.Decimal
	BalanceDue    decimal.Decimal
	FeeStatus     string
	OccurredAt    time.Time
}

// PaymentRefunded is emitted after a refund reopens or reduces the ledger.
type PaymentRefunded struct {
	FeeID      fees.FeeID
	PaymentID  uuid.UUID
	Amount     decimal.Decimal
	Reason     string
	BalanceDue decimal.Decimal
	FeeStatus  string
	OccurredAt time.Time
}
