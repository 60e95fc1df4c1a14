package fees

import (
	"context"

	"github.com/google/uuid"
)

// StudentFeeRepository persists student fee snapshots.
type StudentFeeRepository interface {
	Get(ctx context.Context, id FeeID) (*StudentFee, error)
	ListBySchool(ctx context.Context, schoolID, academicYear string) ([]*StudentFee, error)
	Save(ctx context.Context, fee *StudentFee) error
}

// PaymentRepository persists the append-only payment ledger.
type PaymentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListByFee(ctx context.Context, feeID FeeID) ([]Payment, error)
	// FindByReceipt returns the payment carrying a receipt number, or nil.
	// Receipt numbers are globally unique across fees.
	FindByReceipt(ctx context.Context, receipt string) (*Payment, error)
	Save(ctx context.Context, payment *Payment) error
}
