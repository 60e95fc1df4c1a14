package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"schoolfees-cloud/internal/fees/domain"
)

// StudentFeeRepository is an in-memory repository for student fees.
type StudentFeeRepository struct {
	mu   sync.RWMutex
	data map[fees.FeeID]*fees.StudentFee
}

// NewStudentFeeRepository constructs a repository.
func NewStudentFeeRepository() *StudentFeeRepository {
	return &StudentFeeRepository{data: make(map[fees.FeeID]*fees.StudentFee)}
}

// Get loads a fee snapshot.
func (r *StudentFeeRepository) Get(ctx context.Context, id fees.FeeID) (*fees.StudentFee, error) {
	_ = ctx
	r.mu.RLock()
	fee := r.data[id]
	r.mu.RUnlock()
	if fee == nil {
		return nil, nil
	}
	return fee.Clone(), nil
}

// ListBySchool returns fee snapshots for a school and academic year.
func (r *StudentFeeRepository) ListBySchool(ctx context.Context, schoolID, academicYear string) ([]*fees.StudentFee, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]*fees.StudentFee, 0)
	for _, fee := range r.data {
		if fee.SchoolID == schoolID && fee.AcademicYear == academicYear {
			out = append(out, fee.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save persists a fee snapshot. The incoming version must match the
// stored record or the save is rejected.
func (r *StudentFeeRepository) Save(ctx context.Context, fee *fees.StudentFee) error {
	_ = ctx
	if fee == nil {
		return fees.ErrNilFee
	}
	if fee.ID == "" {
		return fees.ErrFeeNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.data[fee.ID]; ok && existing.Version != fee.Version {
		return fees.ErrConcurrentModification
	}
	copy := fee.Clone()
	copy.Version++
	r.data[fee.ID] = copy
	fee.Version = copy.Version
	return nil
}

// PaymentRepository is an in-memory append-only payment ledger.
type PaymentRepository struct {
	mu        sync.RWMutex
	data      map[uuid.UUID]fees.Payment
	byReceipt map[string]uuid.UUID
}

// NewPaymentRepository constructs a repository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		data:      make(map[uuid.UUID]fees.Payment),
		byReceipt: make(map[string]uuid.UUID),
	}
}

// Get loads a payment.
func (r *PaymentRepository) Get(ctx context.Context, id uuid.UUID) (*fees.Payment, error) {
	_ = ctx
	r.mu.RLock()
	payment, ok := r.data[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &payment, nil
}

// ListByFee returns payments for a fee ordered by creation time.
func (r *PaymentRepository) ListByFee(ctx context.Context, feeID fees.FeeID) ([]fees.Payment, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]fees.Payment, 0)
	for _, payment := range r.data {
		if payment.FeeID == feeID {
			out = append(out, payment)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// FindByReceipt looks up a payment by receipt number.
func (r *PaymentRepository) FindByReceipt(ctx context.Context, receipt string) (*fees.Payment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byReceipt[receipt]
	if !ok {
		return nil, nil
	}
	payment := r.data[id]
	return &payment, nil
}

// Save inserts or updates a payment. A receipt number may only ever map
// to one payment.
func (r *PaymentRepository) Save(ctx context.Context, payment *fees.Payment) error {
	_ = ctx
	if payment == nil {
		return fees.ErrPaymentNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byReceipt[payment.ReceiptNumber]; ok && existing != payment.ID {
		return fees.ErrDuplicateReceipt
	}
	r.data[payment.ID] = *payment
	r.byReceipt[payment.ReceiptNumber] = payment.ID
	return nil
}
