package catalog

import "context"

// FeeStructureRepository persists fee structures.
type FeeStructureRepository interface {
	Get(ctx context.Context, id string) (*FeeStructure, error)
	// FindActive returns the single active structure for (school, grade, year),
	// or nil when none exists.
	FindActive(ctx context.Context, schoolID string, grade int, academicYear string) (*FeeStructure, error)
	Save(ctx context.Context, structure *FeeStructure) error
}

// BursaryRepository persists bursaries and their award ledger.
type BursaryRepository interface {
	Get(ctx context.Context, id string) (*Bursary, error)
	Save(ctx context.Context, bursary *Bursary) error
	// TryAward records an award for (bursary, student, year) and increments
	// the recipient counter, atomically per pair. It returns false without
	// incrementing when the student is already a recipient for that year,
	// and ErrBursaryExhausted when the recipient cap is reached.
	TryAward(ctx context.Context, bursaryID, studentID, academicYear string) (bool, error)
}
