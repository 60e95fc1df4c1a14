package memory

import (
	"context"
	"sync"

	"schoolfees-cloud/internal/catalog/domain"
)

// FeeStructureRepository is an in-memory repository for fee structures.
type FeeStructureRepository struct {
	mu   sync.RWMutex
	data map[string]*catalog.FeeStructure
}

// NewFeeStructureRepository constructs a repository.
func NewFeeStructureRepository() *FeeStructureRepository {
	return &FeeStructureRepository{data: make(map[string]*catalog.FeeStructure)}
}

// Get loads a structure by id.
func (r *FeeStructureRepository) Get(ctx context.Context, id string) (*catalog.FeeStructure, error) {
	_ = ctx
	r.mu.RLock()
	structure := r.data[id]
	r.mu.RUnlock()
	if structure == nil {
		return nil, nil
	}
	copy := *structure
	return &copy, nil
}

// FindActive returns the active structure for (school, grade, year).
func (r *FeeStructureRepository) FindActive(ctx context.Context, schoolID string, grade int, academicYear string) (*catalog.FeeStructure, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, structure := range r.data {
		if structure.Active && structure.SchoolID == schoolID &&
			structure.GradeLevel == grade && structure.AcademicYear == academicYear {
			copy := *structure
			return &copy, nil
		}
	}
	return nil, nil
}

// Save persists a structure. An activated structure deactivates any
// other active structure for the same (school, grade, year).
func (r *FeeStructureRepository) Save(ctx context.Context, structure *catalog.FeeStructure) error {
	_ = ctx
	if structure == nil {
		return catalog.ErrNilStructure
	}
	if err := structure.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if structure.Active {
		for id, other := range r.data {
			if id != structure.ID && other.Active &&
				other.SchoolID == structure.SchoolID &&
				other.GradeLevel == structure.GradeLevel &&
				other.AcademicYear == structure.AcademicYear {
				deactivated := *other
				deactivated.Active = false
				r.data[id] = &deactivated
			}
		}
	}
	copy := *structure
	r.data[structure.ID] = &copy
	return nil
}

type awardKey struct {
	bursaryID    string
	studentID    string
	academicYear string
}

// BursaryRepository is an in-memory repository for bursaries and
// their award ledger.
type BursaryRepository struct {
	mu     sync.RWMutex
	data   map[string]*catalog.Bursary
	awards map[awardKey]struct{}
}

// NewBursaryRepository constructs a repository.
func NewBursaryRepository() *BursaryRepository {
	return &BursaryRepository{
		data:   make(map[string]*catalog.Bursary),
		awards: make(map[awardKey]struct{}),
	}
}

// Get loads a bursary by id.
func (r *BursaryRepository) Get(ctx context.Context, id string) (*catalog.Bursary, error) {
	_ = ctx
	r.mu.RLock()
	bursary := r.data[id]
	r.mu.RUnlock()
	if bursary == nil {
		return nil, nil
	}
	copy := *bursary
	return &copy, nil
}

// Save persists a bursary.
func (r *BursaryRepository) Save(ctx context.Context, bursary *catalog.Bursary) error {
	_ = ctx
	if bursary == nil {
		return catalog.ErrNilBursary
	}
	if err := bursary.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	copy := *bursary
	r.data[bursary.ID] = &copy
	r.mu.Unlock()
	return nil
}

// TryAward records an award once per (bursary, student, year).
func (r *BursaryRepository) TryAward(ctx context.Context, bursaryID, studentID, academicYear string) (bool, error) {
	_ = ctx
	key := awardKey{bursaryID: bursaryID, studentID: studentID, academicYear: academicYear}

	r.mu.Lock()
	defer r.mu.Unlock()
	bursary := r.data[bursaryID]
	if bursary == nil {
		return false, catalog.ErrBursaryNotFound
	}
	if _, ok := r.awards[key]; ok {
		return false, nil
	}
	if !bursary.HasCapacity() {
		return false, catalog.ErrBursaryExhausted
	}
	r.awards[key] = struct{}{}
	bursary.CurrentRecipients++
	return true, nil
}
