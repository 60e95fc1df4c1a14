package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bursary types.
const (
	BursaryTypeMerit    = "merit"
	BursaryTypeNeed     = "need"
	BursaryTypeSports   = "sports"
	BursaryTypeAcademic = "academic"
	BursaryTypeOther    = "other"
)

// Coverage types.
const (
	CoveragePercentage  = "percentage"
	CoverageFixedAmount = "fixed_amount"
)

// Bursary is a financial-aid program reducing a student's amount due.
type Bursary struct {
	ID           string
	SchoolID     string
	Name         string
	BursaryType  string
	CoverageType string

	// CoverageValue is a percent for percentage coverage or a monetary
	// amount for fixed coverage. Always positive.
	CoverageValue decimal.Decimal

	// MaxCoverageAmount caps percentage coverage. Zero means no cap and
	// it is ignored for fixed coverage.
	MaxCoverageAmount decimal.Decimal

	EligibleGrades []int

	// MaxRecipients limits awards. Zero means unlimited.
	MaxRecipients     int
	CurrentRecipients int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks bursary invariants.
func (b Bursary) Validate() error {
	if b.SchoolID == "" {
		return ErrEmptySchoolID
	}
	switch b.BursaryType {
	case BursaryTypeMerit, BursaryTypeNeed, BursaryTypeSports, BursaryTypeAcademic, BursaryTypeOther:
	default:
		return ErrInvalidBursaryType
	}
	switch b.CoverageType {
	case CoveragePercentage, CoverageFixedAmount:
	default:
		return ErrInvalidCoverageType
	}
	if !b.CoverageValue.IsPositive() {
		return ErrNonPositiveAmount
	}
	if b.CoverageType == CoveragePercentage && !ValidPercent(b.CoverageValue) {
		return ErrPercentOutOfRange
	}
	if b.MaxCoverageAmount.IsNegative() {
		return ErrNegativeComponent
	}
	if b.MaxRecipients < 0 || b.CurrentRecipients < 0 {
		return ErrInvalidRecipients
	}
	if b.MaxRecipients > 0 && b.CurrentRecipients > b.MaxRecipients {
		return ErrInvalidRecipients
	}
	return nil
}

// EligibleFor reports whether the bursary covers a grade level.
func (b Bursary) EligibleFor(grade int) bool {
	for _, g := range b.EligibleGrades {
		if g == grade {
			return true
		}
	}
	return false
}

// HasCapacity reports whether another recipient may be awarded.
func (b Bursary) HasCapacity() bool {
	return b.MaxRecipients == 0 || b.CurrentRecipients < b.MaxRecipients
}
