package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeStructure is the per-grade, per-year master pricing configuration.
// Exactly one active structure exists per (school, grade, year).
type FeeStructure struct {
	ID           string
	SchoolID     string
	GradeLevel   int
	AcademicYear string

	// Base tuition per payment frequency. Each amount is configured
	// independently; monthly is not yearly/12.
	YearlyAmount  decimal.Decimal
	MonthlyAmount decimal.Decimal
	WeeklyAmount  decimal.Decimal

	// Discount percent granted for choosing a frequency, 0-100.
	YearlyDiscountPercent  decimal.Decimal
	MonthlyDiscountPercent decimal.Decimal
	WeeklyDiscountPercent  decimal.Decimal

	// Sibling-tier discount percents, 0-100. Tier is selected by the
	// student's sibling order; order 1 always maps to zero.
	Sibling2DiscountPercent     decimal.Decimal
	Sibling3DiscountPercent     decimal.Decimal
	Sibling4PlusDiscountPercent decimal.Decimal

	// ApplySiblingToAll applies the tier discount to every child in the
	// family instead of only children after the eldest.
	ApplySiblingToAll bool

	// Non-tuition components charged alongside base tuition.
	ActivityFeesAmount decimal.Decimal
	MaterialFeesAmount decimal.Decimal
	OtherFeesAmount    decimal.Decimal

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks fee structure invariants.
func (s FeeStructure) Validate() error {
	if s.SchoolID == "" {
		return ErrEmptySchoolID
	}
	if s.GradeLevel < 0 {
		return ErrInvalidGrade
	}
	if s.AcademicYear == "" {
		return ErrEmptyAcademicYear
	}
	for _, amount := range []decimal.Decimal{s.YearlyAmount, s.MonthlyAmount, s.WeeklyAmount} {
		if !amount.IsPositive() {
			return ErrNonPositiveAmount
		}
	}
	for _, component := range []decimal.Decimal{s.ActivityFeesAmount, s.MaterialFeesAmount, s.OtherFeesAmount} {
		if component.IsNegative() {
			return ErrNegativeComponent
		}
	}
	for _, pct := range []decimal.Decimal{
		s.YearlyDiscountPercent, s.MonthlyDiscountPercent, s.WeeklyDiscountPercent,
		s.Sibling2DiscountPercent, s.Sibling3DiscountPercent, s.Sibling4PlusDiscountPercent,
	} {
		if !ValidPercent(pct) {
			return ErrPercentOutOfRange
		}
	}
	return nil
}

// ValidPercent reports whether pct lies in [0,100].
func ValidPercent(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(decimal.NewFromInt(100))
}
