package fees

import (
	"time"

	"github.com/shopspring/decimal"

	catalog "schoolfees-cloud/internal/catalog/domain"
)

// Student carries the already-resolved enrollment data the resolver needs.
// Sibling order is the student's rank among currently enrolled siblings,
// 1 being the eldest or an only child.
type Student struct {
	ID           string
	SchoolID     string
	GradeLevel   int
	AcademicYear string
}

// Resolve computes the definitive student fee snapshot from a fee
// structure, a chosen payment frequency, the student's sibling order and
// an optional bursary. It is a pure function of its inputs; every amount
// is re-derived from scratch, never patched incrementally.
//
// The discount order is fixed: the frequency discount applies to the
// tuition component only, the sibling discount applies to the full
// pre-discount total, and the bursary applies last to what remains.
func Resolve(structure catalog.FeeStructure, student Student, frequency PaymentFrequency, siblingOrder int, bursary *catalog.Bursary, now time.Time) (*StudentFee, error) {
	if err := structure.Validate(); err != nil {
		return nil, err
	}
	if structure.SchoolID != student.SchoolID ||
		structure.GradeLevel != student.GradeLevel ||
		structure.AcademicYear != student.AcademicYear {
		return nil, ErrStructureMismatch
	}
	if siblingOrder < 1 {
		return nil, ErrInvalidSiblingOrder
	}

	baseTuition, discountPercent, err := frequencyAmounts(structure, frequency)
	if err != nil {
		return nil, err
	}

	totalBefore := RoundMoney(baseTuition.
		Add(structure.ActivityFeesAmount).
		Add(structure.MaterialFeesAmount).
		Add(structure.OtherFeesAmount))

	paymentDiscount := PercentOf(baseTuition, discountPercent)

	siblingPercent := siblingTierPercent(structure, siblingOrder)
	siblingDiscount := PercentOf(totalBefore, siblingPercent)

	totalDiscounts := RoundMoney(paymentDiscount.Add(siblingDiscount))
	remaining := FloorZero(totalBefore.Sub(totalDiscounts))

	bursaryAmount := decimal.Zero
	bursaryID := ""
	if bursary != nil {
		if err := bursary.Validate(); err != nil {
			return nil, err
		}
		if !bursary.EligibleFor(student.GradeLevel) {
			return nil, ErrBursaryIneligible
		}
		// Capacity is not checked here. The award ledger owns it: a
		// student already holding a slot must re-resolve cleanly even
		// when the bursary is full.
		bursaryAmount = coverageAmount(*bursary, remaining)
		bursaryID = bursary.ID
	}

	totalDue := FloorZero(remaining.Sub(bursaryAmount))

	id, err := BuildFeeID(student.SchoolID, student.ID, student.AcademicYear)
	if err != nil {
		return nil, err
	}

	return &StudentFee{
		ID:           id,
		SchoolID:     student.SchoolID,
		StudentID:    student.ID,
		GradeLevel:   student.GradeLevel,
		AcademicYear: student.AcademicYear,
		StructureID:  structure.ID,

		Frequency: frequency,

		BaseTuitionAmount:  RoundMoney(baseTuition),
		ActivityFeesAmount: RoundMoney(structure.ActivityFeesAmount),
		MaterialFeesAmount: RoundMoney(structure.MaterialFeesAmount),
		OtherFeesAmount:    RoundMoney(structure.OtherFeesAmount),

		PaymentDiscountPercent: discountPercent,
		PaymentDiscountAmount:  paymentDiscount,

		SiblingOrder:           siblingOrder,
		SiblingDiscountPercent: siblingPercent,
		SiblingDiscountAmount:  siblingDiscount,

		BursaryID:     bursaryID,
		BursaryAmount: bursaryAmount,

		TotalBeforeDiscounts: totalBefore,
		TotalDiscounts:       totalDiscounts,
		TotalAmountDue:       totalDue,

		TotalPaid:  decimal.Zero,
		BalanceDue: totalDue,
		Status:     FeeStatusPending,

		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func frequencyAmounts(structure catalog.FeeStructure, frequency PaymentFrequency) (decimal.Decimal, decimal.Decimal, error) {
	switch frequency {
	case FrequencyYearly:
		return structure.YearlyAmount, structure.YearlyDiscountPercent, nil
	case FrequencyMonthly:
		return structure.MonthlyAmount, structure.MonthlyDiscountPercent, nil
	case FrequencyWeekly:
		return structure.WeeklyAmount, structure.WeeklyDiscountPercent, nil
	default:
		return decimal.Zero, decimal.Zero, ErrInvalidFrequency
	}
}

// siblingTierPercent maps sibling order to a tier percent. Order 1 maps to
// zero regardless of configuration: when ApplySiblingToAll is false the
// eldest is excluded by rule, and when true no tier exists below order 2.
func siblingTierPercent(structure catalog.FeeStructure, siblingOrder int) decimal.Decimal {
	switch {
	case siblingOrder <= 1:
		return decimal.Zero
	case siblingOrder == 2:
		return structure.Sibling2DiscountPercent
	case siblingOrder == 3:
		return structure.Sibling3DiscountPercent
	default:
		return structure.Sibling4PlusDiscountPercent
	}
}

// coverageAmount computes the bursary amount against the post-discount
// remainder. A bursary can never push the amount due below zero.
func coverageAmount(bursary catalog.Bursary, remaining decimal.Decimal) decimal.Decimal {
	switch bursary.CoverageType {
	case catalog.CoveragePercentage:
		amount := PercentOf(remaining, bursary.CoverageValue)
		return CapAt(amount, bursary.MaxCoverageAmount)
	case catalog.CoverageFixedAmount:
		return decimal.Min(RoundMoney(bursary.CoverageValue), remaining)
	default:
		return decimal.Zero
	}
}
