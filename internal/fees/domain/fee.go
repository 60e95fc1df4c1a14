package fees

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentFrequency selects which base tuition amount applies.
type PaymentFrequency string

// Supported payment frequencies.
const (
	FrequencyYearly  PaymentFrequency = "yearly"
	FrequencyMonthly PaymentFrequency = "monthly"
	FrequencyWeekly  PaymentFrequency = "weekly"
)

// NormalizeFrequency validates and normalizes a frequency string.
func NormalizeFrequency(value string) (PaymentFrequency, bool) {
	switch PaymentFrequency(value) {
	case FrequencyYearly, FrequencyMonthly, FrequencyWeekly:
		return PaymentFrequency(value), true
	default:
		return "", false
	}
}

// Fee lifecycle states.
const (
	FeeStatusPending = "pending"
	FeeStatusPartial = "partial"
	FeeStatusPaid    = "paid"
	FeeStatusOverdue = "overdue"
	FeeStatusWaived  = "waived"
)

// FeeID is the identity of a student fee record.
type FeeID string

// BuildFeeID builds the fee identity from school, student and year.
// One fee record exists per (school, student, academic year).
func BuildFeeID(schoolID, studentID, academicYear string) (FeeID, error) {
	if schoolID == "" {
		return "", ErrStructureMismatch
	}
	if studentID == "" || academicYear == "" {
		return "", ErrFeeNotFound
	}
	return FeeID(schoolID + "|" + studentID + "|" + academicYear), nil
}

// StudentFee is the resolved fee snapshot for a student and academic year.
// The resolver owns every field up to TotalAmountDue; the ledger owns
// TotalPaid, BalanceDue and Status.
type StudentFee struct {
	ID           FeeID     `json:"id"`
	SchoolID     string    `json:"school_id"`
	StudentID    string    `json:"student_id"`
	GradeLevel   int       `json:"grade_level"`
	AcademicYear string    `json:"academic_year"`
	StructureID  string    `json:"structure_id"`

	Frequency PaymentFrequency `json:"payment_frequency"`

	BaseTuitionAmount  decimal.Decimal `json:"base_tuition_amount"`
	ActivityFeesAmount decimal.Decimal `json:"activity_fees_amount"`
	MaterialFeesAmount decimal.Decimal `json:"material_fees_amount"`
	OtherFeesAmount    decimal.Decimal `json:"other_fees_amount"`

	PaymentDiscountPercent decimal.Decimal `json:"payment_discount_percent"`
	PaymentDiscountAmount  decimal.Decimal `json:"payment_discount_amount"`

	SiblingOrder           int             `json:"sibling_order"`
	SiblingDiscountPercent decimal.Decimal `json:"sibling_discount_percent"`
	SiblingDiscountAmount  decimal.Decimal `json:"sibling_discount_amount"`

	BursaryID     string          `json:"bursary_id,omitempty"`
	BursaryAmount decimal.Decimal `json:"bursary_amount"`

	TotalBeforeDiscounts decimal.Decimal `json:"total_before_discounts"`
	TotalDiscounts       decimal.Decimal `json:"total_discounts"`
	TotalAmountDue       decimal.Decimal `json:"total_amount_due"`

	TotalPaid  decimal.Decimal `json:"total_paid"`
	BalanceDue decimal.Decimal `json:"balance_due"`
	Status     string          `json:"status"`

	DueDate     time.Time `json:"due_date"`
	WaiveReason string    `json:"waive_reason,omitempty"`
	WaivedAt    time.Time `json:"waived_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version guards concurrent saves. Repositories reject a save whose
	// version no longer matches the stored record.
	Version int `json:"-"`
}

// Clone returns a detached copy.
func (f *StudentFee) Clone() *StudentFee {
	if f == nil {
		return nil
	}
	copy := *f
	return &copy
}

// Closed reports whether the fee accepts no further ledger mutation.
func (f *StudentFee) Closed() bool {
	return f.Status == FeeStatusWaived
}

// Waive marks the fee as administratively waived. Paid fees cannot be
// waived.
func (f *StudentFee) Waive(reason string, at time.Time) error {
	if f.Status == FeeStatusPaid {
		return ErrInvalidPaymentState
	}
	if f.Status == FeeStatusWaived {
		return ErrFeeWaived
	}
	f.Status = FeeStatusWaived
	f.WaiveReason = reason
	f.WaivedAt = at
	f.UpdatedAt = at
	return nil
}
