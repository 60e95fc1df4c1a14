package catalog

import "errors"

var (
	// ErrEmptySchoolID is returned when school id is empty.
	ErrEmptySchoolID = errors.New("catalog: empty school id")
	// ErrEmptyAcademicYear is returned when academic year is empty.
	ErrEmptyAcademicYear = errors.New("catalog: empty academic year")
	// ErrInvalidGrade is returned when grade level is negative.
	ErrInvalidGrade = errors.New("catalog: invalid grade level")
	// ErrNonPositiveAmount is returned when a required amount is not positive.
	ErrNonPositiveAmount = errors.New("catalog: amount must be positive")
	// ErrNegativeComponent is returned when an optional amount is negative.
	ErrNegativeComponent = errors.New("catalog: negative amount")
	// ErrPercentOutOfRange is returned when a percent is outside [0,100].
	ErrPercentOutOfRange = errors.New("catalog: percent out of range")
	// ErrInvalidBursaryType is returned for unknown bursary types.
	ErrInvalidBursaryType = errors.New("catalog: invalid bursary type")
	// ErrInvalidCoverageType is returned for unknown coverage types.
	ErrInvalidCoverageType = errors.New("catalog: invalid coverage type")
	// ErrInvalidRecipients is returned when recipient counters are inconsistent.
	ErrInvalidRecipients = errors.New("catalog: invalid recipient counts")
	// ErrStructureNotFound is returned when a fee structure is not found.
	ErrStructureNotFound = errors.New("catalog: fee structure not found")
	// ErrBursaryNotFound is returned when a bursary is not found.
	ErrBursaryNotFound = errors.New("catalog: bursary not found")
	// ErrBursaryExhausted is returned when awarding past recipient capacity.
	ErrBursaryExhausted = errors.New("catalog: bursary capacity exhausted")
	// ErrNilStructure is returned when persisting a nil structure.
	ErrNilStructure = errors.New("catalog: nil fee structure")
	// ErrNilBursary is returned when persisting a nil bursary.
	ErrNilBursary = errors.New("catalog: nil bursary")
)
