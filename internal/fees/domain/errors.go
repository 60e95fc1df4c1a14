package fees

import "errors"

var (
	// ErrStructureMismatch is returned when a fee structure does not match
	// the student's school, grade or academic year.
	ErrStructureMismatch = errors.New("fees: fee structure mismatch")
	// ErrInvalidFrequency is returned for a payment frequency outside the
	// structure's supported set.
	ErrInvalidFrequency = errors.New("fees: invalid payment frequency")
	// ErrInvalidSiblingOrder is returned when sibling order is below 1.
	ErrInvalidSiblingOrder = errors.New("fees: invalid sibling order")
	// ErrBursaryIneligible is returned when the bursary does not cover the
	// student's grade.
	ErrBursaryIneligible = errors.New("fees: bursary ineligible for grade")
	// ErrBursaryCapacityExceeded is returned when the bursary has no
	// remaining recipient capacity.
	ErrBursaryCapacityExceeded = errors.New("fees: bursary capacity exceeded")
	// ErrRefundExceedsPaid is returned when a refund would push total paid
	// below zero.
	ErrRefundExceedsPaid = errors.New("fees: refund exceeds total paid")
	// ErrInvalidPaymentState is returned when a payment is not in a state
	// valid for the requested transition.
	ErrInvalidPaymentState = errors.New("fees: invalid payment state")
	// ErrDuplicateReceipt is returned when a receipt number is reused.
	ErrDuplicateReceipt = errors.New("fees: duplicate receipt number")
	// ErrConcurrentModification is returned when a ledger mutation conflicts
	// twice in a row.
	ErrConcurrentModification = errors.New("fees: concurrent modification")
	// ErrNonPositiveAmount is returned when a payment amount is not positive.
	ErrNonPositiveAmount = errors.New("fees: amount must be positive")
	// ErrInvalidReceiptNumber is returned for malformed receipt numbers.
	ErrInvalidReceiptNumber = errors.New("fees: invalid receipt number")
	// ErrFeeNotFound is returned when a student fee is not found.
	ErrFeeNotFound = errors.New("fees: student fee not found")
	// ErrPaymentNotFound is returned when a payment is not found.
	ErrPaymentNotFound = errors.New("fees: payment not found")
	// ErrFeeWaived is returned when mutating a waived fee.
	ErrFeeWaived = errors.New("fees: fee is waived")
	// ErrNilFee is returned when saving a nil fee.
	ErrNilFee = errors.New("fees: nil student fee")
)
