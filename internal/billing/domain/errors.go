package billing

import "residential-cloud/internal/apperr"

var (
	// ErrBillNotFound is returned when a bill does not exist.
	ErrBillNotFound = apperr.New(apperr.KindNotFound, "billing: bill not found")
	// ErrFeeNotFound is returned when a fee structure does not exist.
	ErrFeeNotFound = apperr.New(apperr.KindNotFound, "billing: fee not found")
	// ErrBillAlreadyPaid is returned when a payment targets a paid bill.
	ErrBillAlreadyPaid = apperr.New(apperr.KindConflict, "billing: bill already paid")
	// ErrDuplicateBill is returned when a bill already exists for a property and period.
	ErrDuplicateBill = apperr.New(apperr.KindConflict, "billing: bill already exists for property and period")
	// ErrFeeInactive is returned when amending a fee that was already superseded.
	ErrFeeInactive = apperr.New(apperr.KindConflict, "billing: fee is not active")
	// ErrFormulaUnavailable is returned when a formula fee is used without an evaluator.
	ErrFormulaUnavailable = apperr.New(apperr.KindInternal, "billing: formula evaluator not configured")
)
