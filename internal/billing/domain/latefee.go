package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"residential-cloud/internal/apperr"
)

// DefaultMonthlyRate is the late-fee interest rate per month.
var DefaultMonthlyRate = decimal.RequireFromString("0.03")

var daysPerMonth = decimal.NewFromInt(30)

// LateFee returns the interest owed on originalAmount after daysLate days at
// monthlyRate, accrued daily as monthlyRate/30 and rounded half away from
// zero to cents. No fee accrues when daysLate <= 0.
func LateFee(originalAmount decimal.Decimal, daysLate int, monthlyRate decimal.Decimal) (decimal.Decimal, error) {
	if daysLate <= 0 {
		return decimal.Zero, nil
	}
	if originalAmount.IsNegative() {
		return decimal.Zero, apperr.Validation("originalAmount", "billing: original amount must not be negative")
	}
	if monthlyRate.IsNegative() {
		return decimal.Zero, apperr.Validation("monthlyRate", "billing: monthly rate must not be negative")
	}
	// multiply before dividing so the daily rate is not truncated
	fee := originalAmount.Mul(monthlyRate).Mul(decimal.NewFromInt(int64(daysLate))).Div(daysPerMonth)
	return fee.Round(2), nil
}

// DaysLate counts whole calendar days from due to asOf, using due's location
// for both dates. Payments on or before the due date are not late.
func DaysLate(due, asOf time.Time) int {
	loc := due.Location()
	asOf = asOf.In(loc)
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	asOfDay := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	days := int(asOfDay.Sub(dueDay) / (24 * time.Hour))
	if days < 0 {
		return 0
	}
	return days
}
