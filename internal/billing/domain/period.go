package billing

import (
	"fmt"
	"time"

	"residential-cloud/internal/apperr"
)

const periodLayout = "2006-01"

// BillingPeriod is a calendar month. StartDate is the first day at midnight,
// EndDate the last day at midnight, both in the period's location.
type BillingPeriod struct {
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// CurrentPeriod returns the period containing now.
func CurrentPeriod(now time.Time) BillingPeriod {
	return periodOf(now.Year(), now.Month(), now.Location())
}

// NewBillingPeriod builds the period for year and month (1-12) in UTC.
func NewBillingPeriod(year, month int) (BillingPeriod, error) {
	if year < 1 || year > 9999 {
		return BillingPeriod{}, apperr.Validation("year", "billing: year out of range")
	}
	if month < 1 || month > 12 {
		return BillingPeriod{}, apperr.Validation("month", "billing: month must be between 1 and 12")
	}
	return periodOf(year, time.Month(month), time.UTC), nil
}

// ParsePeriod parses a YYYY-MM period string.
func ParsePeriod(value string) (BillingPeriod, error) {
	t, err := time.Parse(periodLayout, value)
	if err != nil {
		return BillingPeriod{}, apperr.Validation("period", "billing: period must be YYYY-MM")
	}
	return periodOf(t.Year(), t.Month(), time.UTC), nil
}

func periodOf(year int, month time.Month, loc *time.Location) BillingPeriod {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	// day 0 of the next month is the last day of this one
	end := time.Date(year, month+1, 0, 0, 0, 0, 0, loc)
	return BillingPeriod{
		Year:      start.Year(),
		Month:     int(start.Month()),
		StartDate: start,
		EndDate:   end,
	}
}

// IsZero reports whether the period is unset.
func (p BillingPeriod) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// String formats the period as YYYY-MM.
func (p BillingPeriod) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Key returns the period as a sortable YYYYMM integer.
func (p BillingPeriod) Key() int {
	return p.Year*100 + p.Month
}

// Next returns the following period.
func (p BillingPeriod) Next() BillingPeriod {
	return periodOf(p.Year, time.Month(p.Month+1), p.StartDate.Location())
}

// Contains reports whether t falls inside the period.
func (p BillingPeriod) Contains(t time.Time) bool {
	end := p.EndDate.AddDate(0, 0, 1)
	return !t.Before(p.StartDate) && t.Before(end)
}

// DueDate returns the given day of the month following the period, clamped
// to that month's length.
func (p BillingPeriod) DueDate(day int) time.Time {
	next := p.Next()
	if day < 1 {
		day = 1
	}
	if last := next.EndDate.Day(); day > last {
		day = last
	}
	return time.Date(next.Year, time.Month(next.Month), day, 0, 0, 0, 0, next.StartDate.Location())
}
