package billing

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"residential-cloud/internal/apperr"
)

const dateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// Expense is money spent by the complex.
type Expense struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	SpentAt     time.Time       `json:"spentAt"`
}

// ReportMode selects how bills and payments are matched in a report.
type ReportMode string

const (
	// ReportModeIndependent counts bills generated, payments paid and
	// expenses spent in the range, each by its own date.
	ReportModeIndependent ReportMode = "independent"
	// ReportModeCohort counts bills generated in the range and every
	// payment made against those bills, whatever its date.
	ReportModeCohort ReportMode = "cohort"
)

// NormalizeReportMode validates a mode string. Empty means independent.
func NormalizeReportMode(value string) (ReportMode, bool) {
	switch m := ReportMode(strings.ToLower(strings.TrimSpace(value))); m {
	case "":
		return ReportModeIndependent, true
	case ReportModeIndependent, ReportModeCohort:
		return m, true
	default:
		return "", false
	}
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range from start to end, both inclusive.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if start.IsZero() {
		return DateRange{}, apperr.Validation("startDate", "billing: start date is required")
	}
	if end.IsZero() {
		return DateRange{}, apperr.Validation("endDate", "billing: end date is required")
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
	if end.Before(start) {
		return DateRange{}, apperr.Validation("endDate", "billing: end date is before start date")
	}
	return DateRange{Start: start, End: end}, nil
}

// ParseDateRange parses ISO dates (YYYY-MM-DD).
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return DateRange{}, apperr.Validation("startDate", "billing: start date must be YYYY-MM-DD")
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return DateRange{}, apperr.Validation("endDate", "billing: end date must be YYYY-MM-DD")
	}
	return NewDateRange(s, e)
}

// EndExclusive is the first instant after the range.
func (r DateRange) EndExclusive() time.Time {
	return r.End.AddDate(0, 0, 1)
}

// Contains reports whether t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.EndExclusive())
}

// FinancialSummary aggregates billing activity.
type FinancialSummary struct {
	ComplexID          int64           `json:"complexId"`
	StartDate          string          `json:"startDate"`
	EndDate            string          `json:"endDate"`
	Mode               ReportMode      `json:"mode"`
	TotalBilled        decimal.Decimal `json:"totalBilled"`
	TotalCollected     decimal.Decimal `json:"totalCollected"`
	TotalExpenses      decimal.Decimal `json:"totalExpenses"`
	CollectionRate     decimal.Decimal `json:"collectionRate"`
	NetIncome          decimal.Decimal `json:"netIncome"`
	PendingAmount      decimal.Decimal `json:"pendingAmount"`
	BillCount          int             `json:"billCount"`
	PaymentCount       int             `json:"paymentCount"`
	ExpenseCount       int             `json:"expenseCount"`
	ExpensesByCategory []CategoryTotal `json:"expensesByCategory"`
}

// CategoryTotal is the expense total of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// Summarize aggregates the read sets. Collection rate is zero when nothing
// was billed; pending amount is negative on overpayment.
func Summarize(bills []GeneratedBill, payments []Payment, expenses []Expense) FinancialSummary {
	billed := decimal.Zero
	for _, b := range bills {
		billed = billed.Add(b.TotalAmount)
	}
	collected := SumPayments(payments)

	spent := decimal.Zero
	byCategory := map[string]decimal.Decimal{}
	for _, e := range expenses {
		spent = spent.Add(e.Amount)
		category := e.Category
		if category == "" {
			category = "uncategorized"
		}
		byCategory[category] = byCategory[category].Add(e.Amount)
	}
	categories := make([]CategoryTotal, 0, len(byCategory))
	for category, amount := range byCategory {
		categories = append(categories, CategoryTotal{Category: category, Amount: amount})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Category < categories[j].Category })

	rate := decimal.Zero
	if billed.IsPositive() {
		rate = collected.Div(billed).Mul(hundred).Round(2)
	}

	return FinancialSummary{
		Mode:               ReportModeIndependent,
		TotalBilled:        billed,
		TotalCollected:     collected,
		TotalExpenses:      spent,
		CollectionRate:     rate,
		NetIncome:          collected.Sub(spent),
		PendingAmount:      billed.Sub(collected),
		BillCount:          len(bills),
		PaymentCount:       len(payments),
		ExpenseCount:       len(expenses),
		ExpensesByCategory: categories,
	}
}
