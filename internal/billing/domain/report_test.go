package billing

import (
	"testing"
	"time"

	"residential-cloud/internal/apperr"
)

func TestSummarize(t *testing.T) {
	bills := []GeneratedBill{{TotalAmount: dec("50000")}, {TotalAmount: dec("70000")}}
	payments := []Payment{{Amount: dec("50000")}, {Amount: dec("10000")}}
	expenses := []Expense{
		{Amount: dec("15000"), Category: "security"},
		{Amount: dec("5000"), Category: "cleaning"},
		{Amount: dec("2500"), Category: "security"},
	}
	s := Summarize(bills, payments, expenses)
	checks := map[string][2]string{
		"billed":    {s.TotalBilled.String(), "120000"},
		"collected": {s.TotalCollected.String(), "60000"},
		"expenses":  {s.TotalExpenses.String(), "22500"},
		"rate":      {s.CollectionRate.String(), "50"},
		"net":       {s.NetIncome.String(), "37500"},
		"pending":   {s.PendingAmount.String(), "60000"},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Fatalf("%s: got %s want %s", name, c[0], c[1])
		}
	}
	if len(s.ExpensesByCategory) != 2 || s.ExpensesByCategory[0].Category != "cleaning" || s.ExpensesByCategory[1].Amount.String() != "17500" {
		t.Fatalf("unexpected categories %+v", s.ExpensesByCategory)
	}
	if s.BillCount != 2 || s.PaymentCount != 2 || s.ExpenseCount != 3 {
		t.Fatalf("unexpected counts %+v", s)
	}
}

func TestSummarize_ZeroBilledGuard(t *testing.T) {
	s := Summarize(nil, []Payment{{Amount: dec("100")}}, nil)
	if !s.CollectionRate.IsZero() {
		t.Fatalf("expected zero collection rate, got %s", s.CollectionRate)
	}
	// payment of a bill generated outside the window: pending goes negative
	if s.PendingAmount.String() != "-100" {
		t.Fatalf("expected unclamped pending -100, got %s", s.PendingAmount)
	}
}

func TestSummarize_RateRounding(t *testing.T) {
	s := Summarize([]GeneratedBill{{TotalAmount: dec("3")}}, []Payment{{Amount: dec("1")}}, nil)
	if s.CollectionRate.String() != "33.33" {
		t.Fatalf("got %s", s.CollectionRate)
	}
}

func TestDateRange(t *testing.T) {
	r, err := ParseDateRange("2024-01-01", "2024-01-31")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !r.Contains(time.Date(2024, time.January, 31, 23, 59, 0, 0, time.UTC)) {
		t.Fatalf("end date must be inclusive")
	}
	if r.Contains(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("next day must be excluded")
	}
	if _, err := ParseDateRange("2024-02-01", "2024-01-01"); apperr.FieldOf(err) != "endDate" {
		t.Fatalf("expected endDate validation error, got %v", err)
	}
	if _, err := ParseDateRange("01/01/2024", "2024-01-01"); apperr.FieldOf(err) != "startDate" {
		t.Fatalf("expected startDate validation error, got %v", err)
	}
}

func TestNormalizeReportMode(t *testing.T) {
	if m, ok := NormalizeReportMode(""); !ok || m != ReportModeIndependent {
		t.Fatalf("empty mode: %s/%v", m, ok)
	}
	if m, ok := NormalizeReportMode("Cohort"); !ok || m != ReportModeCohort {
		t.Fatalf("cohort mode: %s/%v", m, ok)
	}
	if _, ok := NormalizeReportMode("rolling"); ok {
		t.Fatalf("unknown mode must be rejected")
	}
}
