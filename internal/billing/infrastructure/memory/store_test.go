package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	billing "residential-cloud/internal/billing/domain"
	"residential-cloud/internal/tenant"
)

func TestStoreRefusesUnknownComplex(t *testing.T) {
	store := NewStore(tenant.NewMemoryDirectory(tenant.Complex{ID: 1, Schema: "complex_1", Plan: tenant.PlanStandard}))
	if _, err := store.ForComplex(context.Background(), 1); err != nil {
		t.Fatalf("known complex: %v", err)
	}
	if _, err := store.ForComplex(context.Background(), 2); !errors.Is(err, tenant.ErrComplexNotFound) {
		t.Fatalf("expected complex not found, got %v", err)
	}
}

func TestSaveBillsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	ledger, _ := store.ForComplex(ctx, 1)
	period, _ := billing.NewBillingPeriod(2024, 1)

	first := billing.GeneratedBill{ID: billing.BillID(1, "a", period), PropertyID: "a", Period: period}
	if err := ledger.Bills().SaveBills(ctx, []billing.GeneratedBill{first}); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := billing.GeneratedBill{ID: billing.BillID(1, "b", period), PropertyID: "b", Period: period}
	err := ledger.Bills().SaveBills(ctx, []billing.GeneratedBill{second, first})
	if !errors.Is(err, billing.ErrDuplicateBill) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	bills, _ := ledger.Bills().ListByPeriod(ctx, period)
	if len(bills) != 1 {
		t.Fatalf("expected batch rolled back, got %d bills", len(bills))
	}
}

func TestReconcilePaymentDoesNotStoreOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	ledger, _ := store.ForComplex(ctx, 1)
	period, _ := billing.NewBillingPeriod(2024, 1)
	bill := billing.GeneratedBill{ID: "b1", Period: period, TotalAmount: decimal.NewFromInt(10), Status: billing.BillStatusPending}
	_ = ledger.Bills().SaveBills(ctx, []billing.GeneratedBill{bill})

	boom := errors.New("boom")
	_, _, err := ledger.Bills().ReconcilePayment(ctx, "b1", func(b *billing.GeneratedBill) (billing.Payment, error) {
		b.Status = billing.BillStatusPaid
		return billing.Payment{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected apply error, got %v", err)
	}
	stored, _ := ledger.Bills().Get(ctx, "b1")
	if stored.Status != billing.BillStatusPending {
		t.Fatalf("bill must not change when apply fails")
	}

	if _, _, err := ledger.Bills().ReconcilePayment(ctx, "missing", nil); !errors.Is(err, billing.ErrBillNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReportReaderUsesInclusiveEndDate(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	l := store.Ledger(1)
	l.AddExpense(billing.Expense{ID: "late", Amount: decimal.NewFromInt(5), SpentAt: time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)})
	l.AddExpense(billing.Expense{ID: "next", Amount: decimal.NewFromInt(5), SpentAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)})

	r, _ := billing.ParseDateRange("2024-01-01", "2024-01-31")
	expenses, err := l.Reports().Expenses(ctx, r)
	if err != nil {
		t.Fatalf("expenses: %v", err)
	}
	if len(expenses) != 1 || expenses[0].ID != "late" {
		t.Fatalf("unexpected expenses %+v", expenses)
	}
}
