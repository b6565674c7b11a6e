package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	billing "residential-cloud/internal/billing/domain"
	"residential-cloud/internal/tenant"
)

func TestTablesNameQuotesSchema(t *testing.T) {
	got := tables{schema: "complex_12"}.name(billsTable)
	if got != `"complex_12"."bills"` {
		t.Fatalf("unexpected table name %s", got)
	}
}

func TestMapInsertError(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !errors.Is(mapInsertError(dup), billing.ErrDuplicateBill) {
		t.Fatalf("expected unique violation mapped to duplicate bill")
	}
	other := &pgconn.PgError{Code: "23503"}
	if mapInsertError(other) != error(other) {
		t.Fatalf("expected other errors unchanged")
	}
}

func TestNewStoreRejectsNilDependencies(t *testing.T) {
	if _, err := NewStore(nil, "pgx", tenant.NewMemoryDirectory()); err == nil {
		t.Fatalf("expected nil db error")
	}
}

func TestNilRepositoriesReturnErrors(t *testing.T) {
	ctx := context.Background()
	var fees *FeeRepository
	if _, err := fees.ListActive(ctx); err == nil {
		t.Fatalf("expected nil fee repo error")
	}
	var bills *BillRepository
	if _, _, err := bills.ReconcilePayment(ctx, "b", nil); err == nil {
		t.Fatalf("expected nil bill repo error")
	}
	var reports *ReportReader
	if _, err := reports.Expenses(ctx, billing.DateRange{}); err == nil {
		t.Fatalf("expected nil report reader error")
	}
}
