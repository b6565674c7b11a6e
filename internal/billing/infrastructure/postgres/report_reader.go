package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	billing "residential-cloud/internal/billing/domain"
)

// ReportReader loads the report sets of one complex schema.
type ReportReader struct {
	db        *sqlx.DB
	tables    tables
	complexID int64
}

type billRow struct {
	ID          string          `db:"id"`
	PropertyID  string          `db:"property_id"`
	Year        int             `db:"period_year"`
	Month       int             `db:"period_month"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	PaidAmount  decimal.Decimal `db:"paid_amount"`
	DueDate     time.Time       `db:"due_date"`
	GeneratedAt time.Time       `db:"generated_at"`
	Status      string          `db:"status"`
}

type paymentRow struct {
	ID        string          `db:"id"`
	BillID    string          `db:"bill_id"`
	Amount    decimal.Decimal `db:"amount"`
	Method    string          `db:"payment_method"`
	Reference string          `db:"reference"`
	PaidAt    time.Time       `db:"paid_at"`
	Status    string          `db:"status"`
}

type expenseRow struct {
	ID          string          `db:"id"`
	Category    string          `db:"category"`
	Description string          `db:"description"`
	Amount      decimal.Decimal `db:"amount"`
	SpentAt     time.Time       `db:"spent_at"`
}

// BillsGenerated returns bills whose generation time falls in r.
func (rr *ReportReader) BillsGenerated(ctx context.Context, r billing.DateRange) ([]billing.GeneratedBill, error) {
	if rr == nil || rr.db == nil {
		return nil, errors.New("report reader: nil db")
	}
	var rows []billRow
	err := rr.db.SelectContext(ctx, &rows, fmt.Sprintf(`
SELECT id, property_id, period_year, period_month, total_amount, paid_amount,
	due_date, generated_at, status
FROM %s
WHERE generated_at >= $1 AND generated_at < $2
ORDER BY generated_at ASC, id ASC`, rr.tables.name(billsTable)), r.Start, r.EndExclusive())
	if err != nil {
		return nil, err
	}
	result := make([]billing.GeneratedBill, 0, len(rows))
	for _, row := range rows {
		period, err := billing.NewBillingPeriod(row.Year, row.Month)
		if err != nil {
			return nil, err
		}
		result = append(result, billing.GeneratedBill{
			ID:          row.ID,
			ComplexID:   rr.complexID,
			PropertyID:  row.PropertyID,
			Period:      period,
			TotalAmount: row.TotalAmount,
			PaidAmount:  row.PaidAmount,
			DueDate:     dateOnly(row.DueDate),
			GeneratedAt: row.GeneratedAt.UTC(),
			Status:      billing.BillStatus(row.Status),
		})
	}
	return result, nil
}

// PaymentsPaid returns payments whose payment time falls in r.
func (rr *ReportReader) PaymentsPaid(ctx context.Context, r billing.DateRange) ([]billing.Payment, error) {
	if rr == nil || rr.db == nil {
		return nil, errors.New("report reader: nil db")
	}
	var rows []paymentRow
	err := rr.db.SelectContext(ctx, &rows, fmt.Sprintf(`
SELECT id, bill_id, amount, payment_method, reference, paid_at, status
FROM %s
WHERE paid_at >= $1 AND paid_at < $2
ORDER BY paid_at ASC, id ASC`, rr.tables.name(paymentsTable)), r.Start, r.EndExclusive())
	if err != nil {
		return nil, err
	}
	return toPayments(rows), nil
}

// PaymentsForBillsGenerated returns every payment made against bills
// generated in r, regardless of payment date.
func (rr *ReportReader) PaymentsForBillsGenerated(ctx context.Context, r billing.DateRange) ([]billing.Payment, error) {
	if rr == nil || rr.db == nil {
		return nil, errors.New("report reader: nil db")
	}
	var rows []paymentRow
	err := rr.db.SelectContext(ctx, &rows, fmt.Sprintf(`
SELECT p.id, p.bill_id, p.amount, p.payment_method, p.reference, p.paid_at, p.status
FROM %s p
JOIN %s b ON b.id = p.bill_id
WHERE b.generated_at >= $1 AND b.generated_at < $2
ORDER BY p.paid_at ASC, p.id ASC`, rr.tables.name(paymentsTable), rr.tables.name(billsTable)), r.Start, r.EndExclusive())
	if err != nil {
		return nil, err
	}
	return toPayments(rows), nil
}

// Expenses returns expenses spent in r.
func (rr *ReportReader) Expenses(ctx context.Context, r billing.DateRange) ([]billing.Expense, error) {
	if rr == nil || rr.db == nil {
		return nil, errors.New("report reader: nil db")
	}
	var rows []expenseRow
	err := rr.db.SelectContext(ctx, &rows, fmt.Sprintf(`
SELECT id, category, description, amount, spent_at
FROM %s
WHERE spent_at >= $1 AND spent_at < $2
ORDER BY spent_at ASC, id ASC`, rr.tables.name(expensesTable)), r.Start, r.EndExclusive())
	if err != nil {
		return nil, err
	}
	result := make([]billing.Expense, 0, len(rows))
	for _, row := range rows {
		result = append(result, billing.Expense{
			ID:          row.ID,
			Category:    row.Category,
			Description: row.Description,
			Amount:      row.Amount,
			SpentAt:     row.SpentAt.UTC(),
		})
	}
	return result, nil
}

func toPayments(rows []paymentRow) []billing.Payment {
	result := make([]billing.Payment, 0, len(rows))
	for _, row := range rows {
		result = append(result, billing.Payment{
			ID:        row.ID,
			BillID:    row.BillID,
			Amount:    row.Amount,
			Method:    billing.PaymentMethod(row.Method),
			Reference: row.Reference,
			PaidAt:    row.PaidAt.UTC(),
			Status:    billing.PaymentStatus(row.Status),
		})
	}
	return result
}
