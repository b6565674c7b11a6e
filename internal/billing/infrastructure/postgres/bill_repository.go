package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	billing "residential-cloud/internal/billing/domain"
)

const pgUniqueViolation = "23505"

// BillRepository persists bills and payments of one complex schema.
type BillRepository struct {
	db        *sql.DB
	tables    tables
	complexID int64
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const billColumns = `id, property_id, period_year, period_month, total_amount, paid_amount,
	due_date, generated_at, status, paid_at`

// SaveBills inserts the batch with its line items in one transaction.
func (r *BillRepository) SaveBills(ctx context.Context, bills []billing.GeneratedBill) error {
	if r == nil || r.db == nil {
		return errors.New("bill repo: nil db")
	}
	if len(bills) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	billInsert := fmt.Sprintf(`
INSERT INTO %s (
	id, property_id, period_year, period_month, total_amount, paid_amount,
	due_date, generated_at, status
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, r.tables.name(billsTable))
	itemInsert := fmt.Sprintf(`
INSERT INTO %s (
	bill_id, position, fee_id, name, fee_type, amount
) VALUES ($1,$2,$3,$4,$5,$6)`, r.tables.name(lineItemsTable))

	for _, bill := range bills {
		_, err := tx.ExecContext(ctx, billInsert,
			bill.ID, bill.PropertyID, bill.Period.Year, bill.Period.Month, bill.TotalAmount, bill.PaidAmount,
			bill.DueDate, bill.GeneratedAt.UTC(), string(bill.Status),
		)
		if err != nil {
			_ = tx.Rollback()
			return mapInsertError(err)
		}
		for i, item := range bill.LineItems {
			_, err := tx.ExecContext(ctx, itemInsert, bill.ID, i, item.FeeID, item.Name, string(item.Type), item.Amount)
			if err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return billing.ErrDuplicateBill
	}
	return err
}

// Get returns a bill with its line items, or nil when it does not exist.
func (r *BillRepository) Get(ctx context.Context, id string) (*billing.GeneratedBill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1`, billColumns, r.tables.name(billsTable)), id)
	bill, err := r.scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := r.lineItems(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	bill.LineItems = items
	return bill, nil
}

// ListByPeriod returns the bills of period ordered by property.
func (r *BillRepository) ListByPeriod(ctx context.Context, period billing.BillingPeriod) ([]billing.GeneratedBill, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s
FROM %s
WHERE period_year = $1 AND period_month = $2
ORDER BY property_id ASC`, billColumns, r.tables.name(billsTable)), period.Year, period.Month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.GeneratedBill
	index := make(map[string]int)
	for rows.Next() {
		bill, err := r.scanBill(rows)
		if err != nil {
			return nil, err
		}
		index[bill.ID] = len(result)
		result = append(result, *bill)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}

	itemRows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT li.bill_id, li.fee_id, li.name, li.fee_type, li.amount
FROM %s li
JOIN %s b ON b.id = li.bill_id
WHERE b.period_year = $1 AND b.period_month = $2
ORDER BY li.bill_id ASC, li.position ASC`, r.tables.name(lineItemsTable), r.tables.name(billsTable)), period.Year, period.Month)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var (
			billID  string
			item    billing.LineItem
			feeType string
		)
		if err := itemRows.Scan(&billID, &item.FeeID, &item.Name, &feeType, &item.Amount); err != nil {
			return nil, err
		}
		item.Type = billing.FeeType(feeType)
		if i, ok := index[billID]; ok {
			result[i].LineItems = append(result[i].LineItems, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ReconcilePayment locks the bill row, applies the payment and stores the
// payment together with the updated bill.
func (r *BillRepository) ReconcilePayment(ctx context.Context, billID string, apply billing.PaymentFunc) (billing.Payment, billing.GeneratedBill, error) {
	if r == nil || r.db == nil {
		return billing.Payment{}, billing.GeneratedBill{}, errors.New("bill repo: nil db")
	}
	if apply == nil {
		return billing.Payment{}, billing.GeneratedBill{}, errors.New("bill repo: nil payment func")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return billing.Payment{}, billing.GeneratedBill{}, err
	}
	fail := func(err error) (billing.Payment, billing.GeneratedBill, error) {
		_ = tx.Rollback()
		return billing.Payment{}, billing.GeneratedBill{}, err
	}

	row := tx.QueryRowContext(ctx, fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
FOR UPDATE`, billColumns, r.tables.name(billsTable)), billID)
	bill, err := r.scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fail(billing.ErrBillNotFound)
	}
	if err != nil {
		return fail(err)
	}
	items, err := r.lineItems(ctx, tx, billID)
	if err != nil {
		return fail(err)
	}
	bill.LineItems = items

	payment, err := apply(bill)
	if err != nil {
		return fail(err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (
	id, bill_id, amount, payment_method, reference, paid_at, status
) VALUES ($1,$2,$3,$4,$5,$6,$7)`, r.tables.name(paymentsTable)),
		payment.ID, payment.BillID, payment.Amount, string(payment.Method), payment.Reference, payment.PaidAt.UTC(), string(payment.Status),
	)
	if err != nil {
		return fail(err)
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
UPDATE %s
SET paid_amount = $1, status = $2, paid_at = $3
WHERE id = $4`, r.tables.name(billsTable)), bill.PaidAmount, string(bill.Status), nullTime(bill.PaidAt), bill.ID)
	if err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return billing.Payment{}, billing.GeneratedBill{}, err
	}
	return payment, *bill, nil
}

// ListPayments returns the payments of a bill ordered by payment time.
func (r *BillRepository) ListPayments(ctx context.Context, billID string) ([]billing.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT id, bill_id, amount, payment_method, reference, paid_at, status
FROM %s
WHERE bill_id = $1
ORDER BY paid_at ASC, id ASC`, r.tables.name(paymentsTable)), billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Payment
	for rows.Next() {
		var (
			p      billing.Payment
			method string
			status string
		)
		if err := rows.Scan(&p.ID, &p.BillID, &p.Amount, &method, &p.Reference, &p.PaidAt, &status); err != nil {
			return nil, err
		}
		p.Method = billing.PaymentMethod(method)
		p.Status = billing.PaymentStatus(status)
		p.PaidAt = p.PaidAt.UTC()
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *BillRepository) lineItems(ctx context.Context, q queryer, billID string) ([]billing.LineItem, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
SELECT fee_id, name, fee_type, amount
FROM %s
WHERE bill_id = $1
ORDER BY position ASC`, r.tables.name(lineItemsTable)), billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []billing.LineItem{}
	for rows.Next() {
		var (
			item    billing.LineItem
			feeType string
		)
		if err := rows.Scan(&item.FeeID, &item.Name, &feeType, &item.Amount); err != nil {
			return nil, err
		}
		item.Type = billing.FeeType(feeType)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *BillRepository) scanBill(row rowScanner) (*billing.GeneratedBill, error) {
	return scanBill(row, r.complexID)
}

func scanBill(row rowScanner, complexID int64) (*billing.GeneratedBill, error) {
	var (
		bill   billing.GeneratedBill
		year   int
		month  int
		status string
		paidAt sql.NullTime
	)
	if err := row.Scan(
		&bill.ID, &bill.PropertyID, &year, &month, &bill.TotalAmount, &bill.PaidAmount,
		&bill.DueDate, &bill.GeneratedAt, &status, &paidAt,
	); err != nil {
		return nil, err
	}
	period, err := billing.NewBillingPeriod(year, month)
	if err != nil {
		return nil, err
	}
	bill.ComplexID = complexID
	bill.Period = period
	bill.Status = billing.BillStatus(status)
	bill.DueDate = dateOnly(bill.DueDate)
	bill.GeneratedAt = bill.GeneratedAt.UTC()
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		bill.PaidAt = &t
	}
	return &bill, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
