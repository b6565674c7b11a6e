package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	billing "residential-cloud/internal/billing/domain"
)

// FeeRepository persists fee structures of one complex schema.
type FeeRepository struct {
	db        *sql.DB
	tables    tables
	complexID int64
}

const feeColumns = `id, name, fee_type, base_amount, is_per_unit, is_active, due_day,
	calculation_kind, formula, supersedes, created_at`

// ListActive returns active fees ordered by creation.
func (r *FeeRepository) ListActive(ctx context.Context) ([]billing.FeeStructure, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("fee repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s
FROM %s
WHERE is_active
ORDER BY created_at ASC, id ASC`, feeColumns, r.tables.name(feesTable)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.FeeStructure
	for rows.Next() {
		fee, err := r.scanFee(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *fee)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns a fee or nil when it does not exist.
func (r *FeeRepository) Get(ctx context.Context, id string) (*billing.FeeStructure, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("fee repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1`, feeColumns, r.tables.name(feesTable)), id)
	fee, err := r.scanFee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return fee, err
}

// Create inserts a fee.
func (r *FeeRepository) Create(ctx context.Context, fee billing.FeeStructure) error {
	if r == nil || r.db == nil {
		return errors.New("fee repo: nil db")
	}
	return insertFee(ctx, r.db, r.tables, fee)
}

// Supersede deactivates oldID and inserts replacement in one transaction.
func (r *FeeRepository) Supersede(ctx context.Context, oldID string, replacement billing.FeeStructure) error {
	if r == nil || r.db == nil {
		return errors.New("fee repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
UPDATE %s
SET is_active = FALSE
WHERE id = $1 AND is_active`, r.tables.name(feesTable)), oldID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		_ = tx.Rollback()
		if err != nil {
			return err
		}
		return billing.ErrFeeInactive
	}
	if err := insertFee(ctx, tx, r.tables, replacement); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertFee(ctx context.Context, db execer, t tables, fee billing.FeeStructure) error {
	var supersedes sql.NullString
	if fee.Supersedes != "" {
		supersedes = sql.NullString{String: fee.Supersedes, Valid: true}
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (
	id, name, fee_type, base_amount, is_per_unit, is_active, due_day,
	calculation_kind, formula, supersedes, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, t.name(feesTable)),
		fee.ID, fee.Name, string(fee.Type), fee.BaseAmount, fee.IsPerUnit, fee.IsActive, fee.DueDay,
		string(fee.Calculation.Kind), fee.Calculation.Formula, supersedes, fee.CreatedAt.UTC(),
	)
	return err
}

func (r *FeeRepository) scanFee(row rowScanner) (*billing.FeeStructure, error) {
	var (
		fee        billing.FeeStructure
		feeType    string
		kind       string
		supersedes sql.NullString
	)
	if err := row.Scan(
		&fee.ID, &fee.Name, &feeType, &fee.BaseAmount, &fee.IsPerUnit, &fee.IsActive, &fee.DueDay,
		&kind, &fee.Calculation.Formula, &supersedes, &fee.CreatedAt,
	); err != nil {
		return nil, err
	}
	fee.ComplexID = r.complexID
	fee.Type = billing.FeeType(feeType)
	fee.Calculation.Kind = billing.CalculationKind(kind)
	fee.Supersedes = supersedes.String
	fee.CreatedAt = fee.CreatedAt.UTC()
	return &fee, nil
}

// PropertyRepository reads the property roster of one complex schema.
type PropertyRepository struct {
	db        *sql.DB
	tables    tables
	complexID int64
}

// ListActive returns active properties ordered by unit number.
func (r *PropertyRepository) ListActive(ctx context.Context) ([]billing.Property, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("property repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT id, unit_number, area, coefficient, is_active
FROM %s
WHERE is_active
ORDER BY unit_number ASC, id ASC`, r.tables.name(propertiesTable)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Property
	for rows.Next() {
		var p billing.Property
		if err := rows.Scan(&p.ID, &p.UnitNumber, &p.Area, &p.Coefficient, &p.IsActive); err != nil {
			return nil, err
		}
		p.ComplexID = r.complexID
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
