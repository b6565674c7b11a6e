package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"

	billing "residential-cloud/internal/billing/domain"
	"residential-cloud/internal/tenant"
)

const (
	feesTable       = "fee_structures"
	propertiesTable = "properties"
	billsTable      = "bills"
	lineItemsTable  = "bill_line_items"
	paymentsTable   = "payments"
	expensesTable   = "expenses"
)

// Store resolves tenant-scoped ledgers. Every complex owns a schema holding
// the same set of tables.
type Store struct {
	db        *sql.DB
	dbx       *sqlx.DB
	directory tenant.Directory
}

// NewStore constructs a store. driverName is the database/sql driver the
// handle was opened with.
func NewStore(db *sql.DB, driverName string, directory tenant.Directory) (*Store, error) {
	if db == nil {
		return nil, errors.New("billing store: nil db")
	}
	if directory == nil {
		return nil, errors.New("billing store: nil directory")
	}
	if driverName == "" {
		driverName = "pgx"
	}
	return &Store{db: db, dbx: sqlx.NewDb(db, driverName), directory: directory}, nil
}

// ForComplex returns the ledger bound to the schema of complexID.
func (s *Store) ForComplex(ctx context.Context, complexID int64) (billing.Ledger, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("billing store: nil db")
	}
	complex, err := s.directory.Lookup(ctx, complexID)
	if err != nil {
		return nil, err
	}
	if complex == nil {
		return nil, tenant.ErrComplexNotFound
	}
	if !tenant.ValidSchemaName(complex.Schema) {
		return nil, tenant.ErrInvalidSchema
	}
	t := tables{schema: complex.Schema}
	return &ledger{
		fees:       &FeeRepository{db: s.db, tables: t, complexID: complexID},
		properties: &PropertyRepository{db: s.db, tables: t, complexID: complexID},
		bills:      &BillRepository{db: s.db, tables: t, complexID: complexID},
		reports:    &ReportReader{db: s.dbx, tables: t, complexID: complexID},
	}, nil
}

type ledger struct {
	fees       *FeeRepository
	properties *PropertyRepository
	bills      *BillRepository
	reports    *ReportReader
}

func (l *ledger) Fees() billing.FeeRepository           { return l.fees }
func (l *ledger) Properties() billing.PropertyRepository { return l.properties }
func (l *ledger) Bills() billing.BillRepository          { return l.bills }
func (l *ledger) Reports() billing.ReportReader          { return l.reports }

type tables struct {
	schema string
}

// name returns the schema-qualified, quoted table name.
func (t tables) name(table string) string {
	return pgx.Identifier{t.schema, table}.Sanitize()
}

type rowScanner interface {
	Scan(dest ...any) error
}
