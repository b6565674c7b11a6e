package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	assembly "residential-cloud/internal/assembly/domain"
	"residential-cloud/internal/tenant"
)

const (
	assembliesTable = "assemblies"
	attendanceTable = "assembly_attendance"
	votingsTable    = "votings"
	optionsTable    = "voting_options"
	votesTable      = "votes"
	propertiesTable = "properties"

	pgUniqueViolation = "23505"
)

// Store resolves assembly repositories bound to complex schemas.
type Store struct {
	db        *sqlx.DB
	directory tenant.Directory
}

// NewStore constructs a store. driverName is the database/sql driver the
// handle was opened with.
func NewStore(db *sql.DB, driverName string, directory tenant.Directory) (*Store, error) {
	if db == nil {
		return nil, errors.New("assembly store: nil db")
	}
	if directory == nil {
		return nil, errors.New("assembly store: nil directory")
	}
	if driverName == "" {
		driverName = "pgx"
	}
	return &Store{db: sqlx.NewDb(db, driverName), directory: directory}, nil
}

// ForComplex returns the repository bound to the schema of complexID.
func (s *Store) ForComplex(ctx context.Context, complexID int64) (assembly.Repository, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("assembly store: nil db")
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
	return &Repository{db: s.db, tables: tables{schema: complex.Schema}, complexID: complexID}, nil
}

type tables struct {
	schema string
}

func (t tables) name(table string) string {
	return pgx.Identifier{t.schema, table}.Sanitize()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
