package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"residential-cloud/internal/tenant"
)

func TestTableNamesAreSchemaQualified(t *testing.T) {
	got := tables{schema: "complex_7"}.name(votesTable)
	if got != `"complex_7"."votes"` {
		t.Fatalf("unexpected table name %s", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("expected unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) || isUniqueViolation(errors.New("boom")) || isUniqueViolation(nil) {
		t.Fatalf("unexpected unique violation")
	}
}

func TestNewStoreRejectsNilDependencies(t *testing.T) {
	if _, err := NewStore(nil, "pgx", tenant.NewMemoryDirectory()); err == nil {
		t.Fatalf("expected nil db error")
	}
	var s *Store
	if _, err := s.ForComplex(context.Background(), 1); err == nil {
		t.Fatalf("expected nil store error")
	}
	var r *Repository
	if _, err := r.ListVotes(context.Background(), "v"); err == nil {
		t.Fatalf("expected nil repo error")
	}
}
