package tenant

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// PostgresDirectory reads complexes from the shared complexes table.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory constructs a directory backed by db.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	if db == nil {
		return nil
	}
	return &PostgresDirectory{db: db}
}

// Lookup returns the complex or ErrComplexNotFound.
func (d *PostgresDirectory) Lookup(ctx context.Context, complexID int64) (*Complex, error) {
	if d == nil || d.db == nil {
		return nil, errors.New("tenant directory: nil db")
	}
	var (
		c    Complex
		plan string
	)
	err := d.db.QueryRowContext(ctx, `
SELECT id, name, schema_name, plan_tier
FROM public.complexes
WHERE id = $1`, complexID).Scan(&c.ID, &c.Name, &c.Schema, &plan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrComplexNotFound
		}
		return nil, err
	}
	if !ValidSchemaName(c.Schema) {
		return nil, ErrInvalidSchema
	}
	normalized, ok := NormalizePlan(plan)
	if !ok {
		normalized = PlanBasic
	}
	c.Plan = normalized
	return &c, nil
}

// MemoryDirectory is an in-memory directory.
type MemoryDirectory struct {
	mu        sync.RWMutex
	complexes map[int64]Complex
}

// NewMemoryDirectory constructs a directory seeded with complexes.
func NewMemoryDirectory(complexes ...Complex) *MemoryDirectory {
	d := &MemoryDirectory{complexes: make(map[int64]Complex, len(complexes))}
	for _, c := range complexes {
		d.complexes[c.ID] = c
	}
	return d
}

// Put adds or replaces a complex.
func (d *MemoryDirectory) Put(c Complex) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.complexes[c.ID] = c
}

// Lookup returns the complex or ErrComplexNotFound.
func (d *MemoryDirectory) Lookup(ctx context.Context, complexID int64) (*Complex, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.complexes[complexID]
	if !ok {
		return nil, ErrComplexNotFound
	}
	return &c, nil
}
