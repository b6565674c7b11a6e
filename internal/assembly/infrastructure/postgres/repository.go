package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	assembly "residential-cloud/internal/assembly/domain"
)

// Repository persists the assemblies of one complex schema.
type Repository struct {
	db        *sqlx.DB
	tables    tables
	complexID int64
}

type assemblyRow struct {
	ID               string          `db:"id"`
	Title            string          `db:"title"`
	ScheduledAt      time.Time       `db:"scheduled_at"`
	QuorumPercentage sql.NullFloat64 `db:"quorum_percentage"`
	CreatedAt        time.Time       `db:"created_at"`
}

type unitRow struct {
	ID          string          `db:"id"`
	UnitNumber  string          `db:"unit_number"`
	Coefficient decimal.Decimal `db:"coefficient"`
}

type attendanceRow struct {
	AssemblyID       string          `db:"assembly_id"`
	UnitID           string          `db:"unit_id"`
	Coefficient      decimal.Decimal `db:"coefficient"`
	Type             string          `db:"attendance_type"`
	ProxyUserID      sql.NullString  `db:"proxy_user_id"`
	ProxyDocumentURL sql.NullString  `db:"proxy_document_url"`
	RegisteredAt     time.Time       `db:"registered_at"`
}

type votingRow struct {
	ID                 string              `db:"id"`
	AssemblyID         string              `db:"assembly_id"`
	Question           string              `db:"question"`
	VotingType         string              `db:"voting_type"`
	RequiredPercentage decimal.NullDecimal `db:"required_percentage"`
	Base               sql.NullString      `db:"base_for_percentage"`
	CreatedAt          time.Time           `db:"created_at"`
}

type voteRow struct {
	ID                string          `db:"id"`
	VotingID          string          `db:"voting_id"`
	OptionID          string          `db:"option_id"`
	UnitID            string          `db:"unit_id"`
	CoefficientWeight decimal.Decimal `db:"coefficient_weight"`
	CastAt            time.Time       `db:"cast_at"`
}

// CreateAssembly inserts an assembly.
func (r *Repository) CreateAssembly(ctx context.Context, a assembly.Assembly) error {
	if r == nil || r.db == nil {
		return errors.New("assembly repo: nil db")
	}
	var quorum sql.NullFloat64
	if a.QuorumPercentage != nil {
		quorum = sql.NullFloat64{Float64: *a.QuorumPercentage, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (id, title, scheduled_at, quorum_percentage, created_at)
VALUES ($1,$2,$3,$4,$5)`, r.tables.name(assembliesTable)),
		a.ID, a.Title, a.ScheduledAt.UTC(), quorum, a.CreatedAt.UTC(),
	)
	return err
}

// GetAssembly returns an assembly or nil when it does not exist.
func (r *Repository) GetAssembly(ctx context.Context, id string) (*assembly.Assembly, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("assembly repo: nil db")
	}
	var row assemblyRow
	err := r.db.GetContext(ctx, &row, fmt.Sprintf(`
SELECT id, title, scheduled_at, quorum_percentage, created_at
FROM %s
WHERE id = $1`, r.tables.name(assembliesTable)), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a := &assembly.Assembly{
		ID:          row.ID,
		ComplexID:   r.complexID,
		Title:       row.Title,
		ScheduledAt: row.ScheduledAt.UTC(),
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if row.QuorumPercentage.Valid {
		q := row.QuorumPercentage.Float64
		a.QuorumPercentage = &q
	}
	return a, nil
}

// EligibleUnits returns the active properties of the complex.
func (r *Repository) EligibleUnits(ctx context.Context) ([]assembly.Unit, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("assembly repo: nil db")
	}
	var rows []unitRow
	err := r.db.SelectContext(ctx, &rows, fmt.Sprintf(`
SELECT id, unit_number, coefficient
FROM %s
WHERE is_active
ORDER BY unit_number ASC, id ASC`, r.tables.name(propertiesTable)))
	if err != nil {
		return nil, err
	}
	units := make([]assembly.Unit, 0, len(rows))
	for _, row := range rows {
		units = append(units, assembly.Unit(row))
	}
	return units, nil
}

// GetUnit returns an active unit or nil.
func (r *Repository) GetUnit(ctx context.Context, id string) (*assembly.Unit, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("assembly repo: nil db")
	}
	var row unitRow
	err := r.db.GetContext(ctx, &row, fmt.Sprintf(`
SELECT id, unit_number, coefficient
FROM %s
WHERE id = $1 AND is_active`, r.tables.name(propertiesTable)), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u := assembly.Unit(row)
	return &u, nil
}

// AddAttendance inserts an attendance record.
func (r *Repository) AddAttendance(ctx context.Context, a assembly.Attendance) error {
	if r == nil || r.db == nil {
		return errors.New("assembly repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (
	assembly_id, unit_id, coefficient, attendance_type, proxy_user_id, proxy_document_url, registered_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)`, r.tables.name(attendanceTable)),
		a.AssemblyID, a.UnitID, a.Coefficient, string(a.Type),
		nullString(a.ProxyUserID), nullString(a.ProxyDocumentURL), a.RegisteredAt.UTC(),
	)
	if isUniqueViolation(err) {
		return assembly.ErrDuplicateAttendance
	}
	return err
}

const attendanceColumns = `assembly_id, unit_id, coefficient, attendance_type, proxy_user_id,
	proxy_document_url, registered_at`

// ListAttendance returns the attendance of an assembly in registration order.
func (r *Repository) ListAttendance(ctx context.Context, assemblyID string) ([]assembly.Attendance, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("assembly repo: nil db")
	}
	var rows []attendanceRow
	err := r.db.SelectContext(ctx, &rows, fmt.Sprintf(`
SELECT %s
FROM %s
WHERE assembly_id = $1
ORDER BY registered_at ASC, unit_id ASC`, attendanceColumns, r.tables.name(attendanceTable)), assemblyID)
	if err != nil {
		return nil, err
	}
	result := make([]assembly.Attendance, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

// GetAttendance returns the attendance of a unit or nil.
func (r *Repository) GetAttendance(ctx context.Context, assemblyID, unitID string) (*assembly.Attendance, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("assembly repo: nil db")
	}
	var row attendanceRow
	err := r.db.GetContext(ctx, &row, fmt.Sprintf(`
SELECT %s
FROM %s
WHERE assembly_id = $1 AND unit_id = $2`, attendanceColumns, r.tables.name(attendanceTable)), assemblyID, unitID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a := row.toDomain()
	return &a, nil
}

func (row attendanceRow) toDomain() assembly.Attendance {
	return assembly.Attendance{
		AssemblyID:       row.AssemblyID,
		UnitID:           row.UnitID,
		Coefficient:      row.Coefficient,
		Type:             assembly.AttendanceType(row.Type),
		ProxyUserID:      row.ProxyUserID.String,
		ProxyDocumentURL: row.ProxyDocumentURL.String,
		RegisteredAt:     row.RegisteredAt.UTC(),
	}
}

// CreateVoting inserts a voting with its options in one transaction.
func (r *Repository) CreateVoting(ctx context.Context, v assembly.Voting) error {
	if r == nil || r.db == nil {
		return errors.New("assembly repo: nil db")
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (
	id, assembly_id, question, voting_type, required_percentage, base_for_percentage, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)`, r.tables.name(votingsTable)),
		v.ID, v.AssemblyID, v.Question, string(v.Rule.Type), v.Rule.RequiredPercentage,
		nullString(string(v.Rule.Base)), v.CreatedAt.UTC(),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	optionInsert := fmt.Sprintf(`
INSERT INTO %s (voting_id, id, label, position)
VALUES ($1,$2,$3,$4)`, r.tables.name(optionsTable))
	for i, o := range v.Options {
		if _, err := tx.ExecContext(ctx, optionInsert, v.ID, o.ID, o.Label, i); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetVoting returns a voting with its options or nil.
func (r *Repository) GetVoting(ctx context.Context, id string) (*assembly.Voting, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("assembly repo: nil db")
	}
	var row votingRow
	err := r.db.GetContext(ctx, &row, fmt.Sprintf(`
SELECT id, assembly_id, question, voting_type, required_percentage, base_for_percentage, created_at
FROM %s
WHERE id = $1`, r.tables.name(votingsTable)), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var options []assembly.Option
	err = r.db.SelectContext(ctx, &options, fmt.Sprintf(`
SELECT id, label
FROM %s
WHERE voting_id = $1
ORDER BY position ASC`, r.tables.name(optionsTable)), id)
	if err != nil {
		return nil, err
	}
	return &assembly.Voting{
		ID:         row.ID,
		AssemblyID: row.AssemblyID,
		Question:   row.Question,
		Rule: assembly.Rule{
			Type:               assembly.VotingType(row.VotingType),
			RequiredPercentage: row.RequiredPercentage,
			Base:               assembly.PercentageBase(row.Base.String),
		},
		Options:   options,
		CreatedAt: row.CreatedAt.UTC(),
	}, nil
}

// AddVote inserts a vote. The (voting_id, unit_id) unique constraint
// rejects a second vote from the same unit.
func (r *Repository) AddVote(ctx context.Context, v assembly.Vote) error {
	if r == nil || r.db == nil {
		return errors.New("assembly repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (id, voting_id, option_id, unit_id, coefficient_weight, cast_at)
VALUES ($1,$2,$3,$4,$5,$6)`, r.tables.name(votesTable)),
		v.ID, v.VotingID, v.OptionID, v.UnitID, v.CoefficientWeight, v.CastAt.UTC(),
	)
	if isUniqueViolation(err) {
		return assembly.ErrDuplicateVote
	}
	return err
}

// ListVotes returns the votes of a voting in casting order.
func (r *Repository) ListVotes(ctx context.Context, votingID string) ([]assembly.Vote, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("assembly repo: nil db")
	}
	var rows []voteRow
	err := r.db.SelectContext(ctx, &rows, fmt.Sprintf(`
SELECT id, voting_id, option_id, unit_id, coefficient_weight, cast_at
FROM %s
WHERE voting_id = $1
ORDER BY cast_at ASC, id ASC`, r.tables.name(votesTable)), votingID)
	if err != nil {
		return nil, err
	}
	votes := make([]assembly.Vote, 0, len(rows))
	for _, row := range rows {
		votes = append(votes, assembly.Vote{
			ID:                row.ID,
			VotingID:          row.VotingID,
			OptionID:          row.OptionID,
			UnitID:            row.UnitID,
			CoefficientWeight: row.CoefficientWeight,
			CastAt:            row.CastAt.UTC(),
		})
	}
	return votes, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
