package assembly

import "context"

// Repository persists the assemblies of one complex.
type Repository interface {
	CreateAssembly(ctx context.Context, a Assembly) error
	GetAssembly(ctx context.Context, id string) (*Assembly, error)

	// EligibleUnits returns the active units of the complex.
	EligibleUnits(ctx context.Context) ([]Unit, error)
	GetUnit(ctx context.Context, id string) (*Unit, error)

	// AddAttendance fails with ErrDuplicateAttendance when the unit is
	// already registered for the assembly.
	AddAttendance(ctx context.Context, a Attendance) error
	ListAttendance(ctx context.Context, assemblyID string) ([]Attendance, error)
	GetAttendance(ctx context.Context, assemblyID, unitID string) (*Attendance, error)

	CreateVoting(ctx context.Context, v Voting) error
	GetVoting(ctx context.Context, id string) (*Voting, error)

	// AddVote fails with ErrDuplicateVote when the unit already voted.
	AddVote(ctx context.Context, v Vote) error
	ListVotes(ctx context.Context, votingID string) ([]Vote, error)
}

// Store resolves the tenant-scoped repository of a complex.
type Store interface {
	ForComplex(ctx context.Context, complexID int64) (Repository, error)
}
