package memory

import (
	"context"
	"sort"
	"sync"

	assembly "residential-cloud/internal/assembly/domain"
	"residential-cloud/internal/tenant"
)

// Store keeps assembly data per complex in memory.
type Store struct {
	mu        sync.Mutex
	directory tenant.Directory
	books     map[int64]*Book
}

// NewStore constructs a store. When directory is non-nil, unknown complexes
// are refused.
func NewStore(directory tenant.Directory) *Store {
	return &Store{directory: directory, books: make(map[int64]*Book)}
}

// ForComplex returns the repository of complexID.
func (s *Store) ForComplex(ctx context.Context, complexID int64) (assembly.Repository, error) {
	return s.book(ctx, complexID)
}

// Book returns the concrete repository of complexID for seeding.
func (s *Store) Book(complexID int64) *Book {
	b, _ := s.book(context.Background(), complexID)
	return b
}

func (s *Store) book(ctx context.Context, complexID int64) (*Book, error) {
	if s.directory != nil {
		if _, err := s.directory.Lookup(ctx, complexID); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.books[complexID]
	if b == nil {
		b = &Book{
			assemblies: make(map[string]assembly.Assembly),
			units:      make(map[string]assembly.Unit),
			attendance: make(map[string][]assembly.Attendance),
			votings:    make(map[string]assembly.Voting),
			votes:      make(map[string][]assembly.Vote),
		}
		s.books[complexID] = b
	}
	return b, nil
}

// Book holds the assemblies of one complex.
type Book struct {
	mu         sync.Mutex
	assemblies map[string]assembly.Assembly
	units      map[string]assembly.Unit
	attendance map[string][]assembly.Attendance
	votings    map[string]assembly.Voting
	votes      map[string][]assembly.Vote
}

// AddUnit seeds an eligible unit.
func (b *Book) AddUnit(u assembly.Unit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.units[u.ID] = u
}

func (b *Book) CreateAssembly(ctx context.Context, a assembly.Assembly) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assemblies[a.ID] = a
	return nil
}

func (b *Book) GetAssembly(ctx context.Context, id string) (*assembly.Assembly, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.assemblies[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (b *Book) EligibleUnits(ctx context.Context) ([]assembly.Unit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	units := make([]assembly.Unit, 0, len(b.units))
	for _, u := range b.units {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].UnitNumber < units[j].UnitNumber })
	return units, nil
}

func (b *Book) GetUnit(ctx context.Context, id string) (*assembly.Unit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.units[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (b *Book) AddAttendance(ctx context.Context, a assembly.Attendance) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.attendance[a.AssemblyID] {
		if existing.UnitID == a.UnitID {
			return assembly.ErrDuplicateAttendance
		}
	}
	b.attendance[a.AssemblyID] = append(b.attendance[a.AssemblyID], a)
	return nil
}

func (b *Book) ListAttendance(ctx context.Context, assemblyID string) ([]assembly.Attendance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]assembly.Attendance(nil), b.attendance[assemblyID]...), nil
}

func (b *Book) GetAttendance(ctx context.Context, assemblyID, unitID string) (*assembly.Attendance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.attendance[assemblyID] {
		if a.UnitID == unitID {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (b *Book) CreateVoting(ctx context.Context, v assembly.Voting) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	v.Options = append([]assembly.Option(nil), v.Options...)
	b.votings[v.ID] = v
	return nil
}

func (b *Book) GetVoting(ctx context.Context, id string) (*assembly.Voting, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.votings[id]
	if !ok {
		return nil, nil
	}
	v.Options = append([]assembly.Option(nil), v.Options...)
	return &v, nil
}

func (b *Book) AddVote(ctx context.Context, v assembly.Vote) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.votes[v.VotingID] {
		if existing.UnitID == v.UnitID {
			return assembly.ErrDuplicateVote
		}
	}
	b.votes[v.VotingID] = append(b.votes[v.VotingID], v)
	return nil
}

func (b *Book) ListVotes(ctx context.Context, votingID string) ([]assembly.Vote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]assembly.Vote(nil), b.votes[votingID]...), nil
}
