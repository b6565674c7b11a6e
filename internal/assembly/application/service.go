package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"residential-cloud/internal/apperr"
	assembly "residential-cloud/internal/assembly/domain"
	"residential-cloud/internal/eventing"
	"residential-cloud/internal/observability/metrics"
	"residential-cloud/internal/tenant"
)

// AttendanceRequest registers one unit at an assembly.
type AttendanceRequest struct {
	AssemblyID       string
	UnitID           string
	Type             assembly.AttendanceType
	ProxyUserID      string
	ProxyDocumentURL string
}

// VoteRequest casts the vote of one unit.
type VoteRequest struct {
	VotingID string
	UnitID   string
	OptionID string
}

// VotingResult is a voting with its tally.
type VotingResult struct {
	VotingID   string               `json:"votingId"`
	AssemblyID string               `json:"assemblyId"`
	Question   string               `json:"question"`
	Rule       assembly.Rule        `json:"rule"`
	Tally      assembly.TallyResult `json:"tally"`
}

// Service runs quorum checks and votings of assemblies.
type Service struct {
	store  assembly.Store
	policy QuorumPolicy
	events EventEmitter
	clock  Clock
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the quorum policy.
func WithPolicy(policy QuorumPolicy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithEvents sets the event emitter.
func WithEvents(events EventEmitter) Option {
	return func(s *Service) {
		s.events = events
	}
}

// WithClock sets the clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs an assembly service.
func NewService(store assembly.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("assembly service: nil store")
	}
	s := &Service{store: store, clock: systemClock{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) repository(ctx context.Context, complexID int64, auth tenant.Authorization) (assembly.Repository, error) {
	if err := auth.Check(complexID, tenant.FeatureAssemblies); err != nil {
		return nil, err
	}
	return s.store.ForComplex(ctx, complexID)
}

func (s *Service) requiredQuorum(complexID int64, a *assembly.Assembly) float64 {
	fallback := assembly.DefaultQuorumPercentage
	if s.policy != nil {
		if p := s.policy.QuorumPercentage(complexID); p > 0 {
			fallback = p
		}
	}
	return a.RequiredQuorum(fallback)
}

// CreateAssembly schedules an assembly.
func (s *Service) CreateAssembly(ctx context.Context, complexID int64, a assembly.Assembly, auth tenant.Authorization) (*assembly.Assembly, error) {
	repo, err := s.repository(ctx, complexID, auth)
	if err != nil {
		return nil, err
	}
	a.ID = uuid.NewString()
	a.ComplexID = complexID
	a.Title = strings.TrimSpace(a.Title)
	a.ScheduledAt = a.ScheduledAt.UTC()
	a.CreatedAt = s.clock.Now()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := repo.CreateAssembly(ctx, a); err != nil {
		return nil, err
	}
	return &a, nil
}

// QuorumStatus reports whether enough units attend the assembly. The
// threshold is the assembly override, then the complex policy, then
// DefaultQuorumPercentage.
func (s *Service) QuorumStatus(ctx context.Context, complexID int64, assemblyID string, auth tenant.Authorization) (*assembly.QuorumStatus, error) {
	repo, err := s.repository(ctx, complexID, auth)
	if err != nil {
		return nil, err
	}
	return s.quorumStatus(ctx, repo, complexID, assemblyID)
}

func (s *Service) quorumStatus(ctx context.Context, repo assembly.Repository, complexID int64, assemblyID string) (*assembly.QuorumStatus, error) {
	a, err := repo.GetAssembly(ctx, assemblyID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, assembly.ErrAssemblyNotFound
	}
	units, err := repo.EligibleUnits(ctx)
	if err != nil {
		return nil, err
	}
	attendance, err := repo.ListAttendance(ctx, assemblyID)
	if err != nil {
		return nil, err
	}
	required := s.requiredQuorum(complexID, a)
	result := assembly.Quorum(len(attendance), len(units), required)
	return &assembly.QuorumStatus{
		AssemblyID:         assemblyID,
		ConfirmedAttendees: len(attendance),
		TotalEligible:      len(units),
		QuorumReached:      result.QuorumReached,
		QuorumPercentage:   required,
		CurrentPercentage:  result.CurrentPercentage,
		CoefficientPresent: assembly.CoefficientPresent(attendance),
	}, nil
}

// RegisterAttendance confirms a unit at an assembly. The attendance weight
// is the unit's coefficient from the roster.
func (s *Service) RegisterAttendance(ctx context.Context, complexID int64, req AttendanceRequest, auth tenant.Authorization) (*assembly.Attendance, *assembly.QuorumStatus, error) {
	repo, err := s.repository(ctx, complexID, auth)
	if err != nil {
		return nil, nil, err
	}
	attendanceType, ok := assembly.NormalizeAttendanceType(string(req.Type))
	if !ok {
		attendanceType = req.Type
	}
	att := assembly.Attendance{
		AssemblyID:       strings.TrimSpace(req.AssemblyID),
		UnitID:           strings.TrimSpace(req.UnitID),
		Type:             attendanceType,
		ProxyUserID:      strings.TrimSpace(req.ProxyUserID),
		ProxyDocumentURL: strings.TrimSpace(req.ProxyDocumentURL),
		RegisteredAt:     s.clock.Now(),
	}
	if err := att.Validate(); err != nil {
		return nil, nil, err
	}

	a, err := repo.GetAssembly(ctx, att.AssemblyID)
	if err != nil {
		return nil, nil, err
	}
	if a == nil {
		return nil, nil, assembly.ErrAssemblyNotFound
	}
	unit, err := repo.GetUnit(ctx, att.UnitID)
	if err != nil {
		return nil, nil, err
	}
	if unit == nil {
		return nil, nil, assembly.ErrUnitNotFound
	}
	att.Coefficient = unit.Coefficient
	if err := att.Validate(); err != nil {
		return nil, nil, err
	}
	if err := repo.AddAttendance(ctx, att); err != nil {
		return nil, nil, err
	}

	status, err := s.quorumStatus(ctx, repo, complexID, att.AssemblyID)
	if err != nil {
		return nil, nil, err
	}
	s.emit(ctx, complexID, AttendanceRegistered{
		ComplexID:      complexID,
		AssemblyID:     att.AssemblyID,
		UnitID:         att.UnitID,
		AttendanceType: string(att.Type),
		Coefficient:    att.Coefficient,
		QuorumReached:  status.QuorumReached,
		RegisteredAt:   att.RegisteredAt,
	})
	return &att, status, nil
}

// CreateVoting opens a voting at an assembly.
func (s *Service) CreateVoting(ctx context.Context, complexID int64, v assembly.Voting, auth tenant.Authorization) (*assembly.Voting, error) {
	repo, err := s.repository(ctx, complexID, auth)
	if err != nil {
		return nil, err
	}
	v.ID = uuid.NewString()
	v.Question = strings.TrimSpace(v.Question)
	v.CreatedAt = s.clock.Now()
	v.Rule.Normalize()
	if err := v.Validate(); err != nil {
		return nil, err
	}
	a, err := repo.GetAssembly(ctx, v.AssemblyID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, assembly.ErrAssemblyNotFound
	}
	if err := repo.CreateVoting(ctx, v); err != nil {
		return nil, err
	}
	return &v, nil
}

// CastVote records the vote of an attending unit, weighted by its
// attendance coefficient.
func (s *Service) CastVote(ctx context.Context, complexID int64, req VoteRequest, auth tenant.Authorization) (*assembly.Vote, error) {
	repo, err := s.repository(ctx, complexID, auth)
	if err != nil {
		return nil, err
	}
	req.UnitID = strings.TrimSpace(req.UnitID)
	req.OptionID = strings.TrimSpace(req.OptionID)
	if req.UnitID == "" {
		return nil, apperr.Validation("unitId", "assembly: unit id is required")
	}
	voting, err := repo.GetVoting(ctx, req.VotingID)
	if err != nil {
		return nil, err
	}
	if voting == nil {
		return nil, assembly.ErrVotingNotFound
	}
	if !voting.HasOption(req.OptionID) {
		return nil, assembly.ErrOptionNotFound
	}
	att, err := repo.GetAttendance(ctx, voting.AssemblyID, req.UnitID)
	if err != nil {
		return nil, err
	}
	if att == nil {
		return nil, assembly.ErrUnitNotPresent
	}

	vote := assembly.Vote{
		ID:                uuid.NewString(),
		VotingID:          voting.ID,
		OptionID:          req.OptionID,
		UnitID:            req.UnitID,
		CoefficientWeight: att.Coefficient,
		CastAt:            s.clock.Now(),
	}
	if err := repo.AddVote(ctx, vote); err != nil {
		return nil, err
	}
	s.emit(ctx, complexID, VoteCast{
		ComplexID:         complexID,
		VotingID:          vote.VotingID,
		VoteID:            vote.ID,
		UnitID:            vote.UnitID,
		OptionID:          vote.OptionID,
		CoefficientWeight: vote.CoefficientWeight,
		CastAt:            vote.CastAt,
	})
	return &vote, nil
}

// VotingResult tallies the votes of a voting.
func (s *Service) VotingResult(ctx context.Context, complexID int64, votingID string, auth tenant.Authorization) (*VotingResult, error) {
	repo, err := s.repository(ctx, complexID, auth)
	if err != nil {
		return nil, err
	}
	voting, err := repo.GetVoting(ctx, votingID)
	if err != nil {
		return nil, err
	}
	if voting == nil {
		return nil, assembly.ErrVotingNotFound
	}
	votes, err := repo.ListVotes(ctx, votingID)
	if err != nil {
		return nil, err
	}
	units, err := repo.EligibleUnits(ctx)
	if err != nil {
		return nil, err
	}
	tally, err := assembly.Tally(votes, voting.Rule, assembly.TotalCoefficient(units), voting.Options...)
	if err != nil {
		return nil, err
	}
	metrics.IncTally(string(voting.Rule.Type), tally.IsApproved)
	return &VotingResult{
		VotingID:   voting.ID,
		AssemblyID: voting.AssemblyID,
		Question:   voting.Question,
		Rule:       voting.Rule,
		Tally:      tally,
	}, nil
}

func (s *Service) emit(ctx context.Context, complexID int64, event eventing.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, complexID, event); err != nil {
		s.logger.Warn("assembly event publish failed", "complex_id", complexID, "event", event.EventType(), "error", err)
	}
}
