package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"residential-cloud/internal/apperr"
	assembly "residential-cloud/internal/assembly/domain"
	"residential-cloud/internal/assembly/infrastructure/memory"
	"residential-cloud/internal/eventing"
	"residential-cloud/internal/tenant"
)

const testComplex int64 = 3

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type stubPolicy float64

func (p stubPolicy) QuorumPercentage(int64) float64 { return float64(p) }

func granted() tenant.Authorization {
	return tenant.Authorization{ComplexID: testComplex, Feature: tenant.FeatureAssemblies, Granted: true}
}

func required(v string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(v), Valid: true}
}

// seeded returns a service over ten units of 10% each.
func seeded(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore(nil)
	book := store.Book(testComplex)
	for i := 1; i <= 10; i++ {
		book.AddUnit(assembly.Unit{
			ID:          fmt.Sprintf("u%02d", i),
			UnitNumber:  fmt.Sprintf("%d01", i),
			Coefficient: decimal.NewFromInt(10),
		})
	}
	opts = append([]Option{WithClock(fixedClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)})}, opts...)
	svc, err := NewService(store, opts...)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, store
}

func createAssembly(t *testing.T, svc *Service, quorum *float64) *assembly.Assembly {
	t.Helper()
	a, err := svc.CreateAssembly(context.Background(), testComplex, assembly.Assembly{
		Title:            "Ordinary assembly 2024",
		ScheduledAt:      time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		QuorumPercentage: quorum,
	}, granted())
	if err != nil {
		t.Fatalf("create assembly: %v", err)
	}
	return a
}

func attend(t *testing.T, svc *Service, assemblyID string, units ...string) *assembly.QuorumStatus {
	t.Helper()
	var status *assembly.QuorumStatus
	for _, u := range units {
		var err error
		_, status, err = svc.RegisterAttendance(context.Background(), testComplex, AttendanceRequest{
			AssemblyID: assemblyID,
			UnitID:     u,
			Type:       assembly.AttendancePresent,
		}, granted())
		if err != nil {
			t.Fatalf("attend %s: %v", u, err)
		}
	}
	return status
}

func TestQuorumStatusUsesPolicyThenOverride(t *testing.T) {
	svc, _ := seeded(t, WithPolicy(stubPolicy(60)))
	a := createAssembly(t, svc, nil)

	status := attend(t, svc, a.ID, "u01", "u02", "u03", "u04", "u05")
	if status.QuorumReached || status.QuorumPercentage != 60 || status.CurrentPercentage != 50 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.ConfirmedAttendees != 5 || status.TotalEligible != 10 || !status.CoefficientPresent.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected counts %+v", status)
	}
	status = attend(t, svc, a.ID, "u06")
	if !status.QuorumReached {
		t.Fatalf("expected quorum at 60%%, got %+v", status)
	}

	override := 40.0
	b := createAssembly(t, svc, &override)
	status = attend(t, svc, b.ID, "u01", "u02", "u03", "u04")
	if !status.QuorumReached || status.QuorumPercentage != 40 {
		t.Fatalf("expected override quorum, got %+v", status)
	}
}

func TestQuorumDefaultsToFifty(t *testing.T) {
	svc, _ := seeded(t)
	a := createAssembly(t, svc, nil)
	status, err := svc.QuorumStatus(context.Background(), testComplex, a.ID, granted())
	if err != nil {
		t.Fatalf("quorum: %v", err)
	}
	if status.QuorumPercentage != assembly.DefaultQuorumPercentage || status.QuorumReached {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestRegisterAttendanceRejections(t *testing.T) {
	svc, _ := seeded(t)
	a := createAssembly(t, svc, nil)
	attend(t, svc, a.ID, "u01")

	cases := []struct {
		name string
		req  AttendanceRequest
		want error
		kind apperr.Kind
	}{
		{name: "duplicate", req: AttendanceRequest{AssemblyID: a.ID, UnitID: "u01", Type: assembly.AttendancePresent}, want: assembly.ErrDuplicateAttendance},
		{name: "unknown unit", req: AttendanceRequest{AssemblyID: a.ID, UnitID: "u99", Type: assembly.AttendanceVirtual}, want: assembly.ErrUnitNotFound},
		{name: "unknown assembly", req: AttendanceRequest{AssemblyID: "nope", UnitID: "u02", Type: assembly.AttendancePresent}, want: assembly.ErrAssemblyNotFound},
		{name: "proxy without document", req: AttendanceRequest{AssemblyID: a.ID, UnitID: "u02", Type: "proxy", ProxyUserID: "p-1"}, kind: apperr.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.RegisterAttendance(context.Background(), testComplex, tc.req, granted())
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.kind != "" && apperr.KindOf(err) != tc.kind {
				t.Fatalf("expected kind %s, got %v", tc.kind, err)
			}
		})
	}

	att, _, err := svc.RegisterAttendance(context.Background(), testComplex, AttendanceRequest{
		AssemblyID: a.ID, UnitID: "u02", Type: "proxy", ProxyUserID: "p-1", ProxyDocumentURL: "https://docs.example.com/p1.pdf",
	}, granted())
	if err != nil || att.Type != assembly.AttendanceProxy || !att.Coefficient.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("proxy attendance: %+v %v", att, err)
	}
}

func TestVotingFlow(t *testing.T) {
	pub := eventing.NewMemoryPublisher()
	svc, _ := seeded(t, WithEvents(eventing.NewEmitter(pub, nil)))
	a := createAssembly(t, svc, nil)
	attend(t, svc, a.ID, "u01", "u02", "u03", "u04", "u05", "u06", "u07", "u08", "u09", "u10")

	voting, err := svc.CreateVoting(context.Background(), testComplex, assembly.Voting{
		AssemblyID: a.ID,
		Question:   "Approve the facade repair budget?",
		Rule:       assembly.Rule{Type: "qualified_majority", RequiredPercentage: required("70")},
		Options:    []assembly.Option{{ID: "yes", Label: "Yes"}, {ID: "no", Label: "No"}},
	}, granted())
	if err != nil {
		t.Fatalf("create voting: %v", err)
	}
	if voting.Rule.Base != assembly.BaseAttendees {
		t.Fatalf("expected default base, got %s", voting.Rule.Base)
	}

	ballots := map[string]string{"u01": "yes", "u02": "yes", "u03": "yes", "u04": "yes", "u05": "yes", "u06": "yes", "u07": "no", "u08": "no"}
	for unit, option := range ballots {
		if _, err := svc.CastVote(context.Background(), testComplex, VoteRequest{VotingID: voting.ID, UnitID: unit, OptionID: option}, granted()); err != nil {
			t.Fatalf("vote %s: %v", unit, err)
		}
	}
	if _, err := svc.CastVote(context.Background(), testComplex, VoteRequest{VotingID: voting.ID, UnitID: "u01", OptionID: "no"}, granted()); !errors.Is(err, assembly.ErrDuplicateVote) {
		t.Fatalf("expected duplicate vote, got %v", err)
	}
	if _, err := svc.CastVote(context.Background(), testComplex, VoteRequest{VotingID: voting.ID, UnitID: "u09", OptionID: "maybe"}, granted()); !errors.Is(err, assembly.ErrOptionNotFound) {
		t.Fatalf("expected unknown option, got %v", err)
	}

	result, err := svc.VotingResult(context.Background(), testComplex, voting.ID, granted())
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	// 60 of 80 voted is 75%
	if !result.Tally.IsApproved || result.Tally.WinningOptionID != "yes" || result.Tally.TotalVotes != 8 {
		t.Fatalf("unexpected tally %+v", result.Tally)
	}
	if !result.Tally.ApprovalPercentage.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("unexpected approval percentage %s", result.Tally.ApprovalPercentage)
	}

	var voteEvents int
	for _, env := range pub.Envelopes() {
		if env.EventType == "assembly.vote_cast" {
			voteEvents++
		}
	}
	if voteEvents != len(ballots) {
		t.Fatalf("expected %d vote events, got %d", len(ballots), voteEvents)
	}
}

func TestVotingAgainstTotalCoefficients(t *testing.T) {
	svc, _ := seeded(t)
	a := createAssembly(t, svc, nil)
	attend(t, svc, a.ID, "u01", "u02", "u03", "u04", "u05")
	voting, err := svc.CreateVoting(context.Background(), testComplex, assembly.Voting{
		AssemblyID: a.ID,
		Question:   "Change the bylaws?",
		Rule:       assembly.Rule{Type: assembly.VotingQualifiedMajority, RequiredPercentage: required("50"), Base: assembly.BaseTotalCoefficients},
		Options:    []assembly.Option{{ID: "yes", Label: "Yes"}, {ID: "no", Label: "No"}},
	}, granted())
	if err != nil {
		t.Fatalf("create voting: %v", err)
	}
	for _, u := range []string{"u01", "u02", "u03", "u04", "u05"} {
		if _, err := svc.CastVote(context.Background(), testComplex, VoteRequest{VotingID: voting.ID, UnitID: u, OptionID: "yes"}, granted()); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}
	result, err := svc.VotingResult(context.Background(), testComplex, voting.ID, granted())
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if !result.Tally.IsApproved || !result.Tally.ApprovalPercentage.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected approval at 50%% of the complex, got %+v", result.Tally)
	}
}

func TestCastVoteRequiresAttendance(t *testing.T) {
	svc, _ := seeded(t)
	a := createAssembly(t, svc, nil)
	voting, err := svc.CreateVoting(context.Background(), testComplex, assembly.Voting{
		AssemblyID: a.ID,
		Question:   "Paint the lobby?",
		Rule:       assembly.Rule{Type: assembly.VotingSimpleMajority},
		Options:    []assembly.Option{{ID: "yes", Label: "Yes"}, {ID: "no", Label: "No"}},
	}, granted())
	if err != nil {
		t.Fatalf("create voting: %v", err)
	}
	_, err = svc.CastVote(context.Background(), testComplex, VoteRequest{VotingID: voting.ID, UnitID: "u01", OptionID: "yes"}, granted())
	if !errors.Is(err, assembly.ErrUnitNotPresent) {
		t.Fatalf("expected unit not present, got %v", err)
	}
	_, err = svc.CastVote(context.Background(), testComplex, VoteRequest{VotingID: voting.ID, UnitID: "  ", OptionID: "yes"}, granted())
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for blank unit, got %v", err)
	}
	if _, err := svc.VotingResult(context.Background(), testComplex, "missing", granted()); !errors.Is(err, assembly.ErrVotingNotFound) {
		t.Fatalf("expected voting not found, got %v", err)
	}
}

func TestServiceRequiresAssembliesFeature(t *testing.T) {
	svc, _ := seeded(t)
	cases := []tenant.Authorization{
		{},
		{ComplexID: testComplex, Feature: tenant.FeatureBilling, Granted: true},
		{ComplexID: testComplex + 1, Feature: tenant.FeatureAssemblies, Granted: true},
	}
	for _, auth := range cases {
		if _, err := svc.QuorumStatus(context.Background(), testComplex, "a", auth); !errors.Is(err, tenant.ErrFeatureNotGranted) {
			t.Fatalf("expected feature refusal for %+v, got %v", auth, err)
		}
	}
	if _, err := NewService(nil); err == nil {
		t.Fatalf("expected nil store error")
	}
}
