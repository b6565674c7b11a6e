package assembly

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"residential-cloud/internal/apperr"
)

// VotingType selects the approval rule of a voting.
type VotingType string

const (
	VotingSimpleMajority    VotingType = "SIMPLE_MAJORITY"
	VotingQualifiedMajority VotingType = "QUALIFIED_MAJORITY"
	VotingUnanimous         VotingType = "UNANIMOUS"
	VotingCoefficientBased  VotingType = "COEFFICIENT_BASED"
)

// PercentageBase is what a qualified majority is measured against.
type PercentageBase string

const (
	// BaseAttendees measures against the coefficient that voted.
	BaseAttendees PercentageBase = "ATTENDEES"
	// BaseTotalCoefficients measures against every unit of the complex.
	BaseTotalCoefficients PercentageBase = "TOTAL_COEFFICIENTS"
)

// Rule is the approval rule of a voting. RequiredPercentage is only used by
// qualified-majority and coefficient-based votings, Base only by qualified
// majority.
type Rule struct {
	Type               VotingType          `json:"type"`
	RequiredPercentage decimal.NullDecimal `json:"requiredPercentage"`
	Base               PercentageBase      `json:"baseForPercentage,omitempty"`
}

// Normalize upper-cases the enums and applies the default base.
func (r *Rule) Normalize() {
	r.Type = VotingType(strings.ToUpper(strings.TrimSpace(string(r.Type))))
	r.Base = PercentageBase(strings.ToUpper(strings.TrimSpace(string(r.Base))))
	if r.Type == VotingQualifiedMajority && r.Base == "" {
		r.Base = BaseAttendees
	}
}

// Validate checks that the rule can be evaluated.
func (r Rule) Validate() error {
	switch r.Type {
	case VotingSimpleMajority, VotingUnanimous:
		return nil
	case VotingQualifiedMajority:
		switch r.Base {
		case BaseAttendees, BaseTotalCoefficients:
		default:
			return apperr.Validation("baseForPercentage", "assembly: unsupported percentage base")
		}
	case VotingCoefficientBased:
	default:
		return apperr.Validation("type", "assembly: unsupported voting type")
	}
	if !r.RequiredPercentage.Valid {
		return apperr.Validation("requiredPercentage", "assembly: required percentage is missing")
	}
	p := r.RequiredPercentage.Decimal
	if !p.IsPositive() || p.GreaterThan(hundred) {
		return apperr.Validation("requiredPercentage", "assembly: required percentage must be in (0, 100]")
	}
	return nil
}

// Option is a choice offered by a voting.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Voting is a question put to the units attending an assembly.
type Voting struct {
	ID         string    `json:"id"`
	AssemblyID string    `json:"assemblyId"`
	Question   string    `json:"question"`
	Rule       Rule      `json:"rule"`
	Options    []Option  `json:"options"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Validate checks the voting definition.
func (v Voting) Validate() error {
	if strings.TrimSpace(v.AssemblyID) == "" {
		return apperr.Validation("assemblyId", "assembly: assembly id is required")
	}
	if strings.TrimSpace(v.Question) == "" {
		return apperr.Validation("question", "assembly: question is required")
	}
	if len(v.Options) < 2 {
		return apperr.Validation("options", "assembly: a voting needs at least two options")
	}
	seen := make(map[string]struct{}, len(v.Options))
	for _, o := range v.Options {
		if strings.TrimSpace(o.ID) == "" || strings.TrimSpace(o.Label) == "" {
			return apperr.Validation("options", "assembly: options need an id and a label")
		}
		if _, dup := seen[o.ID]; dup {
			return apperr.Validation("options", "assembly: duplicate option id "+o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	return v.Rule.Validate()
}

// HasOption reports whether the voting offers optionID.
func (v Voting) HasOption(optionID string) bool {
	for _, o := range v.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Vote is the ballot of one unit, weighted by its coefficient.
type Vote struct {
	ID                string          `json:"id"`
	VotingID          string          `json:"votingId"`
	OptionID          string          `json:"optionId"`
	UnitID            string          `json:"unitId"`
	CoefficientWeight decimal.Decimal `json:"coefficientWeight"`
	CastAt            time.Time       `json:"castAt"`
}

// OptionTally is the aggregate of one option.
type OptionTally struct {
	OptionID    string          `json:"optionId"`
	Label       string          `json:"label,omitempty"`
	Votes       int             `json:"votes"`
	Coefficient decimal.Decimal `json:"coefficient"`
}

// TallyResult is the outcome of a voting.
type TallyResult struct {
	PerOption             []OptionTally   `json:"perOption"`
	TotalVotes            int             `json:"totalVotes"`
	TotalCoefficientVoted decimal.Decimal `json:"totalCoefficientVoted"`
	WinningOptionID       string          `json:"winningOptionId,omitempty"`
	Tie                   bool            `json:"tie"`
	// ApprovalPercentage is the winner's share of the rule's base.
	ApprovalPercentage decimal.Decimal `json:"approvalPercentage"`
	IsApproved         bool            `json:"isApproved"`
}

// Tally aggregates votes per option and applies rule. Declared options come
// first in their declared order, including those without votes; options
// that only appear in votes follow in order of first appearance. An exact
// tie for the highest coefficient has no winner and is not approved.
func Tally(votes []Vote, rule Rule, totalCoefficientsInComplex decimal.Decimal, options ...Option) (TallyResult, error) {
	rule.Normalize()
	if err := rule.Validate(); err != nil {
		return TallyResult{}, err
	}

	index := make(map[string]int, len(options))
	perOption := make([]OptionTally, 0, len(options))
	for _, o := range options {
		if _, ok := index[o.ID]; ok {
			continue
		}
		index[o.ID] = len(perOption)
		perOption = append(perOption, OptionTally{OptionID: o.ID, Label: o.Label, Coefficient: decimal.Zero})
	}

	total := decimal.Zero
	for _, v := range votes {
		i, ok := index[v.OptionID]
		if !ok {
			i = len(perOption)
			index[v.OptionID] = i
			perOption = append(perOption, OptionTally{OptionID: v.OptionID, Coefficient: decimal.Zero})
		}
		perOption[i].Votes++
		perOption[i].Coefficient = perOption[i].Coefficient.Add(v.CoefficientWeight)
		total = total.Add(v.CoefficientWeight)
	}

	result := TallyResult{
		PerOption:             perOption,
		TotalVotes:            len(votes),
		TotalCoefficientVoted: total,
		ApprovalPercentage:    decimal.Zero,
	}
	if len(votes) == 0 {
		return result, nil
	}

	winner := -1
	for i, o := range perOption {
		if o.Votes == 0 {
			continue
		}
		switch {
		case winner < 0 || o.Coefficient.GreaterThan(perOption[winner].Coefficient):
			winner = i
			result.Tie = false
		case o.Coefficient.Equal(perOption[winner].Coefficient):
			result.Tie = true
		}
	}
	if winner < 0 || result.Tie {
		return result, nil
	}
	top := perOption[winner]
	result.WinningOptionID = top.OptionID

	switch rule.Type {
	case VotingSimpleMajority:
		result.ApprovalPercentage = share(top.Coefficient, total)
		result.IsApproved = top.Coefficient.Mul(decimal.NewFromInt(2)).GreaterThan(total)
	case VotingUnanimous:
		result.ApprovalPercentage = share(top.Coefficient, total)
		result.IsApproved = top.Votes == len(votes)
	case VotingQualifiedMajority:
		base := total
		if rule.Base == BaseTotalCoefficients {
			base = totalCoefficientsInComplex
		}
		if base.IsPositive() {
			result.ApprovalPercentage = share(top.Coefficient, base)
			result.IsApproved = result.ApprovalPercentage.GreaterThanOrEqual(rule.RequiredPercentage.Decimal)
		}
	case VotingCoefficientBased:
		if total.IsPositive() {
			result.ApprovalPercentage = share(top.Coefficient, total)
			result.IsApproved = result.ApprovalPercentage.GreaterThanOrEqual(rule.RequiredPercentage.Decimal)
		}
	}
	return result, nil
}

// share returns part as a percentage of whole. whole must be positive for a
// non-zero result.
func share(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole)
}
