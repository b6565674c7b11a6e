package assembly

import "github.com/shopspring/decimal"

// DefaultQuorumPercentage applies when neither the assembly nor the complex
// policy configures a quorum.
const DefaultQuorumPercentage = 50.0

var hundred = decimal.NewFromInt(100)

// QuorumResult is the outcome of a quorum check.
type QuorumResult struct {
	CurrentPercentage float64 `json:"currentPercentage"`
	QuorumReached     bool    `json:"quorumReached"`
}

// Quorum compares the share of attending units against required. With no
// eligible units the quorum is never reached. A non-positive required
// percentage means DefaultQuorumPercentage.
func Quorum(confirmedAttendees, totalEligibleUnits int, requiredPercentage float64) QuorumResult {
	if requiredPercentage <= 0 {
		requiredPercentage = DefaultQuorumPercentage
	}
	if totalEligibleUnits <= 0 {
		return QuorumResult{}
	}
	current := float64(confirmedAttendees) * 100 / float64(totalEligibleUnits)
	return QuorumResult{CurrentPercentage: current, QuorumReached: current >= requiredPercentage}
}

// QuorumStatus is the quorum state of an assembly.
type QuorumStatus struct {
	AssemblyID         string          `json:"assemblyId"`
	ConfirmedAttendees int             `json:"confirmedAttendees"`
	TotalEligible      int             `json:"totalEligible"`
	QuorumReached      bool            `json:"quorumReached"`
	QuorumPercentage   float64         `json:"quorumPercentage"`
	CurrentPercentage  float64         `json:"currentPercentage"`
	CoefficientPresent decimal.Decimal `json:"coefficientPresent"`
}
