package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// AttendanceRegistered is emitted when a unit is registered at an assembly.
type AttendanceRegistered struct {
	ComplexID      int64           `json:"complexId"`
	AssemblyID     string          `json:"assemblyId"`
	UnitID         string          `json:"unitId"`
	AttendanceType string          `json:"attendanceType"`
	Coefficient    decimal.Decimal `json:"coefficient"`
	QuorumReached  bool            `json:"quorumReached"`
	RegisteredAt   time.Time       `json:"registeredAt"`
}

func (AttendanceRegistered) EventType() string { return "assembly.attendance_registered" }

// VoteCast is emitted when a unit casts a vote.
type VoteCast struct {
	ComplexID         int64           `json:"complexId"`
	VotingID          string          `json:"votingId"`
	VoteID            string          `json:"voteId"`
	UnitID            string          `json:"unitId"`
	OptionID          string          `json:"optionId"`
	CoefficientWeight decimal.Decimal `json:"coefficientWeight"`
	CastAt            time.Time       `json:"castAt"`
}

func (VoteCast) EventType() string { return "assembly.vote_cast" }
