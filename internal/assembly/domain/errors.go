package assembly

import "residential-cloud/internal/apperr"

var (
	// ErrAssemblyNotFound is returned when an assembly does not exist.
	ErrAssemblyNotFound = apperr.New(apperr.KindNotFound, "assembly: assembly not found")
	// ErrVotingNotFound is returned when a voting does not exist.
	ErrVotingNotFound = apperr.New(apperr.KindNotFound, "assembly: voting not found")
	// ErrUnitNotFound is returned when a unit is not an active unit of the complex.
	ErrUnitNotFound = apperr.New(apperr.KindNotFound, "assembly: unit not found")
	// ErrDuplicateAttendance is returned when a unit is registered twice for an assembly.
	ErrDuplicateAttendance = apperr.New(apperr.KindConflict, "assembly: unit already registered for assembly")
	// ErrDuplicateVote is returned when a unit votes twice in a voting.
	ErrDuplicateVote = apperr.New(apperr.KindConflict, "assembly: unit already voted")
	// ErrUnitNotPresent is returned when a unit votes without attending the assembly.
	ErrUnitNotPresent = apperr.Validation("unitId", "assembly: unit is not registered as attending")
	// ErrOptionNotFound is returned when a vote names an option the voting does not offer.
	ErrOptionNotFound = apperr.Validation("optionId", "assembly: option not offered by voting")
)
