package assembly

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"residential-cloud/internal/apperr"
)

// Assembly is a meeting of the unit owners of a complex.
type Assembly struct {
	ID          string    `json:"id"`
	ComplexID   int64     `json:"complexId"`
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduledAt"`
	// QuorumPercentage overrides the complex policy when set.
	QuorumPercentage *float64  `json:"quorumPercentage,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Validate checks the assembly definition.
func (a Assembly) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return apperr.Validation("title", "assembly: title is required")
	}
	if a.ScheduledAt.IsZero() {
		return apperr.Validation("scheduledAt", "assembly: scheduled time is required")
	}
	if a.QuorumPercentage != nil && (*a.QuorumPercentage <= 0 || *a.QuorumPercentage > 100) {
		return apperr.Validation("quorumPercentage", "assembly: quorum percentage must be in (0, 100]")
	}
	return nil
}

// RequiredQuorum returns the assembly's quorum override, or fallback.
func (a Assembly) RequiredQuorum(fallback float64) float64 {
	if a.QuorumPercentage != nil {
		return *a.QuorumPercentage
	}
	return fallback
}

// Unit is a property unit eligible to attend and vote. Coefficient is its
// ownership weight in percent.
type Unit struct {
	ID          string          `json:"id"`
	UnitNumber  string          `json:"unitNumber"`
	Coefficient decimal.Decimal `json:"coefficient"`
}

// TotalCoefficient sums the coefficients of units.
func TotalCoefficient(units []Unit) decimal.Decimal {
	total := decimal.Zero
	for _, u := range units {
		total = total.Add(u.Coefficient)
	}
	return total
}
