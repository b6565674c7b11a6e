package billing

import "github.com/shopspring/decimal"

// Property is a billable unit of a complex. Area is nullable; Coefficient is
// the ownership weight in percent.
type Property struct {
	ID          string              `json:"id"`
	ComplexID   int64               `json:"complexId"`
	UnitNumber  string              `json:"unitNumber"`
	Area        decimal.NullDecimal `json:"area"`
	Coefficient decimal.Decimal     `json:"coefficient"`
	IsActive    bool                `json:"isActive"`
}

// ActiveProperties filters properties to the active ones, preserving order.
func ActiveProperties(properties []Property) []Property {
	result := make([]Property, 0, len(properties))
	for _, p := range properties {
		if p.IsActive {
			result = append(result, p)
		}
	}
	return result
}
