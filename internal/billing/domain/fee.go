package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"residential-cloud/internal/apperr"
)

// FeeType classifies a fee.
type FeeType string

const (
	FeeTypeMonthly           FeeType = "MONTHLY"
	FeeTypeExtraordinary     FeeType = "EXTRAORDINARY"
	FeeTypeSpecialAssessment FeeType = "SPECIAL_ASSESSMENT"
)

// CalculationKind selects how a fee amount is computed for a property.
type CalculationKind string

const (
	CalculationFlat    CalculationKind = "FLAT"
	CalculationPerArea CalculationKind = "PER_AREA"
	CalculationFormula CalculationKind = "FORMULA"
)

// Calculation is the fee calculation strategy. Formula is only set for
// CalculationFormula.
type Calculation struct {
	Kind    CalculationKind `json:"kind"`
	Formula string          `json:"formula,omitempty"`
}

// FormulaVars are the named variables available to a fee formula.
type FormulaVars struct {
	BaseAmount  decimal.Decimal
	Area        decimal.Decimal
	Coefficient decimal.Decimal
}

// FormulaEvaluator evaluates arithmetic fee formulas.
type FormulaEvaluator interface {
	Validate(formula string) error
	Evaluate(formula string, vars FormulaVars) (decimal.Decimal, error)
}

// FeeStructure is a fee definition of a complex. Fee records are never
// edited once created; amendments produce a new record.
type FeeStructure struct {
	ID          string          `json:"id"`
	ComplexID   int64           `json:"complexId"`
	Name        string          `json:"name"`
	Type        FeeType         `json:"type"`
	BaseAmount  decimal.Decimal `json:"baseAmount"`
	IsPerUnit   bool            `json:"isPerUnit"`
	IsActive    bool            `json:"isActive"`
	DueDay      int             `json:"dueDay"`
	Calculation Calculation     `json:"calculation"`
	Supersedes  string          `json:"supersedes,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// FeeChange carries the fields an amendment may change. Nil fields keep the
// previous value.
type FeeChange struct {
	Name        *string
	Type        *FeeType
	BaseAmount  *decimal.Decimal
	IsPerUnit   *bool
	DueDay      *int
	Calculation *Calculation
}

// NormalizeFeeType validates a fee type string.
func NormalizeFeeType(value string) (FeeType, bool) {
	switch t := FeeType(strings.ToUpper(strings.TrimSpace(value))); t {
	case FeeTypeMonthly, FeeTypeExtraordinary, FeeTypeSpecialAssessment:
		return t, true
	default:
		return "", false
	}
}

// Normalize reconciles IsPerUnit with the calculation kind. A fee without an
// explicit kind is FLAT or PER_AREA depending on IsPerUnit.
func (f *FeeStructure) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Calculation.Kind = CalculationKind(strings.ToUpper(string(f.Calculation.Kind)))
	switch f.Calculation.Kind {
	case "":
		if f.IsPerUnit {
			f.Calculation.Kind = CalculationPerArea
		} else {
			f.Calculation.Kind = CalculationFlat
		}
	case CalculationPerArea:
		f.IsPerUnit = true
	case CalculationFlat, CalculationFormula:
		f.IsPerUnit = false
	}
	if f.Calculation.Kind != CalculationFormula {
		f.Calculation.Formula = ""
	}
	f.Calculation.Formula = strings.TrimSpace(f.Calculation.Formula)
}

// Validate checks the fee definition. evaluator may be nil when the fee is
// not a formula fee.
func (f FeeStructure) Validate(evaluator FormulaEvaluator) error {
	if f.Name == "" {
		return apperr.Validation("name", "billing: fee name is required")
	}
	if _, ok := NormalizeFeeType(string(f.Type)); !ok {
		return apperr.Validation("type", "billing: unsupported fee type")
	}
	if f.BaseAmount.IsNegative() {
		return apperr.Validation("baseAmount", "billing: base amount must not be negative")
	}
	if f.DueDay < 1 || f.DueDay > 31 {
		return apperr.Validation("dueDay", "billing: due day must be between 1 and 31")
	}
	switch f.Calculation.Kind {
	case CalculationFlat, CalculationPerArea:
	case CalculationFormula:
		if f.Calculation.Formula == "" {
			return apperr.Validation("calculation.formula", "billing: formula is required")
		}
		if evaluator == nil {
			return ErrFormulaUnavailable
		}
		if err := evaluator.Validate(f.Calculation.Formula); err != nil {
			return apperr.Validation("calculation.formula", "billing: "+err.Error())
		}
	default:
		return apperr.Validation("calculation.kind", "billing: unsupported calculation kind")
	}
	return nil
}

// AmountFor computes the fee amount charged to property. Per-area fees on a
// property without a recorded area charge the base amount unscaled.
func (f FeeStructure) AmountFor(property Property, evaluator FormulaEvaluator) (decimal.Decimal, error) {
	switch f.Calculation.Kind {
	case CalculationPerArea:
		if !property.Area.Valid {
			return f.BaseAmount, nil
		}
		return f.BaseAmount.Mul(property.Area.Decimal), nil
	case CalculationFormula:
		if evaluator == nil {
			return decimal.Zero, ErrFormulaUnavailable
		}
		amount, err := evaluator.Evaluate(f.Calculation.Formula, FormulaVars{
			BaseAmount:  f.BaseAmount,
			Area:        property.Area.Decimal,
			Coefficient: property.Coefficient,
		})
		if err != nil {
			return decimal.Zero, err
		}
		if amount.IsNegative() {
			return decimal.Zero, apperr.Validation("calculation.formula", "billing: formula produced a negative amount")
		}
		return amount.Round(2), nil
	default:
		return f.BaseAmount, nil
	}
}

// Amend returns the replacement fee for f with change applied. The
// replacement is active and points back at f.
func (f FeeStructure) Amend(id string, change FeeChange, at time.Time) (FeeStructure, error) {
	if !f.IsActive {
		return FeeStructure{}, ErrFeeInactive
	}
	next := f
	next.ID = id
	next.Supersedes = f.ID
	next.IsActive = true
	next.CreatedAt = at
	if change.Name != nil {
		next.Name = *change.Name
	}
	if change.Type != nil {
		next.Type = *change.Type
	}
	if change.BaseAmount != nil {
		next.BaseAmount = *change.BaseAmount
	}
	if change.DueDay != nil {
		next.DueDay = *change.DueDay
	}
	if change.Calculation != nil {
		next.Calculation = *change.Calculation
	} else if change.IsPerUnit != nil {
		next.Calculation = Calculation{}
	}
	if change.IsPerUnit != nil {
		next.IsPerUnit = *change.IsPerUnit
	}
	next.Normalize()
	return next, nil
}

// ActiveFees filters fees to the active ones, preserving order.
func ActiveFees(fees []FeeStructure) []FeeStructure {
	result := make([]FeeStructure, 0, len(fees))
	for _, fee := range fees {
		if fee.IsActive {
			result = append(result, fee)
		}
	}
	return result
}
