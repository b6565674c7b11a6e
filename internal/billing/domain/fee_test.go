package billing

import (
	"errors"
	"testing"
	"time"

	"residential-cloud/internal/apperr"
)

func TestFeeNormalize(t *testing.T) {
	cases := []struct {
		name        string
		fee         FeeStructure
		wantKind    CalculationKind
		wantPerUnit bool
	}{
		{"flat by default", FeeStructure{}, CalculationFlat, false},
		{"per unit flag", FeeStructure{IsPerUnit: true}, CalculationPerArea, true},
		{"explicit per area", FeeStructure{Calculation: Calculation{Kind: "per_area"}}, CalculationPerArea, true},
		{"formula clears flag", FeeStructure{IsPerUnit: true, Calculation: Calculation{Kind: CalculationFormula, Formula: " area * 2 "}}, CalculationFormula, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fee := tc.fee
			fee.Normalize()
			if fee.Calculation.Kind != tc.wantKind || fee.IsPerUnit != tc.wantPerUnit {
				t.Fatalf("got %s/%v", fee.Calculation.Kind, fee.IsPerUnit)
			}
		})
	}
}

func TestFeeValidate(t *testing.T) {
	valid := flatFee("f", "100")
	if err := valid.Validate(nil); err != nil {
		t.Fatalf("valid fee: %v", err)
	}

	cases := []struct {
		field  string
		mutate func(*FeeStructure)
	}{
		{"name", func(f *FeeStructure) { f.Name = "" }},
		{"type", func(f *FeeStructure) { f.Type = "YEARLY" }},
		{"baseAmount", func(f *FeeStructure) { f.BaseAmount = dec("-1") }},
		{"dueDay", func(f *FeeStructure) { f.DueDay = 0 }},
		{"dueDay", func(f *FeeStructure) { f.DueDay = 32 }},
		{"calculation.kind", func(f *FeeStructure) { f.Calculation.Kind = "EVAL" }},
		{"calculation.formula", func(f *FeeStructure) { f.Calculation = Calculation{Kind: CalculationFormula} }},
	}
	for _, tc := range cases {
		fee := valid
		tc.mutate(&fee)
		err := fee.Validate(nil)
		if apperr.FieldOf(err) != tc.field {
			t.Fatalf("expected %s validation error, got %v", tc.field, err)
		}
	}

	formula := valid
	formula.Calculation = Calculation{Kind: CalculationFormula, Formula: "baseAmount * coefficient"}
	if err := formula.Validate(nil); !errors.Is(err, ErrFormulaUnavailable) {
		t.Fatalf("expected formula unavailable, got %v", err)
	}
	if err := formula.Validate(multiplyEvaluator{}); err != nil {
		t.Fatalf("formula fee: %v", err)
	}
	formula.Calculation.Formula = "exec()"
	if err := formula.Validate(multiplyEvaluator{}); apperr.FieldOf(err) != "calculation.formula" {
		t.Fatalf("expected formula validation error, got %v", err)
	}
}

func TestFeeAmend(t *testing.T) {
	original := flatFee("f1", "50000")
	at := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	amount := dec("55000")
	perUnit := true

	next, err := original.Amend("f2", FeeChange{BaseAmount: &amount, IsPerUnit: &perUnit}, at)
	if err != nil {
		t.Fatalf("amend: %v", err)
	}
	if next.ID != "f2" || next.Supersedes != "f1" || !next.IsActive {
		t.Fatalf("unexpected amended fee %+v", next)
	}
	if !next.BaseAmount.Equal(amount) || next.Calculation.Kind != CalculationPerArea {
		t.Fatalf("change not applied: %+v", next)
	}
	if !original.BaseAmount.Equal(dec("50000")) || original.IsPerUnit {
		t.Fatalf("original fee must not change")
	}

	retired := original
	retired.IsActive = false
	if _, err := retired.Amend("f3", FeeChange{}, at); !errors.Is(err, ErrFeeInactive) {
		t.Fatalf("expected inactive fee conflict, got %v", err)
	}
}
