package billing

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var genNow = time.Date(2024, time.February, 1, 6, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func area(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(v))
}

func flatFee(id, amount string) FeeStructure {
	f := FeeStructure{ID: id, Name: "Admin " + id, Type: FeeTypeMonthly, BaseAmount: dec(amount), IsActive: true, DueDay: 15}
	f.Normalize()
	return f
}

func perAreaFee(id, amount string) FeeStructure {
	f := FeeStructure{ID: id, Name: "Area " + id, Type: FeeTypeMonthly, BaseAmount: dec(amount), IsPerUnit: true, IsActive: true, DueDay: 15}
	f.Normalize()
	return f
}

func TestGenerateBills_TwoPropertiesOneFlatFee(t *testing.T) {
	period, _ := NewBillingPeriod(2024, 1)
	properties := []Property{
		{ID: "p1", IsActive: true, Area: area("80")},
		{ID: "p2", IsActive: true, Area: area("120")},
	}
	bills, err := GenerateBills(1, period, properties, []FeeStructure{flatFee("f1", "50000")}, GenerateOptions{Now: genNow})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(bills) != 2 {
		t.Fatalf("expected 2 bills, got %d", len(bills))
	}
	wantDue := time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC)
	for _, b := range bills {
		if !b.TotalAmount.Equal(dec("50000")) {
			t.Fatalf("bill %s total %s", b.PropertyID, b.TotalAmount)
		}
		if !b.DueDate.Equal(wantDue) {
			t.Fatalf("bill %s due %s", b.PropertyID, b.DueDate)
		}
		if b.Status != BillStatusPending || !b.PaidAmount.IsZero() {
			t.Fatalf("bill %s status %s paid %s", b.PropertyID, b.Status, b.PaidAmount)
		}
	}
}

func TestGenerateBills_PerUnitScaling(t *testing.T) {
	period, _ := NewBillingPeriod(2024, 3)
	properties := []Property{
		{ID: "p1", IsActive: true, Area: area("72.5")},
		{ID: "p2", IsActive: true},
	}
	fees := []FeeStructure{perAreaFee("area", "1200.40"), flatFee("flat", "10000")}
	bills, err := GenerateBills(1, period, properties, fees, GenerateOptions{Now: genNow})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := bills[0].LineItems[0].Amount; !got.Equal(dec("1200.40").Mul(dec("72.5"))) {
		t.Fatalf("per-unit amount %s", got)
	}
	if got := bills[0].LineItems[1].Amount; !got.Equal(dec("10000")) {
		t.Fatalf("flat fee must ignore area, got %s", got)
	}
	// missing area charges the base amount unscaled
	if got := bills[1].LineItems[0].Amount; !got.Equal(dec("1200.40")) {
		t.Fatalf("missing area amount %s", got)
	}
}

func TestGenerateBills_TotalEqualsLineItems(t *testing.T) {
	period, _ := NewBillingPeriod(2024, 5)
	fees := []FeeStructure{
		flatFee("a", "0.1"), flatFee("b", "0.2"), perAreaFee("c", "0.07"), flatFee("d", "99999.99"),
	}
	properties := []Property{
		{ID: "p1", IsActive: true, Area: area("33.3")},
		{ID: "p2", IsActive: true, Area: area("0.01")},
		{ID: "p3", IsActive: true, Area: area("1000")},
	}
	bills, err := GenerateBills(1, period, properties, fees, GenerateOptions{Now: genNow})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, b := range bills {
		sum := decimal.Zero
		for _, item := range b.LineItems {
			sum = sum.Add(item.Amount)
		}
		if !sum.Equal(b.TotalAmount) {
			t.Fatalf("bill %s total %s != items %s", b.ID, b.TotalAmount, sum)
		}
	}
	if !bills[0].LineItems[0].Amount.Add(bills[0].LineItems[1].Amount).Equal(dec("0.3")) {
		t.Fatalf("decimal drift in fee summation")
	}
}

func TestGenerateBills_SkipsInactiveAndKeepsEmptyBills(t *testing.T) {
	period, _ := NewBillingPeriod(2024, 1)
	inactive := flatFee("old", "40000")
	inactive.IsActive = false
	properties := []Property{
		{ID: "p1", IsActive: true},
		{ID: "p2", IsActive: false},
	}
	bills, err := GenerateBills(1, period, properties, []FeeStructure{inactive}, GenerateOptions{Now: genNow})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(bills) != 1 {
		t.Fatalf("expected one bill for the active property, got %d", len(bills))
	}
	if len(bills[0].LineItems) != 0 || !bills[0].TotalAmount.IsZero() {
		t.Fatalf("expected empty zero bill, got %+v", bills[0])
	}
}

func TestGenerateBills_Deterministic(t *testing.T) {
	period, _ := NewBillingPeriod(2024, 1)
	properties := []Property{{ID: "p1", IsActive: true, Area: area("50")}, {ID: "p2", IsActive: true}}
	fees := []FeeStructure{flatFee("a", "100"), perAreaFee("b", "3")}
	first, err := GenerateBills(9, period, properties, fees, GenerateOptions{Now: genNow})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := GenerateBills(9, period, properties, fees, GenerateOptions{Now: genNow})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("generation is not deterministic")
	}
	if first[0].ID != "bill-9-p1-202401" {
		t.Fatalf("unexpected bill id %s", first[0].ID)
	}
}

func TestGenerateBills_DueDayOption(t *testing.T) {
	period, _ := NewBillingPeriod(2024, 1)
	bills, err := GenerateBills(1, period, []Property{{ID: "p1", IsActive: true}}, nil, GenerateOptions{Now: genNow, DueDay: 5})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if bills[0].DueDate.Day() != 5 || bills[0].DueDate.Month() != time.February {
		t.Fatalf("due date %s", bills[0].DueDate)
	}
}

func TestGenerateBills_FormulaFee(t *testing.T) {
	period, _ := NewBillingPeriod(2024, 1)
	fee := FeeStructure{
		ID: "f", Name: "Reserve", Type: FeeTypeSpecialAssessment, BaseAmount: dec("1000"), IsActive: true, DueDay: 15,
		Calculation: Calculation{Kind: CalculationFormula, Formula: "baseAmount * coefficient"},
	}
	fee.Normalize()
	properties := []Property{{ID: "p1", IsActive: true, Coefficient: dec("2.5")}}

	if _, err := GenerateBills(1, period, properties, []FeeStructure{fee}, GenerateOptions{Now: genNow}); !errors.Is(err, ErrFormulaUnavailable) {
		t.Fatalf("expected formula unavailable, got %v", err)
	}

	bills, err := GenerateBills(1, period, properties, []FeeStructure{fee}, GenerateOptions{Now: genNow, Evaluator: multiplyEvaluator{}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !bills[0].TotalAmount.Equal(dec("2500")) {
		t.Fatalf("formula total %s", bills[0].TotalAmount)
	}
}

func TestGenerateBills_RequiresPeriod(t *testing.T) {
	if _, err := GenerateBills(1, BillingPeriod{}, nil, nil, GenerateOptions{}); err == nil {
		t.Fatalf("expected error for zero period")
	}
}

// multiplyEvaluator understands the single formula "baseAmount * coefficient".
type multiplyEvaluator struct{}

func (multiplyEvaluator) Validate(formula string) error {
	if formula != "baseAmount * coefficient" {
		return errors.New("unsupported formula")
	}
	return nil
}

func (multiplyEvaluator) Evaluate(formula string, vars FormulaVars) (decimal.Decimal, error) {
	if formula != "baseAmount * coefficient" {
		return decimal.Zero, errors.New("unsupported formula")
	}
	return vars.BaseAmount.Mul(vars.Coefficient), nil
}
