package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"residential-cloud/internal/apperr"
	billing "residential-cloud/internal/billing/domain"
	"residential-cloud/internal/billing/infrastructure/formula"
	"residential-cloud/internal/billing/infrastructure/memory"
	"residential-cloud/internal/eventing"
	"residential-cloud/internal/tenant"
)

const testComplex int64 = 7

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type stubPolicy struct {
	dueDay int
	rate   decimal.Decimal
}

func (p stubPolicy) DueDay(int64) int                         { return p.dueDay }
func (p stubPolicy) LateFeeMonthlyRate(int64) decimal.Decimal { return p.rate }

func granted() tenant.Authorization {
	return tenant.Authorization{ComplexID: testComplex, Feature: tenant.FeatureBilling, Granted: true}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore(nil)
	ledger := store.Ledger(testComplex)
	ledger.AddProperty(billing.Property{ID: "101", ComplexID: testComplex, UnitNumber: "101", IsActive: true})
	ledger.AddProperty(billing.Property{ID: "102", ComplexID: testComplex, UnitNumber: "102", IsActive: true})
	ledger.AddProperty(billing.Property{ID: "103", ComplexID: testComplex, UnitNumber: "103", IsActive: false})

	fees, err := NewFeeService(store, nil, fixedClock{now: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("fee service: %v", err)
	}
	if _, err := fees.Create(context.Background(), testComplex, billing.FeeStructure{
		Name:       "Administration",
		Type:       billing.FeeTypeMonthly,
		BaseAmount: dec("50000"),
	}); err != nil {
		t.Fatalf("create fee: %v", err)
	}
	return store
}

func newBillService(t *testing.T, store billing.Store, opts ...BillServiceOption) *BillService {
	t.Helper()
	opts = append([]BillServiceOption{WithBillClock(fixedClock{now: time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)})}, opts...)
	svc, err := NewBillService(store, nil, opts...)
	if err != nil {
		t.Fatalf("bill service: %v", err)
	}
	return svc
}

func TestBillServiceGenerate(t *testing.T) {
	store := seededStore(t)
	pub := eventing.NewMemoryPublisher()
	svc := newBillService(t, store, WithBillEvents(eventing.NewEmitter(pub, nil)))
	period, _ := billing.NewBillingPeriod(2024, 1)

	bills, err := svc.Generate(context.Background(), testComplex, period, granted())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(bills) != 2 {
		t.Fatalf("expected 2 bills, got %d", len(bills))
	}
	for _, b := range bills {
		if !b.TotalAmount.Equal(dec("50000")) {
			t.Fatalf("bill %s total %s", b.ID, b.TotalAmount)
		}
		if got := b.DueDate.Format("2006-01-02"); got != "2024-02-15" {
			t.Fatalf("due date %s", got)
		}
	}

	stored, err := svc.ListByPeriod(context.Background(), testComplex, period)
	if err != nil || len(stored) != 2 {
		t.Fatalf("list by period: %d %v", len(stored), err)
	}
	envs := pub.Envelopes()
	if len(envs) != 1 || envs[0].EventType != "billing.bills_generated" {
		t.Fatalf("expected one bills_generated event, got %+v", envs)
	}

	if _, err := svc.Generate(context.Background(), testComplex, period, granted()); !errors.Is(err, billing.ErrDuplicateBill) {
		t.Fatalf("expected duplicate bill error, got %v", err)
	}
}

func TestBillServiceGenerateUsesPolicyDueDay(t *testing.T) {
	store := seededStore(t)
	svc := newBillService(t, store, WithBillPolicy(stubPolicy{dueDay: 31, rate: billing.DefaultMonthlyRate}))
	period, _ := billing.NewBillingPeriod(2024, 1)

	bills, err := svc.Generate(context.Background(), testComplex, period, granted())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := bills[0].DueDate.Format("2006-01-02"); got != "2024-02-29" {
		t.Fatalf("expected clamped due date, got %s", got)
	}
}

func TestBillServiceGenerateRequiresAuthorization(t *testing.T) {
	store := seededStore(t)
	svc := newBillService(t, store)
	period, _ := billing.NewBillingPeriod(2024, 1)

	cases := []tenant.Authorization{
		{},
		{ComplexID: testComplex, Feature: tenant.FeatureBilling},
		{ComplexID: testComplex + 1, Feature: tenant.FeatureBilling, Granted: true},
		{ComplexID: testComplex, Feature: tenant.FeatureAssemblies, Granted: true},
	}
	for _, auth := range cases {
		_, err := svc.Generate(context.Background(), testComplex, period, auth)
		if apperr.KindOf(err) != apperr.KindAuthorization {
			t.Fatalf("auth %+v: expected authorization error, got %v", auth, err)
		}
	}
	bills, _ := svc.ListByPeriod(context.Background(), testComplex, period)
	if len(bills) != 0 {
		t.Fatalf("no bills expected after refused generation")
	}
}

func generateJanuary(t *testing.T, store billing.Store) []billing.GeneratedBill {
	t.Helper()
	period, _ := billing.NewBillingPeriod(2024, 1)
	bills, err := newBillService(t, store).Generate(context.Background(), testComplex, period, granted())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return bills
}

func TestPaymentServiceProcess(t *testing.T) {
	store := seededStore(t)
	bills := generateJanuary(t, store)
	pub := eventing.NewMemoryPublisher()
	svc, err := NewPaymentService(store, eventing.NewEmitter(pub, nil), fixedClock{now: time.Date(2024, 2, 3, 9, 0, 0, 0, time.UTC)}, nil)
	if err != nil {
		t.Fatalf("payment service: %v", err)
	}
	ctx := context.Background()
	billID := bills[0].ID

	partial, err := svc.Process(ctx, testComplex, billing.PaymentRequest{BillID: billID, Amount: dec("20000"), Method: billing.PaymentMethodCash})
	if err != nil {
		t.Fatalf("partial: %v", err)
	}
	if partial.FullyPaid || partial.Bill.Status != billing.BillStatusPending {
		t.Fatalf("expected pending after partial payment, got %+v", partial)
	}

	rest, err := svc.Process(ctx, testComplex, billing.PaymentRequest{BillID: billID, Amount: dec("30000"), Method: billing.PaymentMethodPSE, Reference: "PSE-1"})
	if err != nil {
		t.Fatalf("rest: %v", err)
	}
	if !rest.FullyPaid || rest.Bill.Status != billing.BillStatusPaid || rest.Bill.PaidAt == nil {
		t.Fatalf("expected paid bill, got %+v", rest.Bill)
	}

	_, err = svc.Process(ctx, testComplex, billing.PaymentRequest{BillID: billID, Amount: dec("1"), Method: billing.PaymentMethodCash})
	if !errors.Is(err, billing.ErrBillAlreadyPaid) {
		t.Fatalf("expected already paid, got %v", err)
	}

	payments, err := svc.ListForBill(ctx, testComplex, billID)
	if err != nil || len(payments) != 2 {
		t.Fatalf("expected 2 payments, got %d %v", len(payments), err)
	}
	if len(pub.Envelopes()) != 2 {
		t.Fatalf("expected 2 payment events, got %d", len(pub.Envelopes()))
	}
}

func TestPaymentServiceRejections(t *testing.T) {
	store := seededStore(t)
	bills := generateJanuary(t, store)
	svc, _ := NewPaymentService(store, nil, nil, nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		req   billing.PaymentRequest
		kind  apperr.Kind
		field string
	}{
		{name: "missing bill id", req: billing.PaymentRequest{Amount: dec("1"), Method: billing.PaymentMethodCash}, kind: apperr.KindValidation, field: "billId"},
		{name: "zero amount", req: billing.PaymentRequest{BillID: bills[0].ID, Amount: dec("0"), Method: billing.PaymentMethodCash}, kind: apperr.KindValidation, field: "amount"},
		{name: "bad method", req: billing.PaymentRequest{BillID: bills[0].ID, Amount: dec("1"), Method: "CHEQUE"}, kind: apperr.KindValidation, field: "paymentMethod"},
		{name: "unknown bill", req: billing.PaymentRequest{BillID: "nope", Amount: dec("1"), Method: billing.PaymentMethodCash}, kind: apperr.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Process(ctx, testComplex, tc.req)
			if apperr.KindOf(err) != tc.kind {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
			if tc.field != "" && apperr.FieldOf(err) != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, apperr.FieldOf(err))
			}
		})
	}
	payments, _ := svc.ListForBill(ctx, testComplex, bills[0].ID)
	if len(payments) != 0 {
		t.Fatalf("rejected payments must not be stored")
	}
}

func TestPaymentServiceConcurrentFullPayments(t *testing.T) {
	store := seededStore(t)
	bills := generateJanuary(t, store)
	svc, _ := NewPaymentService(store, nil, nil, nil)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Process(ctx, testComplex, billing.PaymentRequest{BillID: bills[1].ID, Amount: dec("50000"), Method: billing.PaymentMethodBankTransfer})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, billing.ErrBillAlreadyPaid):
				conflicts++
			}
		}()
	}
	wg.Wait()
	if succeeded != 1 || conflicts != 7 {
		t.Fatalf("expected 1 success and 7 conflicts, got %d and %d", succeeded, conflicts)
	}
}

func TestLateFeeServiceQuote(t *testing.T) {
	store := seededStore(t)
	bills := generateJanuary(t, store)
	svc, err := NewLateFeeService(store, stubPolicy{dueDay: 15, rate: dec("0.03")}, nil)
	if err != nil {
		t.Fatalf("late fee service: %v", err)
	}

	quote, err := svc.Quote(context.Background(), testComplex, bills[0].ID, time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	// 2024-02-15 to 2024-03-16 is 30 days: 50000 x 0.03
	if quote.DaysLate != 30 || !quote.LateFee.Equal(dec("1500")) || !quote.TotalDue.Equal(dec("51500")) {
		t.Fatalf("unexpected quote %+v", quote)
	}

	early, err := svc.Quote(context.Background(), testComplex, bills[0].ID, time.Date(2024, 2, 15, 23, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if early.DaysLate != 0 || !early.LateFee.IsZero() {
		t.Fatalf("expected no late fee on due date, got %+v", early)
	}

	if _, err := svc.Quote(context.Background(), testComplex, "missing", time.Time{}); !errors.Is(err, billing.ErrBillNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReportServiceModes(t *testing.T) {
	store := seededStore(t)
	bills := generateJanuary(t, store)
	ledger := store.Ledger(testComplex)
	ledger.AddExpense(billing.Expense{ID: "e1", Category: "cleaning", Amount: dec("30000"), SpentAt: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)})
	ledger.AddExpense(billing.Expense{ID: "e2", Category: "security", Amount: dec("10000"), SpentAt: time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)})

	payments, _ := NewPaymentService(store, nil, fixedClock{now: time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)}, nil)
	if _, err := payments.Process(context.Background(), testComplex, billing.PaymentRequest{BillID: bills[0].ID, Amount: dec("50000"), Method: billing.PaymentMethodCash}); err != nil {
		t.Fatalf("payment: %v", err)
	}

	svc, err := NewReportService(store)
	if err != nil {
		t.Fatalf("report service: %v", err)
	}
	january, _ := billing.ParseDateRange("2024-01-01", "2024-01-31")

	independent, err := svc.Report(context.Background(), testComplex, january, billing.ReportModeIndependent, granted())
	if err != nil {
		t.Fatalf("independent: %v", err)
	}
	if !independent.TotalBilled.Equal(dec("100000")) || !independent.TotalCollected.IsZero() || !independent.TotalExpenses.Equal(dec("30000")) {
		t.Fatalf("unexpected independent summary %+v", independent)
	}
	if !independent.CollectionRate.IsZero() || !independent.NetIncome.Equal(dec("-30000")) {
		t.Fatalf("unexpected independent derived values %+v", independent)
	}

	cohort, err := svc.Report(context.Background(), testComplex, january, billing.ReportModeCohort, granted())
	if err != nil {
		t.Fatalf("cohort: %v", err)
	}
	if !cohort.TotalCollected.Equal(dec("50000")) || !cohort.CollectionRate.Equal(dec("50")) || !cohort.PendingAmount.Equal(dec("50000")) {
		t.Fatalf("unexpected cohort summary %+v", cohort)
	}
	if cohort.StartDate != "2024-01-01" || cohort.EndDate != "2024-01-31" || cohort.Mode != billing.ReportModeCohort {
		t.Fatalf("unexpected cohort header %+v", cohort)
	}

	inverted := billing.DateRange{Start: january.End, End: january.Start}
	if _, err := svc.Report(context.Background(), testComplex, inverted, "", granted()); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	defaulted, err := svc.Report(context.Background(), testComplex, january, "", granted())
	if err != nil || defaulted.Mode != billing.ReportModeIndependent {
		t.Fatalf("expected independent default, got %+v %v", defaulted, err)
	}
	if _, err := svc.Report(context.Background(), testComplex, january, "weekly", granted()); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for unknown mode, got %v", err)
	}
}

func TestFeeServiceAmend(t *testing.T) {
	store := memory.NewStore(nil)
	svc, _ := NewFeeService(store, formula.NewEvaluator(), nil)
	ctx := context.Background()

	fee, err := svc.Create(ctx, testComplex, billing.FeeStructure{Name: "Parking", Type: "monthly", BaseAmount: dec("1200"), IsPerUnit: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if fee.Calculation.Kind != billing.CalculationPerArea || fee.DueDay != billing.DefaultDueDay || fee.Type != billing.FeeTypeMonthly {
		t.Fatalf("unexpected normalized fee %+v", fee)
	}

	amount := dec("1500")
	next, err := svc.Amend(ctx, testComplex, fee.ID, billing.FeeChange{BaseAmount: &amount})
	if err != nil {
		t.Fatalf("amend: %v", err)
	}
	if next.Supersedes != fee.ID || !next.BaseAmount.Equal(amount) {
		t.Fatalf("unexpected amendment %+v", next)
	}

	active, _ := svc.ListActive(ctx, testComplex)
	if len(active) != 1 || active[0].ID != next.ID {
		t.Fatalf("expected only the amended fee active, got %+v", active)
	}
	if _, err := svc.Amend(ctx, testComplex, fee.ID, billing.FeeChange{BaseAmount: &amount}); !errors.Is(err, billing.ErrFeeInactive) {
		t.Fatalf("expected inactive fee conflict, got %v", err)
	}
	if _, err := svc.Amend(ctx, testComplex, "missing", billing.FeeChange{}); !errors.Is(err, billing.ErrFeeNotFound) {
		t.Fatalf("expected fee not found, got %v", err)
	}

	_, err = svc.Create(ctx, testComplex, billing.FeeStructure{
		Name:        "Reserve",
		Type:        billing.FeeTypeExtraordinary,
		BaseAmount:  dec("1000"),
		Calculation: billing.Calculation{Kind: billing.CalculationFormula, Formula: "os.Exit(1)"},
	})
	if apperr.FieldOf(err) != "calculation.formula" {
		t.Fatalf("expected formula validation error, got %v", err)
	}
}
