package memory

import (
	"context"
	"sort"
	"sync"

	billing "residential-cloud/internal/billing/domain"
	"residential-cloud/internal/tenant"
)

// Store is an in-memory billing store keyed by complex.
type Store struct {
	mu        sync.Mutex
	directory tenant.Directory
	ledgers   map[int64]*Ledger
}

// NewStore constructs a store. When directory is non-nil, unknown complexes
// are refused with the directory's error; otherwise ledgers are created on
// first use.
func NewStore(directory tenant.Directory) *Store {
	return &Store{directory: directory, ledgers: make(map[int64]*Ledger)}
}

// ForComplex returns the ledger of complexID.
func (s *Store) ForComplex(ctx context.Context, complexID int64) (billing.Ledger, error) {
	return s.ledger(ctx, complexID)
}

// Ledger returns the concrete ledger of complexID for seeding.
func (s *Store) Ledger(complexID int64) *Ledger {
	l, _ := s.ledger(context.Background(), complexID)
	return l
}

func (s *Store) ledger(ctx context.Context, complexID int64) (*Ledger, error) {
	if s.directory != nil {
		if _, err := s.directory.Lookup(ctx, complexID); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.ledgers[complexID]
	if l == nil {
		l = newLedger()
		s.ledgers[complexID] = l
	}
	return l, nil
}

// Ledger holds the billing data of one complex.
type Ledger struct {
	mu         sync.Mutex
	fees       []billing.FeeStructure
	properties []billing.Property
	bills      map[string]billing.GeneratedBill
	billOrder  []string
	payments   []billing.Payment
	expenses   []billing.Expense
}

func newLedger() *Ledger {
	return &Ledger{bills: make(map[string]billing.GeneratedBill)}
}

func (l *Ledger) Fees() billing.FeeRepository           { return feeRepo{l} }
func (l *Ledger) Properties() billing.PropertyRepository { return propertyRepo{l} }
func (l *Ledger) Bills() billing.BillRepository          { return billRepo{l} }
func (l *Ledger) Reports() billing.ReportReader          { return reportReader{l} }

// AddProperty seeds a property.
func (l *Ledger) AddProperty(p billing.Property) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.properties = append(l.properties, p)
}

// AddExpense seeds an expense.
func (l *Ledger) AddExpense(e billing.Expense) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expenses = append(l.expenses, e)
}

// AddPayment seeds a payment without touching its bill.
func (l *Ledger) AddPayment(p billing.Payment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.payments = append(l.payments, p)
}

type feeRepo struct{ l *Ledger }

func (r feeRepo) ListActive(ctx context.Context) ([]billing.FeeStructure, error) {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	return billing.ActiveFees(r.l.fees), nil
}

func (r feeRepo) Get(ctx context.Context, id string) (*billing.FeeStructure, error) {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for _, fee := range r.l.fees {
		if fee.ID == id {
			out := fee
			return &out, nil
		}
	}
	return nil, nil
}

func (r feeRepo) Create(ctx context.Context, fee billing.FeeStructure) error {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	r.l.fees = append(r.l.fees, fee)
	return nil
}

func (r feeRepo) Supersede(ctx context.Context, oldID string, replacement billing.FeeStructure) error {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for i := range r.l.fees {
		if r.l.fees[i].ID != oldID {
			continue
		}
		if !r.l.fees[i].IsActive {
			return billing.ErrFeeInactive
		}
		r.l.fees[i].IsActive = false
		r.l.fees = append(r.l.fees, replacement)
		return nil
	}
	return billing.ErrFeeNotFound
}

type propertyRepo struct{ l *Ledger }

func (r propertyRepo) ListActive(ctx context.Context) ([]billing.Property, error) {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	return billing.ActiveProperties(r.l.properties), nil
}

type billRepo struct{ l *Ledger }

func (r billRepo) SaveBills(ctx context.Context, bills []billing.GeneratedBill) error {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	seen := make(map[string]struct{}, len(bills))
	for _, b := range bills {
		if _, ok := r.l.bills[b.ID]; ok {
			return billing.ErrDuplicateBill
		}
		if _, ok := seen[b.ID]; ok {
			return billing.ErrDuplicateBill
		}
		seen[b.ID] = struct{}{}
	}
	for _, b := range bills {
		r.l.bills[b.ID] = b.Clone()
		r.l.billOrder = append(r.l.billOrder, b.ID)
	}
	return nil
}

func (r billRepo) Get(ctx context.Context, id string) (*billing.GeneratedBill, error) {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	b, ok := r.l.bills[id]
	if !ok {
		return nil, nil
	}
	out := b.Clone()
	return &out, nil
}

func (r billRepo) ListByPeriod(ctx context.Context, period billing.BillingPeriod) ([]billing.GeneratedBill, error) {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var result []billing.GeneratedBill
	for _, id := range r.l.billOrder {
		b := r.l.bills[id]
		if b.Period.Key() == period.Key() {
			result = append(result, b.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].PropertyID < result[j].PropertyID })
	return result, nil
}

func (r billRepo) ReconcilePayment(ctx context.Context, billID string, apply billing.PaymentFunc) (billing.Payment, billing.GeneratedBill, error) {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	stored, ok := r.l.bills[billID]
	if !ok {
		return billing.Payment{}, billing.GeneratedBill{}, billing.ErrBillNotFound
	}
	bill := stored.Clone()
	payment, err := apply(&bill)
	if err != nil {
		return billing.Payment{}, billing.GeneratedBill{}, err
	}
	r.l.payments = append(r.l.payments, payment)
	r.l.bills[billID] = bill.Clone()
	return payment, bill, nil
}

func (r billRepo) ListPayments(ctx context.Context, billID string) ([]billing.Payment, error) {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var result []billing.Payment
	for _, p := range r.l.payments {
		if p.BillID == billID {
			result = append(result, p)
		}
	}
	return result, nil
}

type reportReader struct{ l *Ledger }

func (r reportReader) BillsGenerated(ctx context.Context, rng billing.DateRange) ([]billing.GeneratedBill, error) {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	return r.l.billsGenerated(rng), nil
}

func (r reportReader) PaymentsPaid(ctx context.Context, rng billing.DateRange) ([]billing.Payment, error) {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var result []billing.Payment
	for _, p := range r.l.payments {
		if rng.Contains(p.PaidAt) {
			result = append(result, p)
		}
	}
	return result, nil
}

func (r reportReader) PaymentsForBillsGenerated(ctx context.Context, rng billing.DateRange) ([]billing.Payment, error) {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	cohort := make(map[string]struct{})
	for _, b := range r.l.billsGenerated(rng) {
		cohort[b.ID] = struct{}{}
	}
	var result []billing.Payment
	for _, p := range r.l.payments {
		if _, ok := cohort[p.BillID]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

func (r reportReader) Expenses(ctx context.Context, rng billing.DateRange) ([]billing.Expense, error) {
	_ = ctx
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var result []billing.Expense
	for _, e := range r.l.expenses {
		if rng.Contains(e.SpentAt) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (l *Ledger) billsGenerated(rng billing.DateRange) []billing.GeneratedBill {
	var result []billing.GeneratedBill
	for _, id := range l.billOrder {
		b := l.bills[id]
		if rng.Contains(b.GeneratedAt) {
			result = append(result, b.Clone())
		}
	}
	return result
}
