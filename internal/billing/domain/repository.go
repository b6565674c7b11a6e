package billing

import "context"

// FeeRepository persists fee structures of one complex.
type FeeRepository interface {
	ListActive(ctx context.Context) ([]FeeStructure, error)
	Get(ctx context.Context, id string) (*FeeStructure, error)
	Create(ctx context.Context, fee FeeStructure) error
	// Supersede deactivates oldID and inserts replacement atomically.
	Supersede(ctx context.Context, oldID string, replacement FeeStructure) error
}

// PropertyRepository reads the property roster of one complex.
type PropertyRepository interface {
	ListActive(ctx context.Context) ([]Property, error)
}

// PaymentFunc decides a payment against a locked bill. It may mutate bill.
type PaymentFunc func(bill *GeneratedBill) (Payment, error)

// BillRepository persists bills and their payments for one complex.
type BillRepository interface {
	// SaveBills stores the batch in one transaction. A bill that already
	// exists for its property and period fails the whole batch with
	// ErrDuplicateBill.
	SaveBills(ctx context.Context, bills []GeneratedBill) error
	Get(ctx context.Context, id string) (*GeneratedBill, error)
	ListByPeriod(ctx context.Context, period BillingPeriod) ([]GeneratedBill, error)
	// ReconcilePayment locks the bill, runs apply and stores the payment and
	// updated bill in one transaction. Concurrent calls on the same bill are
	// serialized.
	ReconcilePayment(ctx context.Context, billID string, apply PaymentFunc) (Payment, GeneratedBill, error)
	ListPayments(ctx context.Context, billID string) ([]Payment, error)
}

// ReportReader reads the report sets for one complex.
type ReportReader interface {
	BillsGenerated(ctx context.Context, r DateRange) ([]GeneratedBill, error)
	PaymentsPaid(ctx context.Context, r DateRange) ([]Payment, error)
	PaymentsForBillsGenerated(ctx context.Context, r DateRange) ([]Payment, error)
	Expenses(ctx context.Context, r DateRange) ([]Expense, error)
}

// Ledger groups the repositories of one complex.
type Ledger interface {
	Fees() FeeRepository
	Properties() PropertyRepository
	Bills() BillRepository
	Reports() ReportReader
}

// Store resolves the tenant-scoped ledger of a complex.
type Store interface {
	ForComplex(ctx context.Context, complexID int64) (Ledger, error)
}
