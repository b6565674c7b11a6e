package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	billing "residential-cloud/internal/billing/domain"
	"residential-cloud/internal/observability/metrics"
	"residential-cloud/internal/tenant"
)

// BillService generates and reads bills.
type BillService struct {
	store     billing.Store
	evaluator billing.FormulaEvaluator
	policy    PolicySource
	events    EventEmitter
	clock     Clock
	logger    *slog.Logger
}

// BillServiceOption configures the bill service.
type BillServiceOption func(*BillService)

// WithBillEvents publishes bills_generated events after each batch.
func WithBillEvents(events EventEmitter) BillServiceOption {
	return func(s *BillService) {
		s.events = events
	}
}

// WithBillPolicy sets the due-day policy.
func WithBillPolicy(policy PolicySource) BillServiceOption {
	return func(s *BillService) {
		s.policy = policy
	}
}

// WithBillClock overrides the clock.
func WithBillClock(clock Clock) BillServiceOption {
	return func(s *BillService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithBillLogger sets the logger.
func WithBillLogger(logger *slog.Logger) BillServiceOption {
	return func(s *BillService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewBillService constructs the service.
func NewBillService(store billing.Store, evaluator billing.FormulaEvaluator, opts ...BillServiceOption) (*BillService, error) {
	if store == nil {
		return nil, errors.New("bill service: nil store")
	}
	s := &BillService{
		store:     store,
		evaluator: evaluator,
		clock:     SystemClock{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate produces and persists the bills of period for every active
// property of the complex. The batch is saved atomically; a period that was
// already billed fails with ErrDuplicateBill.
func (s *BillService) Generate(ctx context.Context, complexID int64, period billing.BillingPeriod, auth tenant.Authorization) ([]billing.GeneratedBill, error) {
	start := time.Now()
	var (
		bills []billing.GeneratedBill
		err   error
	)
	defer func() {
		metrics.ObserveBillGenerate(metrics.ResultOf(err), len(bills), time.Since(start))
	}()

	if err = auth.Check(complexID, tenant.FeatureBilling); err != nil {
		return nil, err
	}
	ledger, err := s.store.ForComplex(ctx, complexID)
	if err != nil {
		return nil, err
	}
	properties, err := ledger.Properties().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	fees, err := ledger.Fees().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	dueDay := billing.DefaultDueDay
	if s.policy != nil {
		dueDay = s.policy.DueDay(complexID)
	}
	bills, err = billing.GenerateBills(complexID, period, properties, fees, billing.GenerateOptions{
		DueDay:    dueDay,
		Now:       s.clock.Now(),
		Evaluator: s.evaluator,
	})
	if err != nil {
		return nil, err
	}
	if err = ledger.Bills().SaveBills(ctx, bills); err != nil {
		bills = nil
		return nil, err
	}

	if s.events != nil {
		total := decimal.Zero
		for _, b := range bills {
			total = total.Add(b.TotalAmount)
		}
		event := BillsGenerated{
			ComplexID:   complexID,
			Period:      period.String(),
			BillCount:   len(bills),
			TotalAmount: total,
			GeneratedAt: s.clock.Now(),
		}
		if emitErr := s.events.Emit(ctx, complexID, event); emitErr != nil {
			s.logger.Warn("bills generated event not published", "complex_id", complexID, "period", period.String(), "error", emitErr)
		}
	}
	return bills, nil
}

// Get returns a bill or ErrBillNotFound.
func (s *BillService) Get(ctx context.Context, complexID int64, billID string) (*billing.GeneratedBill, error) {
	ledger, err := s.store.ForComplex(ctx, complexID)
	if err != nil {
		return nil, err
	}
	bill, err := ledger.Bills().Get(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billing.ErrBillNotFound
	}
	return bill, nil
}

// ListByPeriod returns the bills of period.
func (s *BillService) ListByPeriod(ctx context.Context, complexID int64, period billing.BillingPeriod) ([]billing.GeneratedBill, error) {
	ledger, err := s.store.ForComplex(ctx, complexID)
	if err != nil {
		return nil, err
	}
	return ledger.Bills().ListByPeriod(ctx, period)
}
