package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	billing "residential-cloud/internal/billing/domain"
)

// LateFeeQuote is the amount due on a bill at a given date.
type LateFeeQuote struct {
	BillID      string          `json:"billId"`
	DueDate     time.Time       `json:"dueDate"`
	AsOf        time.Time       `json:"asOf"`
	Outstanding decimal.Decimal `json:"outstanding"`
	DaysLate    int             `json:"daysLate"`
	MonthlyRate decimal.Decimal `json:"monthlyRate"`
	LateFee     decimal.Decimal `json:"lateFee"`
	TotalDue    decimal.Decimal `json:"totalDue"`
}

// LateFeeService quotes late-fee interest on unpaid bills.
type LateFeeService struct {
	store  billing.Store
	policy PolicySource
	clock  Clock
}

// NewLateFeeService constructs the service. A nil policy uses the default rate.
func NewLateFeeService(store billing.Store, policy PolicySource, clock Clock) (*LateFeeService, error) {
	if store == nil {
		return nil, errors.New("late fee service: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &LateFeeService{store: store, policy: policy, clock: clock}, nil
}

// Quote computes interest on the outstanding balance of billID as of asOf.
// A zero asOf means now. Paid bills quote zero.
func (s *LateFeeService) Quote(ctx context.Context, complexID int64, billID string, asOf time.Time) (*LateFeeQuote, error) {
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
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	rate := billing.DefaultMonthlyRate
	if s.policy != nil {
		rate = s.policy.LateFeeMonthlyRate(complexID)
	}

	quote := &LateFeeQuote{
		BillID:      bill.ID,
		DueDate:     bill.DueDate,
		AsOf:        asOf,
		Outstanding: bill.Outstanding(),
		MonthlyRate: rate,
		LateFee:     decimal.Zero,
	}
	if bill.Status != billing.BillStatusPaid {
		quote.DaysLate = billing.DaysLate(bill.DueDate, asOf)
		fee, err := billing.LateFee(quote.Outstanding, quote.DaysLate, rate)
		if err != nil {
			return nil, err
		}
		quote.LateFee = fee
	}
	quote.TotalDue = quote.Outstanding.Add(quote.LateFee)
	return quote, nil
}
