package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	billing "residential-cloud/internal/billing/domain"
	"residential-cloud/internal/observability/metrics"
)

// PaymentResult is the outcome of a reconciled payment.
type PaymentResult struct {
	FullyPaid bool                  `json:"fullyPaid"`
	Payment   billing.Payment       `json:"payment"`
	Bill      billing.GeneratedBill `json:"bill"`
}

// PaymentService reconciles payments against bills.
type PaymentService struct {
	store  billing.Store
	events EventEmitter
	clock  Clock
	logger *slog.Logger
}

// NewPaymentService constructs the service. events may be nil.
func NewPaymentService(store billing.Store, events EventEmitter, clock Clock, logger *slog.Logger) (*PaymentService, error) {
	if store == nil {
		return nil, errors.New("payment service: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{store: store, events: events, clock: clock, logger: logger}, nil
}

// Process validates req, then locks the bill and records the payment. A bill
// that is already PAID is refused with ErrBillAlreadyPaid and no payment is
// written.
func (s *PaymentService) Process(ctx context.Context, complexID int64, req billing.PaymentRequest) (*PaymentResult, error) {
	start := time.Now()
	var (
		result PaymentResult
		err    error
	)
	defer func() {
		metrics.ObservePayment(metrics.ResultOf(err), result.FullyPaid, time.Since(start))
	}()

	if err = req.Validate(); err != nil {
		return nil, err
	}
	ledger, err := s.store.ForComplex(ctx, complexID)
	if err != nil {
		return nil, err
	}

	paymentID := uuid.NewString()
	paidAt := s.clock.Now()
	var settled bool
	payment, bill, err := ledger.Bills().ReconcilePayment(ctx, req.BillID, func(b *billing.GeneratedBill) (billing.Payment, error) {
		p, fully, applyErr := b.ApplyPayment(req, paymentID, paidAt)
		settled = fully
		return p, applyErr
	})
	if err != nil {
		return nil, err
	}
	result = PaymentResult{FullyPaid: settled, Payment: payment, Bill: bill}

	if s.events != nil {
		event := PaymentConfirmed{
			ComplexID: complexID,
			PaymentID: payment.ID,
			BillID:    payment.BillID,
			Amount:    payment.Amount,
			Method:    string(payment.Method),
			FullyPaid: settled,
			PaidAt:    payment.PaidAt,
		}
		if emitErr := s.events.Emit(ctx, complexID, event); emitErr != nil {
			s.logger.Warn("payment confirmed event not published", "complex_id", complexID, "payment_id", payment.ID, "error", emitErr)
		}
	}
	return &result, nil
}

// ListForBill returns the payments of a bill in payment order.
func (s *PaymentService) ListForBill(ctx context.Context, complexID int64, billID string) ([]billing.Payment, error) {
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
	return ledger.Bills().ListPayments(ctx, billID)
}
