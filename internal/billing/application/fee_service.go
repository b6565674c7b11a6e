package application

import (
	"context"
	"errors"

	"github.com/google/uuid"

	billing "residential-cloud/internal/billing/domain"
)

// FeeService manages fee structures. Fees are append-only: amendments
// supersede the previous record.
type FeeService struct {
	store     billing.Store
	evaluator billing.FormulaEvaluator
	clock     Clock
}

// NewFeeService constructs the service. evaluator may be nil, in which case
// FORMULA fees are refused.
func NewFeeService(store billing.Store, evaluator billing.FormulaEvaluator, clock Clock) (*FeeService, error) {
	if store == nil {
		return nil, errors.New("fee service: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &FeeService{store: store, evaluator: evaluator, clock: clock}, nil
}

// Create validates and stores a new active fee.
func (s *FeeService) Create(ctx context.Context, complexID int64, fee billing.FeeStructure) (*billing.FeeStructure, error) {
	ledger, err := s.store.ForComplex(ctx, complexID)
	if err != nil {
		return nil, err
	}
	fee.ID = uuid.NewString()
	fee.ComplexID = complexID
	fee.IsActive = true
	fee.Supersedes = ""
	fee.CreatedAt = s.clock.Now()
	if t, ok := billing.NormalizeFeeType(string(fee.Type)); ok {
		fee.Type = t
	}
	if fee.DueDay == 0 {
		fee.DueDay = billing.DefaultDueDay
	}
	fee.Normalize()
	if err := fee.Validate(s.evaluator); err != nil {
		return nil, err
	}
	if err := ledger.Fees().Create(ctx, fee); err != nil {
		return nil, err
	}
	return &fee, nil
}

// Amend replaces fee feeID with a new record carrying change.
func (s *FeeService) Amend(ctx context.Context, complexID int64, feeID string, change billing.FeeChange) (*billing.FeeStructure, error) {
	ledger, err := s.store.ForComplex(ctx, complexID)
	if err != nil {
		return nil, err
	}
	current, err := ledger.Fees().Get(ctx, feeID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, billing.ErrFeeNotFound
	}
	if change.Type != nil {
		if t, ok := billing.NormalizeFeeType(string(*change.Type)); ok {
			change.Type = &t
		}
	}
	next, err := current.Amend(uuid.NewString(), change, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := next.Validate(s.evaluator); err != nil {
		return nil, err
	}
	if err := ledger.Fees().Supersede(ctx, current.ID, next); err != nil {
		return nil, err
	}
	return &next, nil
}

// ListActive returns the active fees of a complex.
func (s *FeeService) ListActive(ctx context.Context, complexID int64) ([]billing.FeeStructure, error) {
	ledger, err := s.store.ForComplex(ctx, complexID)
	if err != nil {
		return nil, err
	}
	return ledger.Fees().ListActive(ctx)
}
