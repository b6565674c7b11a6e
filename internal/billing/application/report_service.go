package application

import (
	"context"
	"errors"
	"time"

	"residential-cloud/internal/apperr"
	billing "residential-cloud/internal/billing/domain"
	"residential-cloud/internal/observability/metrics"
	"residential-cloud/internal/tenant"
)

// ReportService aggregates financial summaries.
type ReportService struct {
	store billing.Store
}

// NewReportService constructs the service.
func NewReportService(store billing.Store) (*ReportService, error) {
	if store == nil {
		return nil, errors.New("report service: nil store")
	}
	return &ReportService{store: store}, nil
}

// Report summarizes billing activity between start and end, both inclusive.
func (s *ReportService) Report(ctx context.Context, complexID int64, r billing.DateRange, mode billing.ReportMode, auth tenant.Authorization) (*billing.FinancialSummary, error) {
	normalized, ok := billing.NormalizeReportMode(string(mode))
	if !ok {
		return nil, apperr.Validation("mode", "billing: report mode must be independent or cohort")
	}
	mode = normalized

	start := time.Now()
	var err error
	defer func() {
		metrics.ObserveReport(string(mode), metrics.ResultOf(err), time.Since(start))
	}()

	if err = auth.Check(complexID, tenant.FeatureBilling); err != nil {
		return nil, err
	}
	if r, err = billing.NewDateRange(r.Start, r.End); err != nil {
		return nil, err
	}
	ledger, err := s.store.ForComplex(ctx, complexID)
	if err != nil {
		return nil, err
	}
	reader := ledger.Reports()

	bills, err := reader.BillsGenerated(ctx, r)
	if err != nil {
		return nil, err
	}
	var payments []billing.Payment
	switch mode {
	case billing.ReportModeCohort:
		payments, err = reader.PaymentsForBillsGenerated(ctx, r)
	default:
		payments, err = reader.PaymentsPaid(ctx, r)
	}
	if err != nil {
		return nil, err
	}
	expenses, err := reader.Expenses(ctx, r)
	if err != nil {
		return nil, err
	}

	summary := billing.Summarize(bills, payments, expenses)
	summary.ComplexID = complexID
	summary.Mode = mode
	summary.StartDate = r.Start.Format("2006-01-02")
	summary.EndDate = r.End.Format("2006-01-02")
	return &summary, nil
}
