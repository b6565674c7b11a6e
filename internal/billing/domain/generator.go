package billing

import (
	"fmt"
	"time"

	"residential-cloud/internal/apperr"
)

// DefaultDueDay is the day of the following month on which bills fall due.
const DefaultDueDay = 15

// GenerateOptions configures bill generation.
type GenerateOptions struct {
	DueDay    int
	Now       time.Time
	Evaluator FormulaEvaluator
}

// GenerateBills computes one bill per active property for period by charging
// every active fee. Properties without applicable fees still get a bill with
// a zero total. The result depends only on the inputs.
func GenerateBills(complexID int64, period BillingPeriod, properties []Property, fees []FeeStructure, opts GenerateOptions) ([]GeneratedBill, error) {
	if period.IsZero() {
		return nil, apperr.Validation("period", "billing: period is required")
	}
	dueDay := opts.DueDay
	if dueDay == 0 {
		dueDay = DefaultDueDay
	}
	generatedAt := opts.Now
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}
	dueDate := period.DueDate(dueDay)
	activeFees := ActiveFees(fees)

	bills := make([]GeneratedBill, 0, len(properties))
	for _, property := range ActiveProperties(properties) {
		items := make([]LineItem, 0, len(activeFees))
		for _, fee := range activeFees {
			amount, err := fee.AmountFor(property, opts.Evaluator)
			if err != nil {
				return nil, fmt.Errorf("fee %s on property %s: %w", fee.ID, property.ID, err)
			}
			items = append(items, LineItem{
				FeeID:  fee.ID,
				Name:   fee.Name,
				Amount: amount,
				Type:   fee.Type,
			})
		}
		bills = append(bills, GeneratedBill{
			ID:          BillID(complexID, property.ID, period),
			ComplexID:   complexID,
			PropertyID:  property.ID,
			Period:      period,
			LineItems:   items,
			TotalAmount: SumLineItems(items),
			DueDate:     dueDate,
			GeneratedAt: generatedAt,
			Status:      BillStatusPending,
		})
	}
	return bills, nil
}
