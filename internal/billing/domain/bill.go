package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BillStatus is the settlement state of a bill.
type BillStatus string

const (
	BillStatusPending BillStatus = "PENDING"
	BillStatusPaid    BillStatus = "PAID"
)

// LineItem is a fee as charged on a bill, frozen at generation time.
type LineItem struct {
	FeeID  string          `json:"feeId"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Type   FeeType         `json:"type"`
}

// GeneratedBill is the obligation of one property for one period.
type GeneratedBill struct {
	ID          string          `json:"id"`
	ComplexID   int64           `json:"complexId"`
	PropertyID  string          `json:"propertyId"`
	Period      BillingPeriod   `json:"period"`
	LineItems   []LineItem      `json:"lineItems"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	PaidAmount  decimal.Decimal `json:"paidAmount"`
	DueDate     time.Time       `json:"dueDate"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Status      BillStatus      `json:"status"`
	PaidAt      *time.Time      `json:"paidAt,omitempty"`
}

// BillID is the stable id of the bill of property for period.
func BillID(complexID int64, propertyID string, period BillingPeriod) string {
	return fmt.Sprintf("bill-%d-%s-%06d", complexID, propertyID, period.Key())
}

// SumLineItems returns the exact sum of the item amounts.
func SumLineItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total
}

// Outstanding returns the unpaid remainder, never negative.
func (b GeneratedBill) Outstanding() decimal.Decimal {
	remaining := b.TotalAmount.Sub(b.PaidAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// ApplyPayment records req against the bill. Payments accumulate in
// PaidAmount and the bill becomes PAID once PaidAmount reaches TotalAmount.
// The returned flag reports whether this payment settled the bill.
func (b *GeneratedBill) ApplyPayment(req PaymentRequest, paymentID string, at time.Time) (Payment, bool, error) {
	if err := req.Validate(); err != nil {
		return Payment{}, false, err
	}
	if b.Status == BillStatusPaid {
		return Payment{}, false, ErrBillAlreadyPaid
	}
	method, _ := NormalizePaymentMethod(string(req.Method))
	payment := Payment{
		ID:        paymentID,
		BillID:    b.ID,
		Amount:    req.Amount,
		Method:    method,
		Reference: req.Reference,
		PaidAt:    at,
		Status:    PaymentStatusConfirmed,
	}
	b.PaidAmount = b.PaidAmount.Add(req.Amount)
	if b.PaidAmount.GreaterThanOrEqual(b.TotalAmount) {
		paidAt := at
		b.Status = BillStatusPaid
		b.PaidAt = &paidAt
		return payment, true, nil
	}
	return payment, false, nil
}

// Clone returns a deep copy of the bill.
func (b GeneratedBill) Clone() GeneratedBill {
	out := b
	if b.LineItems != nil {
		out.LineItems = append([]LineItem(nil), b.LineItems...)
	}
	if b.PaidAt != nil {
		paidAt := *b.PaidAt
		out.PaidAt = &paidAt
	}
	return out
}
