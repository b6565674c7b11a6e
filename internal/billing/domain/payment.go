package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"residential-cloud/internal/apperr"
)

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodPSE          PaymentMethod = "PSE"
)

// PaymentStatus is the state of a payment record.
type PaymentStatus string

const (
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
)

// Payment is an amount applied to exactly one bill.
type Payment struct {
	ID        string          `json:"id"`
	BillID    string          `json:"billId"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"paymentMethod"`
	Reference string          `json:"reference,omitempty"`
	PaidAt    time.Time       `json:"paidAt"`
	Status    PaymentStatus   `json:"status"`
}

// PaymentRequest is a payment to be reconciled against a bill.
type PaymentRequest struct {
	BillID    string
	Amount    decimal.Decimal
	Method    PaymentMethod
	Reference string
}

// NormalizePaymentMethod validates a payment method string.
func NormalizePaymentMethod(value string) (PaymentMethod, bool) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(value))); m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCreditCard, PaymentMethodPSE:
		return m, true
	default:
		return "", false
	}
}

// Validate checks the request shape before any state is touched.
func (r PaymentRequest) Validate() error {
	if strings.TrimSpace(r.BillID) == "" {
		return apperr.Validation("billId", "billing: bill id is required")
	}
	if !r.Amount.IsPositive() {
		return apperr.Validation("amount", "billing: payment amount must be positive")
	}
	if _, ok := NormalizePaymentMethod(string(r.Method)); !ok {
		return apperr.Validation("paymentMethod", "billing: unsupported payment method")
	}
	return nil
}

// SumPayments returns the total amount of payments.
func SumPayments(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
