package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillsGenerated is emitted after a bill batch is persisted.
type BillsGenerated struct {
	ComplexID   int64           `json:"complexId"`
	Period      string          `json:"period"`
	BillCount   int             `json:"billCount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

func (BillsGenerated) EventType() string { return "billing.bills_generated" }

// PaymentConfirmed is emitted after a payment is committed.
type PaymentConfirmed struct {
	ComplexID int64           `json:"complexId"`
	PaymentID string          `json:"paymentId"`
	BillID    string          `json:"billId"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"paymentMethod"`
	FullyPaid bool            `json:"fullyPaid"`
	PaidAt    time.Time       `json:"paidAt"`
}

func (PaymentConfirmed) EventType() string { return "billing.payment_confirmed" }
