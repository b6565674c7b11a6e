package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"residential-cloud/internal/eventing"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// PolicySource provides per-complex billing parameters.
type PolicySource interface {
	DueDay(complexID int64) int
	LateFeeMonthlyRate(complexID int64) decimal.Decimal
}

// EventEmitter publishes domain events of a complex.
type EventEmitter interface {
	Emit(ctx context.Context, complexID int64, event eventing.Event) error
}
