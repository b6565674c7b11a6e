package application

import (
	"context"
	"time"

	"residential-cloud/internal/eventing"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// QuorumPolicy provides the per-complex quorum threshold.
type QuorumPolicy interface {
	QuorumPercentage(complexID int64) float64
}

// EventEmitter publishes domain events of a complex.
type EventEmitter interface {
	Emit(ctx context.Context, complexID int64, event eventing.Event) error
}
