package eventing

import "context"

type contextKey string

const (
	contextKeyCorr    contextKey = "eventing.correlation_id"
	contextKeyEventID contextKey = "eventing.event_id"
)

// WithCorrelationID sets correlation id in context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, contextKeyCorr, correlationID)
}

// WithEventID sets event id in context.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, contextKeyEventID, eventID)
}

// MetaFromContext builds metadata for complexID from context values.
func MetaFromContext(ctx context.Context, complexID int64) Meta {
	meta := Meta{ComplexID: complexID}
	if ctx == nil {
		return meta
	}
	if corr, ok := ctx.Value(contextKeyCorr).(string); ok {
		meta.CorrelationID = corr
	}
	if id, ok := ctx.Value(contextKeyEventID).(string); ok {
		meta.EventID = id
	}
	return meta
}
