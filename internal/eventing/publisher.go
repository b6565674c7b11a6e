package eventing

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"residential-cloud/internal/observability/metrics"
)

// Publisher delivers envelopes.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Emitter turns domain events into envelopes and hands them to a publisher.
type Emitter struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewEmitter constructs an emitter. A nil publisher drops events.
func NewEmitter(publisher Publisher, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{publisher: publisher, logger: logger}
}

// Emit publishes event for complexID.
func (e *Emitter) Emit(ctx context.Context, complexID int64, event Event) error {
	if e == nil || e.publisher == nil {
		return nil
	}
	env, err := BuildEnvelope(event, MetaFromContext(ctx, complexID))
	if err != nil {
		return err
	}
	if err := e.publisher.Publish(ctx, env); err != nil {
		metrics.IncEventPublish(env.EventType, metrics.ResultError)
		e.logger.Error("event publish failed", "event_type", env.EventType, "event_id", env.EventID, "complex_id", complexID, "error", err)
		return err
	}
	metrics.IncEventPublish(env.EventType, metrics.ResultSuccess)
	return nil
}

// LoggingPublisher logs envelopes. It is the fallback when no broker is
// configured.
type LoggingPublisher struct {
	logger *slog.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

// Publish logs the envelope.
func (p *LoggingPublisher) Publish(ctx context.Context, env Envelope) error {
	if p == nil {
		return errors.New("eventing: nil logging publisher")
	}
	p.logger.InfoContext(ctx, "event published",
		"event_type", env.EventType,
		"event_id", env.EventID,
		"complex_id", env.ComplexID,
		"correlation_id", env.CorrelationID,
	)
	return nil
}

// MemoryPublisher keeps envelopes in memory.
type MemoryPublisher struct {
	mu        sync.Mutex
	envelopes []Envelope
	err       error
}

// NewMemoryPublisher constructs an in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// FailWith makes subsequent publishes return err.
func (p *MemoryPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Publish stores the envelope.
func (p *MemoryPublisher) Publish(ctx context.Context, env Envelope) error {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.envelopes = append(p.envelopes, env)
	return nil
}

// Envelopes returns a copy of the published envelopes.
func (p *MemoryPublisher) Envelopes() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Envelope(nil), p.envelopes...)
}
