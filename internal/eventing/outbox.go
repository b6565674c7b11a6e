package eventing

import (
	"context"
	"log/slog"
)

const defaultMaxAttempts = 5

// OutboxRecord is a stored envelope awaiting delivery.
type OutboxRecord struct {
	ID       string
	Envelope Envelope
	Attempts int
}

// OutboxWriter stores envelopes for later delivery.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// OutboxStore provides access to outbox records.
type OutboxStore interface {
	OutboxWriter
	ListPending(ctx context.Context, limit, maxAttempts int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxPublisher writes envelopes to the outbox instead of the broker.
type OutboxPublisher struct {
	outbox OutboxWriter
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(outbox OutboxWriter) *OutboxPublisher {
	return &OutboxPublisher{outbox: outbox}
}

// Publish inserts the envelope into the outbox.
func (p *OutboxPublisher) Publish(ctx context.Context, env Envelope) error {
	if p == nil || p.outbox == nil {
		return nil
	}
	_, err := p.outbox.Insert(ctx, env)
	return err
}

// Relay drains the outbox into a downstream publisher.
type Relay struct {
	outbox      OutboxStore
	downstream  Publisher
	maxAttempts int
	logger      *slog.Logger
}

// NewRelay constructs a relay.
func NewRelay(outbox OutboxStore, downstream Publisher, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{outbox: outbox, downstream: downstream, maxAttempts: defaultMaxAttempts, logger: logger}
}

// Dispatch delivers up to limit pending records and returns how many were
// sent. Failed records stay in the outbox until they exhaust their attempts.
func (r *Relay) Dispatch(ctx context.Context, limit int) (int, error) {
	if r == nil || r.outbox == nil || r.downstream == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 50
	}
	records, err := r.outbox.ListPending(ctx, limit, r.maxAttempts)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, record := range records {
		if err := r.downstream.Publish(ctx, record.Envelope); err != nil {
			r.logger.Warn("outbox delivery failed",
				"outbox_id", record.ID,
				"event_type", record.Envelope.EventType,
				"attempts", record.Attempts+1,
				"error", err,
			)
			_ = r.outbox.MarkFailed(ctx, record.ID)
			continue
		}
		if err := r.outbox.MarkSent(ctx, record.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
