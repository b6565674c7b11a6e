package eventing

import (
	"context"
	"sync"
)

// MemoryOutbox is an in-memory OutboxStore.
type MemoryOutbox struct {
	mu      sync.Mutex
	records []memoryOutboxRecord
}

type memoryOutboxRecord struct {
	OutboxRecord
	sent bool
}

// NewMemoryOutbox constructs an empty outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

// Insert stores env; a repeated event id is ignored.
func (o *MemoryOutbox) Insert(ctx context.Context, env Envelope) (string, error) {
	_ = ctx
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, r := range o.records {
		if r.Envelope.EventID == env.EventID {
			return r.ID, nil
		}
	}
	id := NewEventID()
	o.records = append(o.records, memoryOutboxRecord{OutboxRecord: OutboxRecord{ID: id, Envelope: env}})
	return id, nil
}

// ListPending returns unsent records below maxAttempts in insertion order.
func (o *MemoryOutbox) ListPending(ctx context.Context, limit, maxAttempts int) ([]OutboxRecord, error) {
	_ = ctx
	o.mu.Lock()
	defer o.mu.Unlock()
	var result []OutboxRecord
	for _, r := range o.records {
		if r.sent || r.Attempts >= maxAttempts {
			continue
		}
		result = append(result, r.OutboxRecord)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// MarkSent marks a record as delivered.
func (o *MemoryOutbox) MarkSent(ctx context.Context, id string) error {
	_ = ctx
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.records {
		if o.records[i].ID == id {
			o.records[i].sent = true
		}
	}
	return nil
}

// MarkFailed increments the attempts of a record.
func (o *MemoryOutbox) MarkFailed(ctx context.Context, id string) error {
	_ = ctx
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.records {
		if o.records[i].ID == id {
			o.records[i].Attempts++
		}
	}
	return nil
}
