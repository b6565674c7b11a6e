package eventing

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultExchange = "residential.events"

// RabbitPublisher publishes envelopes to a topic exchange, routed by event
// type.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	declared bool
}

// NewRabbitPublisher dials the broker and opens a channel.
func NewRabbitPublisher(amqpURL, exchange string) (*RabbitPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	if exchange == "" {
		exchange = defaultExchange
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish sends the envelope as a persistent JSON message.
func (p *RabbitPublisher) Publish(ctx context.Context, env Envelope) error {
	if p == nil || p.channel == nil {
		return errors.New("eventing: rabbitmq channel not initialized")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared {
		if err := p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
			return err
		}
		p.declared = true
	}

	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, p.exchange, env.EventType, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.EventID,
		CorrelationId: env.CorrelationID,
		Type:          env.EventType,
		Timestamp:     env.OccurredAt,
		Body:          body,
	})
}

// Close closes the channel and connection.
func (p *RabbitPublisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("eventing: AMQP scheme must be amqp:// or amqps://")
	}
	return clean, nil
}
