package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/leadboard/internal/board"
)

const EventLeadMoved = "lead.moved"

// Message wraps every board event. Origin identifies the publishing instance
// so it can skip its own events when consuming.
type Message struct {
	Type       string                `json:"type"`
	Origin     string                `json:"origin"`
	OccurredAt time.Time             `json:"occurred_at"`
	LeadMoved  *board.LeadMovedEvent `json:"lead_moved,omitempty"`
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Producer struct {
	ch     publisher
	origin string
}

func NewProducer(ch publisher, origin string) *Producer {
	return &Producer{ch: ch, origin: origin}
}

func (p *Producer) PublishLeadMoved(ctx context.Context, event board.LeadMovedEvent) error {
	body, err := json.Marshal(Message{
		Type:       EventLeadMoved,
		Origin:     p.origin,
		OccurredAt: time.Now().UTC(),
		LeadMoved:  &event,
	})
	if err != nil {
		return fmt.Errorf("encode lead moved: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKeyLeadMoved,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publish lead moved: %w", err)
	}
	return nil
}
