package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/board"
)

var errMalformed = errors.New("malformed board event")

// LeadMovedHandler reacts to a move confirmed by another instance.
type LeadMovedHandler func(ctx context.Context, event board.LeadMovedEvent) error

type consumerChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Consumer keeps this instance's boards in step with moves made through
// other instances. Each instance binds its own exclusive queue.
type Consumer struct {
	ch      consumerChannel
	origin  string
	handler LeadMovedHandler
	logger  *zap.Logger
}

func NewConsumer(ch consumerChannel, origin string, handler LeadMovedHandler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{ch: ch, origin: origin, handler: handler, logger: logger}
}

// Start consumes until ctx is done or the channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare instance queue: %w", err)
	}
	if err := c.ch.QueueBind(q.Name, RoutingKeyLeadMoved, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind instance queue: %w", err)
	}
	msgs, err := c.ch.Consume(q.Name, "leadboard-"+c.origin, false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("board event consumer started", zap.String("queue", q.Name))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("board event channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				c.logger.Warn("board event rejected", zap.Error(err))
				d.Nack(false, false)
				continue
			}
			d.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if msg.Origin == c.origin {
		return nil
	}

	switch msg.Type {
	case EventLeadMoved:
		if msg.LeadMoved == nil || msg.LeadMoved.PipelineID == "" {
			return fmt.Errorf("%w: lead moved without pipeline", errMalformed)
		}
		c.logger.Debug("lead moved elsewhere",
			zap.String("pipeline", msg.LeadMoved.PipelineID),
			zap.String("lead", msg.LeadMoved.LeadID),
			zap.String("origin", msg.Origin))
		return c.handler(ctx, *msg.LeadMoved)
	default:
		c.logger.Debug("ignoring board event", zap.String("type", msg.Type))
		return nil
	}
}
