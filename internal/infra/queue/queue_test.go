package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadboard/internal/board"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(ctx, exchange, key, msg)
	return args.Error(0)
}

func TestProducerPublishesLeadMoved(t *testing.T) {
	ch := new(MockPublisher)
	var sent amqp.Publishing
	ch.On("PublishWithContext", mock.Anything, ExchangeName, RoutingKeyLeadMoved, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(3).(amqp.Publishing) }).
		Return(nil)

	event := board.LeadMovedEvent{PipelineID: "p1", LeadID: "2", FromStage: "A", ToStage: "C", UpdatedBy: "u1"}
	require.NoError(t, NewProducer(ch, "node-1").PublishLeadMoved(context.Background(), event))

	assert.Equal(t, "application/json", sent.ContentType)
	assert.Equal(t, amqp.Persistent, sent.DeliveryMode)

	var msg Message
	require.NoError(t, json.Unmarshal(sent.Body, &msg))
	assert.Equal(t, EventLeadMoved, msg.Type)
	assert.Equal(t, "node-1", msg.Origin)
	assert.Equal(t, event, *msg.LeadMoved)
}

func TestProducerWrapsPublishError(t *testing.T) {
	ch := new(MockPublisher)
	ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(amqp.ErrClosed)

	err := NewProducer(ch, "node-1").PublishLeadMoved(context.Background(), board.LeadMovedEvent{PipelineID: "p1"})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func encode(t *testing.T, msg Message) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

func TestConsumerHandle(t *testing.T) {
	var got []board.LeadMovedEvent
	c := NewConsumer(nil, "node-1", func(_ context.Context, e board.LeadMovedEvent) error {
		got = append(got, e)
		return nil
	}, nil)
	ctx := context.Background()
	moved := &board.LeadMovedEvent{PipelineID: "p1", LeadID: "2"}

	require.NoError(t, c.handle(ctx, encode(t, Message{Type: EventLeadMoved, Origin: "node-1", LeadMoved: moved})))
	assert.Empty(t, got, "own events are skipped")

	require.NoError(t, c.handle(ctx, encode(t, Message{Type: EventLeadMoved, Origin: "node-2", LeadMoved: moved})))
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].PipelineID)

	require.NoError(t, c.handle(ctx, encode(t, Message{Type: "stage.created", Origin: "node-2"})))
	assert.Len(t, got, 1)
}

func TestConsumerRejectsMalformed(t *testing.T) {
	c := NewConsumer(nil, "node-1", func(context.Context, board.LeadMovedEvent) error { return nil }, nil)
	ctx := context.Background()

	assert.ErrorIs(t, c.handle(ctx, []byte("{")), errMalformed)
	assert.ErrorIs(t, c.handle(ctx, encode(t, Message{Type: EventLeadMoved, Origin: "node-2"})), errMalformed)
}

func TestConsumerSurfacesHandlerError(t *testing.T) {
	c := NewConsumer(nil, "node-1", func(context.Context, board.LeadMovedEvent) error { return errors.New("refresh failed") }, nil)

	err := c.handle(context.Background(), encode(t, Message{
		Type: EventLeadMoved, Origin: "node-2", LeadMoved: &board.LeadMovedEvent{PipelineID: "p1"},
	}))
	assert.EqualError(t, err, "refresh failed")
}
