package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/nanba/pharmacy-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAcknowledger records how a delivery was settled
type fakeAcknowledger struct {
	acked    bool
	nacked   bool
	rejected bool
	requeue  bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.rejected = true
	f.requeue = requeue
	return nil
}

type retryCall struct {
	attempt int
	body    []byte
}

func newTestConsumer() (*Consumer, *[]retryCall) {
	var calls []retryCall
	c := &Consumer{
		queueName:  "test.queue",
		handlers:   make(map[string]MessageHandler),
		maxRetries: DefaultMaxRetries,
		logger:     logger.Nop(),
	}
	c.retry = func(ctx context.Context, msg amqp.Delivery, attempt int) error {
		calls = append(calls, retryCall{attempt: attempt, body: msg.Body})
		return nil
	}
	return c, &calls
}

func delivery(t *testing.T, ack amqp.Acknowledger, eventType string, data interface{}, headers amqp.Table) amqp.Delivery {
	t.Helper()
	event, err := NewEvent(eventType, "test", "corr-1", data)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, Headers: headers}
}

func TestHandleMessage_DispatchesByType(t *testing.T) {
	c, _ := newTestConsumer()

	var got PrescriberDeletedEvent
	var correlationID string
	c.RegisterHandler(EventPrescriberDeleted, func(ctx context.Context, event *Event) error {
		correlationID = CorrelationID(ctx)
		return event.UnmarshalData(&got)
	})

	ack := &fakeAcknowledger{}
	c.handleMessage(context.Background(), delivery(t, ack, EventPrescriberDeleted, PrescriberDeletedEvent{LicenseID: "REG-12345"}, nil))

	assert.True(t, ack.acked)
	assert.Equal(t, "REG-12345", got.LicenseID)
	assert.Equal(t, "corr-1", correlationID)
}

func TestHandleMessage_UnknownTypeIsAcked(t *testing.T) {
	c, _ := newTestConsumer()
	ack := &fakeAcknowledger{}
	c.handleMessage(context.Background(), delivery(t, ack, "order.created", OrderCreatedEvent{OrderID: "o-1"}, nil))
	assert.True(t, ack.acked)
}

func TestHandleMessage_MalformedBodyIsRejected(t *testing.T) {
	c, _ := newTestConsumer()
	ack := &fakeAcknowledger{}
	c.handleMessage(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})
	assert.True(t, ack.rejected)
	assert.False(t, ack.requeue)
}

func TestHandleMessage_RetryThenDeadLetter(t *testing.T) {
	c, calls := newTestConsumer()
	c.RegisterHandler(EventPrescriberUpserted, func(ctx context.Context, event *Event) error {
		return fmt.Errorf("cache unavailable")
	})

	t.Run("first failure is re-published with attempt 1", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		d := delivery(t, ack, EventPrescriberUpserted, PrescriberUpsertedEvent{LicenseID: "REG-12345"}, nil)
		c.handleMessage(context.Background(), d)

		assert.True(t, ack.acked)
		assert.False(t, ack.rejected)
		require.Len(t, *calls, 1)
		assert.Equal(t, 1, (*calls)[0].attempt)
		assert.Equal(t, d.Body, (*calls)[0].body)
	})

	t.Run("retry header is incremented", func(t *testing.T) {
		*calls = nil
		ack := &fakeAcknowledger{}
		c.handleMessage(context.Background(), delivery(t, ack, EventPrescriberUpserted, PrescriberUpsertedEvent{}, amqp.Table{retryHeader: int32(2)}))

		assert.True(t, ack.acked)
		require.Len(t, *calls, 1)
		assert.Equal(t, 3, (*calls)[0].attempt)
	})

	t.Run("rejects once budget is spent", func(t *testing.T) {
		*calls = nil
		ack := &fakeAcknowledger{}
		c.handleMessage(context.Background(), delivery(t, ack, EventPrescriberUpserted, PrescriberUpsertedEvent{}, amqp.Table{retryHeader: int32(3)}))

		assert.True(t, ack.rejected)
		assert.False(t, ack.requeue)
		assert.Empty(t, *calls)
	})
}

func TestHandleMessage_RepublishFailureRequeues(t *testing.T) {
	c, _ := newTestConsumer()
	c.retry = func(ctx context.Context, msg amqp.Delivery, attempt int) error {
		return fmt.Errorf("channel closed")
	}
	c.RegisterHandler(EventPrescriberDeleted, func(ctx context.Context, event *Event) error {
		return fmt.Errorf("cache unavailable")
	})

	ack := &fakeAcknowledger{}
	c.handleMessage(context.Background(), delivery(t, ack, EventPrescriberDeleted, PrescriberDeletedEvent{LicenseID: "REG-12345"}, nil))

	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
	assert.False(t, ack.acked)
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, retryCount(amqp.Delivery{}))
	assert.Equal(t, 2, retryCount(amqp.Delivery{Headers: amqp.Table{retryHeader: int32(2)}}))
	assert.Equal(t, 4, retryCount(amqp.Delivery{Headers: amqp.Table{retryHeader: int64(4)}}))
	// Broker x-death counts are not ours
	assert.Equal(t, 0, retryCount(amqp.Delivery{Headers: amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(7)}}}}))
}

func TestNewPublishing(t *testing.T) {
	event, err := NewEvent(EventOrderCreated, "order-service", "order-1", OrderCreatedEvent{OrderID: "order-1"})
	require.NoError(t, err)

	msg, err := newPublishing(event)
	require.NoError(t, err)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, event.ID, msg.MessageId)
	assert.Equal(t, "order-1", msg.CorrelationId)
	assert.Equal(t, EventOrderCreated, msg.Type)
	assert.Equal(t, "order-service", msg.AppId)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
}

func TestEnsureCorrelationID(t *testing.T) {
	ctx := EnsureCorrelationID(context.Background(), "order-1")
	assert.Equal(t, "order-1", CorrelationID(ctx))

	ctx = EnsureCorrelationID(WithCorrelationID(context.Background(), "req-9"), "order-1")
	assert.Equal(t, "req-9", CorrelationID(ctx))

	assert.Empty(t, CorrelationID(context.Background()))
}

func TestDeadLetterQueue(t *testing.T) {
	assert.Equal(t, "dlq.order-service", DeadLetterQueue("order-service"))
}

func TestNewEvent(t *testing.T) {
	event, err := NewEvent(EventOrderVerificationCompleted, "order-service", "", OrderVerificationCompletedEvent{
		OrderID: "o-1",
		Verdict: "Blocked",
		Reason:  "Prescriber is suspended",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventOrderVerificationCompleted, event.Type)

	var data OrderVerificationCompletedEvent
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, "Prescriber is suspended", data.Reason)
}
