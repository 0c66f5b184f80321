package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	publishErr error
	closed     int
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.declared = append(c.declared, name+":"+kind)
	return nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed++
	return nil
}

type fakeConn struct {
	ch      *fakeChannel
	openErr error
}

func (c *fakeConn) openChannel() (channel, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.ch, nil
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNewPublisherDeclaresTopicExchange(t *testing.T) {
	ch := &fakeChannel{}

	p, err := newPublisher(&fakeConn{ch: ch}, "loan-events", testLogger)

	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, []string{"loan-events:topic"}, ch.declared)
	assert.Equal(t, 1, ch.closed)
}

func TestNewPublisherRejectsEmptyExchange(t *testing.T) {
	_, err := newPublisher(&fakeConn{ch: &fakeChannel{}}, "", testLogger)
	assert.Error(t, err)
}

func TestNewRabbitMQEventPublisherNilConnection(t *testing.T) {
	_, err := NewRabbitMQEventPublisher(nil, "loan-events", testLogger)
	assert.Error(t, err)
}

func TestPublishPaymentRecorded(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(&fakeConn{ch: ch}, "loan-events", testLogger)
	require.NoError(t, err)

	evt := PaymentRecordedEvent{
		PaymentID:  "6f1c",
		LoanID:     42,
		Amount:     decimal.RequireFromString("7000.00"),
		Interest:   decimal.RequireFromString("5000.00"),
		Principal:  decimal.RequireFromString("2000.00"),
		LoanStatus: "active",
		RecordedBy: "teller-1",
		Timestamp:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishPaymentRecorded(context.Background(), evt))

	require.Len(t, ch.published, 1)
	assert.Equal(t, RoutingKeyPaymentRecorded, ch.keys[0])
	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, publisherAppID, msg.AppId)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "7000", body["amount"])
	assert.Equal(t, float64(42), body["loanId"])
}

func TestPublishFailures(t *testing.T) {
	t.Run("channel open fails", func(t *testing.T) {
		conn := &fakeConn{ch: &fakeChannel{}}
		p, err := newPublisher(conn, "loan-events", testLogger)
		require.NoError(t, err)

		conn.openErr = errors.New("connection closed")
		err = p.PublishLoanCreated(context.Background(), LoanCreatedEvent{LoanID: 1})
		assert.ErrorContains(t, err, "failed to open channel")
	})

	t.Run("publish fails", func(t *testing.T) {
		ch := &fakeChannel{}
		p, err := newPublisher(&fakeConn{ch: ch}, "loan-events", testLogger)
		require.NoError(t, err)

		ch.publishErr = errors.New("channel closed")
		err = p.PublishLoanDelinquencyChanged(context.Background(), LoanDelinquencyChangedEvent{LoanID: 1})
		assert.ErrorContains(t, err, "failed to publish message")
	})
}

func TestNoopPublisher(t *testing.T) {
	var p EventPublisher = NoopPublisher{}
	assert.NoError(t, p.PublishCustomerCreated(context.Background(), CustomerCreatedEvent{}))
	assert.NoError(t, p.PublishLoanDelinquencyChanged(context.Background(), LoanDelinquencyChangedEvent{}))
}
