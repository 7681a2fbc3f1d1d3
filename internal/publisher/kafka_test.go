package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	d "github.com/manxbiltong/checkout/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func testEvent() *d.CheckoutEvent {
	return &d.CheckoutEvent{
		OrderRef:  "ref-1",
		SessionID: "cs_test_1",
		Region:    "IM",
		Currency:  "GBP",
		LineItems: []d.LineItem{
			{Description: "Original Biltong", UnitAmount: 450, Quantity: 2},
		},
		TotalMinorUnits: 900,
		CreatedAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublish_WritesKeyedMessage(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisherWithWriter(w)

	require.NoError(t, p.Publish(context.Background(), testEvent()))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, []byte("ref-1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, d.EventCheckoutSessionCreated, string(msg.Headers[0].Value))

	var got d.CheckoutEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "cs_test_1", got.SessionID)
	assert.Equal(t, int64(900), got.TotalMinorUnits)
	assert.Equal(t, "Original Biltong", got.LineItems[0].Description)
}

func TestPublish_WriterError(t *testing.T) {
	w := &mockWriter{err: errors.New("broker down")}
	p := NewPublisherWithWriter(w)

	err := p.Publish(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ref-1")
	assert.Contains(t, err.Error(), "broker down")
}

func TestClose(t *testing.T) {
	w := &mockWriter{}
	require.NoError(t, NewPublisherWithWriter(w).Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher_DefaultTopic(t *testing.T) {
	p := NewKafkaPublisher("", "localhost:9092")
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, DefaultTopic, w.Topic)
	assert.True(t, w.AllowAutoTopicCreation)
	require.NoError(t, p.Close())
}

func TestNewKafkaPublisher_ShortBatchTimeout(t *testing.T) {
	p := NewKafkaPublisher("", "localhost:9092")
	defer p.Close()

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, DefaultTopic, w.Topic)
	assert.Equal(t, batchTimeout, w.BatchTimeout)
}
