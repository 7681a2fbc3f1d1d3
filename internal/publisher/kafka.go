package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	d "github.com/manxbiltong/checkout/domain"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic = "checkout-sessions"

	// batchTimeout caps how long a single event waits for a batch to fill.
	batchTimeout = 10 * time.Millisecond
)

// MessageWriter is the part of *kafka.Writer the publisher relies on.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(w)
}

func NewPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish writes the event keyed by order reference.
func (p *KafkaPublisher) Publish(ctx context.Context, event *d.CheckoutEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal checkout event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderRef),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(d.EventCheckoutSessionCreated)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish checkout event %s: %w", event.OrderRef, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
