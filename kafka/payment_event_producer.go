package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dayvhiid/Simple-E-commerce-API/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PaymentEventProducer struct {
	writer messageWriter
	topic  string
}

func NewPaymentEventProducer(brokers []string, topic string) *PaymentEventProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	zap.L().Info("Kafka payment event producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &PaymentEventProducer{writer: w, topic: topic}
}

// PublishPaymentEvent writes event keyed by order id, so events of one order stay ordered.
func (p *PaymentEventProducer) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write payment event to %s: %w", p.topic, err)
	}

	zap.L().Debug("Sent payment event", zap.String("type", event.Type), zap.String("order_id", event.OrderID))
	return nil
}

func (p *PaymentEventProducer) Close() error {
	return p.writer.Close()
}
