package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dayvhiid/Simple-E-commerce-API/models"
	aws_pkg "github.com/Dayvhiid/Simple-E-commerce-API/pkg/aws"
)

// EventPublisher delivers payment events to whatever bus is configured.
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

// NopEventPublisher drops every event.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishPaymentEvent(context.Context, models.PaymentEvent) error { return nil }

// SNSEventPublisher publishes payment events to an SNS topic.
type SNSEventPublisher struct {
	client   aws_pkg.SNSPublisher
	topicARN string
}

func NewSNSEventPublisher(client aws_pkg.SNSPublisher, topicARN string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicARN: topicARN}
}

func (p *SNSEventPublisher) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}
	return p.client.Publish(ctx, p.topicARN, event.Type, msg)
}
