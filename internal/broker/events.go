package broker

import (
	"context"
	"time"

	"billing-service/internal/models"
	"billing-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher emits order and invoice domain events to the order-events
// topic. Publishing is best effort: the state change has already committed,
// so a broker failure is logged, never propagated to the caller.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
}

// NewEventPublisher creates a publisher on top of a producer.
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		logger:   util.GetLogger(),
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func (p *EventPublisher) publish(ctx context.Context, key string, event interface{}) {
	if err := p.producer.PublishEvent(ctx, key, event); err != nil {
		p.logger.Error("Event publish failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

// PublishOrderCreated emits order.created.
func (p *EventPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) {
	p.publish(ctx, order.OrderNumber, models.OrderCreatedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeOrderCreated),
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		CustomerID:   order.CustomerID,
		Total:        order.Total,
		Currency:     order.Currency,
		DiscountCode: order.DiscountCode,
	})
}

// PublishOrderStatusChanged emits order.status_changed.
func (p *EventPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous string) {
	p.publish(ctx, order.OrderNumber, models.OrderStatusChangedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		From:        previous,
		To:          order.Status,
	})
}

// PublishInvoiceIssued emits invoice.issued.
func (p *EventPublisher) PublishInvoiceIssued(ctx context.Context, invoice *models.Invoice) {
	p.publish(ctx, invoice.InvoiceNumber, models.InvoiceIssuedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeInvoiceIssued),
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		OrderID:       invoice.OrderID,
		Total:         invoice.Total,
	})
}

// PublishInvoicePaid emits invoice.paid.
func (p *EventPublisher) PublishInvoicePaid(ctx context.Context, invoice *models.Invoice) {
	paidAt := time.Now()
	if invoice.PaidAt != nil {
		paidAt = *invoice.PaidAt
	}
	p.publish(ctx, invoice.InvoiceNumber, models.InvoicePaidEvent{
		BaseEvent:     newBaseEvent(models.EventTypeInvoicePaid),
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		OrderID:       invoice.OrderID,
		PaidAt:        paidAt,
	})
}
