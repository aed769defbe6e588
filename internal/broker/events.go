package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"pos-service/internal/models"
	"pos-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher writes keyed events to the event stream
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// NopPublisher drops every event. It is used when Kafka is disabled.
type NopPublisher struct{}

// PublishEvent implements Publisher
func (NopPublisher) PublishEvent(context.Context, string, interface{}) error { return nil }

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishSaleRecorded publishes SaleRecorded event
func (ep *EventPublisher) PublishSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error {
	key := fmt.Sprintf("sale-%d", event.SaleID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishStockLow publishes StockLow event
func (ep *EventPublisher) PublishStockLow(ctx context.Context, event *models.StockLowEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderReceived publishes OrderReceived event
func (ep *EventPublisher) PublishOrderReceived(ctx context.Context, event *models.OrderReceivedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderCancelled publishes OrderCancelled event
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCashClosed publishes CashClosed event
func (ep *EventPublisher) PublishCashClosed(ctx context.Context, event *models.CashClosedEvent) error {
	key := fmt.Sprintf("closing-%d", event.ClosingID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onStockLow      func(context.Context, *models.StockLowEvent) error
	onOrderReceived func(context.Context, *models.OrderReceivedEvent) error
	logger          *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnStockLow registers a handler for StockLow events
func (eh *EventHandler) OnStockLow(handler func(context.Context, *models.StockLowEvent) error) {
	eh.onStockLow = handler
}

// OnOrderReceived registers a handler for OrderReceived events
func (eh *EventHandler) OnOrderReceived(handler func(context.Context, *models.OrderReceivedEvent) error) {
	eh.onOrderReceived = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return eh.Handle(ctx, msg.Value)
}

// Handle decodes a raw event and dispatches it by type
func (eh *EventHandler) Handle(ctx context.Context, payload []byte) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(payload, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeStockLow:
		if eh.onStockLow != nil {
			var event models.StockLowEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockLow event: %w", err)
			}
			return eh.onStockLow(ctx, &event)
		}

	case models.EventTypeOrderReceived:
		if eh.onOrderReceived != nil {
			var event models.OrderReceivedEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderReceived event: %w", err)
			}
			return eh.onOrderReceived(ctx, &event)
		}
	}

	return nil
}
