package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/sunbrew/cafe-order-api/internal/models"
	"github.com/sunbrew/cafe-order-api/pkg/logger"
)

// OrderEventsHandler consumes the order event stream back from Kafka. It
// is the notification side of the pipeline: downstream actions like
// customer notifications hang off these events instead of the request
// path.
type OrderEventsHandler struct {
	logger logger.Logger
}

// NewOrderEventsHandler creates a new OrderEventsHandler
func NewOrderEventsHandler(logger logger.Logger) *OrderEventsHandler {
	return &OrderEventsHandler{
		logger: logger,
	}
}

// HandleMessage handles one consumed order event. Events may arrive more
// than once; every action here must tolerate redelivery.
func (h *OrderEventsHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event models.OutboxMessageEvent

	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("failed to unmarshal message", "error", err)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	switch event.EventType {
	case models.EventOrderCreated:
		return h.handleOrderCreated(event)
	case models.EventOrderStatusChanged:
		return h.handleOrderStatusChanged(event)
	default:
		h.logger.Warn("unknown event type", "eventType", event.EventType)
		return nil
	}
}

func (h *OrderEventsHandler) handleOrderCreated(event models.OutboxMessageEvent) error {
	h.logger.Info("Order placed, queueing confirmation",
		"orderNumber", event.AggregateID,
		"eventID", event.EventID,
		"occurredAt", event.OccurredAt)

	return nil
}

func (h *OrderEventsHandler) handleOrderStatusChanged(event models.OutboxMessageEvent) error {
	data, ok := event.Data.(map[string]interface{})

	if !ok {
		h.logger.Error("Invalid event data format", "eventID", event.EventID)
		return fmt.Errorf("invalid event data format")
	}

	oldStatus, _ := data["old_status"].(string)
	newStatus, _ := data["new_status"].(string)
	changedBy, _ := data["changed_by"].(string)

	h.logger.Info("Order status changed",
		"orderNumber", event.AggregateID,
		"oldStatus", oldStatus,
		"newStatus", newStatus,
		"changedBy", changedBy)

	// TODO: push the status change to the customer's order tracking channel
	// once the notification service exposes one.

	return nil
}
