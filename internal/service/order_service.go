package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sunbrew/cafe-order-api/internal/models"
	"github.com/sunbrew/cafe-order-api/internal/repository"
	apperrors "github.com/sunbrew/cafe-order-api/pkg/errors"
	"github.com/sunbrew/cafe-order-api/pkg/logger"
)

const (
	customerPageSize  = 10
	staffPageSize     = 50
	completedPageSize = 100
	defaultLookback   = 24 * time.Hour

	initialOrderNote = "Order placed successfully"
	defaultActor     = "system"
)

// OrderStore is the persistence surface the order service depends on. The
// multi-write operations (placement, transition) are each one atomic unit
// of work inside the store, and each builds its own outbox event once the
// assigned ids are known.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order, note string) error
	TransitionStatus(ctx context.Context, orderID int64, status models.OrderStatus, changedBy, note string) (*models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	GetByCustomerID(ctx context.Context, customerID int64, limit int) ([]*models.Order, error)
	GetByStatus(ctx context.Context, status *models.OrderStatus, limit int) ([]*models.Order, error)
	GetCompletedSince(ctx context.Context, since time.Time, limit int) ([]*models.Order, error)
	GetActiveKitchenOrders(ctx context.Context) ([]models.KitchenOrder, error)
	GetStatusHistory(ctx context.Context, orderID int64) ([]models.StatusHistoryEvent, error)
}

// PlaceOrderItem is one (menu item, quantity, unit price) tuple of a
// placement request. The price is the snapshot the caller saw when
// building the cart.
type PlaceOrderItem struct {
	MenuItemID int64           `json:"menu_item_id"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// PlaceOrderRequest carries everything needed to place an order
type PlaceOrderRequest struct {
	CustomerID          int64            `json:"customer_id"`
	Items               []PlaceOrderItem `json:"items"`
	SpecialInstructions *string          `json:"special_instructions,omitempty"`
}

// StaffOrder is an order enriched with preparation estimates for the staff
// view
type StaffOrder struct {
	*models.Order
	TotalPrepMinutes   int       `json:"total_prep_time"`
	EstimatedReadyTime time.Time `json:"estimated_ready_time"`
}

// OrderService handles order placement, status transitions and the read
// side projections
type OrderService struct {
	store  OrderStore
	logger logger.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(store OrderStore, logger logger.Logger) *OrderService {
	return &OrderService{
		store:  store,
		logger: logger,
	}
}

// PlaceOrder validates the request and atomically creates the order, its
// line items and the initial pending history event. Validation happens
// before any storage transaction is opened, so a rejected request has no
// effect at all.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	if req.CustomerID <= 0 {
		return nil, apperrors.NewValidationError("customer reference is required")
	}
	if len(req.Items) == 0 {
		return nil, apperrors.NewValidationError("at least one item is required")
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.MenuItemID <= 0 {
			return nil, apperrors.NewValidationError("menu item reference is required for every item")
		}
		if item.Quantity < 1 {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("quantity must be at least 1 for menu item %d", item.MenuItemID))
		}
		if item.Price.IsNegative() {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("price must not be negative for menu item %d", item.MenuItemID))
		}

		items = append(items, models.OrderItem{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Price:      item.Price,
		})
	}

	order := models.NewOrder(req.CustomerID, items, req.SpecialInstructions)

	if err := s.store.CreateOrder(ctx, order, initialOrderNote); err != nil {
		s.logger.Error("Failed to place order", "error", err, "orderNumber", order.OrderNumber)
		return nil, s.mapStoreError(err, "failed to place order")
	}

	s.logger.Info("Order placed",
		"orderID", order.ID,
		"orderNumber", order.OrderNumber,
		"customerID", order.CustomerID,
		"total", order.TotalAmount)

	return order, nil
}

// TransitionStatus validates the target status and atomically updates the
// order's denormalized status together with one appended history event.
// Only enum membership is validated; any known status may follow any
// other. Concurrent transitions on the same order race and the last
// committed writer wins, while every event stays in the audit trail.
func (s *OrderService) TransitionStatus(ctx context.Context, orderID int64, rawStatus, actor, note string) (*models.Order, error) {
	if orderID <= 0 {
		return nil, apperrors.NewValidationError("order reference is required")
	}

	status, ok := models.ParseOrderStatus(rawStatus)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid status %q", rawStatus))
	}

	if actor == "" {
		actor = defaultActor
	}
	if note == "" {
		note = fmt.Sprintf("Status updated to %s by %s", status, actor)
	}

	order, err := s.store.TransitionStatus(ctx, orderID, status, actor, note)

	if err != nil {
		s.logger.Error("Failed to transition order status",
			"error", err,
			"orderID", orderID,
			"status", status)
		return nil, s.mapStoreError(err, fmt.Sprintf("failed to update order %d", orderID))
	}

	s.logger.Info("Order status updated",
		"orderID", order.ID,
		"orderNumber", order.OrderNumber,
		"status", order.Status,
		"actor", actor)

	return order, nil
}

// GetOrder retrieves one order with its line items
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	if orderID <= 0 {
		return nil, apperrors.NewValidationError("order reference is required")
	}

	order, err := s.store.GetByID(ctx, orderID)

	if err != nil {
		return nil, s.mapStoreError(err, fmt.Sprintf("order %d not found", orderID))
	}

	return order, nil
}

// GetCustomerOrders returns a customer's orders, newest first, each with
// line items and the latest history status
func (s *OrderService) GetCustomerOrders(ctx context.Context, customerID int64) ([]*models.Order, error) {
	if customerID <= 0 {
		return nil, apperrors.NewValidationError("customer reference is required")
	}

	orders, err := s.store.GetByCustomerID(ctx, customerID, customerPageSize)

	if err != nil {
		return nil, s.mapStoreError(err, "failed to fetch orders")
	}

	return orders, nil
}

// GetStaffOrders returns orders for the staff view with preparation
// estimates, optionally filtered by status. An empty filter or "all"
// means no filter.
func (s *OrderService) GetStaffOrders(ctx context.Context, statusFilter string, limit int) ([]*StaffOrder, error) {
	var status *models.OrderStatus

	if statusFilter != "" && statusFilter != "all" {
		parsed, ok := models.ParseOrderStatus(statusFilter)
		if !ok {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid status %q", statusFilter))
		}
		status = &parsed
	}

	if limit <= 0 || limit > staffPageSize {
		limit = staffPageSize
	}

	orders, err := s.store.GetByStatus(ctx, status, limit)

	if err != nil {
		return nil, s.mapStoreError(err, "failed to fetch orders")
	}

	result := make([]*StaffOrder, 0, len(orders))
	for _, order := range orders {
		prep := 0
		for _, item := range order.Items {
			prep += item.PreparationTime * item.Quantity
		}

		result = append(result, &StaffOrder{
			Order:              order,
			TotalPrepMinutes:   prep,
			EstimatedReadyTime: order.CreatedAt.Add(time.Duration(prep) * time.Minute),
		})
	}

	return result, nil
}

// GetCompletedOrders returns completed orders within the lookback window
func (s *OrderService) GetCompletedOrders(ctx context.Context, lookback time.Duration) ([]*models.Order, error) {
	if lookback <= 0 {
		lookback = defaultLookback
	}

	since := models.GetCurrentTime().Add(-lookback)

	orders, err := s.store.GetCompletedSince(ctx, since, completedPageSize)

	if err != nil {
		return nil, s.mapStoreError(err, "failed to fetch completed orders")
	}

	return orders, nil
}

// GetStatusHistory returns the append-only status trail of an order,
// newest first
func (s *OrderService) GetStatusHistory(ctx context.Context, orderID int64) ([]models.StatusHistoryEvent, error) {
	if orderID <= 0 {
		return nil, apperrors.NewValidationError("order reference is required")
	}

	events, err := s.store.GetStatusHistory(ctx, orderID)

	if err != nil {
		return nil, s.mapStoreError(err, fmt.Sprintf("order %d not found", orderID))
	}

	return events, nil
}

// GetKitchenOrders recomputes the kitchen projection from the current
// snapshot of active orders. Nothing is cached: elapsed and remaining
// times are always relative to now.
func (s *OrderService) GetKitchenOrders(ctx context.Context) ([]KitchenOrderView, error) {
	snapshot, err := s.store.GetActiveKitchenOrders(ctx)

	if err != nil {
		return nil, s.mapStoreError(err, "failed to fetch kitchen orders")
	}

	return BuildKitchenProjection(models.GetCurrentTime(), snapshot), nil
}

// mapStoreError translates repository sentinels into the error taxonomy
// surfaced to callers. The notFoundMsg only applies to missing records;
// everything else is a persistence failure whose unit of work has already
// been rolled back.
func (s *OrderService) mapStoreError(err error, notFoundMsg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(notFoundMsg)
	}
	return apperrors.NewPersistenceError("storage request failed")
}
