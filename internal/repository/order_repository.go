package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sunbrew/cafe-order-api/internal/database"
	"github.com/sunbrew/cafe-order-api/internal/models"
	"github.com/sunbrew/cafe-order-api/pkg/logger"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrDatabase = errors.New("database error")
)

const orderColumns = `
	o.id, o.order_number, o.customer_id, o.total_amount,
	o.special_instructions, o.status, o.created_at, o.updated_at`

// latestStatusExpr selects the status of the most recent history event for
// an order. It must always agree with the denormalized orders.status; both
// are written in the same transaction.
const latestStatusExpr = `
	(SELECT h.status FROM order_status_history h
	 WHERE h.order_id = o.id
	 ORDER BY h.created_at DESC, h.id DESC
	 LIMIT 1) AS latest_status`

// OrderRepository handles database operations for orders, their line items
// and their status history
type OrderRepository struct {
	db     *database.Database
	outbox *OutboxRepository
	logger logger.Logger
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *database.Database, outbox *OutboxRepository, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		outbox: outbox,
		logger: logger,
	}
}

// CreateOrder inserts the order row, all of its line items, the initial
// status history event and the outbox event in a single transaction.
// Either all of them commit or none do. The outbox event is built here,
// after the RETURNING scans, so its payload carries the assigned ids.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *models.Order, note string) error {
	tx, err := r.db.DB.BeginTxx(ctx, nil)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Error("Failed to rollback order creation", "error", rbErr)
			}
		}
	}()

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO orders (order_number, customer_id, total_amount, special_instructions, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		order.OrderNumber,
		order.CustomerID,
		order.TotalAmount,
		order.SpecialInstructions,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	).Scan(&order.ID)

	if err != nil {
		r.logger.Error("Failed to insert order", "error", err, "orderNumber", order.OrderNumber)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	for i := range order.Items {
		order.Items[i].OrderID = order.ID

		err = tx.QueryRowxContext(ctx, `
			INSERT INTO order_items (order_id, menu_item_id, quantity, price)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			order.Items[i].OrderID,
			order.Items[i].MenuItemID,
			order.Items[i].Quantity,
			order.Items[i].Price,
		).Scan(&order.Items[i].ID)

		if err != nil {
			r.logger.Error("Failed to insert order item",
				"error", err,
				"orderNumber", order.OrderNumber,
				"menuItemID", order.Items[i].MenuItemID)
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, status, notes, created_at)
		VALUES ($1, $2, $3, $4)`,
		order.ID, order.Status, note, order.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to insert initial status event", "error", err, "orderNumber", order.OrderNumber)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	var evt *models.OutboxMessage
	evt, err = models.NewOrderCreatedEvent(order)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err = r.outbox.CreateInTx(tx, evt); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// TransitionStatus updates the order's denormalized status and appends the
// matching history event plus the outbox event, all in one transaction.
// The row lock serializes racing transitions; whichever commits last wins,
// and every attempt leaves its event in the audit trail.
func (r *OrderRepository) TransitionStatus(ctx context.Context, orderID int64, status models.OrderStatus, changedBy, note string) (*models.Order, error) {
	tx, err := r.db.DB.BeginTxx(ctx, nil)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Error("Failed to rollback status transition", "error", rbErr)
			}
		}
	}()

	var oldStatus models.OrderStatus
	err = tx.QueryRowxContext(ctx,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID,
	).Scan(&oldStatus)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	now := models.GetCurrentTime()

	var order models.Order
	err = tx.QueryRowxContext(ctx, `
		UPDATE orders SET status = $1, updated_at = $2
		WHERE id = $3
		RETURNING id, order_number, customer_id, total_amount, special_instructions, status, created_at, updated_at`,
		status, now, orderID,
	).StructScan(&order)

	if err != nil {
		r.logger.Error("Failed to update order status", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, status, notes, created_at)
		VALUES ($1, $2, $3, $4)`,
		orderID, status, note, now,
	)

	if err != nil {
		r.logger.Error("Failed to append status event", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	evt, err := models.NewOrderStatusChangedEvent(&order, models.StatusChangeData{
		OrderID:   orderID,
		OldStatus: oldStatus,
		NewStatus: status,
		ChangedBy: changedBy,
		Notes:     note,
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err = r.outbox.CreateInTx(tx, evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &order, nil
}

// GetByID retrieves an order with its line items
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := r.db.DB.GetContext(ctx, &order,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get order by ID", "error", err, "orderID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := r.attachItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}

	return &order, nil
}

// GetByCustomerID retrieves a customer's orders, newest first, each joined
// with its line items and the status of its most recent history event
func (r *OrderRepository) GetByCustomerID(ctx context.Context, customerID int64, limit int) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`, `+latestStatusExpr+`
		FROM orders o
		WHERE o.customer_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2`,
		customerID, limit)

	if err != nil {
		r.logger.Error("Failed to get orders by customer ID", "error", err, "customerID", customerID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// GetByStatus retrieves orders for the staff view, optionally filtered by
// status, newest first
func (r *OrderRepository) GetByStatus(ctx context.Context, status *models.OrderStatus, limit int) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `, ` + latestStatusExpr + `
		FROM orders o`
	args := []interface{}{}

	if status != nil {
		query += ` WHERE o.status = $1`
		args = append(args, *status)
	}

	query += fmt.Sprintf(` ORDER BY o.created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, query, args...)

	if err != nil {
		r.logger.Error("Failed to get orders by status", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// GetCompletedSince retrieves completed orders whose last update falls in
// the lookback window, with the completion time taken from the history
// event that recorded the completed status
func (r *OrderRepository) GetCompletedSince(ctx context.Context, since time.Time, limit int) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`,
			(SELECT h.created_at FROM order_status_history h
			 WHERE h.order_id = o.id AND h.status = 'completed'
			 ORDER BY h.created_at DESC, h.id DESC
			 LIMIT 1) AS completed_at
		FROM orders o
		WHERE o.status = 'completed' AND o.updated_at >= $1
		ORDER BY o.updated_at DESC
		LIMIT $2`,
		since, limit)

	if err != nil {
		r.logger.Error("Failed to get completed orders", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// GetActiveKitchenOrders returns the snapshot of confirmed and preparing
// orders with line items joined against the catalog for preparation time
// and category. The projection itself is built in the service layer.
func (r *OrderRepository) GetActiveKitchenOrders(ctx context.Context) ([]models.KitchenOrder, error) {
	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.status IN ('confirmed', 'preparing')
		ORDER BY o.created_at ASC`)

	if err != nil {
		r.logger.Error("Failed to get active kitchen orders", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if len(orders) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	type kitchenItemRow struct {
		OrderID int64 `db:"order_id"`
		models.KitchenItem
	}

	var rows []kitchenItemRow
	err = r.db.DB.SelectContext(ctx, &rows, `
		SELECT oi.order_id, oi.menu_item_id, oi.quantity,
		       mi.name, mi.preparation_time, c.name AS category_name
		FROM order_items oi
		JOIN menu_items mi ON mi.id = oi.menu_item_id
		JOIN categories c ON c.id = mi.category_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id`,
		pq.Array(ids))

	if err != nil {
		r.logger.Error("Failed to get kitchen order items", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	itemsByOrder := make(map[int64][]models.KitchenItem, len(orders))
	for _, row := range rows {
		itemsByOrder[row.OrderID] = append(itemsByOrder[row.OrderID], row.KitchenItem)
	}

	result := make([]models.KitchenOrder, 0, len(orders))
	for _, o := range orders {
		result = append(result, models.KitchenOrder{
			Order: *o,
			Items: itemsByOrder[o.ID],
		})
	}

	return result, nil
}

// GetStatusHistory returns every status event for an order, newest first
func (r *OrderRepository) GetStatusHistory(ctx context.Context, orderID int64) ([]models.StatusHistoryEvent, error) {
	var exists bool
	err := r.db.DB.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if !exists {
		return nil, ErrNotFound
	}

	var events []models.StatusHistoryEvent
	err = r.db.DB.SelectContext(ctx, &events, `
		SELECT id, order_id, status, notes, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC`,
		orderID)

	if err != nil {
		r.logger.Error("Failed to get status history", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return events, nil
}

// attachItems loads line items for all given orders in one round trip
func (r *OrderRepository) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*models.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	var items []models.OrderItem
	err := r.db.DB.SelectContext(ctx, &items, `
		SELECT oi.id, oi.order_id, oi.menu_item_id, oi.quantity, oi.price,
		       mi.name, mi.preparation_time
		FROM order_items oi
		JOIN menu_items mi ON mi.id = oi.menu_item_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id`,
		pq.Array(ids))

	if err != nil {
		r.logger.Error("Failed to get order items", "error", err)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	for _, item := range items {
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	return nil
}
