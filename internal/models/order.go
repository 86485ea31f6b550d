package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus validates a raw status value against the known set.
// Only enum membership is checked; the transition graph is deliberately
// not enforced (any known status can follow any other).
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return OrderStatus(s), true
	}
	return "", false
}

// KitchenPriority orders statuses for the kitchen display: preparing
// orders come first, then confirmed, then everything else.
func (s OrderStatus) KitchenPriority() int {
	switch s {
	case OrderStatusPreparing:
		return 1
	case OrderStatusConfirmed:
		return 2
	default:
		return 3
	}
}

// Order represents a customer order in the system
type Order struct {
	ID                  int64           `db:"id" json:"id"`
	OrderNumber         string          `db:"order_number" json:"order_number"`
	CustomerID          int64           `db:"customer_id" json:"customer_id"`
	TotalAmount         decimal.Decimal `db:"total_amount" json:"total_amount"`
	SpecialInstructions *string         `db:"special_instructions" json:"special_instructions,omitempty"`
	Status              OrderStatus     `db:"status" json:"status"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`

	// LatestStatus is the status of the most recent history event, selected
	// on read paths that join the audit trail. It must always equal Status.
	LatestStatus OrderStatus `db:"latest_status" json:"latest_status,omitempty"`

	// CompletedAt is the timestamp of the completed history event; only
	// populated by the completed-orders window query.
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	// Items is populated on reads that join line items; it is not a column.
	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem represents a single line item of an order. The price is a
// snapshot taken at placement time and is immutable afterwards, so later
// menu price changes never affect an existing order.
type OrderItem struct {
	ID         int64           `db:"id" json:"id"`
	OrderID    int64           `db:"order_id" json:"order_id"`
	MenuItemID int64           `db:"menu_item_id" json:"menu_item_id"`
	Name       string          `db:"name" json:"name,omitempty"`
	Quantity   int             `db:"quantity" json:"quantity"`
	Price      decimal.Decimal `db:"price" json:"price"`

	// PreparationTime is the catalog prep time joined on staff-facing reads
	PreparationTime int `db:"preparation_time" json:"preparation_time,omitempty"`
}

// LineTotal returns price multiplied by quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// StatusHistoryEvent is one append-only audit record of a status an order
// assumed at a point in time. Events are never updated or deleted; the
// order's denormalized status always equals the status of its most recent
// event.
type StatusHistoryEvent struct {
	ID        int64       `db:"id" json:"id"`
	OrderID   int64       `db:"order_id" json:"order_id"`
	Status    OrderStatus `db:"status" json:"status"`
	Notes     *string     `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// NewOrder creates a new pending order from snapshot line items. The total
// is computed once here from the supplied prices and is never recomputed
// from the live catalog.
func NewOrder(customerID int64, items []OrderItem, specialInstructions *string) *Order {
	now := GetCurrentTime()

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}

	return &Order{
		OrderNumber:         NewOrderNumber(),
		CustomerID:          customerID,
		TotalAmount:         total,
		SpecialInstructions: specialInstructions,
		Status:              OrderStatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
		Items:               items,
	}
}
