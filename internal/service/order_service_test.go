package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunbrew/cafe-order-api/internal/models"
	"github.com/sunbrew/cafe-order-api/internal/repository"
	apperrors "github.com/sunbrew/cafe-order-api/pkg/errors"
	"github.com/sunbrew/cafe-order-api/pkg/logger"
)

// fakeOrderStore records calls and plays back canned results
type fakeOrderStore struct {
	createOrderErr error
	createdOrder   *models.Order
	createdNote    string

	transitionErr    error
	transitionOrder  *models.Order
	transitionStatus models.OrderStatus
	transitionActor  string
	transitionNote   string

	orders    []*models.Order
	order     *models.Order
	history   []models.StatusHistoryEvent
	kitchen   []models.KitchenOrder
	readErr   error
	lastSince time.Time
	lastLimit int
}

func (f *fakeOrderStore) CreateOrder(ctx context.Context, order *models.Order, note string) error {
	// Mirror the repository's RETURNING scans
	order.ID = 42
	for i := range order.Items {
		order.Items[i].ID = int64(100 + i)
	}
	f.createdOrder = order
	f.createdNote = note
	return f.createOrderErr
}

func (f *fakeOrderStore) TransitionStatus(ctx context.Context, orderID int64, status models.OrderStatus, changedBy, note string) (*models.Order, error) {
	f.transitionStatus = status
	f.transitionActor = changedBy
	f.transitionNote = note
	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	if f.transitionOrder != nil {
		return f.transitionOrder, nil
	}
	return &models.Order{ID: orderID, Status: status, OrderNumber: "SBTEST"}, nil
}

func (f *fakeOrderStore) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.order, nil
}

func (f *fakeOrderStore) GetByCustomerID(ctx context.Context, customerID int64, limit int) ([]*models.Order, error) {
	f.lastLimit = limit
	return f.orders, f.readErr
}

func (f *fakeOrderStore) GetByStatus(ctx context.Context, status *models.OrderStatus, limit int) ([]*models.Order, error) {
	f.lastLimit = limit
	return f.orders, f.readErr
}

func (f *fakeOrderStore) GetCompletedSince(ctx context.Context, since time.Time, limit int) ([]*models.Order, error) {
	f.lastSince = since
	f.lastLimit = limit
	return f.orders, f.readErr
}

func (f *fakeOrderStore) GetActiveKitchenOrders(ctx context.Context) ([]models.KitchenOrder, error) {
	return f.kitchen, f.readErr
}

func (f *fakeOrderStore) GetStatusHistory(ctx context.Context, orderID int64) ([]models.StatusHistoryEvent, error) {
	return f.history, f.readErr
}

func newTestOrderService(store *fakeOrderStore) *OrderService {
	return NewOrderService(store, logger.NewNop())
}

func validPlaceRequest() PlaceOrderRequest {
	return PlaceOrderRequest{
		CustomerID: 42,
		Items: []PlaceOrderItem{
			{MenuItemID: 1, Quantity: 2, Price: decimal.RequireFromString("4.75")},
			{MenuItemID: 2, Quantity: 1, Price: decimal.RequireFromString("4.00")},
		},
	}
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPlaceOrder_Success(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{}
	svc := newTestOrderService(store)

	order, err := svc.PlaceOrder(context.Background(), validPlaceRequest())
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("13.50").Equal(order.TotalAmount))
	assert.Equal(t, models.OrderStatusPending, order.Status)

	require.NotNil(t, store.createdOrder)
	assert.Equal(t, "Order placed successfully", store.createdNote)

	// The caller sees the ids the store assigned
	assert.Equal(t, int64(42), order.ID)
}

func TestPlaceOrder_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*PlaceOrderRequest)
	}{
		{name: "missing customer", mutate: func(r *PlaceOrderRequest) { r.CustomerID = 0 }},
		{name: "no items", mutate: func(r *PlaceOrderRequest) { r.Items = nil }},
		{name: "zero quantity", mutate: func(r *PlaceOrderRequest) { r.Items[0].Quantity = 0 }},
		{name: "negative quantity", mutate: func(r *PlaceOrderRequest) { r.Items[0].Quantity = -1 }},
		{name: "negative price", mutate: func(r *PlaceOrderRequest) {
			r.Items[0].Price = decimal.RequireFromString("-0.01")
		}},
		{name: "missing menu item", mutate: func(r *PlaceOrderRequest) { r.Items[0].MenuItemID = 0 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &fakeOrderStore{}
			svc := newTestOrderService(store)

			req := validPlaceRequest()
			tt.mutate(&req)

			_, err := svc.PlaceOrder(context.Background(), req)
			assertValidationError(t, err)

			// A rejected request never reaches storage
			assert.Nil(t, store.createdOrder)
		})
	}
}

func TestPlaceOrder_StoreFailureMapsToPersistenceError(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{createOrderErr: repository.ErrDatabase}
	svc := newTestOrderService(store)

	_, err := svc.PlaceOrder(context.Background(), validPlaceRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestTransitionStatus_Success(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{}
	svc := newTestOrderService(store)

	order, err := svc.TransitionStatus(context.Background(), 7, "preparing", "staff-3", "")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPreparing, order.Status)
	assert.Equal(t, models.OrderStatusPreparing, store.transitionStatus)
	assert.Equal(t, "staff-3", store.transitionActor)
	assert.Equal(t, "Status updated to preparing by staff-3", store.transitionNote)
}

func TestTransitionStatus_DefaultsActorToSystem(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{}
	svc := newTestOrderService(store)

	_, err := svc.TransitionStatus(context.Background(), 7, "confirmed", "", "")
	require.NoError(t, err)

	assert.Equal(t, "system", store.transitionActor)
	assert.Equal(t, "Status updated to confirmed by system", store.transitionNote)
}

func TestTransitionStatus_KeepsCallerNote(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{}
	svc := newTestOrderService(store)

	_, err := svc.TransitionStatus(context.Background(), 7, "cancelled", "staff-1", "Customer changed their mind")
	require.NoError(t, err)

	assert.Equal(t, "Customer changed their mind", store.transitionNote)
}

func TestTransitionStatus_InvalidStatus(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{}
	svc := newTestOrderService(store)

	_, err := svc.TransitionStatus(context.Background(), 7, "shipped", "staff-1", "")
	assertValidationError(t, err)
}

func TestTransitionStatus_AnyKnownStatusIsAccepted(t *testing.T) {
	t.Parallel()

	// Backwards moves are allowed; only enum membership is enforced
	store := &fakeOrderStore{}
	svc := newTestOrderService(store)

	_, err := svc.TransitionStatus(context.Background(), 7, "pending", "staff-1", "")
	require.NoError(t, err)

	_, err = svc.TransitionStatus(context.Background(), 7, "completed", "staff-1", "")
	require.NoError(t, err)
}

func TestTransitionStatus_UnknownOrder(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{transitionErr: repository.ErrNotFound}
	svc := newTestOrderService(store)

	_, err := svc.TransitionStatus(context.Background(), 999, "ready", "", "")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.StatusCode)
}

func TestGetCustomerOrders(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{orders: []*models.Order{{ID: 1}, {ID: 2}}}
	svc := newTestOrderService(store)

	orders, err := svc.GetCustomerOrders(context.Background(), 42)
	require.NoError(t, err)

	assert.Len(t, orders, 2)
	assert.Equal(t, 10, store.lastLimit)
}

func TestGetCustomerOrders_RequiresCustomer(t *testing.T) {
	t.Parallel()

	svc := newTestOrderService(&fakeOrderStore{})

	_, err := svc.GetCustomerOrders(context.Background(), 0)
	assertValidationError(t, err)
}

func TestGetStaffOrders_EnrichesWithPrepEstimates(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := &fakeOrderStore{orders: []*models.Order{
		{
			ID:        1,
			CreatedAt: created,
			Items: []models.OrderItem{
				{Quantity: 2, PreparationTime: 10},
				{Quantity: 1, PreparationTime: 5},
			},
		},
	}}
	svc := newTestOrderService(store)

	orders, err := svc.GetStaffOrders(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	assert.Equal(t, 25, orders[0].TotalPrepMinutes)
	assert.Equal(t, created.Add(25*time.Minute), orders[0].EstimatedReadyTime)
	assert.Equal(t, 50, store.lastLimit)
}

func TestGetStaffOrders_InvalidStatusFilter(t *testing.T) {
	t.Parallel()

	svc := newTestOrderService(&fakeOrderStore{})

	_, err := svc.GetStaffOrders(context.Background(), "bogus", 0)
	assertValidationError(t, err)
}

func TestGetStaffOrders_AllMeansNoFilter(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{}
	svc := newTestOrderService(store)

	_, err := svc.GetStaffOrders(context.Background(), "all", 0)
	require.NoError(t, err)
}

func TestGetStaffOrders_CapsLimit(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{}
	svc := newTestOrderService(store)

	_, err := svc.GetStaffOrders(context.Background(), "", 500)
	require.NoError(t, err)

	assert.Equal(t, 50, store.lastLimit)
}

func TestGetCompletedOrders_DefaultLookback(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{}
	svc := newTestOrderService(store)

	before := time.Now().UTC().Add(-24 * time.Hour)
	_, err := svc.GetCompletedOrders(context.Background(), 0)
	require.NoError(t, err)

	assert.WithinDuration(t, before, store.lastSince, time.Minute)
	assert.Equal(t, 100, store.lastLimit)
}

func TestGetCompletedOrders_CustomLookback(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{}
	svc := newTestOrderService(store)

	_, err := svc.GetCompletedOrders(context.Background(), 2*time.Hour)
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().UTC().Add(-2*time.Hour), store.lastSince, time.Minute)
}

func TestGetStatusHistory_UnknownOrder(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{readErr: repository.ErrNotFound}
	svc := newTestOrderService(store)

	_, err := svc.GetStatusHistory(context.Background(), 999)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetKitchenOrders_BuildsProjection(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	store := &fakeOrderStore{kitchen: []models.KitchenOrder{
		{
			Order: models.Order{ID: 2, Status: models.OrderStatusConfirmed, CreatedAt: now.Add(-30 * time.Minute)},
		},
		{
			Order: models.Order{ID: 1, Status: models.OrderStatusPreparing, CreatedAt: now.Add(-5 * time.Minute)},
		},
	}}
	svc := newTestOrderService(store)

	views, err := svc.GetKitchenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, int64(1), views[0].OrderID)
}

func TestGetKitchenOrders_StoreFailure(t *testing.T) {
	t.Parallel()

	store := &fakeOrderStore{readErr: errors.New("connection reset")}
	svc := newTestOrderService(store)

	_, err := svc.GetKitchenOrders(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}
