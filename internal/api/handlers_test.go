package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunbrew/cafe-order-api/internal/models"
	"github.com/sunbrew/cafe-order-api/internal/repository"
	"github.com/sunbrew/cafe-order-api/internal/service"
	"github.com/sunbrew/cafe-order-api/pkg/logger"
	"github.com/sunbrew/cafe-order-api/pkg/middleware"
)

type stubOrderStore struct {
	createErr     error
	transitionErr error
	readErr       error
	orders        []*models.Order
	order         *models.Order
	history       []models.StatusHistoryEvent
	kitchen       []models.KitchenOrder
}

func (s *stubOrderStore) CreateOrder(ctx context.Context, order *models.Order, note string) error {
	order.ID = 1
	return s.createErr
}

func (s *stubOrderStore) TransitionStatus(ctx context.Context, orderID int64, status models.OrderStatus, changedBy, note string) (*models.Order, error) {
	if s.transitionErr != nil {
		return nil, s.transitionErr
	}
	return &models.Order{ID: orderID, OrderNumber: "SBTEST", Status: status}, nil
}

func (s *stubOrderStore) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.order, nil
}

func (s *stubOrderStore) GetByCustomerID(ctx context.Context, customerID int64, limit int) ([]*models.Order, error) {
	return s.orders, s.readErr
}

func (s *stubOrderStore) GetByStatus(ctx context.Context, status *models.OrderStatus, limit int) ([]*models.Order, error) {
	return s.orders, s.readErr
}

func (s *stubOrderStore) GetCompletedSince(ctx context.Context, since time.Time, limit int) ([]*models.Order, error) {
	return s.orders, s.readErr
}

func (s *stubOrderStore) GetActiveKitchenOrders(ctx context.Context) ([]models.KitchenOrder, error) {
	return s.kitchen, s.readErr
}

func (s *stubOrderStore) GetStatusHistory(ctx context.Context, orderID int64) ([]models.StatusHistoryEvent, error) {
	return s.history, s.readErr
}

type stubMenuStore struct {
	menu []models.MenuCategory
	err  error
}

func (s *stubMenuStore) ListMenu(ctx context.Context) ([]models.MenuCategory, error) {
	return s.menu, s.err
}

func newTestServer(t *testing.T, store *stubOrderStore) *Server {
	t.Helper()

	l := logger.NewNop()

	rateLimiter := middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
		GlobalMaxTokens:  1000,
		GlobalRefillRate: 1000,
		IPMaxTokens:      1000,
		IPRefillRate:     1000,
	}, l)
	t.Cleanup(rateLimiter.Stop)

	s := &Server{
		router:       mux.NewRouter(),
		logger:       l,
		orderService: service.NewOrderService(store, l),
		menuService:  service.NewMenuService(&stubMenuStore{}, l),
		rateLimiter:  rateLimiter,
	}
	s.setupRoutes()

	return s
}

func doRequest(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) ApiResponse {
	t.Helper()

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubOrderStore{})

	rec := doRequest(s, http.MethodGet, "/api/v1/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}

func TestCreateOrder(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubOrderStore{})

	body := []byte(`{
		"customer_id": 42,
		"items": [
			{"menu_item_id": 1, "quantity": 2, "price": "4.75"},
			{"menu_item_id": 2, "quantity": 1, "price": "4.00"}
		]
	}`)

	rec := doRequest(s, http.MethodPost, "/api/v1/orders", body)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "pending", data["status"])
	assert.NotEmpty(t, data["order_number"])
}

func TestCreateOrder_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubOrderStore{})

	rec := doRequest(s, http.MethodPost, "/api/v1/orders", []byte(`{not json`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestCreateOrder_ValidationFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubOrderStore{})

	body := []byte(`{"customer_id": 42, "items": []}`)

	rec := doRequest(s, http.MethodPost, "/api/v1/orders", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
}

func TestGetCustomerOrders_RequiresCustomerID(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubOrderStore{})

	rec := doRequest(s, http.MethodGet, "/api/v1/orders", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCustomerOrders(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubOrderStore{orders: []*models.Order{{ID: 1}, {ID: 2}}})

	rec := doRequest(s, http.MethodGet, "/api/v1/orders?customer_id=42", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)

	data, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestUpdateOrderStatus(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubOrderStore{})

	body := []byte(`{"status": "preparing", "staff_id": "staff-3"}`)

	rec := doRequest(s, http.MethodPatch, "/api/v1/orders/7/status", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "preparing", data["status"])
}

func TestUpdateOrderStatus_InvalidStatus(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubOrderStore{})

	body := []byte(`{"status": "shipped"}`)

	rec := doRequest(s, http.MethodPatch, "/api/v1/orders/7/status", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateOrderStatus_UnknownOrder(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubOrderStore{transitionErr: repository.ErrNotFound})

	body := []byte(`{"status": "ready"}`)

	rec := doRequest(s, http.MethodPatch, "/api/v1/orders/999/status", body)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrderStatus(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	s := newTestServer(t, &stubOrderStore{
		order: &models.Order{ID: 7, OrderNumber: "SBTEST", Status: models.OrderStatusReady, UpdatedAt: now},
		history: []models.StatusHistoryEvent{
			{ID: 2, OrderID: 7, Status: models.OrderStatusReady, CreatedAt: now},
			{ID: 1, OrderID: 7, Status: models.OrderStatusPending, CreatedAt: now.Add(-10 * time.Minute)},
		},
	})

	rec := doRequest(s, http.MethodGet, "/api/v1/orders/7/status", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ready", data["status"])

	history, ok := data["history"].([]interface{})
	require.True(t, ok)
	assert.Len(t, history, 2)
}

func TestGetKitchenOrders(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	s := newTestServer(t, &stubOrderStore{kitchen: []models.KitchenOrder{
		{Order: models.Order{ID: 1, Status: models.OrderStatusPreparing, CreatedAt: now.Add(-5 * time.Minute)}},
	}})

	rec := doRequest(s, http.MethodGet, "/api/v1/kitchen/orders", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)

	data, ok := resp.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, data, 1)
}

func TestGetStaffOrders_InvalidStatus(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubOrderStore{})

	rec := doRequest(s, http.MethodGet, "/api/v1/staff/orders?status=bogus", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCompletedOrders_InvalidHours(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubOrderStore{})

	rec := doRequest(s, http.MethodGet, "/api/v1/staff/completed-orders?hours=abc", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMenu(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubOrderStore{})

	rec := doRequest(s, http.MethodGet, "/api/v1/menu", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}
