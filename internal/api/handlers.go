package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sunbrew/cafe-order-api/internal/models"
	"github.com/sunbrew/cafe-order-api/internal/service"
	apperrors "github.com/sunbrew/cafe-order-api/pkg/errors"
)

type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Health represents the health check response
type Health struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// updateStatusRequest is the PATCH body for a status transition
type updateStatusRequest struct {
	Status  string `json:"status"`
	StaffID string `json:"staff_id,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// orderStatusResponse is the customer-facing tracking view of one order
type orderStatusResponse struct {
	OrderID     int64                       `json:"order_id"`
	OrderNumber string                      `json:"order_number"`
	Status      models.OrderStatus          `json:"status"`
	UpdatedAt   time.Time                   `json:"updated_at"`
	History     []models.StatusHistoryEvent `json:"history"`
}

// healthCheckHandler handles the health check endpoint
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := Health{
		Status:    "ok",
		Version:   "0.1.0",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    health,
	})
}

// createOrderHandler places a new order
func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req service.PlaceOrderRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	order, err := s.orderService.PlaceOrder(r.Context(), req)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusCreated, ApiResponse{
		Success: true,
		Data:    order,
	})
}

// getCustomerOrdersHandler returns a customer's recent orders
func (s *Server) getCustomerOrdersHandler(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	orders, err := s.orderService.GetCustomerOrders(r.Context(), customerID)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    orders,
	})
}

// getOrderStatusHandler returns the current status of an order together
// with its full history trail
func (s *Server) getOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	order, err := s.orderService.GetOrder(r.Context(), orderID)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	history, err := s.orderService.GetStatusHistory(r.Context(), orderID)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: orderStatusResponse{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Status:      order.Status,
			UpdatedAt:   order.UpdatedAt,
			History:     history,
		},
	})
}

// updateOrderStatusHandler transitions an order to a new status
func (s *Server) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	order, err := s.orderService.TransitionStatus(r.Context(), orderID, req.Status, req.StaffID, req.Notes)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    order,
	})
}

// getKitchenOrdersHandler returns the kitchen display projection
func (s *Server) getKitchenOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orderService.GetKitchenOrders(r.Context())

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    orders,
	})
}

// getStaffOrdersHandler returns orders for the staff view, optionally
// filtered by status
func (s *Server) getStaffOrdersHandler(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		limit = parsed
	}

	orders, err := s.orderService.GetStaffOrders(r.Context(), status, limit)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    orders,
	})
}

// getCompletedOrdersHandler returns orders completed within the lookback
// window, defaulting to the last 24 hours
func (s *Server) getCompletedOrdersHandler(w http.ResponseWriter, r *http.Request) {
	var lookback time.Duration

	if raw := r.URL.Query().Get("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			s.respondWithError(w, http.StatusBadRequest, "hours must be a positive number")
			return
		}
		lookback = time.Duration(hours) * time.Hour
	}

	orders, err := s.orderService.GetCompletedOrders(r.Context(), lookback)

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    orders,
	})
}

// getMenuHandler returns available menu items grouped by category
func (s *Server) getMenuHandler(w http.ResponseWriter, r *http.Request) {
	menu, err := s.menuService.GetMenu(r.Context())

	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    menu,
	})
}

// pathID parses the {id} path variable, responding with a 400 on garbage
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}

	return id, true
}

// respondWithAppError maps service errors onto HTTP status codes
func (s *Server) respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError

	if errors.As(err, &appErr) {
		s.respondWithError(w, appErr.StatusCode, appErr.Message)
		return
	}

	s.logger.Error("Unhandled error", "error", err)
	s.respondWithError(w, http.StatusInternalServerError, "internal server error")
}

// respondWithError sends a JSON response with an error message
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, ApiResponse{
		Success: false,
		Error:   message,
	})
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)

	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
