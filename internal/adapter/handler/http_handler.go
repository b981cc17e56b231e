package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hqnguyen/order-engine/internal/core/domain"
	"github.com/hqnguyen/order-engine/internal/core/service"
	"github.com/hqnguyen/order-engine/internal/port"
)

// HTTPHandler is the thin entry layer over the order service. It only
// parses requests, maps domain errors to status codes, and renders the
// aggregate; all business rules live in the service.
type HTTPHandler struct {
	orderService *service.OrderService
}

func NewHTTPHandler(orderService *service.OrderService) *HTTPHandler {
	return &HTTPHandler{orderService: orderService}
}

// Routes mounts the order endpoints on a chi router.
func (h *HTTPHandler) Routes(r chi.Router) {
	r.Post("/api/orders", h.CreateOrder)
	r.Get("/api/orders", h.ListOrders)
	r.Get("/api/orders/{id}", h.GetOrder)
	r.Post("/api/orders/{id}/status", h.UpdateStatus)
	r.Post("/api/orders/{id}/cancel", h.CancelOrder)
	r.Get("/health", h.HealthCheck)
}

type createOrderRequest struct {
	CustomerID string `json:"customer_id"`
	Items      []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	Notes          string `json:"notes"`
	IdempotencyKey string `json:"idempotency_key"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type cancelOrderRequest struct {
	Notes string `json:"notes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type itemResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type historyResponse struct {
	ID        string    `json:"id"`
	OldStatus *string   `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

type orderResponse struct {
	ID          string            `json:"id"`
	OrderNumber string            `json:"order_number"`
	CustomerID  string            `json:"customer_id"`
	Status      string            `json:"status"`
	TotalAmount string            `json:"total_amount"`
	Notes       string            `json:"notes"`
	Items       []itemResponse    `json:"items"`
	History     []historyResponse `json:"history"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid customer_id"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "items must not be empty"})
		return
	}

	in := service.CreateOrderInput{
		CustomerID:     customerID,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		in.IdempotencyKey = key
	}
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid product_id"})
			return
		}
		if item.Quantity < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quantity must be at least 1"})
			return
		}
		in.Items = append(in.Items, service.CreateOrderItemInput{ProductID: productID, Quantity: item.Quantity})
	}

	order, err := h.orderService.CreateOrder(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var filter port.OrderFilter

	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.OrderStatus(s)
		if !domain.IsValidStatus(status) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid status filter"})
			return
		}
		filter.Status = &status
	}
	if c := r.URL.Query().Get("customer_id"); c != "" {
		customerID, err := uuid.Parse(c)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid customer_id filter"})
			return
		}
		filter.CustomerID = &customerID
	}
	if from := r.URL.Query().Get("created_from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid created_from filter"})
			return
		}
		filter.CreatedFrom = &t
	}
	if to := r.URL.Query().Get("created_to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid created_to filter"})
			return
		}
		filter.CreatedTo = &t
	}

	orders, err := h.orderService.ListOrders(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	newStatus := domain.OrderStatus(req.Status)
	// Cancellation has its own flow that releases stock; refuse it here.
	if newStatus == domain.OrderStatusCancelled {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "use the cancel endpoint to cancel an order"})
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), orderID, newStatus, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return
	}

	var req cancelOrderRequest
	if r.Body != nil {
		// Body is optional on cancel.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	order, err := h.orderService.CancelOrder(r.Context(), orderID, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps the domain error taxonomy to response categories:
// missing entities are 404, failed preconditions and invalid
// transitions are 400, stock contention is 409.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInactiveCustomer),
		errors.Is(err, domain.ErrInactiveProduct),
		errors.Is(err, domain.ErrInvalidOrderStatus):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func toOrderResponse(order *domain.Order) orderResponse {
	resp := orderResponse{
		ID:          order.ID.String(),
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID.String(),
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount.StringFixed(2),
		Notes:       order.Notes,
		Items:       make([]itemResponse, 0, len(order.Items)),
		History:     make([]historyResponse, 0, len(order.History)),
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, itemResponse{
			ID:        item.ID.String(),
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Subtotal:  item.Subtotal.StringFixed(2),
		})
	}
	for _, rec := range order.History {
		var old *string
		if rec.OldStatus != nil {
			s := string(*rec.OldStatus)
			old = &s
		}
		resp.History = append(resp.History, historyResponse{
			ID:        rec.ID.String(),
			OldStatus: old,
			NewStatus: string(rec.NewStatus),
			Notes:     rec.Notes,
			CreatedAt: rec.CreatedAt,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
