package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/laundryku/api/internal/database"
	"github.com/laundryku/api/internal/pricing"
	"github.com/laundryku/api/internal/service"
	"github.com/laundryku/api/internal/ws"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (database.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, req service.UpdateOrderRequest) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	SweepOldCompletedOrders(ctx context.Context, now time.Time) (int64, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context) ([]database.Order, error)
}

// Broadcaster pushes order events to connected websocket clients.
// Satisfied by *ws.Hub; may be nil when no feed is wired.
type Broadcaster interface {
	Broadcast(event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
	hub   Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// The admin-only sweep endpoint is registered separately by the router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createOrderRequest struct {
	CustomerName string  `json:"customer_name"`
	PhoneNumber  string  `json:"phone_number"`
	ServiceKind  string  `json:"service_kind"`
	Category     string  `json:"category"`
	RawQuantity  float64 `json:"raw_quantity"`
	Note         string  `json:"note"`
}

// updateOrderRequest is a partial update; absent fields stay untouched.
type updateOrderRequest struct {
	CustomerName *string  `json:"customer_name"`
	PhoneNumber  *string  `json:"phone_number"`
	ServiceKind  *string  `json:"service_kind"`
	Category     *string  `json:"category"`
	RawQuantity  *float64 `json:"raw_quantity"`
	Status       *string  `json:"status"`
	Note         *string  `json:"note"`
}

type orderResponse struct {
	ID             uuid.UUID  `json:"id"`
	CustomerName   string     `json:"customer_name"`
	PhoneNumber    *string    `json:"phone_number"`
	ServiceKind    string     `json:"service_kind"`
	Category       string     `json:"category"`
	RawQuantity    float64    `json:"raw_quantity"`
	BilledQuantity float64    `json:"billed_quantity"`
	Price          int64      `json:"price"`
	Status         string     `json:"status"`
	ReceivedAt     time.Time  `json:"received_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	Note           *string    `json:"note"`
}

// publicOrderResponse is the reduced shape for the unauthenticated order
// board: no timestamps, no note.
type publicOrderResponse struct {
	ID           uuid.UUID `json:"id"`
	CustomerName string    `json:"customer_name"`
	PhoneNumber  *string   `json:"phone_number"`
	Category     string    `json:"category"`
	ServiceKind  string    `json:"service_kind"`
	Status       string    `json:"status"`
	RawQuantity  float64   `json:"raw_quantity"`
	Price        int64     `json:"price"`
}

type sweepResponse struct {
	Deleted int64 `json:"deleted"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		CustomerName: req.CustomerName,
		PhoneNumber:  req.PhoneNumber,
		ServiceKind:  req.ServiceKind,
		Category:     req.Category,
		RawQuantity:  req.RawQuantity,
		Note:         req.Note,
	})
	if err != nil {
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toOrderResponse(order)
	h.broadcast("order.created", resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Update handles PUT /orders/{id}. Only fields present in the body are
// applied; price and completed_at are derived, never set directly.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.UpdateOrder(r.Context(), orderID, service.UpdateOrderRequest{
		CustomerName: req.CustomerName,
		PhoneNumber:  req.PhoneNumber,
		ServiceKind:  req.ServiceKind,
		Category:     req.Category,
		RawQuantity:  req.RawQuantity,
		Status:       req.Status,
		Note:         req.Note,
	})
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: update order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toOrderResponse(order)
	h.broadcast("order.updated", resp)
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /orders/{id}.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	if err := h.svc.DeleteOrder(r.Context(), orderID); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: delete order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.broadcast("order.deleted", map[string]uuid.UUID{"id": orderID})
	writeJSON(w, http.StatusOK, map[string]string{"message": "order deleted"})
}

// Sweep handles POST /orders/sweep. Deletes completed orders past the
// retention window; admin-only via router middleware.
func (h *OrderHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.SweepOldCompletedOrders(r.Context(), time.Now())
	if err != nil {
		log.Printf("ERROR: sweep old completed orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, sweepResponse{Deleted: count})
}

// PublicList handles GET /public/orders: the customer-facing board with a
// reduced field set and no authentication.
func (h *OrderHandler) PublicList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: list public orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]publicOrderResponse, len(orders))
	for i, o := range orders {
		resp[i] = publicOrderResponse{
			ID:           o.ID,
			CustomerName: o.CustomerName,
			PhoneNumber:  textPtr(o.PhoneNumber),
			Category:     o.Category,
			ServiceKind:  o.ServiceKind,
			Status:       o.Status,
			RawQuantity:  o.RawQuantity,
			Price:        o.Price,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrCustomerNameRequired) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, pricing.ErrInvalidServiceOrCategory)
}

// textPtr converts a nullable text column to a JSON-friendly pointer.
func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		CustomerName:   o.CustomerName,
		PhoneNumber:    textPtr(o.PhoneNumber),
		ServiceKind:    o.ServiceKind,
		Category:       o.Category,
		RawQuantity:    o.RawQuantity,
		BilledQuantity: pricing.BilledQuantity(o.Category, o.RawQuantity),
		Price:          o.Price,
		Status:         o.Status,
		ReceivedAt:     o.ReceivedAt,
		Note:           textPtr(o.Note),
	}
	if o.CompletedAt.Valid {
		t := o.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}

func (h *OrderHandler) broadcast(eventType string, payload interface{}) {
	if h.hub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.hub.Broadcast(ws.Event{Type: eventType, Payload: raw})
}
