package transport

import (
	"net/http"

	"xingqu-shop/internal/domain"
	"xingqu-shop/internal/middleware"
	"xingqu-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderItemRequest is one direct order line. Title, image and price are
// accepted for client convenience; the server snapshots its own values.
type OrderItemRequest struct {
	ProductID uuid.UUID           `json:"product_id" validate:"required"`
	Quantity  int                 `json:"quantity" validate:"gte=1"`
	Specs     map[string]string   `json:"specs"`
	Title     string              `json:"title"`
	Image     string              `json:"image"`
	Price     decimal.NullDecimal `json:"price"`
}

// CreateOrderRequest represents the checkout payload. Exactly one of
// cart_item_ids and items is used.
type CreateOrderRequest struct {
	AddressID   uuid.UUID          `json:"address_id" validate:"required"`
	CartItemIDs []uuid.UUID        `json:"cart_item_ids" validate:"required_without=Items,excluded_with=Items"`
	Items       []OrderItemRequest `json:"items" validate:"required_without=CartItemIDs,dive"`
	CouponID    *uuid.UUID         `json:"coupon_id"`
}

func (req CreateOrderRequest) input() service.CreateOrderInput {
	lines := make([]service.OrderLineInput, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, service.OrderLineInput{ProductID: item.ProductID, Quantity: item.Quantity, Specs: item.Specs})
	}
	return service.CreateOrderInput{
		AddressID:    req.AddressID,
		CartItemIDs:  req.CartItemIDs,
		Items:        lines,
		UserCouponID: req.CouponID,
	}
}

// UpdateOrderStatusRequest represents the admin status change payload
type UpdateOrderStatusRequest struct {
	Status domain.OrderStatus `json:"status" validate:"required,oneof=PENDING PAID SHIPPING COMPLETED CANCELLED"`
}

// OrderHandler handles HTTP requests for orders
type OrderHandler struct {
	orderService service.OrderService
	idempotency  func(http.Handler) http.Handler
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler. idempotency wraps order
// creation and may be nil.
func NewOrderHandler(orderService service.OrderService, idempotency func(http.Handler) http.Handler, logger *zap.Logger) *OrderHandler {
	if idempotency == nil {
		idempotency = func(next http.Handler) http.Handler { return next }
	}
	return &OrderHandler{orderService: orderService, idempotency: idempotency, logger: logger}
}

// RegisterRoutes registers all order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.With(h.idempotency).Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/cancel", h.Cancel)
	})

	r.Route("/api/admin/orders", func(r chi.Router) {
		r.Use(adminOnly(authMiddleware, h.logger)...)
		r.Get("/", h.AdminList)
		r.Get("/{id}", h.AdminGet)
		r.Put("/{id}/status", h.UpdateStatus)
	})
}

// Create assembles an order from cart lines or direct lines
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), userID, req.input())
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) parseQuery(w http.ResponseWriter, r *http.Request) (service.OrderQuery, bool) {
	query := service.OrderQuery{Page: queryInt(r, "page"), Limit: queryInt(r, "limit")}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.OrderStatus(raw)
		if !status.Valid() {
			middleware.RespondWithValidationErrors(w, []middleware.ValidationError{{
				Field:   "status",
				Message: "Must be one of: PENDING PAID SHIPPING COMPLETED CANCELLED",
			}})
			return query, false
		}
		query.Status = &status
	}
	return query, true
}

// List returns the caller's orders, newest first
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	query, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	page, err := h.orderService.ListForUser(r.Context(), userID, query)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	order, err := h.orderService.Get(r.Context(), userID, id)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// Cancel cancels one of the caller's pending orders
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	order, err := h.orderService.Cancel(r.Context(), userID, id)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	query, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	page, err := h.orderService.ListAll(r.Context(), query)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

func (h *OrderHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	order, err := h.orderService.GetAny(r.Context(), id)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}

	h.logger.Info("Order status updated",
		zap.String("order_no", order.OrderNo),
		zap.String("status", string(order.Status)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, order)
}
