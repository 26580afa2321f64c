package transport

import (
	"net/http"

	"xingqu-shop/internal/middleware"
	"xingqu-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddCartItemRequest represents the add-to-cart payload. Quantity defaults to 1.
type AddCartItemRequest struct {
	ProductID uuid.UUID         `json:"product_id" validate:"required"`
	Quantity  int               `json:"quantity" validate:"gte=1"`
	Specs     map[string]string `json:"specs"`
}

// UpdateCartItemRequest represents the cart line quantity update payload
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

type clearCartResponse struct {
	Removed int `json:"removed"`
}

// CartHandler handles HTTP requests for the caller's cart
type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{cartService: cartService, logger: logger}
}

// RegisterRoutes registers all cart routes. Every route requires authentication.
func (h *CartHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.Get)
		r.Post("/", h.AddItem)
		r.Delete("/", h.Clear)
		r.Put("/{id}", h.UpdateItem)
		r.Patch("/{id}", h.UpdateItem)
		r.Delete("/{id}", h.RemoveItem)
	})
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	cart, err := h.cartService.Get(r.Context(), userID)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// AddItem merges the product into the cart, creating a line when needed
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	// Omitted quantity means one
	req := AddCartItemRequest{Quantity: 1}
	if !decode(w, r, &req, h.logger) {
		return
	}

	item, err := h.cartService.AddItem(r.Context(), userID, req.ProductID, req.Quantity, req.Specs)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, item)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	item, err := h.cartService.UpdateQuantity(r.Context(), userID, id, req.Quantity)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, item)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	if err := h.cartService.RemoveItem(r.Context(), userID, id); err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, messageResponse{Message: "cart item removed"})
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	removed, err := h.cartService.Clear(r.Context(), userID)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, clearCartResponse{Removed: removed})
}
