package transport

import (
	"net/http"

	"xingqu-shop/internal/middleware"
	"xingqu-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddressRequest represents the shipping address payload
type AddressRequest struct {
	ReceiverName string `json:"receiver_name" validate:"required,max=50"`
	Phone        string `json:"phone" validate:"required,min=5,max=20"`
	Province     string `json:"province" validate:"required,max=50"`
	City         string `json:"city" validate:"required,max=50"`
	District     string `json:"district" validate:"required,max=50"`
	Detail       string `json:"detail" validate:"required,max=200"`
	IsDefault    bool   `json:"is_default"`
}

// AddressHandler handles HTTP requests for the caller's addresses
type AddressHandler struct {
	addressService service.AddressService
	logger         *zap.Logger
}

// NewAddressHandler creates a new AddressHandler
func NewAddressHandler(addressService service.AddressService, logger *zap.Logger) *AddressHandler {
	return &AddressHandler{addressService: addressService, logger: logger}
}

// RegisterRoutes registers all address routes
func (h *AddressHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/addresses", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.List)
		r.Post("/", h.Create)
	})
}

func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	addresses, err := h.addressService.List(r.Context(), userID)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, addresses)
}

func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	var req AddressRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	address, err := h.addressService.Create(r.Context(), userID, service.AddressInput{
		ReceiverName: req.ReceiverName,
		Phone:        req.Phone,
		Province:     req.Province,
		City:         req.City,
		District:     req.District,
		Detail:       req.Detail,
		IsDefault:    req.IsDefault,
	})
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, address)
}
