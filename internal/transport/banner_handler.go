package transport

import (
	"net/http"

	"xingqu-shop/internal/middleware"
	"xingqu-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BannerRequest represents the banner create/update payload
type BannerRequest struct {
	Title     string  `json:"title" validate:"required,max=200"`
	Image     string  `json:"image" validate:"required,max=500"`
	Link      *string `json:"link" validate:"omitempty,max=500"`
	SortOrder int     `json:"sort_order"`
	IsActive  *bool   `json:"is_active"`
}

func (req BannerRequest) input() service.BannerInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return service.BannerInput{Title: req.Title, Image: req.Image, Link: req.Link, SortOrder: req.SortOrder, IsActive: active}
}

// BannerHandler handles HTTP requests for home page banners
type BannerHandler struct {
	bannerService service.BannerService
	logger        *zap.Logger
}

// NewBannerHandler creates a new BannerHandler
func NewBannerHandler(bannerService service.BannerService, logger *zap.Logger) *BannerHandler {
	return &BannerHandler{bannerService: bannerService, logger: logger}
}

// RegisterRoutes registers all banner routes
func (h *BannerHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/banners", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly(authMiddleware, h.logger)...)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List returns banners ordered by sort_order; active_only=true hides inactive ones
func (h *BannerHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active_only") == "true"
	banners, err := h.bannerService.List(r.Context(), activeOnly)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, banners)
}

func (h *BannerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	banner, err := h.bannerService.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, banner)
}

func (h *BannerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BannerRequest
	if !decode(w, r, &req, h.logger) {
		return
	}
	banner, err := h.bannerService.Create(r.Context(), req.input())
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, banner)
}

func (h *BannerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req BannerRequest
	if !decode(w, r, &req, h.logger) {
		return
	}
	banner, err := h.bannerService.Update(r.Context(), id, req.input())
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, banner)
}

func (h *BannerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	if err := h.bannerService.Delete(r.Context(), id); err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, messageResponse{Message: "banner deleted"})
}
