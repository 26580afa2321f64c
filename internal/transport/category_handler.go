package transport

import (
	"net/http"

	"xingqu-shop/internal/middleware"
	"xingqu-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CategoryRequest represents the category create/update payload
type CategoryRequest struct {
	Name      string  `json:"name" validate:"required,max=100"`
	Slug      string  `json:"slug" validate:"required,max=100,slug"`
	Icon      *string `json:"icon" validate:"omitempty,max=50"`
	SortOrder int     `json:"sort_order"`
}

func (req CategoryRequest) input() service.CategoryInput {
	return service.CategoryInput{Name: req.Name, Slug: req.Slug, Icon: req.Icon, SortOrder: req.SortOrder}
}

// CategoryHandler handles HTTP requests for categories
type CategoryHandler struct {
	categoryService service.CategoryService
	logger          *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService service.CategoryService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, logger: logger}
}

// RegisterRoutes registers all category routes
func (h *CategoryHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/categories", func(r chi.Router) {
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

// List returns every category with its product count
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryService.List(r.Context())
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	category, err := h.categoryService.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	category, err := h.categoryService.Create(r.Context(), req.input())
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}

	h.logger.Info("Category created", zap.String("category_id", category.ID.String()), zap.String("slug", category.Slug))
	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req CategoryRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	category, err := h.categoryService.Update(r.Context(), id, req.input())
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	if err := h.categoryService.Delete(r.Context(), id); err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}

	h.logger.Info("Category deleted", zap.String("category_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, messageResponse{Message: "category deleted"})
}
