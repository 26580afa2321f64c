package transport

import (
	"net/http"

	"xingqu-shop/internal/domain"
	"xingqu-shop/internal/middleware"
	"xingqu-shop/internal/repository"
	"xingqu-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SpecificationRequest is one selectable product option
type SpecificationRequest struct {
	Name        string          `json:"name" validate:"required,max=50"`
	Value       string          `json:"value" validate:"required,max=100"`
	PriceAdjust decimal.Decimal `json:"price_adjust"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

// ProductRequest represents the product create/update payload
type ProductRequest struct {
	Title          string                 `json:"title" validate:"required,max=200"`
	Description    string                 `json:"description"`
	Price          decimal.Decimal        `json:"price" validate:"gt=0"`
	OriginalPrice  decimal.NullDecimal    `json:"original_price" validate:"omitempty,gte=0"`
	Stock          int                    `json:"stock" validate:"gte=0"`
	CategoryID     uuid.UUID              `json:"category_id" validate:"required"`
	Status         domain.ProductStatus   `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Images         []string               `json:"images" validate:"required,min=1,dive,required"`
	Specifications []SpecificationRequest `json:"specifications" validate:"dive"`
}

func (req ProductRequest) input() service.ProductInput {
	specs := make([]service.SpecificationInput, 0, len(req.Specifications))
	for _, s := range req.Specifications {
		specs = append(specs, service.SpecificationInput{Name: s.Name, Value: s.Value, PriceAdjust: s.PriceAdjust, Stock: s.Stock})
	}
	return service.ProductInput{
		Title:          req.Title,
		Description:    req.Description,
		Price:          req.Price,
		OriginalPrice:  req.OriginalPrice,
		Stock:          req.Stock,
		CategoryID:     req.CategoryID,
		Status:         req.Status,
		Images:         req.Images,
		Specifications: specs,
	}
}

var productSorts = map[string]repository.ProductSort{
	"":           repository.SortNewest,
	"newest":     repository.SortNewest,
	"price-asc":  repository.SortPriceAsc,
	"price-desc": repository.SortPriceDesc,
	"sales":      repository.SortSales,
}

// ProductHandler handles HTTP requests for the catalog
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{productService: productService, logger: logger}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly(authMiddleware, h.logger)...)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})

	r.Route("/api/admin/products", func(r chi.Router) {
		r.Use(adminOnly(authMiddleware, h.logger)...)
		r.Get("/", h.AdminList)
		r.Get("/{id}", h.AdminGet)
	})
}

func (h *ProductHandler) parseQuery(w http.ResponseWriter, r *http.Request) (service.ProductQuery, bool) {
	categoryID, err := queryUUID(r, "category_id")
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return service.ProductQuery{}, false
	}
	sort, ok := productSorts[r.URL.Query().Get("sort")]
	if !ok {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{{
			Field:   "sort",
			Message: "Must be one of: newest price-asc price-desc sales",
		}})
		return service.ProductQuery{}, false
	}
	return service.ProductQuery{
		CategoryID: categoryID,
		Search:     r.URL.Query().Get("search"),
		Sort:       sort,
		Page:       queryInt(r, "page"),
		Limit:      queryInt(r, "limit"),
	}, true
}

// List returns a page of active products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	page, err := h.productService.List(r.Context(), query)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// AdminList returns a page of products including inactive ones
func (h *ProductHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	query, ok := h.parseQuery(w, r)
	if !ok {
		return
	}
	query.IncludeInactive = true
	page, err := h.productService.List(r.Context(), query)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, page)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, false)
}

func (h *ProductHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, true)
}

func (h *ProductHandler) get(w http.ResponseWriter, r *http.Request, includeInactive bool) {
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	product, err := h.productService.Get(r.Context(), id, includeInactive)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	product, err := h.productService.Create(r.Context(), req.input())
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req ProductRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	product, err := h.productService.Update(r.Context(), id, req.input())
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete deactivates the product; order history keeps referencing it
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	if err := h.productService.Deactivate(r.Context(), id); err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}

	h.logger.Info("Product deactivated", zap.String("product_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, messageResponse{Message: "product deactivated"})
}
