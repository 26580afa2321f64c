package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"xingqu-shop/internal/database"
	"xingqu-shop/internal/domain"
	"xingqu-shop/internal/pricing"
	"xingqu-shop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// SpecificationInput is one selectable option of a product
type SpecificationInput struct {
	Name        string
	Value       string
	PriceAdjust decimal.Decimal
	Stock       int
}

// ProductInput carries the editable fields of a product. Images and
// specifications replace the existing sets on update.
type ProductInput struct {
	Title          string
	Description    string
	Price          decimal.Decimal
	OriginalPrice  decimal.NullDecimal
	Stock          int
	CategoryID     uuid.UUID
	Status         domain.ProductStatus
	Images         []string
	Specifications []SpecificationInput
}

// ProductQuery selects a page of the catalog
type ProductQuery struct {
	CategoryID      *uuid.UUID
	Search          string
	Sort            repository.ProductSort
	Page            int
	Limit           int
	IncludeInactive bool
}

// ProductListing is one catalog entry together with its markdown percentage
type ProductListing struct {
	*domain.Product
	DiscountPercent int `json:"discount_percent"`
}

// ProductPage is a page of catalog entries
type ProductPage struct {
	Data       []ProductListing `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// ProductService defines the interface for catalog business logic
type ProductService interface {
	List(ctx context.Context, query ProductQuery) (*ProductPage, error)
	Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*ProductListing, error)
	Create(ctx context.Context, input ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	productRepo repository.ProductRepository
	tx          database.TxRunner
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository, tx database.TxRunner) ProductService {
	return &productService{productRepo: productRepo, tx: tx}
}

func newListing(p *domain.Product) ProductListing {
	percent := 0
	if p.OriginalPrice.Valid {
		percent = pricing.DiscountPercent(p.OriginalPrice.Decimal, p.Price)
	}
	return ProductListing{Product: p, DiscountPercent: percent}
}

// List fetches the page and the total count concurrently
func (s *productService) List(ctx context.Context, query ProductQuery) (*ProductPage, error) {
	page, limit := normalizePage(query.Page, query.Limit)
	filter := repository.ProductFilter{
		CategoryID:      query.CategoryID,
		Search:          query.Search,
		Sort:            query.Sort,
		IncludeInactive: query.IncludeInactive,
		Page:            pageWindow(page, limit),
	}

	var (
		products []*domain.Product
		total    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.productRepo.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.productRepo.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internal(err, "failed to list products")
	}

	data := make([]ProductListing, 0, len(products))
	for _, p := range products {
		data = append(data, newListing(p))
	}
	return &ProductPage{Data: data, Pagination: newPagination(page, limit, total)}, nil
}

// Get returns a product with all images and specifications. Inactive products
// are hidden unless includeInactive is set.
func (s *productService) Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*ProductListing, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err)
	}
	if !includeInactive && !product.IsActive() {
		return nil, notFound(ErrProductNotFound, "product not found")
	}
	listing := newListing(product)
	return &listing, nil
}

func (s *productService) Create(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	now := time.Now()
	product := &domain.Product{
		ID:        uuid.New(),
		Status:    domain.ProductStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyProductInput(product, input)

	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		return s.productRepo.WithTx(tx).Create(ctx, product)
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return product, nil
}

func (s *productService) Update(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	var product *domain.Product
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		repo := s.productRepo.WithTx(tx)
		existing, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		applyProductInput(existing, input)
		if err := repo.Update(ctx, existing); err != nil {
			return err
		}
		product = existing
		return nil
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return product, nil
}

// Deactivate soft deletes a product so order history keeps referencing it
func (s *productService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.SetStatus(ctx, id, domain.ProductStatusInactive); err != nil {
		return s.mapError(err)
	}
	return nil
}

func validateProductInput(input ProductInput) error {
	details := map[string]interface{}{}
	if !input.Price.IsPositive() {
		details["price"] = "must be greater than 0"
	}
	if input.OriginalPrice.Valid && input.OriginalPrice.Decimal.IsNegative() {
		details["original_price"] = "must not be negative"
	}
	if input.Stock < 0 {
		details["stock"] = "must not be negative"
	}
	if len(input.Images) == 0 {
		details["images"] = "at least one image is required"
	}
	if input.Status != "" && input.Status != domain.ProductStatusActive && input.Status != domain.ProductStatusInactive {
		details["status"] = "must be ACTIVE or INACTIVE"
	}
	if len(details) > 0 {
		return invalid(ErrInvalidInput, "invalid product").WithDetails(details)
	}
	return nil
}

func applyProductInput(product *domain.Product, input ProductInput) {
	product.Title = input.Title
	product.Description = input.Description
	product.Price = input.Price.Round(pricing.MoneyPlaces)
	product.OriginalPrice = input.OriginalPrice
	product.Stock = input.Stock
	product.CategoryID = input.CategoryID
	if input.Status != "" {
		product.Status = input.Status
	}

	product.Images = make([]domain.ProductImage, 0, len(input.Images))
	for i, url := range input.Images {
		product.Images = append(product.Images, domain.ProductImage{
			ID:        uuid.New(),
			ProductID: product.ID,
			URL:       url,
			SortOrder: i,
		})
	}

	product.Specifications = make([]domain.ProductSpecification, 0, len(input.Specifications))
	for _, spec := range input.Specifications {
		product.Specifications = append(product.Specifications, domain.ProductSpecification{
			ID:          uuid.New(),
			ProductID:   product.ID,
			Name:        spec.Name,
			Value:       spec.Value,
			PriceAdjust: spec.PriceAdjust,
			Stock:       spec.Stock,
		})
	}
}

func (s *productService) mapError(err error) error {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return notFound(ErrProductNotFound, "product not found")
	case errors.Is(err, repository.ErrProductCategory):
		return notFound(ErrCategoryNotFound, "category not found")
	default:
		return internal(err, "product operation failed")
	}
}
