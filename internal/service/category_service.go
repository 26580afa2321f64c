package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xingqu-shop/internal/domain"
	"xingqu-shop/internal/repository"

	"github.com/google/uuid"
)

// CategoryInput carries the editable fields of a category
type CategoryInput struct {
	Name      string
	Slug      string
	Icon      *string
	SortOrder int
}

// CategoryService defines the interface for category business logic
type CategoryService interface {
	List(ctx context.Context) ([]*domain.Category, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	Create(ctx context.Context, input CategoryInput) (*domain.Category, error)
	Update(ctx context.Context, id uuid.UUID, input CategoryInput) (*domain.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
}

// NewCategoryService creates a new instance of CategoryService
func NewCategoryService(categoryRepo repository.CategoryRepository) CategoryService {
	return &categoryService{categoryRepo: categoryRepo}
}

func (s *categoryService) List(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, internal(err, "failed to list categories")
	}
	return categories, nil
}

func (s *categoryService) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err)
	}
	return category, nil
}

func (s *categoryService) Create(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	now := time.Now()
	category := &domain.Category{
		ID:        uuid.New(),
		Name:      input.Name,
		Slug:      input.Slug,
		Icon:      input.Icon,
		SortOrder: input.SortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, s.mapError(err)
	}
	return category, nil
}

func (s *categoryService) Update(ctx context.Context, id uuid.UUID, input CategoryInput) (*domain.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err)
	}

	category.Name = input.Name
	category.Slug = input.Slug
	category.Icon = input.Icon
	category.SortOrder = input.SortOrder

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, s.mapError(err)
	}
	return category, nil
}

// Delete removes an empty category. Categories still referenced by any
// product, active or not, cannot be deleted.
func (s *categoryService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.categoryRepo.FindByID(ctx, id); err != nil {
		return s.mapError(err)
	}

	count, err := s.categoryRepo.CountProducts(ctx, id)
	if err != nil {
		return internal(err, "failed to count category products")
	}
	if count > 0 {
		return stateConflict(ErrCategoryInUse, fmt.Sprintf("category has %d products and cannot be deleted", count)).
			WithDetails(map[string]interface{}{"product_count": count})
	}

	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *categoryService) mapError(err error) error {
	switch {
	case errors.Is(err, repository.ErrCategoryNotFound):
		return notFound(ErrCategoryNotFound, "category not found")
	case errors.Is(err, repository.ErrCategorySlugExists):
		return conflict(ErrCategorySlugTaken, "category slug already exists")
	default:
		return internal(err, "category operation failed")
	}
}
