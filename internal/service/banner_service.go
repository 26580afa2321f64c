package service

import (
	"context"
	"errors"
	"time"

	"xingqu-shop/internal/domain"
	"xingqu-shop/internal/repository"

	"github.com/google/uuid"
)

type BannerInput struct {
	Title     string
	Image     string
	Link      *string
	SortOrder int
	IsActive  bool
}

type BannerService interface {
	List(ctx context.Context, activeOnly bool) ([]*domain.Banner, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Banner, error)
	Create(ctx context.Context, input BannerInput) (*domain.Banner, error)
	Update(ctx context.Context, id uuid.UUID, input BannerInput) (*domain.Banner, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type bannerService struct {
	bannerRepo repository.BannerRepository
}

func NewBannerService(bannerRepo repository.BannerRepository) BannerService {
	return &bannerService{bannerRepo: bannerRepo}
}

func (s *bannerService) List(ctx context.Context, activeOnly bool) ([]*domain.Banner, error) {
	banners, err := s.bannerRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, internal(err, "failed to list banners")
	}
	return banners, nil
}

func (s *bannerService) Get(ctx context.Context, id uuid.UUID) (*domain.Banner, error) {
	banner, err := s.bannerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, mapBannerError(err)
	}
	return banner, nil
}

func (s *bannerService) Create(ctx context.Context, input BannerInput) (*domain.Banner, error) {
	now := time.Now()
	banner := &domain.Banner{
		ID:        uuid.New(),
		Title:     input.Title,
		Image:     input.Image,
		Link:      input.Link,
		SortOrder: input.SortOrder,
		IsActive:  input.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.bannerRepo.Create(ctx, banner); err != nil {
		return nil, internal(err, "failed to create banner")
	}
	return banner, nil
}

func (s *bannerService) Update(ctx context.Context, id uuid.UUID, input BannerInput) (*domain.Banner, error) {
	banner, err := s.bannerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, mapBannerError(err)
	}

	banner.Title = input.Title
	banner.Image = input.Image
	banner.Link = input.Link
	banner.SortOrder = input.SortOrder
	banner.IsActive = input.IsActive

	if err := s.bannerRepo.Update(ctx, banner); err != nil {
		return nil, mapBannerError(err)
	}
	return banner, nil
}

func (s *bannerService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.bannerRepo.Delete(ctx, id); err != nil {
		return mapBannerError(err)
	}
	return nil
}

func mapBannerError(err error) error {
	if errors.Is(err, repository.ErrBannerNotFound) {
		return notFound(ErrBannerNotFound, "banner not found")
	}
	return internal(err, "banner operation failed")
}
