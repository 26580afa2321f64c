package service

import (
	"context"
	"errors"
	"time"

	"xingqu-shop/internal/domain"
	"xingqu-shop/internal/pricing"
	"xingqu-shop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// CouponInput defines a new coupon
type CouponInput struct {
	Name          string
	Type          domain.CouponType
	DiscountValue decimal.Decimal
	MinAmount     decimal.Decimal
	MaxDiscount   decimal.NullDecimal
}

// CouponPreview is the discount a user coupon would grant on a subtotal
type CouponPreview struct {
	UserCouponID uuid.UUID       `json:"user_coupon_id"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	FinalAmount  decimal.Decimal `json:"final_amount"`
	Applicable   bool            `json:"applicable"`
}

// CouponService defines the interface for coupon business logic
type CouponService interface {
	Create(ctx context.Context, input CouponInput) (*domain.Coupon, error)
	List(ctx context.Context) ([]*domain.Coupon, error)
	Issue(ctx context.Context, couponID, userID uuid.UUID) (*domain.UserCoupon, error)
	ListForUser(ctx context.Context, userID uuid.UUID, status *domain.UserCouponStatus) ([]*domain.UserCoupon, error)
	Preview(ctx context.Context, userID, userCouponID uuid.UUID, subtotal decimal.Decimal) (*CouponPreview, error)
}

type couponService struct {
	couponRepo repository.CouponRepository
}

// NewCouponService creates a new instance of CouponService
func NewCouponService(couponRepo repository.CouponRepository) CouponService {
	return &couponService{couponRepo: couponRepo}
}

func (s *couponService) Create(ctx context.Context, input CouponInput) (*domain.Coupon, error) {
	if err := validateCouponInput(input); err != nil {
		return nil, err
	}

	coupon := &domain.Coupon{
		ID:            uuid.New(),
		Name:          input.Name,
		Type:          input.Type,
		DiscountValue: input.DiscountValue.Round(pricing.MoneyPlaces),
		MinAmount:     input.MinAmount.Round(pricing.MoneyPlaces),
		CreatedAt:     time.Now(),
	}
	// a cap only applies to percentage coupons
	if input.Type == domain.CouponTypePercent {
		coupon.MaxDiscount = input.MaxDiscount
	}

	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		return nil, internal(err, "failed to create coupon")
	}
	return coupon, nil
}

func validateCouponInput(input CouponInput) error {
	details := map[string]interface{}{}
	if input.Name == "" {
		details["name"] = "is required"
	}
	switch input.Type {
	case domain.CouponTypeFixed:
		if !input.DiscountValue.IsPositive() {
			details["discount_value"] = "must be greater than 0"
		}
	case domain.CouponTypePercent:
		if !input.DiscountValue.IsPositive() || input.DiscountValue.GreaterThan(oneHundred) {
			details["discount_value"] = "must be in (0, 100]"
		}
		if input.MaxDiscount.Valid && !input.MaxDiscount.Decimal.IsPositive() {
			details["max_discount"] = "must be greater than 0"
		}
	default:
		details["type"] = "must be FIXED or PERCENT"
	}
	if input.MinAmount.IsNegative() {
		details["min_amount"] = "must not be negative"
	}
	if len(details) > 0 {
		return invalid(ErrInvalidCoupon, "invalid coupon").WithDetails(details)
	}
	return nil
}

func (s *couponService) List(ctx context.Context) ([]*domain.Coupon, error) {
	coupons, err := s.couponRepo.List(ctx)
	if err != nil {
		return nil, internal(err, "failed to list coupons")
	}
	return coupons, nil
}

// Issue grants a coupon to a user as a new UNUSED user coupon
func (s *couponService) Issue(ctx context.Context, couponID, userID uuid.UUID) (*domain.UserCoupon, error) {
	if userID == uuid.Nil {
		return nil, invalid(ErrInvalidInput, "user_id is required")
	}

	uc := &domain.UserCoupon{
		ID:        uuid.New(),
		UserID:    userID,
		CouponID:  couponID,
		Status:    domain.UserCouponStatusUnused,
		CreatedAt: time.Now(),
	}
	if err := s.couponRepo.Issue(ctx, uc); err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			return nil, notFound(ErrCouponNotFound, "coupon not found")
		}
		return nil, internal(err, "failed to issue coupon")
	}
	return uc, nil
}

func (s *couponService) ListForUser(ctx context.Context, userID uuid.UUID, status *domain.UserCouponStatus) ([]*domain.UserCoupon, error) {
	if status != nil && *status != domain.UserCouponStatusUnused && *status != domain.UserCouponStatusUsed {
		return nil, invalid(ErrInvalidInput, "status must be UNUSED or USED")
	}
	coupons, err := s.couponRepo.ListUserCoupons(ctx, userID, status)
	if err != nil {
		return nil, internal(err, "failed to list coupons")
	}
	return coupons, nil
}

// Preview prices a user's coupon against subtotal without claiming it
func (s *couponService) Preview(ctx context.Context, userID, userCouponID uuid.UUID, subtotal decimal.Decimal) (*CouponPreview, error) {
	if subtotal.IsNegative() {
		return nil, invalid(ErrInvalidInput, "subtotal must not be negative")
	}

	uc, err := s.couponRepo.FindUserCoupon(ctx, userCouponID)
	if err != nil {
		if errors.Is(err, repository.ErrUserCouponNotFound) {
			return nil, notFound(ErrCouponNotFound, "coupon not found")
		}
		return nil, internal(err, "failed to load coupon")
	}
	if uc.UserID != userID {
		return nil, notFound(ErrCouponNotFound, "coupon not found")
	}
	if uc.Status != domain.UserCouponStatusUnused {
		return nil, stateConflict(ErrCouponAlreadyUsed, "coupon already used")
	}

	discount, err := pricing.ComputeDiscount(subtotal, uc.Coupon)
	if err != nil {
		return nil, invalid(ErrInvalidCoupon, "coupon cannot be applied")
	}
	return &CouponPreview{
		UserCouponID: uc.ID,
		Subtotal:     subtotal,
		Discount:     discount,
		FinalAmount:  pricing.FinalAmount(subtotal, discount),
		Applicable:   !subtotal.LessThan(uc.Coupon.MinAmount),
	}, nil
}
