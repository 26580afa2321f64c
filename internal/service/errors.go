package service

import (
	"errors"

	"xingqu-shop/internal/apperror"
)

// Sentinels returned (wrapped in *apperror.Error) by the services. Match them
// with errors.Is.
var (
	ErrProductNotFound         = errors.New("product not found")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidQuantity         = errors.New("quantity must be at least 1")
	ErrCartItemNotFound        = errors.New("cart item not found")
	ErrCouponNotFound          = errors.New("coupon not found")
	ErrCouponAlreadyUsed       = errors.New("coupon already used")
	ErrInvalidCoupon           = errors.New("invalid coupon definition")
	ErrAddressNotFound         = errors.New("address not found")
	ErrEmptyOrder              = errors.New("order has no items")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatusTransition = errors.New("order status transition not allowed")
	ErrCategoryNotFound        = errors.New("category not found")
	ErrCategorySlugTaken       = errors.New("category slug already in use")
	ErrCategoryInUse           = errors.New("category still has products")
	ErrBannerNotFound          = errors.New("banner not found")
	ErrInvalidInput            = errors.New("invalid input")
)

func notFound(sentinel error, message string) *apperror.Error {
	return apperror.Wrap(apperror.CodeNotFound, sentinel, message)
}

func conflict(sentinel error, message string) *apperror.Error {
	return apperror.Wrap(apperror.CodeConflict, sentinel, message)
}

func stateConflict(sentinel error, message string) *apperror.Error {
	return apperror.Wrap(apperror.CodeStateConflict, sentinel, message)
}

func invalid(sentinel error, message string) *apperror.Error {
	return apperror.Wrap(apperror.CodeValidation, sentinel, message)
}

func internal(err error, message string) *apperror.Error {
	return apperror.Wrap(apperror.CodeInternal, err, message)
}
