package service

import (
	"context"
	"errors"
	"testing"

	"xingqu-shop/internal/apperror"
	"xingqu-shop/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCouponCreateValidation(t *testing.T) {
	svc := NewCouponService(&mockCouponRepository{store: newMemStore()})
	ctx := context.Background()

	tests := []struct {
		name  string
		input CouponInput
		valid bool
	}{
		{"fixed", CouponInput{Name: "满50减10", Type: domain.CouponTypeFixed, DiscountValue: decimal.NewFromInt(10), MinAmount: decimal.NewFromInt(50)}, true},
		{"fixed zero", CouponInput{Name: "x", Type: domain.CouponTypeFixed, DiscountValue: decimal.Zero}, false},
		{"percent full", CouponInput{Name: "x", Type: domain.CouponTypePercent, DiscountValue: decimal.NewFromInt(100)}, true},
		{"percent over", CouponInput{Name: "x", Type: domain.CouponTypePercent, DiscountValue: decimal.NewFromInt(101)}, false},
		{"negative min", CouponInput{Name: "x", Type: domain.CouponTypeFixed, DiscountValue: decimal.NewFromInt(1), MinAmount: decimal.NewFromInt(-1)}, false},
		{"unknown type", CouponInput{Name: "x", Type: "BOGO", DiscountValue: decimal.NewFromInt(1)}, false},
		{"missing name", CouponInput{Type: domain.CouponTypeFixed, DiscountValue: decimal.NewFromInt(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
		})
	}
}

func TestCouponCapOnlyForPercent(t *testing.T) {
	svc := NewCouponService(&mockCouponRepository{store: newMemStore()})
	coupon, err := svc.Create(context.Background(), CouponInput{
		Name:          "立减5元",
		Type:          domain.CouponTypeFixed,
		DiscountValue: decimal.NewFromInt(5),
		MaxDiscount:   decimal.NewNullDecimal(decimal.NewFromInt(3)),
	})
	require.NoError(t, err)
	assert.False(t, coupon.MaxDiscount.Valid)
}

func TestCouponIssueAndPreview(t *testing.T) {
	store := newMemStore()
	svc := NewCouponService(&mockCouponRepository{store: store})
	ctx := context.Background()
	user := uuid.New()

	coupon, err := svc.Create(ctx, CouponInput{
		Name:          "九折券",
		Type:          domain.CouponTypePercent,
		DiscountValue: decimal.NewFromInt(10),
		MinAmount:     decimal.NewFromInt(50),
		MaxDiscount:   decimal.NewNullDecimal(decimal.NewFromInt(20)),
	})
	require.NoError(t, err)

	_, err = svc.Issue(ctx, uuid.New(), user)
	assert.True(t, errors.Is(err, ErrCouponNotFound))

	uc, err := svc.Issue(ctx, coupon.ID, user)
	require.NoError(t, err)
	assert.Equal(t, domain.UserCouponStatusUnused, uc.Status)

	preview, err := svc.Preview(ctx, user, uc.ID, decimal.NewFromInt(300))
	require.NoError(t, err)
	assert.True(t, preview.Applicable)
	assert.True(t, decimal.NewFromInt(20).Equal(preview.Discount))
	assert.True(t, decimal.NewFromInt(280).Equal(preview.FinalAmount))

	preview, err = svc.Preview(ctx, user, uc.ID, decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.False(t, preview.Applicable)
	assert.True(t, preview.Discount.IsZero())

	_, err = svc.Preview(ctx, uuid.New(), uc.ID, decimal.NewFromInt(100))
	assert.True(t, errors.Is(err, ErrCouponNotFound))

	unused := domain.UserCouponStatusUnused
	list, err := svc.ListForUser(ctx, user, &unused)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	store.userCoupons[uc.ID].Status = domain.UserCouponStatusUsed
	_, err = svc.Preview(ctx, user, uc.ID, decimal.NewFromInt(100))
	assert.True(t, errors.Is(err, ErrCouponAlreadyUsed))

	list, err = svc.ListForUser(ctx, user, &unused)
	require.NoError(t, err)
	assert.Empty(t, list)
}
