package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponType tags how a coupon's discount value is interpreted
type CouponType string

const (
	// CouponTypeFixed takes a fixed amount off the order
	CouponTypeFixed CouponType = "FIXED"
	// CouponTypePercent takes a percentage of the order, optionally capped
	CouponTypePercent CouponType = "PERCENT"
)

// Valid reports whether t is a known coupon type
func (t CouponType) Valid() bool {
	return t == CouponTypeFixed || t == CouponTypePercent
}

// Coupon is an immutable discount rule definition
type Coupon struct {
	ID            uuid.UUID           `json:"id" db:"id"`
	Name          string              `json:"name" db:"name"`
	Type          CouponType          `json:"type" db:"type"`
	DiscountValue decimal.Decimal     `json:"discount_value" db:"discount_value"`
	MinAmount     decimal.Decimal     `json:"min_amount" db:"min_amount"`
	MaxDiscount   decimal.NullDecimal `json:"max_discount" db:"max_discount"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
}

// UserCouponStatus is the usage state of an issued coupon
type UserCouponStatus string

const (
	UserCouponStatusUnused UserCouponStatus = "UNUSED"
	UserCouponStatusUsed   UserCouponStatus = "USED"
)

// UserCoupon binds a coupon to a user. It moves UNUSED -> USED exactly once.
type UserCoupon struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	CouponID  uuid.UUID        `json:"coupon_id" db:"coupon_id"`
	Status    UserCouponStatus `json:"status" db:"status"`
	UsedAt    *time.Time       `json:"used_at,omitempty" db:"used_at"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	Coupon    *Coupon          `json:"coupon,omitempty" db:"-"`
}
