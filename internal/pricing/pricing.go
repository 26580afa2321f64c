// Package pricing evaluates coupon discount rules against an order subtotal.
// Every function here is pure.
package pricing

import (
	"errors"
	"fmt"

	"xingqu-shop/internal/domain"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places money is rounded to
const MoneyPlaces = 2

var (
	ErrUnknownCouponType = errors.New("unknown coupon type")
	ErrNilCoupon         = errors.New("coupon is nil")
)

var hundred = decimal.NewFromInt(100)

// Rule computes the raw discount a coupon grants for a subtotal. Minimum amount
// and clamping are applied by ComputeDiscount, not by the rule.
type Rule interface {
	Discount(subtotal decimal.Decimal) decimal.Decimal
}

// FixedAmount takes Value off the subtotal
type FixedAmount struct {
	Value decimal.Decimal
}

func (r FixedAmount) Discount(subtotal decimal.Decimal) decimal.Decimal {
	return decimal.Min(r.Value, subtotal)
}

// Percentage takes Percent/100 of the subtotal, never more than Cap when set
type Percentage struct {
	Percent decimal.Decimal
	Cap     decimal.NullDecimal
}

func (r Percentage) Discount(subtotal decimal.Decimal) decimal.Decimal {
	d := subtotal.Mul(r.Percent).Div(hundred)
	if r.Cap.Valid {
		d = decimal.Min(d, r.Cap.Decimal)
	}
	return d
}

// RuleFor resolves the rule for a coupon's type tag
func RuleFor(c *domain.Coupon) (Rule, error) {
	if c == nil {
		return nil, ErrNilCoupon
	}
	switch c.Type {
	case domain.CouponTypeFixed:
		return FixedAmount{Value: c.DiscountValue}, nil
	case domain.CouponTypePercent:
		return Percentage{Percent: c.DiscountValue, Cap: c.MaxDiscount}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCouponType, c.Type)
	}
}

// ComputeDiscount returns the discount coupon grants on subtotal. The result is
// zero below the coupon's minimum amount and always lies in [0, subtotal].
func ComputeDiscount(subtotal decimal.Decimal, c *domain.Coupon) (decimal.Decimal, error) {
	rule, err := RuleFor(c)
	if err != nil {
		return decimal.Zero, err
	}
	if subtotal.LessThan(c.MinAmount) || !subtotal.IsPositive() {
		return decimal.Zero, nil
	}

	d := rule.Discount(subtotal).Round(MoneyPlaces)
	if d.IsNegative() {
		return decimal.Zero, nil
	}
	return decimal.Min(d, subtotal), nil
}

// FinalAmount is subtotal minus discount
func FinalAmount(subtotal, discount decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount)
}

// DiscountPercent is the whole-number percentage current is below original.
// It is 0 when there is no markdown.
func DiscountPercent(original, current decimal.Decimal) int {
	if !original.IsPositive() || original.LessThanOrEqual(current) {
		return 0
	}
	return int(original.Sub(current).Div(original).Mul(hundred).Round(0).IntPart())
}
