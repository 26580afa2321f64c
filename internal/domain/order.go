package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipping  OrderStatus = "SHIPPING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:  {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:     {OrderStatusShipping, OrderStatusCancelled},
	OrderStatusShipping: {OrderStatusCompleted},
}

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipping, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an order may move from s to next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is an immutable purchase record. FinalAmount = TotalAmount - DiscountAmount.
type Order struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	OrderNo        string          `json:"order_no" db:"order_no"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	AddressID      uuid.UUID       `json:"address_id" db:"address_id"`
	Status         OrderStatus     `json:"status" db:"status"`
	TotalAmount    decimal.Decimal `json:"total_amount" db:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount" db:"final_amount"`
	UserCouponID   *uuid.UUID      `json:"used_coupon,omitempty" db:"user_coupon_id"`
	Items          []OrderItem     `json:"items"`
	Address        *Address        `json:"address,omitempty" db:"-"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderItem is a snapshot of product data taken at purchase time
type OrderItem struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Title     string          `json:"title" db:"title"`
	Image     string          `json:"image" db:"image"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Specs     string          `json:"specs" db:"specs"`
}

// Subtotal is price x quantity for the line
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// FormatOrderNo renders an order number as the UTC date (YYYYMMDD) followed by
// the sequence value padded to at least five digits.
func FormatOrderNo(at time.Time, seq int64) string {
	return fmt.Sprintf("%s%05d", at.UTC().Format("20060102"), seq)
}
