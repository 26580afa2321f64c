package domain

import (
	"time"

	"github.com/google/uuid"
)

// Banner is a storefront carousel entry
type Banner struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Image     string    `json:"image" db:"image"`
	Link      *string   `json:"link" db:"link"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Address is a user's shipping address
type Address struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	ReceiverName string    `json:"receiver_name" db:"receiver_name"`
	Phone        string    `json:"phone" db:"phone"`
	Province     string    `json:"province" db:"province"`
	City         string    `json:"city" db:"city"`
	District     string    `json:"district" db:"district"`
	Detail       string    `json:"detail" db:"detail"`
	IsDefault    bool      `json:"is_default" db:"is_default"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
