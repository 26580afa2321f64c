package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStatus is the lifecycle state of a product listing
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
)

// Product represents a product in the catalog
type Product struct {
	ID             uuid.UUID              `json:"id" db:"id"`
	Title          string                 `json:"title" db:"title"`
	Description    string                 `json:"description" db:"description"`
	Price          decimal.Decimal        `json:"price" db:"price"`
	OriginalPrice  decimal.NullDecimal    `json:"original_price" db:"original_price"`
	Stock          int                    `json:"stock" db:"stock"`
	Sold           int                    `json:"sold" db:"sold"`
	Status         ProductStatus          `json:"status" db:"status"`
	CategoryID     uuid.UUID              `json:"category_id" db:"category_id"`
	CategoryName   string                 `json:"category_name,omitempty" db:"-"`
	Images         []ProductImage         `json:"images"`
	Specifications []ProductSpecification `json:"specifications,omitempty"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the product can be bought
func (p *Product) IsActive() bool {
	return p != nil && p.Status == ProductStatusActive
}

// PrimaryImage returns the URL of the first image, or "" when the product has none
func (p *Product) PrimaryImage() string {
	if p == nil || len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

// ProductImage is one ordered image of a product
type ProductImage struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	URL       string    `json:"url" db:"url"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
}

// ProductSpecification is a selectable variant attribute such as a color
type ProductSpecification struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	ProductID   uuid.UUID       `json:"product_id" db:"product_id"`
	Name        string          `json:"name" db:"name"`
	Value       string          `json:"value" db:"value"`
	PriceAdjust decimal.Decimal `json:"price_adjust" db:"price_adjust"`
	Stock       int             `json:"stock" db:"stock"`
}

// Category represents a product category
type Category struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Slug         string    `json:"slug" db:"slug"`
	Icon         *string   `json:"icon" db:"icon"`
	SortOrder    int       `json:"sort_order" db:"sort_order"`
	ProductCount int       `json:"product_count" db:"-"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
