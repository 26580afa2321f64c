package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CartItem is one line of a user's cart. A user holds at most one line per
// (product, serialized specs) pair.
type CartItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	Specs     string    `json:"specs" db:"specs"`
	Product   *Product  `json:"product,omitempty" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SerializeSpecs encodes selected options canonically so that equal selections
// always produce equal strings. No selection encodes to "".
func SerializeSpecs(specs map[string]string) (string, error) {
	if len(specs) == 0 {
		return "", nil
	}
	// encoding/json writes map keys in sorted order
	raw, err := json.Marshal(specs)
	if err != nil {
		return "", fmt.Errorf("failed to serialize specs: %w", err)
	}
	return string(raw), nil
}

// ParseSpecs is the inverse of SerializeSpecs
func ParseSpecs(serialized string) (map[string]string, error) {
	if serialized == "" {
		return nil, nil
	}
	specs := map[string]string{}
	if err := json.Unmarshal([]byte(serialized), &specs); err != nil {
		return nil, fmt.Errorf("failed to parse specs: %w", err)
	}
	return specs, nil
}
