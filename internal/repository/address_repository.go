package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"xingqu-shop/internal/database"
	"xingqu-shop/internal/domain"

	"github.com/google/uuid"
)

var ErrAddressNotFound = errors.New("address not found")

// AddressRepository defines the interface for shipping address data access
type AddressRepository interface {
	WithTx(tx *sql.Tx) AddressRepository
	Create(ctx context.Context, address *domain.Address) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error)
	FindForUser(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error)
}

type addressRepository struct {
	db database.DBTX
}

// NewAddressRepository creates a new instance of AddressRepository
func NewAddressRepository(db *sql.DB) AddressRepository {
	return &addressRepository{db: db}
}

func (r *addressRepository) WithTx(tx *sql.Tx) AddressRepository {
	if tx == nil {
		return r
	}
	return &addressRepository{db: tx}
}

const addressColumns = `id, user_id, receiver_name, phone, province, city, district, detail, is_default, created_at`

func scanAddress(row interface{ Scan(...any) error }, address *domain.Address) error {
	return row.Scan(
		&address.ID,
		&address.UserID,
		&address.ReceiverName,
		&address.Phone,
		&address.Province,
		&address.City,
		&address.District,
		&address.Detail,
		&address.IsDefault,
		&address.CreatedAt,
	)
}

// Create stores the address. A new default address clears the user's
// previous default, so callers run it inside a transaction.
func (r *addressRepository) Create(ctx context.Context, address *domain.Address) error {
	if address.IsDefault {
		_, err := r.db.ExecContext(ctx, `UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`, address.UserID)
		if err != nil {
			return fmt.Errorf("failed to clear default address: %w", err)
		}
	}

	query := `
		INSERT INTO addresses (id, user_id, receiver_name, phone, province, city, district, detail, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(
		ctx,
		query,
		address.ID,
		address.UserID,
		address.ReceiverName,
		address.Phone,
		address.Province,
		address.City,
		address.District,
		address.Detail,
		address.IsDefault,
		address.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	return nil
}

func (r *addressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+addressColumns+`
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []*domain.Address{}
	for rows.Next() {
		address := &domain.Address{}
		if err := scanAddress(rows, address); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, address)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}
	return addresses, nil
}

// FindForUser returns the address only when userID owns it
func (r *addressRepository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	address := &domain.Address{}
	err := scanAddress(r.db.QueryRowContext(ctx, `
		SELECT `+addressColumns+`
		FROM addresses
		WHERE id = $1 AND user_id = $2
	`, id, userID), address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("failed to find address: %w", err)
	}
	return address, nil
}
