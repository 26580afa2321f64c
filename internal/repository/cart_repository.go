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

var (
	ErrCartItemNotFound         = errors.New("cart item not found")
	ErrCartQuantityExceedsStock = errors.New("cart quantity would exceed stock")
	ErrCartProductUnavailable   = errors.New("cart product is no longer available")
)

// CartRepository defines the interface for cart line data access. Every
// operation is scoped to the owning user.
type CartRepository interface {
	WithTx(tx *sql.Tx) CartRepository
	Upsert(ctx context.Context, item *domain.CartItem) (*domain.CartItem, error)
	FindLine(ctx context.Context, userID, productID uuid.UUID, specs string) (*domain.CartItem, error)
	FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.CartItem, error)
	FindByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]*domain.CartItem, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, id uuid.UUID, quantity int) (*domain.CartItem, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int, error)
	Clear(ctx context.Context, userID uuid.UUID) (int, error)
}

type cartRepository struct {
	db database.DBTX
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) WithTx(tx *sql.Tx) CartRepository {
	if tx == nil {
		return r
	}
	return &cartRepository{db: tx}
}

const cartColumns = `ci.id, ci.user_id, ci.product_id, ci.quantity, ci.specs, ci.created_at, ci.updated_at`

func scanCartItem(row interface{ Scan(...any) error }, item *domain.CartItem) error {
	return row.Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.Quantity,
		&item.Specs,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
}

// Upsert adds item.Quantity to the user's line for (product, specs), creating
// the line when absent. The write happens only if the resulting quantity
// stays within the product's current stock; otherwise no row is touched and
// ErrCartQuantityExceedsStock is returned.
func (r *cartRepository) Upsert(ctx context.Context, item *domain.CartItem) (*domain.CartItem, error) {
	query := `
		INSERT INTO cart_items AS ci (id, user_id, product_id, quantity, specs, created_at, updated_at)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::int, $5::text, NOW(), NOW()
		WHERE $4::int <= (SELECT stock FROM products WHERE id = $3::uuid)
		ON CONFLICT (user_id, product_id, specs) DO UPDATE
		SET quantity = ci.quantity + EXCLUDED.quantity, updated_at = NOW()
		WHERE ci.quantity + EXCLUDED.quantity <= (SELECT stock FROM products WHERE id = EXCLUDED.product_id)
		RETURNING ` + cartColumns

	saved := &domain.CartItem{}
	err := scanCartItem(r.db.QueryRowContext(
		ctx,
		query,
		item.ID,
		item.UserID,
		item.ProductID,
		item.Quantity,
		item.Specs,
	), saved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartQuantityExceedsStock
		}
		return nil, fmt.Errorf("failed to upsert cart item: %w", err)
	}

	return saved, nil
}

func (r *cartRepository) FindLine(ctx context.Context, userID, productID uuid.UUID, specs string) (*domain.CartItem, error) {
	query := `
		SELECT ` + cartColumns + `
		FROM cart_items ci
		WHERE ci.user_id = $1 AND ci.product_id = $2 AND ci.specs = $3
	`

	item := &domain.CartItem{}
	if err := scanCartItem(r.db.QueryRowContext(ctx, query, userID, productID, specs), item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to find cart line: %w", err)
	}
	return item, nil
}

func (r *cartRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.CartItem, error) {
	query := `
		SELECT ` + cartColumns + `
		FROM cart_items ci
		WHERE ci.id = $1 AND ci.user_id = $2
	`

	item := &domain.CartItem{}
	if err := scanCartItem(r.db.QueryRowContext(ctx, query, id, userID), item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to find cart item: %w", err)
	}
	return item, nil
}

// FindByIDs returns the user's lines among ids. Ids owned by other users or
// missing are silently absent from the result.
func (r *cartRepository) FindByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]*domain.CartItem, error) {
	if len(ids) == 0 {
		return []*domain.CartItem{}, nil
	}

	query := `
		SELECT ` + cartColumns + `
		FROM cart_items ci
		WHERE ci.user_id = $1 AND ci.id = ANY($2::uuid[])
		ORDER BY ci.created_at ASC
	`
	return r.query(ctx, query, userID, uuidStrings(ids))
}

// ListByUser returns the user's lines newest first, each with a product summary
func (r *cartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error) {
	query := `
		SELECT ` + cartColumns + `,
		       p.title, p.price, p.original_price, p.stock, p.status,
		       COALESCE((SELECT pi.url FROM product_images pi WHERE pi.product_id = p.id ORDER BY pi.sort_order LIMIT 1), '')
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	items := []*domain.CartItem{}
	for rows.Next() {
		item := &domain.CartItem{}
		product := &domain.Product{}
		var image string
		err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.ProductID,
			&item.Quantity,
			&item.Specs,
			&item.CreatedAt,
			&item.UpdatedAt,
			&product.Title,
			&product.Price,
			&product.OriginalPrice,
			&product.Stock,
			&product.Status,
			&image,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		product.ID = item.ProductID
		product.Images = []domain.ProductImage{}
		if image != "" {
			product.Images = append(product.Images, domain.ProductImage{ProductID: product.ID, URL: image})
		}
		item.Product = product
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}
	return items, nil
}

// UpdateQuantity sets an absolute quantity, guarded by the product's stock.
// Lines whose product is no longer ACTIVE cannot be changed.
func (r *cartRepository) UpdateQuantity(ctx context.Context, userID, id uuid.UUID, quantity int) (*domain.CartItem, error) {
	query := `
		UPDATE cart_items ci
		SET quantity = $3
		FROM products p
		WHERE ci.id = $1 AND ci.user_id = $2 AND p.id = ci.product_id
		  AND p.status = 'ACTIVE' AND p.stock >= $3
		RETURNING ` + cartColumns

	item := &domain.CartItem{}
	if err := scanCartItem(r.db.QueryRowContext(ctx, query, id, userID, quantity), item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.explainRejectedUpdate(ctx, userID, id)
		}
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	return item, nil
}

// explainRejectedUpdate tells apart the reasons UpdateQuantity matched no row
func (r *cartRepository) explainRejectedUpdate(ctx context.Context, userID, id uuid.UUID) error {
	var status domain.ProductStatus
	err := r.db.QueryRowContext(ctx, `
		SELECT p.status
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.id = $1 AND ci.user_id = $2
	`, id, userID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCartItemNotFound
		}
		return fmt.Errorf("failed to find cart item: %w", err)
	}
	if status != domain.ProductStatusActive {
		return ErrCartProductUnavailable
	}
	return ErrCartQuantityExceedsStock
}

func (r *cartRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *cartRepository) DeleteByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2::uuid[])`, userID, uuidStrings(ids))
}

func (r *cartRepository) Clear(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
}

func (r *cartRepository) exec(ctx context.Context, query string, args ...any) (int, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cart items: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

func (r *cartRepository) query(ctx context.Context, query string, args ...any) ([]*domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := []*domain.CartItem{}
	for rows.Next() {
		item := &domain.CartItem{}
		if err := scanCartItem(rows, item); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}
	return items, nil
}
