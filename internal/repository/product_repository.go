package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"xingqu-shop/internal/database"
	"xingqu-shop/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductCategory = errors.New("product category does not exist")
	ErrStockConflict   = errors.New("insufficient stock for decrement")
)

// ProductSort is a whitelisted listing order
type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceAsc  ProductSort = "price-asc"
	SortPriceDesc ProductSort = "price-desc"
	SortSales     ProductSort = "sales"
)

var productOrderBy = map[ProductSort]string{
	SortNewest:    "p.created_at DESC",
	SortPriceAsc:  "p.price ASC, p.created_at DESC",
	SortPriceDesc: "p.price DESC, p.created_at DESC",
	SortSales:     "p.sold DESC, p.created_at DESC",
}

// ProductFilter narrows a product listing
type ProductFilter struct {
	CategoryID      *uuid.UUID
	Search          string
	Sort            ProductSort
	IncludeInactive bool
	Page            Page
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	WithTx(tx *sql.Tx) ProductRepository
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	SetStatus(ctx context.Context, id uuid.UUID, status domain.ProductStatus) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	LockByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, error)
	Count(ctx context.Context, filter ProductFilter) (int, error)
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error
	RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error
}

type productRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) WithTx(tx *sql.Tx) ProductRepository {
	if tx == nil {
		return r
	}
	return &productRepository{db: tx}
}

const productColumns = `
	p.id, p.title, p.description, p.price, p.original_price, p.stock, p.sold,
	p.status, p.category_id, c.name, p.created_at, p.updated_at`

func scanProduct(row interface{ Scan(...any) error }, product *domain.Product, extra ...any) error {
	dest := []any{
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Price,
		&product.OriginalPrice,
		&product.Stock,
		&product.Sold,
		&product.Status,
		&product.CategoryID,
		&product.CategoryName,
		&product.CreatedAt,
		&product.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// Create inserts the product with its images and specifications. Callers
// run it inside a transaction.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, title, description, price, original_price, stock, sold, status, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Title,
		product.Description,
		product.Price,
		product.OriginalPrice,
		product.Stock,
		product.Sold,
		product.Status,
		product.CategoryID,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProductCategory
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return r.insertChildren(ctx, product)
}

// Update rewrites the product row and replaces its images and specifications
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET title = $2, description = $3, price = $4, original_price = $5,
		    stock = $6, status = $7, category_id = $8
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		product.ID,
		product.Title,
		product.Description,
		product.Price,
		product.OriginalPrice,
		product.Stock,
		product.Status,
		product.CategoryID,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		if isForeignKeyViolation(err) {
			return ErrProductCategory
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM product_images WHERE product_id = $1`, product.ID); err != nil {
		return fmt.Errorf("failed to clear product images: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM product_specifications WHERE product_id = $1`, product.ID); err != nil {
		return fmt.Errorf("failed to clear product specifications: %w", err)
	}

	return r.insertChildren(ctx, product)
}

func (r *productRepository) insertChildren(ctx context.Context, product *domain.Product) error {
	for i := range product.Images {
		img := &product.Images[i]
		img.ProductID = product.ID
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO product_images (id, product_id, url, sort_order) VALUES ($1, $2, $3, $4)`,
			img.ID, img.ProductID, img.URL, img.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("failed to insert product image: %w", err)
		}
	}

	for i := range product.Specifications {
		spec := &product.Specifications[i]
		spec.ProductID = product.ID
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO product_specifications (id, product_id, name, value, price_adjust, stock) VALUES ($1, $2, $3, $4, $5, $6)`,
			spec.ID, spec.ProductID, spec.Name, spec.Value, spec.PriceAdjust, spec.Stock,
		)
		if err != nil {
			return fmt.Errorf("failed to insert product specification: %w", err)
		}
	}

	return nil
}

func (r *productRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.ProductStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update product status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID loads a product with its ordered images and specifications,
// regardless of status.
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`

	product := &domain.Product{}
	if err := scanProduct(r.db.QueryRowContext(ctx, query, id), product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	if err := r.loadImages(ctx, []*domain.Product{product}); err != nil {
		return nil, err
	}
	if err := r.loadSpecifications(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// LockByIDs loads the products and takes row locks in id order so that
// concurrent checkouts touching the same products cannot deadlock.
func (r *productRepository) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return []*domain.Product{}, nil
	}

	query := `
		SELECT ` + productColumns + `
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = ANY($1::uuid[])
		ORDER BY p.id
		FOR UPDATE OF p
	`

	rows, err := r.db.QueryContext(ctx, query, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product := &domain.Product{}
		if err := scanProduct(rows, product); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	if err := r.loadImages(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

func (f ProductFilter) where() (string, []any) {
	conditions := []string{}
	args := []any{}

	if !f.IncludeInactive {
		conditions = append(conditions, "p.status = 'ACTIVE'")
	}
	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		conditions = append(conditions, fmt.Sprintf("p.category_id = $%d", len(args)))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(p.title ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// List returns one page of products. Each product carries only its first image.
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*domain.Product, error) {
	whereClause, args := filter.where()

	orderBy, ok := productOrderBy[filter.Sort]
	if !ok {
		orderBy = productOrderBy[SortNewest]
	}

	args = append(args, filter.Page.Limit, filter.Page.Offset)
	query := fmt.Sprintf(`
		SELECT %s,
		       COALESCE((SELECT pi.url FROM product_images pi WHERE pi.product_id = p.id ORDER BY pi.sort_order LIMIT 1), '')
		FROM products p
		JOIN categories c ON c.id = p.category_id
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, productColumns, whereClause, orderBy, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product := &domain.Product{}
		var image string
		if err := scanProduct(rows, product, &image); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		product.Images = []domain.ProductImage{}
		if image != "" {
			product.Images = append(product.Images, domain.ProductImage{ProductID: product.ID, URL: image})
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func (r *productRepository) Count(ctx context.Context, filter ProductFilter) (int, error) {
	whereClause, args := filter.where()

	var total int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM products p %s`, whereClause)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, nil
}

// DecrementStock takes quantity units off stock and adds them to sold. It
// fails with ErrStockConflict rather than letting stock go negative.
func (r *productRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	query := `
		UPDATE products
		SET stock = stock - $2, sold = sold + $2
		WHERE id = $1 AND stock >= $2
	`

	result, err := r.db.ExecContext(ctx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrStockConflict
	}

	return nil
}

// RestoreStock reverses DecrementStock for a cancelled order
func (r *productRepository) RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error {
	query := `
		UPDATE products
		SET stock = stock + $2, sold = GREATEST(sold - $2, 0)
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

func (r *productRepository) loadImages(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Product, len(products))
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		p.Images = []domain.ProductImage{}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, url, sort_order
		FROM product_images
		WHERE product_id = ANY($1::uuid[])
		ORDER BY product_id, sort_order ASC
	`, uuidStrings(ids))
	if err != nil {
		return fmt.Errorf("failed to load product images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img domain.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.URL, &img.SortOrder); err != nil {
			return fmt.Errorf("failed to scan product image: %w", err)
		}
		if p, ok := byID[img.ProductID]; ok {
			p.Images = append(p.Images, img)
		}
	}
	return rows.Err()
}

func (r *productRepository) loadSpecifications(ctx context.Context, product *domain.Product) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, name, value, price_adjust, stock
		FROM product_specifications
		WHERE product_id = $1
		ORDER BY name, value
	`, product.ID)
	if err != nil {
		return fmt.Errorf("failed to load product specifications: %w", err)
	}
	defer rows.Close()

	product.Specifications = []domain.ProductSpecification{}
	for rows.Next() {
		var spec domain.ProductSpecification
		if err := rows.Scan(&spec.ID, &spec.ProductID, &spec.Name, &spec.Value, &spec.PriceAdjust, &spec.Stock); err != nil {
			return fmt.Errorf("failed to scan product specification: %w", err)
		}
		product.Specifications = append(product.Specifications, spec)
	}
	return rows.Err()
}
