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
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderStatusConflict = errors.New("order status changed concurrently")
	ErrOrderCouponReused   = errors.New("coupon already attached to an order")
)

// OrderFilter narrows an order listing. A nil UserID lists every user's orders.
type OrderFilter struct {
	UserID *uuid.UUID
	Status *domain.OrderStatus
	Page   Page
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	WithTx(tx *sql.Tx) OrderRepository
	NextSequence(ctx context.Context) (int64, error)
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*domain.Order, error)
	Count(ctx context.Context, filter OrderFilter) (int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
}

type orderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx *sql.Tx) OrderRepository {
	if tx == nil {
		return r
	}
	return &orderRepository{db: tx}
}

const orderColumns = `
	o.id, o.order_no, o.user_id, o.address_id, o.status, o.total_amount,
	o.discount_amount, o.final_amount, o.user_coupon_id, o.created_at, o.updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	order := &domain.Order{}
	var userCouponID uuid.NullUUID
	err := row.Scan(
		&order.ID,
		&order.OrderNo,
		&order.UserID,
		&order.AddressID,
		&order.Status,
		&order.TotalAmount,
		&order.DiscountAmount,
		&order.FinalAmount,
		&userCouponID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userCouponID.Valid {
		order.UserCouponID = &userCouponID.UUID
	}
	order.Items = []domain.OrderItem{}
	return order, nil
}

// NextSequence draws the next value of the order number sequence
func (r *orderRepository) NextSequence(ctx context.Context) (int64, error) {
	var seq int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('order_no_seq')`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to draw order sequence: %w", err)
	}
	return seq, nil
}

// Create inserts the order and its item snapshots. Callers run it inside a
// transaction.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, order_no, user_id, address_id, status, total_amount,
		                    discount_amount, final_amount, user_coupon_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var userCouponID uuid.NullUUID
	if order.UserCouponID != nil {
		userCouponID = uuid.NullUUID{UUID: *order.UserCouponID, Valid: true}
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.OrderNo,
		order.UserID,
		order.AddressID,
		order.Status,
		order.TotalAmount,
		order.DiscountAmount,
		order.FinalAmount,
		userCouponID,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "uq_orders_user_coupon") {
			return ErrOrderCouponReused
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, line_no, product_id, title, image, price, quantity, specs)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, item.ID, item.OrderID, i+1, item.ProductID, item.Title, item.Image, item.Price, item.Quantity, item.Specs)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return nil
}

// FindByID loads an order with its items and shipping address
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `,
		       a.id, a.user_id, a.receiver_name, a.phone, a.province, a.city, a.district, a.detail, a.is_default, a.created_at
		FROM orders o
		JOIN addresses a ON a.id = o.address_id
		WHERE o.id = $1
	`

	address := &domain.Address{}
	order, err := scanOrder(rowWithTail{
		row: r.db.QueryRowContext(ctx, query, id),
		tail: []any{
			&address.ID, &address.UserID, &address.ReceiverName, &address.Phone, &address.Province,
			&address.City, &address.District, &address.Detail, &address.IsDefault, &address.CreatedAt,
		},
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	order.Address = address

	if err := r.loadItems(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// rowWithTail appends extra scan destinations after the order columns
type rowWithTail struct {
	row  interface{ Scan(...any) error }
	tail []any
}

func (r rowWithTail) Scan(dest ...any) error {
	return r.row.Scan(append(dest, r.tail...)...)
}

func (f OrderFilter) where() (string, []any) {
	conditions := []string{}
	args := []any{}

	if f.UserID != nil {
		args = append(args, *f.UserID)
		conditions = append(conditions, fmt.Sprintf("o.user_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// List returns one page of orders newest first, items included
func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]*domain.Order, error) {
	whereClause, args := filter.where()
	args = append(args, filter.Page.Limit, filter.Page.Offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM orders o
		%s
		ORDER BY o.created_at DESC, o.order_no DESC
		LIMIT $%d OFFSET $%d
	`, orderColumns, whereClause, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) Count(ctx context.Context, filter OrderFilter) (int, error) {
	whereClause, args := filter.where()

	var total int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM orders o %s`, whereClause)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return total, nil
}

// UpdateStatus moves an order from one status to another. It fails with
// ErrOrderStatusConflict when the order is no longer in from.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrderStatusConflict
	}
	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, title, image, price, quantity, specs
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, line_no
	`, uuidStrings(ids))
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Title, &item.Image, &item.Price, &item.Quantity, &item.Specs)
		if err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}
