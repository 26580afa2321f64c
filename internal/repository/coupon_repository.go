package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"xingqu-shop/internal/database"
	"xingqu-shop/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrUserCouponNotFound = errors.New("user coupon not found")
	ErrCouponNotClaimable = errors.New("user coupon is not unused")
)

// CouponRepository defines the interface for coupon definitions and the
// coupons issued to users
type CouponRepository interface {
	WithTx(tx *sql.Tx) CouponRepository
	Create(ctx context.Context, coupon *domain.Coupon) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error)
	List(ctx context.Context) ([]*domain.Coupon, error)
	Issue(ctx context.Context, userCoupon *domain.UserCoupon) error
	FindUserCoupon(ctx context.Context, id uuid.UUID) (*domain.UserCoupon, error)
	FindUserCouponForUpdate(ctx context.Context, id uuid.UUID) (*domain.UserCoupon, error)
	ListUserCoupons(ctx context.Context, userID uuid.UUID, status *domain.UserCouponStatus) ([]*domain.UserCoupon, error)
	MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error
}

type couponRepository struct {
	db database.DBTX
}

// NewCouponRepository creates a new instance of CouponRepository
func NewCouponRepository(db *sql.DB) CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) WithTx(tx *sql.Tx) CouponRepository {
	if tx == nil {
		return r
	}
	return &couponRepository{db: tx}
}

const couponColumns = `c.id, c.name, c.type, c.discount_value, c.min_amount, c.max_discount, c.created_at`

const userCouponColumns = `uc.id, uc.user_id, uc.coupon_id, uc.status, uc.used_at, uc.created_at, ` + couponColumns

func scanCoupon(row interface{ Scan(...any) error }, coupon *domain.Coupon) error {
	return row.Scan(
		&coupon.ID,
		&coupon.Name,
		&coupon.Type,
		&coupon.DiscountValue,
		&coupon.MinAmount,
		&coupon.MaxDiscount,
		&coupon.CreatedAt,
	)
}

func scanUserCoupon(row interface{ Scan(...any) error }) (*domain.UserCoupon, error) {
	uc := &domain.UserCoupon{Coupon: &domain.Coupon{}}
	var usedAt sql.NullTime
	err := row.Scan(
		&uc.ID,
		&uc.UserID,
		&uc.CouponID,
		&uc.Status,
		&usedAt,
		&uc.CreatedAt,
		&uc.Coupon.ID,
		&uc.Coupon.Name,
		&uc.Coupon.Type,
		&uc.Coupon.DiscountValue,
		&uc.Coupon.MinAmount,
		&uc.Coupon.MaxDiscount,
		&uc.Coupon.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		uc.UsedAt = &usedAt.Time
	}
	return uc, nil
}

func (r *couponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	query := `
		INSERT INTO coupons (id, name, type, discount_value, min_amount, max_discount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		coupon.ID,
		coupon.Name,
		coupon.Type,
		coupon.DiscountValue,
		coupon.MinAmount,
		coupon.MaxDiscount,
		coupon.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

func (r *couponRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons c WHERE c.id = $1`

	coupon := &domain.Coupon{}
	if err := scanCoupon(r.db.QueryRowContext(ctx, query, id), coupon); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to find coupon: %w", err)
	}
	return coupon, nil
}

func (r *couponRepository) List(ctx context.Context) ([]*domain.Coupon, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+couponColumns+` FROM coupons c ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	coupons := []*domain.Coupon{}
	for rows.Next() {
		coupon := &domain.Coupon{}
		if err := scanCoupon(rows, coupon); err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, coupon)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coupons: %w", err)
	}
	return coupons, nil
}

// Issue grants a coupon to a user in the UNUSED state
func (r *couponRepository) Issue(ctx context.Context, userCoupon *domain.UserCoupon) error {
	query := `
		INSERT INTO user_coupons (id, user_id, coupon_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		userCoupon.ID,
		userCoupon.UserID,
		userCoupon.CouponID,
		domain.UserCouponStatusUnused,
		userCoupon.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCouponNotFound
		}
		return fmt.Errorf("failed to issue coupon: %w", err)
	}
	userCoupon.Status = domain.UserCouponStatusUnused
	return nil
}

func (r *couponRepository) FindUserCoupon(ctx context.Context, id uuid.UUID) (*domain.UserCoupon, error) {
	return r.findUserCoupon(ctx, id, "")
}

// FindUserCouponForUpdate loads the issued coupon and locks its row until the
// surrounding transaction ends
func (r *couponRepository) FindUserCouponForUpdate(ctx context.Context, id uuid.UUID) (*domain.UserCoupon, error) {
	return r.findUserCoupon(ctx, id, "FOR UPDATE OF uc")
}

func (r *couponRepository) findUserCoupon(ctx context.Context, id uuid.UUID, lock string) (*domain.UserCoupon, error) {
	query := `
		SELECT ` + userCouponColumns + `
		FROM user_coupons uc
		JOIN coupons c ON c.id = uc.coupon_id
		WHERE uc.id = $1
		` + lock

	uc, err := scanUserCoupon(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserCouponNotFound
		}
		return nil, fmt.Errorf("failed to find user coupon: %w", err)
	}
	return uc, nil
}

func (r *couponRepository) ListUserCoupons(ctx context.Context, userID uuid.UUID, status *domain.UserCouponStatus) ([]*domain.UserCoupon, error) {
	query := `
		SELECT ` + userCouponColumns + `
		FROM user_coupons uc
		JOIN coupons c ON c.id = uc.coupon_id
		WHERE uc.user_id = $1
	`
	args := []any{userID}
	if status != nil {
		args = append(args, *status)
		query += ` AND uc.status = $2`
	}
	query += ` ORDER BY uc.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list user coupons: %w", err)
	}
	defer rows.Close()

	coupons := []*domain.UserCoupon{}
	for rows.Next() {
		uc, err := scanUserCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user coupon: %w", err)
		}
		coupons = append(coupons, uc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user coupons: %w", err)
	}
	return coupons, nil
}

// MarkUsed moves an UNUSED coupon to USED. It returns ErrCouponNotClaimable
// when the coupon was already used, so at most one caller ever succeeds.
func (r *couponRepository) MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	query := `
		UPDATE user_coupons
		SET status = 'USED', used_at = $2
		WHERE id = $1 AND status = 'UNUSED'
	`

	result, err := r.db.ExecContext(ctx, query, id, usedAt)
	if err != nil {
		return fmt.Errorf("failed to mark coupon used: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCouponNotClaimable
	}
	return nil
}
