package service

import (
	"context"
	"errors"
	"time"

	"xingqu-shop/internal/domain"
	"xingqu-shop/internal/metrics"
	"xingqu-shop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is a user's cart lines with their running totals
type Cart struct {
	Items         []*domain.CartItem `json:"items"`
	TotalQuantity int                `json:"total_quantity"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
}

// CartService defines the interface for cart business logic
type CartService interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int, specs map[string]string) (*domain.CartItem, error)
	Get(ctx context.Context, userID uuid.UUID) (*Cart, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) (int, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	metrics     *metrics.Shop
}

// NewCartService creates a new instance of CartService
func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, m *metrics.Shop) CartService {
	return &cartService{cartRepo: cartRepo, productRepo: productRepo, metrics: m}
}

// AddItem merges quantity into the user's line for (product, specs). The
// resulting line quantity never exceeds stock; a request that would exceed it
// is rejected and leaves the existing line untouched.
func (s *cartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int, specs map[string]string) (*domain.CartItem, error) {
	if quantity < 1 {
		return nil, invalid(ErrInvalidQuantity, "quantity must be at least 1")
	}

	serialized, err := domain.SerializeSpecs(specs)
	if err != nil {
		return nil, invalid(ErrInvalidInput, "invalid specs")
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, notFound(ErrProductNotFound, "product not found")
		}
		return nil, internal(err, "failed to load product")
	}
	if !product.IsActive() {
		return nil, notFound(ErrProductNotFound, "product not found")
	}

	inCart := 0
	existing, err := s.cartRepo.FindLine(ctx, userID, productID, serialized)
	switch {
	case err == nil:
		inCart = existing.Quantity
	case errors.Is(err, repository.ErrCartItemNotFound):
	default:
		return nil, internal(err, "failed to load cart line")
	}

	if inCart+quantity > product.Stock {
		s.metrics.CartStockRejected()
		return nil, insufficientStock(product, inCart, quantity)
	}

	item, err := s.cartRepo.Upsert(ctx, &domain.CartItem{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		Specs:     serialized,
		CreatedAt: time.Now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrCartQuantityExceedsStock) {
			// stock or the line moved between the check and the write
			s.metrics.CartStockRejected()
			return nil, insufficientStock(product, inCart, quantity)
		}
		return nil, internal(err, "failed to add cart item")
	}

	item.Product = product
	return item, nil
}

func insufficientStock(product *domain.Product, inCart, requested int) error {
	maxAddable := product.Stock - inCart
	if maxAddable < 0 {
		maxAddable = 0
	}
	return stateConflict(ErrInsufficientStock, "insufficient stock").WithDetails(map[string]interface{}{
		"product_id":  product.ID,
		"stock":       product.Stock,
		"in_cart":     inCart,
		"requested":   requested,
		"max_addable": maxAddable,
	})
}

func (s *cartService) Get(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	items, err := s.cartRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, internal(err, "failed to list cart")
	}

	cart := &Cart{Items: items, TotalAmount: decimal.Zero}
	for _, item := range items {
		cart.TotalQuantity += item.Quantity
		if item.Product != nil {
			cart.TotalAmount = cart.TotalAmount.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return cart, nil
}

// UpdateQuantity sets a line's absolute quantity within [1, stock]
func (s *cartService) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.CartItem, error) {
	if quantity < 1 {
		return nil, invalid(ErrInvalidQuantity, "quantity must be at least 1")
	}

	item, err := s.cartRepo.UpdateQuantity(ctx, userID, itemID, quantity)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCartItemNotFound):
			return nil, notFound(ErrCartItemNotFound, "cart item not found")
		case errors.Is(err, repository.ErrCartProductUnavailable):
			return nil, notFound(ErrProductNotFound, "product not found")
		case errors.Is(err, repository.ErrCartQuantityExceedsStock):
			s.metrics.CartStockRejected()
			return nil, stateConflict(ErrInsufficientStock, "insufficient stock").
				WithDetails(map[string]interface{}{"requested": quantity})
		default:
			return nil, internal(err, "failed to update cart item")
		}
	}
	return item, nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	if err := s.cartRepo.Delete(ctx, userID, itemID); err != nil {
		if errors.Is(err, repository.ErrCartItemNotFound) {
			return notFound(ErrCartItemNotFound, "cart item not found")
		}
		return internal(err, "failed to remove cart item")
	}
	return nil
}

func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.cartRepo.Clear(ctx, userID)
	if err != nil {
		return 0, internal(err, "failed to clear cart")
	}
	return n, nil
}
