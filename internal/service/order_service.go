package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"xingqu-shop/internal/apperror"
	"xingqu-shop/internal/database"
	"xingqu-shop/internal/domain"
	"xingqu-shop/internal/events"
	"xingqu-shop/internal/metrics"
	"xingqu-shop/internal/pricing"
	"xingqu-shop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OrderLineInput is one directly purchased product
type OrderLineInput struct {
	ProductID uuid.UUID
	Quantity  int
	Specs     map[string]string
}

// CreateOrderInput selects what to buy: either existing cart lines or direct
// lines, never both.
type CreateOrderInput struct {
	AddressID    uuid.UUID
	CartItemIDs  []uuid.UUID
	Items        []OrderLineInput
	UserCouponID *uuid.UUID
}

// OrderQuery selects a page of orders
type OrderQuery struct {
	Status *domain.OrderStatus
	Page   int
	Limit  int
}

// OrderPage is a page of orders
type OrderPage struct {
	Data       []*domain.Order `json:"data"`
	Pagination Pagination      `json:"pagination"`
}

// OrderService defines the interface for order business logic
type OrderService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*domain.Order, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.Order, error)
	GetAny(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, query OrderQuery) (*OrderPage, error)
	ListAll(ctx context.Context, query OrderQuery) (*OrderPage, error)
	Cancel(ctx context.Context, userID, id uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	cartRepo    repository.CartRepository
	couponRepo  repository.CouponRepository
	addressRepo repository.AddressRepository
	tx          database.TxRunner
	publisher   events.Publisher
	metrics     *metrics.Shop
	logger      *zap.Logger
	now         func() time.Time
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	cartRepo repository.CartRepository,
	couponRepo repository.CouponRepository,
	addressRepo repository.AddressRepository,
	tx database.TxRunner,
	publisher events.Publisher,
	m *metrics.Shop,
	logger *zap.Logger,
) OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		cartRepo:    cartRepo,
		couponRepo:  couponRepo,
		addressRepo: addressRepo,
		tx:          tx,
		publisher:   publisher,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// orderLine is a resolved purchase line before snapshotting
type orderLine struct {
	productID  uuid.UUID
	quantity   int
	specs      string
	cartItemID *uuid.UUID
}

// CreateOrder assembles and persists an order in a single transaction:
// resolve lines against live products, price them, apply the coupon, insert
// the order with item snapshots, claim the coupon, decrement stock and drop
// the consumed cart lines. Any failure rolls every step back.
func (s *orderService) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*domain.Order, error) {
	if err := validateOrderInput(input); err != nil {
		s.metrics.OrderFailed("validation")
		return nil, err
	}

	var (
		order      *domain.Order
		couponType domain.CouponType
	)
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		addressRepo := s.addressRepo.WithTx(tx)
		cartRepo := s.cartRepo.WithTx(tx)
		productRepo := s.productRepo.WithTx(tx)
		couponRepo := s.couponRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		// Address must belong to the caller
		if _, err := addressRepo.FindForUser(ctx, userID, input.AddressID); err != nil {
			if errors.Is(err, repository.ErrAddressNotFound) {
				return notFound(ErrAddressNotFound, "address not found")
			}
			return internal(err, "failed to load address")
		}

		lines, err := s.resolveLines(ctx, cartRepo, userID, input)
		if err != nil {
			return err
		}

		// Lock every product in id order
		requested := map[uuid.UUID]int{}
		for _, line := range lines {
			requested[line.productID] += line.quantity
		}
		productIDs := make([]uuid.UUID, 0, len(requested))
		for id := range requested {
			productIDs = append(productIDs, id)
		}
		sortUUIDs(productIDs)

		locked, err := productRepo.LockByIDs(ctx, productIDs)
		if err != nil {
			return internal(err, "failed to load products")
		}
		products := make(map[uuid.UUID]*domain.Product, len(locked))
		for _, p := range locked {
			products[p.ID] = p
		}
		for _, id := range productIDs {
			p, ok := products[id]
			if !ok || !p.IsActive() {
				return notFound(ErrProductNotFound, "product not found").
					WithDetails(map[string]interface{}{"product_id": id})
			}
			if p.Stock < requested[id] {
				return stateConflict(ErrInsufficientStock, "insufficient stock").
					WithDetails(map[string]interface{}{
						"product_id": id,
						"title":      p.Title,
						"stock":      p.Stock,
						"requested":  requested[id],
					})
			}
		}

		// Snapshot lines at current prices
		now := s.now()
		order = &domain.Order{
			ID:             uuid.New(),
			UserID:         userID,
			AddressID:      input.AddressID,
			Status:         domain.OrderStatusPending,
			TotalAmount:    decimal.Zero,
			DiscountAmount: decimal.Zero,
			Items:          make([]domain.OrderItem, 0, len(lines)),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		for _, line := range lines {
			p := products[line.productID]
			item := domain.OrderItem{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: p.ID,
				Title:     p.Title,
				Image:     p.PrimaryImage(),
				Price:     p.Price,
				Quantity:  line.quantity,
				Specs:     line.specs,
			}
			order.Items = append(order.Items, item)
			order.TotalAmount = order.TotalAmount.Add(item.Subtotal())
		}

		// Apply coupon
		if input.UserCouponID != nil {
			discount, claimed, ctype, err := s.applyCoupon(ctx, couponRepo, userID, *input.UserCouponID, order.TotalAmount, now)
			if err != nil {
				return err
			}
			order.DiscountAmount = discount
			if claimed {
				order.UserCouponID = input.UserCouponID
				couponType = ctype
			}
		}
		order.FinalAmount = pricing.FinalAmount(order.TotalAmount, order.DiscountAmount)

		// Generate order number
		seq, err := orderRepo.NextSequence(ctx)
		if err != nil {
			return internal(err, "failed to generate order number")
		}
		order.OrderNo = domain.FormatOrderNo(now, seq)

		if err := orderRepo.Create(ctx, order); err != nil {
			if errors.Is(err, repository.ErrOrderCouponReused) {
				return stateConflict(ErrCouponAlreadyUsed, "coupon already used")
			}
			return internal(err, "failed to create order")
		}

		// Decrement stock
		for _, id := range productIDs {
			if err := productRepo.DecrementStock(ctx, id, requested[id]); err != nil {
				if errors.Is(err, repository.ErrStockConflict) {
					return stateConflict(ErrInsufficientStock, "insufficient stock").
						WithDetails(map[string]interface{}{"product_id": id, "requested": requested[id]})
				}
				return internal(err, "failed to decrement stock")
			}
		}

		// Drop the consumed cart lines
		cartItemIDs := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			if line.cartItemID != nil {
				cartItemIDs = append(cartItemIDs, *line.cartItemID)
			}
		}
		if _, err := cartRepo.DeleteByIDs(ctx, userID, cartItemIDs); err != nil {
			return internal(err, "failed to clear ordered cart items")
		}
		return nil
	})
	if err != nil {
		s.metrics.OrderFailed(failureReason(err))
		if apperror.CodeOf(err) == apperror.CodeInternal {
			s.logger.Error("Order creation failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
		return nil, err
	}

	s.metrics.OrderCreated(order.FinalAmount)
	if order.UserCouponID != nil {
		s.metrics.CouponRedeemed(string(couponType))
	}
	if err := s.publisher.Publish(ctx, events.OrderCreated, events.NewOrderCreated(order)); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("order_no", order.OrderNo),
			zap.Error(err),
		)
	}

	return order, nil
}

func validateOrderInput(input CreateOrderInput) error {
	if input.AddressID == uuid.Nil {
		return invalid(ErrInvalidInput, "address_id is required")
	}
	if len(input.CartItemIDs) > 0 && len(input.Items) > 0 {
		return invalid(ErrInvalidInput, "provide either cart_item_ids or items, not both")
	}
	if len(input.CartItemIDs) == 0 && len(input.Items) == 0 {
		return invalid(ErrEmptyOrder, "order has no items")
	}
	for i, item := range input.Items {
		if item.Quantity < 1 {
			return invalid(ErrInvalidQuantity, "quantity must be at least 1").
				WithDetails(map[string]interface{}{"index": i})
		}
	}
	return nil
}

// resolveLines turns the input into purchase lines, loading cart lines when
// the order is a cart checkout
func (s *orderService) resolveLines(ctx context.Context, cartRepo repository.CartRepository, userID uuid.UUID, input CreateOrderInput) ([]orderLine, error) {
	if len(input.CartItemIDs) == 0 {
		lines := make([]orderLine, 0, len(input.Items))
		for _, item := range input.Items {
			specs, err := domain.SerializeSpecs(item.Specs)
			if err != nil {
				return nil, invalid(ErrInvalidInput, "invalid specs")
			}
			lines = append(lines, orderLine{productID: item.ProductID, quantity: item.Quantity, specs: specs})
		}
		return lines, nil
	}

	unique := map[uuid.UUID]struct{}{}
	ids := make([]uuid.UUID, 0, len(input.CartItemIDs))
	for _, id := range input.CartItemIDs {
		if _, seen := unique[id]; !seen {
			unique[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	items, err := cartRepo.FindByIDs(ctx, userID, ids)
	if err != nil {
		return nil, internal(err, "failed to load cart items")
	}
	if len(items) != len(ids) {
		found := map[uuid.UUID]struct{}{}
		for _, item := range items {
			found[item.ID] = struct{}{}
		}
		missing := []uuid.UUID{}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, notFound(ErrCartItemNotFound, "cart item not found").
			WithDetails(map[string]interface{}{"cart_item_ids": missing})
	}

	lines := make([]orderLine, 0, len(items))
	for _, item := range items {
		id := item.ID
		lines = append(lines, orderLine{productID: item.ProductID, quantity: item.Quantity, specs: item.Specs, cartItemID: &id})
	}
	return lines, nil
}

// applyCoupon locks the user coupon, prices it against total and claims it.
// A coupon whose minimum amount is not met grants nothing and stays unused.
func (s *orderService) applyCoupon(
	ctx context.Context,
	couponRepo repository.CouponRepository,
	userID, userCouponID uuid.UUID,
	total decimal.Decimal,
	now time.Time,
) (decimal.Decimal, bool, domain.CouponType, error) {
	uc, err := couponRepo.FindUserCouponForUpdate(ctx, userCouponID)
	if err != nil {
		if errors.Is(err, repository.ErrUserCouponNotFound) {
			return decimal.Zero, false, "", notFound(ErrCouponNotFound, "coupon not found")
		}
		return decimal.Zero, false, "", internal(err, "failed to load coupon")
	}
	if uc.UserID != userID {
		return decimal.Zero, false, "", notFound(ErrCouponNotFound, "coupon not found")
	}
	if uc.Status != domain.UserCouponStatusUnused {
		return decimal.Zero, false, "", stateConflict(ErrCouponAlreadyUsed, "coupon already used")
	}

	discount, err := pricing.ComputeDiscount(total, uc.Coupon)
	if err != nil {
		return decimal.Zero, false, "", invalid(ErrInvalidCoupon, "coupon cannot be applied")
	}
	if total.LessThan(uc.Coupon.MinAmount) {
		return decimal.Zero, false, "", nil
	}

	if err := couponRepo.MarkUsed(ctx, uc.ID, now); err != nil {
		if errors.Is(err, repository.ErrCouponNotClaimable) {
			return decimal.Zero, false, "", stateConflict(ErrCouponAlreadyUsed, "coupon already used")
		}
		return decimal.Zero, false, "", internal(err, "failed to claim coupon")
	}
	return discount, true, uc.Coupon.Type, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrCouponAlreadyUsed):
		return "coupon_already_used"
	case errors.Is(err, ErrCouponNotFound), errors.Is(err, ErrInvalidCoupon):
		return "coupon_invalid"
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrCartItemNotFound), errors.Is(err, ErrAddressNotFound):
		return "not_found"
	case apperror.CodeOf(err) == apperror.CodeValidation:
		return "validation"
	default:
		return "internal"
	}
}

func sortUUIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}

func (s *orderService) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Order, error) {
	order, err := s.GetAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, notFound(ErrOrderNotFound, "order not found")
	}
	return order, nil
}

func (s *orderService) GetAny(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, notFound(ErrOrderNotFound, "order not found")
		}
		return nil, internal(err, "failed to load order")
	}
	return order, nil
}

func (s *orderService) ListForUser(ctx context.Context, userID uuid.UUID, query OrderQuery) (*OrderPage, error) {
	return s.list(ctx, &userID, query)
}

func (s *orderService) ListAll(ctx context.Context, query OrderQuery) (*OrderPage, error) {
	return s.list(ctx, nil, query)
}

func (s *orderService) list(ctx context.Context, userID *uuid.UUID, query OrderQuery) (*OrderPage, error) {
	if query.Status != nil && !query.Status.Valid() {
		return nil, invalid(ErrInvalidInput, "unknown order status")
	}

	page, limit := normalizePage(query.Page, query.Limit)
	filter := repository.OrderFilter{UserID: userID, Status: query.Status, Page: pageWindow(page, limit)}

	var (
		orders []*domain.Order
		total  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.orderRepo.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.orderRepo.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internal(err, "failed to list orders")
	}

	return &OrderPage{Data: orders, Pagination: newPagination(page, limit, total)}, nil
}

// Cancel lets a user cancel their own order while it is still PENDING
func (s *orderService) Cancel(ctx context.Context, userID, id uuid.UUID) (*domain.Order, error) {
	order, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		return nil, stateConflict(ErrInvalidStatusTransition, "only pending orders can be cancelled").
			WithDetails(map[string]interface{}{"status": order.Status})
	}
	return s.transition(ctx, order, domain.OrderStatusCancelled)
}

// UpdateStatus moves any order along an allowed transition
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, invalid(ErrInvalidInput, "unknown order status")
	}
	order, err := s.GetAny(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, status)
}

// transition applies the status change. Cancelling returns the ordered
// quantities to stock; a consumed coupon stays USED.
func (s *orderService) transition(ctx context.Context, order *domain.Order, to domain.OrderStatus) (*domain.Order, error) {
	from := order.Status
	if !from.CanTransitionTo(to) {
		return nil, stateConflict(ErrInvalidStatusTransition, "order status transition not allowed").
			WithDetails(map[string]interface{}{"from": from, "to": to})
	}

	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.orderRepo.WithTx(tx).UpdateStatus(ctx, order.ID, from, to); err != nil {
			if errors.Is(err, repository.ErrOrderStatusConflict) {
				return stateConflict(ErrInvalidStatusTransition, "order status changed concurrently")
			}
			return internal(err, "failed to update order status")
		}
		if to != domain.OrderStatusCancelled {
			return nil
		}

		restock := map[uuid.UUID]int{}
		for _, item := range order.Items {
			restock[item.ProductID] += item.Quantity
		}
		ids := make([]uuid.UUID, 0, len(restock))
		for id := range restock {
			ids = append(ids, id)
		}
		sortUUIDs(ids)

		productRepo := s.productRepo.WithTx(tx)
		for _, id := range ids {
			if err := productRepo.RestoreStock(ctx, id, restock[id]); err != nil {
				return internal(err, "failed to restore stock")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Status = to
	order.UpdatedAt = s.now()
	evt := events.OrderStatusChangedEvent{OrderID: order.ID, OrderNo: order.OrderNo, From: from, To: to}
	if err := s.publisher.Publish(ctx, events.OrderStatusChanged, evt); err != nil {
		s.logger.Warn("Failed to publish order status event", zap.String("order_no", order.OrderNo), zap.Error(err))
	}
	return order, nil
}
