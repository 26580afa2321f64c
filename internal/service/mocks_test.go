package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"xingqu-shop/internal/domain"
	"xingqu-shop/internal/repository"

	"github.com/google/uuid"
)

// memStore backs every mock repository so that services sharing it see the
// same rows, the way they would share one database.
type memStore struct {
	categories  map[uuid.UUID]*domain.Category
	products    map[uuid.UUID]*domain.Product
	cart        map[uuid.UUID]*domain.CartItem
	coupons     map[uuid.UUID]*domain.Coupon
	userCoupons map[uuid.UUID]*domain.UserCoupon
	orders      map[uuid.UUID]*domain.Order
	addresses   map[uuid.UUID]*domain.Address
	banners     map[uuid.UUID]*domain.Banner
	seq         int64
}

func newMemStore() *memStore {
	return &memStore{
		categories:  make(map[uuid.UUID]*domain.Category),
		products:    make(map[uuid.UUID]*domain.Product),
		cart:        make(map[uuid.UUID]*domain.CartItem),
		coupons:     make(map[uuid.UUID]*domain.Coupon),
		userCoupons: make(map[uuid.UUID]*domain.UserCoupon),
		orders:      make(map[uuid.UUID]*domain.Order),
		addresses:   make(map[uuid.UUID]*domain.Address),
		banners:     make(map[uuid.UUID]*domain.Banner),
	}
}

func copyMap[T any](src map[uuid.UUID]*T) map[uuid.UUID]*T {
	dst := make(map[uuid.UUID]*T, len(src))
	for k, v := range src {
		c := *v
		dst[k] = &c
	}
	return dst
}

func (s *memStore) snapshot() *memStore {
	return &memStore{
		categories:  copyMap(s.categories),
		products:    copyMap(s.products),
		cart:        copyMap(s.cart),
		coupons:     copyMap(s.coupons),
		userCoupons: copyMap(s.userCoupons),
		orders:      copyMap(s.orders),
		addresses:   copyMap(s.addresses),
		banners:     copyMap(s.banners),
		seq:         s.seq,
	}
}

func (s *memStore) restore(from *memStore) {
	*s = *from
}

// fakeTxRunner runs fn without a real transaction and restores the store when
// fn fails
type fakeTxRunner struct {
	store *memStore
	calls int
}

func (r *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	r.calls++
	saved := r.store.snapshot()
	if err := fn(nil); err != nil {
		r.store.restore(saved)
		return err
	}
	return nil
}

// --- products ---

type mockProductRepository struct {
	store *memStore
}

func (m *mockProductRepository) WithTx(tx *sql.Tx) repository.ProductRepository { return m }

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if _, ok := m.store.categories[product.CategoryID]; !ok && len(m.store.categories) > 0 {
		return repository.ErrProductCategory
	}
	c := *product
	m.store.products[product.ID] = &c
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, ok := m.store.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	c := *product
	m.store.products[product.ID] = &c
	return nil
}

func (m *mockProductRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.ProductStatus) error {
	p, ok := m.store.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Status = status
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := m.store.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

func (m *mockProductRepository) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, id := range ids {
		if p, ok := m.store.products[id]; ok {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockProductRepository) filtered(filter repository.ProductFilter) []*domain.Product {
	var out []*domain.Product
	for _, p := range m.store.products {
		if !filter.IncludeInactive && !p.IsActive() {
			continue
		}
		if filter.CategoryID != nil && p.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Search)) {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, error) {
	all := m.filtered(filter)
	start := filter.Page.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.Page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m *mockProductRepository) Count(ctx context.Context, filter repository.ProductFilter) (int, error) {
	return len(m.filtered(filter)), nil
}

func (m *mockProductRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	p, ok := m.store.products[id]
	if !ok || p.Stock < quantity {
		return repository.ErrStockConflict
	}
	p.Stock -= quantity
	p.Sold += quantity
	return nil
}

func (m *mockProductRepository) RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error {
	p, ok := m.store.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock += quantity
	p.Sold -= quantity
	return nil
}

// --- cart ---

type mockCartRepository struct {
	store *memStore
}

func (m *mockCartRepository) WithTx(tx *sql.Tx) repository.CartRepository { return m }

func (m *mockCartRepository) line(userID, productID uuid.UUID, specs string) *domain.CartItem {
	for _, item := range m.store.cart {
		if item.UserID == userID && item.ProductID == productID && item.Specs == specs {
			return item
		}
	}
	return nil
}

func (m *mockCartRepository) Upsert(ctx context.Context, item *domain.CartItem) (*domain.CartItem, error) {
	p, ok := m.store.products[item.ProductID]
	if !ok {
		return nil, repository.ErrCartQuantityExceedsStock
	}
	if existing := m.line(item.UserID, item.ProductID, item.Specs); existing != nil {
		if existing.Quantity+item.Quantity > p.Stock {
			return nil, repository.ErrCartQuantityExceedsStock
		}
		existing.Quantity += item.Quantity
		c := *existing
		return &c, nil
	}
	if item.Quantity > p.Stock {
		return nil, repository.ErrCartQuantityExceedsStock
	}
	c := *item
	m.store.cart[item.ID] = &c
	out := c
	return &out, nil
}

func (m *mockCartRepository) FindLine(ctx context.Context, userID, productID uuid.UUID, specs string) (*domain.CartItem, error) {
	if item := m.line(userID, productID, specs); item != nil {
		c := *item
		return &c, nil
	}
	return nil, repository.ErrCartItemNotFound
}

func (m *mockCartRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.CartItem, error) {
	item, ok := m.store.cart[id]
	if !ok || item.UserID != userID {
		return nil, repository.ErrCartItemNotFound
	}
	c := *item
	return &c, nil
}

func (m *mockCartRepository) FindByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]*domain.CartItem, error) {
	var out []*domain.CartItem
	for _, id := range ids {
		if item, ok := m.store.cart[id]; ok && item.UserID == userID {
			c := *item
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockCartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error) {
	var out []*domain.CartItem
	for _, item := range m.store.cart {
		if item.UserID != userID {
			continue
		}
		c := *item
		if p, ok := m.store.products[item.ProductID]; ok {
			pc := *p
			c.Product = &pc
		}
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockCartRepository) UpdateQuantity(ctx context.Context, userID, id uuid.UUID, quantity int) (*domain.CartItem, error) {
	item, ok := m.store.cart[id]
	if !ok || item.UserID != userID {
		return nil, repository.ErrCartItemNotFound
	}
	p := m.store.products[item.ProductID]
	if p == nil || !p.IsActive() {
		return nil, repository.ErrCartProductUnavailable
	}
	if quantity > p.Stock {
		return nil, repository.ErrCartQuantityExceedsStock
	}
	item.Quantity = quantity
	c := *item
	return &c, nil
}

func (m *mockCartRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	item, ok := m.store.cart[id]
	if !ok || item.UserID != userID {
		return repository.ErrCartItemNotFound
	}
	delete(m.store.cart, id)
	return nil
}

func (m *mockCartRepository) DeleteByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int, error) {
	n := 0
	for _, id := range ids {
		if item, ok := m.store.cart[id]; ok && item.UserID == userID {
			delete(m.store.cart, id)
			n++
		}
	}
	return n, nil
}

func (m *mockCartRepository) Clear(ctx context.Context, userID uuid.UUID) (int, error) {
	n := 0
	for id, item := range m.store.cart {
		if item.UserID == userID {
			delete(m.store.cart, id)
			n++
		}
	}
	return n, nil
}

// --- coupons ---

type mockCouponRepository struct {
	store *memStore
}

func (m *mockCouponRepository) WithTx(tx *sql.Tx) repository.CouponRepository { return m }

func (m *mockCouponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	c := *coupon
	m.store.coupons[coupon.ID] = &c
	return nil
}

func (m *mockCouponRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	c, ok := m.store.coupons[id]
	if !ok {
		return nil, repository.ErrCouponNotFound
	}
	out := *c
	return &out, nil
}

func (m *mockCouponRepository) List(ctx context.Context) ([]*domain.Coupon, error) {
	var out []*domain.Coupon
	for _, c := range m.store.coupons {
		cc := *c
		out = append(out, &cc)
	}
	return out, nil
}

func (m *mockCouponRepository) Issue(ctx context.Context, uc *domain.UserCoupon) error {
	if _, ok := m.store.coupons[uc.CouponID]; !ok {
		return repository.ErrCouponNotFound
	}
	c := *uc
	m.store.userCoupons[uc.ID] = &c
	return nil
}

func (m *mockCouponRepository) FindUserCoupon(ctx context.Context, id uuid.UUID) (*domain.UserCoupon, error) {
	uc, ok := m.store.userCoupons[id]
	if !ok {
		return nil, repository.ErrUserCouponNotFound
	}
	out := *uc
	if c, ok := m.store.coupons[uc.CouponID]; ok {
		cc := *c
		out.Coupon = &cc
	}
	return &out, nil
}

func (m *mockCouponRepository) FindUserCouponForUpdate(ctx context.Context, id uuid.UUID) (*domain.UserCoupon, error) {
	return m.FindUserCoupon(ctx, id)
}

func (m *mockCouponRepository) ListUserCoupons(ctx context.Context, userID uuid.UUID, status *domain.UserCouponStatus) ([]*domain.UserCoupon, error) {
	var out []*domain.UserCoupon
	for _, uc := range m.store.userCoupons {
		if uc.UserID != userID || (status != nil && uc.Status != *status) {
			continue
		}
		found, _ := m.FindUserCoupon(ctx, uc.ID)
		out = append(out, found)
	}
	return out, nil
}

func (m *mockCouponRepository) MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	uc, ok := m.store.userCoupons[id]
	if !ok || uc.Status != domain.UserCouponStatusUnused {
		return repository.ErrCouponNotClaimable
	}
	uc.Status = domain.UserCouponStatusUsed
	uc.UsedAt = &usedAt
	return nil
}

// --- orders ---

type mockOrderRepository struct {
	store *memStore
}

func (m *mockOrderRepository) WithTx(tx *sql.Tx) repository.OrderRepository { return m }

func (m *mockOrderRepository) NextSequence(ctx context.Context) (int64, error) {
	m.store.seq++
	return m.store.seq, nil
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order.UserCouponID != nil {
		for _, o := range m.store.orders {
			if o.UserCouponID != nil && *o.UserCouponID == *order.UserCouponID {
				return repository.ErrOrderCouponReused
			}
		}
	}
	c := *order
	c.Items = append([]domain.OrderItem(nil), order.Items...)
	m.store.orders[order.ID] = &c
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := m.store.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	c := *o
	return &c, nil
}

func (m *mockOrderRepository) filtered(filter repository.OrderFilter) []*domain.Order {
	var out []*domain.Order
	for _, o := range m.store.orders {
		if filter.UserID != nil && o.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		c := *o
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNo > out[j].OrderNo })
	return out
}

func (m *mockOrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
	all := m.filtered(filter)
	start := filter.Page.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.Page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m *mockOrderRepository) Count(ctx context.Context, filter repository.OrderFilter) (int, error) {
	return len(m.filtered(filter)), nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	o, ok := m.store.orders[id]
	if !ok || o.Status != from {
		return repository.ErrOrderStatusConflict
	}
	o.Status = to
	return nil
}

// --- addresses ---

type mockAddressRepository struct {
	store *memStore
}

func (m *mockAddressRepository) WithTx(tx *sql.Tx) repository.AddressRepository { return m }

func (m *mockAddressRepository) Create(ctx context.Context, address *domain.Address) error {
	if address.IsDefault {
		for _, a := range m.store.addresses {
			if a.UserID == address.UserID {
				a.IsDefault = false
			}
		}
	}
	c := *address
	m.store.addresses[address.ID] = &c
	return nil
}

func (m *mockAddressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	var out []*domain.Address
	for _, a := range m.store.addresses {
		if a.UserID == userID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockAddressRepository) FindForUser(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	a, ok := m.store.addresses[id]
	if !ok || a.UserID != userID {
		return nil, repository.ErrAddressNotFound
	}
	c := *a
	return &c, nil
}

// --- categories ---

type mockCategoryRepository struct {
	store *memStore
}

func (m *mockCategoryRepository) WithTx(tx *sql.Tx) repository.CategoryRepository { return m }

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	for _, c := range m.store.categories {
		if c.Slug == category.Slug {
			return repository.ErrCategorySlugExists
		}
	}
	c := *category
	m.store.categories[category.ID] = &c
	return nil
}

func (m *mockCategoryRepository) Update(ctx context.Context, category *domain.Category) error {
	if _, ok := m.store.categories[category.ID]; !ok {
		return repository.ErrCategoryNotFound
	}
	for _, c := range m.store.categories {
		if c.Slug == category.Slug && c.ID != category.ID {
			return repository.ErrCategorySlugExists
		}
	}
	c := *category
	m.store.categories[category.ID] = &c
	return nil
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.store.categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	delete(m.store.categories, id)
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	var out []*domain.Category
	for _, c := range m.store.categories {
		cc := *c
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	c, ok := m.store.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	cc := *c
	return &cc, nil
}

func (m *mockCategoryRepository) FindBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	for _, c := range m.store.categories {
		if c.Slug == slug {
			cc := *c
			return &cc, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

func (m *mockCategoryRepository) CountProducts(ctx context.Context, id uuid.UUID) (int, error) {
	n := 0
	for _, p := range m.store.products {
		if p.CategoryID == id {
			n++
		}
	}
	return n, nil
}
