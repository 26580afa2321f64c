package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"xingqu-shop/internal/database"
	"xingqu-shop/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Feature: storefront, Property 40: A coupon is claimed by at most one transaction
func TestMarkUsedConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(testDB)
	userID := uuid.New()
	userCoupon := seedUserCoupon(t, userID)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := database.NewFromDB(testDB).WithTx(ctx, func(tx *sql.Tx) error {
				txRepo := repo.WithTx(tx)
				uc, err := txRepo.FindUserCouponForUpdate(ctx, userCoupon.ID)
				if err != nil {
					return err
				}
				if uc.Status != domain.UserCouponStatusUnused {
					return ErrCouponNotClaimable
				}
				return txRepo.MarkUsed(ctx, uc.ID, time.Now())
			})
			if err == nil {
				mu.Lock()
				claimed++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrCouponNotClaimable) {
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if claimed != 1 {
		t.Errorf("Expected exactly one successful claim, got %d", claimed)
	}

	uc, err := repo.FindUserCoupon(ctx, userCoupon.ID)
	if err != nil {
		t.Fatalf("Failed to load user coupon: %v", err)
	}
	if uc.Status != domain.UserCouponStatusUsed || uc.UsedAt == nil {
		t.Errorf("Expected USED with used_at, got %s", uc.Status)
	}
}

func TestOrderCreateAndFind(t *testing.T) {
	ctx := context.Background()
	orderRepo := NewOrderRepository(testDB)
	userID := uuid.New()
	address := seedAddress(t, userID)
	product := seedProduct(t, "100.00", 10)
	userCoupon := seedUserCoupon(t, userID)

	first, err := orderRepo.NextSequence(ctx)
	if err != nil {
		t.Fatalf("Failed to draw sequence: %v", err)
	}
	second, err := orderRepo.NextSequence(ctx)
	if err != nil || second <= first {
		t.Fatalf("Sequence must be increasing, got %d then %d (%v)", first, second, err)
	}

	now := time.Now()
	order := &domain.Order{
		ID:             uuid.New(),
		OrderNo:        domain.FormatOrderNo(now, second),
		UserID:         userID,
		AddressID:      address.ID,
		Status:         domain.OrderStatusPending,
		TotalAmount:    decimal.RequireFromString("200.00"),
		DiscountAmount: decimal.RequireFromString("10.00"),
		FinalAmount:    decimal.RequireFromString("190.00"),
		UserCouponID:   &userCoupon.ID,
		Items: []domain.OrderItem{{
			ID:        uuid.New(),
			ProductID: product.ID,
			Title:     product.Title,
			Image:     product.PrimaryImage(),
			Price:     product.Price,
			Quantity:  2,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := orderRepo.Create(ctx, order); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}

	reused := *order
	reused.ID = uuid.New()
	reused.OrderNo = domain.FormatOrderNo(now, second+1000)
	reused.Items = nil
	if err := orderRepo.Create(ctx, &reused); !errors.Is(err, ErrOrderCouponReused) {
		t.Errorf("Expected ErrOrderCouponReused, got %v", err)
	}

	found, err := orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("Failed to find order: %v", err)
	}
	if found.OrderNo != order.OrderNo || !found.FinalAmount.Equal(order.FinalAmount) {
		t.Errorf("Order mismatch: %+v", found)
	}
	if found.UserCouponID == nil || *found.UserCouponID != userCoupon.ID {
		t.Errorf("Expected used coupon %s, got %v", userCoupon.ID, found.UserCouponID)
	}
	if len(found.Items) != 1 || found.Items[0].Quantity != 2 || found.Items[0].Image != "/uploads/a.png" {
		t.Errorf("Item snapshot mismatch: %+v", found.Items)
	}
	if found.Address == nil || found.Address.ReceiverName != address.ReceiverName {
		t.Errorf("Expected shipping address on order, got %+v", found.Address)
	}

	status := domain.OrderStatusPending
	listed, err := orderRepo.List(ctx, OrderFilter{UserID: &userID, Status: &status, Page: Page{Limit: 10}})
	if err != nil || len(listed) != 1 || len(listed[0].Items) != 1 {
		t.Errorf("Expected one listed order with items, got %d (%v)", len(listed), err)
	}

	if err := orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusPaid); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}
	if err := orderRepo.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusCancelled); !errors.Is(err, ErrOrderStatusConflict) {
		t.Errorf("Expected ErrOrderStatusConflict, got %v", err)
	}
}

func TestOrderItemsKeepPurchaseOrder(t *testing.T) {
	ctx := context.Background()
	orderRepo := NewOrderRepository(testDB)
	userID := uuid.New()
	address := seedAddress(t, userID)
	keycaps := seedProduct(t, "129.00", 10)
	standee := seedProduct(t, "35.00", 10)

	seq, err := orderRepo.NextSequence(ctx)
	if err != nil {
		t.Fatalf("Failed to draw sequence: %v", err)
	}

	now := time.Now()
	titles := []string{"星星挂饰", "亚克力立牌", "机械键盘键帽"}
	products := []*domain.Product{keycaps, standee, keycaps}
	order := &domain.Order{
		ID:          uuid.New(),
		OrderNo:     domain.FormatOrderNo(now, seq),
		UserID:      userID,
		AddressID:   address.ID,
		Status:      domain.OrderStatusPending,
		TotalAmount: decimal.RequireFromString("328.00"),
		FinalAmount: decimal.RequireFromString("328.00"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, title := range titles {
		order.Items = append(order.Items, domain.OrderItem{
			ID:        uuid.New(),
			ProductID: products[i].ID,
			Title:     title,
			Price:     products[i].Price,
			Quantity:  1,
		})
	}
	if err := orderRepo.Create(ctx, order); err != nil {
		t.Fatalf("Failed to create order: %v", err)
	}

	found, err := orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("Failed to find order: %v", err)
	}
	if len(found.Items) != len(titles) {
		t.Fatalf("Expected %d items, got %d", len(titles), len(found.Items))
	}
	for i, item := range found.Items {
		if item.Title != titles[i] {
			t.Errorf("Line %d: expected %q, got %q", i+1, titles[i], item.Title)
		}
	}
}
