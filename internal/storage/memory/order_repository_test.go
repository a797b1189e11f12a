package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/kirtli/commerce/internal/domain"
	"github.com/kirtli/commerce/internal/storage/memory"
)

func newOrder(id, userID string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:     id,
		UserID: userID,
		Items: []domain.OrderItem{
			{ProductID: "p-1", Name: "Mug", UnitPrice: 10.0, Quantity: 2},
			{ProductID: "p-2", Name: "Tea", UnitPrice: 5.0, Quantity: 1},
		},
		TotalAmount:  25.0,
		ShippingCost: 3.5,
		GrandTotal:   28.5,
		ShippingAddress: domain.Address{
			Line1: "1 High Street", City: "London", PostalCode: "N1 1AA", Country: "GB",
		},
		PaymentMethod: domain.PaymentMethodCheckout,
		PaymentStatus: domain.PaymentStatusPending,
		OrderStatus:   domain.OrderStatusPending,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user-1", time.Now().UTC())

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(ctx, order); err != domain.ErrOrderExists {
		t.Fatalf("expected ErrOrderExists, got %v", err)
	}

	stored, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.GrandTotal != 28.5 {
		t.Fatalf("expected grand total 28.5, got %v", stored.GrandTotal)
	}
	if len(stored.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(stored.Items))
	}
}

func TestOrderRepository_GetMissing(t *testing.T) {
	repo := memory.NewOrderRepository()
	if _, err := repo.Get(context.Background(), "nope"); err != domain.ErrOrderNotFound {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_GrandTotalFallback(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user-1", time.Now().UTC())
	order.GrandTotal = 0

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	stored, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.GrandTotal != 28.5 {
		t.Fatalf("expected normalized grand total 28.5, got %v", stored.GrandTotal)
	}
}

func TestOrderRepository_MarkPaidOnce(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user-1", time.Now().UTC())
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	transitioned, err := repo.MarkPaid(ctx, order.ID, "cs_test_1", "pi_test_1")
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if !transitioned {
		t.Fatal("expected first MarkPaid to transition")
	}

	// Повторный сигнал не должен перезаписывать состояние.
	transitioned, err = repo.MarkPaid(ctx, order.ID, "cs_test_2", "pi_test_2")
	if err != nil {
		t.Fatalf("second mark paid failed: %v", err)
	}
	if transitioned {
		t.Fatal("expected second MarkPaid to be a no-op")
	}

	stored, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.PaymentStatus != domain.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %s", stored.PaymentStatus)
	}
	if stored.OrderStatus != domain.OrderStatusProcessing {
		t.Fatalf("expected processing order, got %s", stored.OrderStatus)
	}
	if stored.StripeSessionID != "cs_test_1" {
		t.Fatalf("expected first session id to win, got %s", stored.StripeSessionID)
	}
}

func TestOrderRepository_MarkPaidConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user-1", time.Now().UTC())
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	const workers = 16
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		go func() {
			ok, err := repo.MarkPaid(ctx, order.ID, "cs_test_1", "pi_test_1")
			if err != nil {
				t.Errorf("mark paid failed: %v", err)
			}
			results <- ok
		}()
	}

	var wins int
	for i := 0; i < workers; i++ {
		if <-results {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one transition, got %d", wins)
	}
}

func TestOrderRepository_SetPaymentStatus(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user-1", time.Now().UTC())
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.SetPaymentStatus(ctx, order.ID, domain.PaymentStatusFailed); err != nil {
		t.Fatalf("set payment status failed: %v", err)
	}
	stored, _ := repo.Get(ctx, order.ID)
	if stored.PaymentStatus != domain.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", stored.PaymentStatus)
	}
	// Ось исполнения не трогаем.
	if stored.OrderStatus != domain.OrderStatusPending {
		t.Fatalf("expected order status untouched, got %s", stored.OrderStatus)
	}
}

func TestOrderRepository_SetOrderStatusWithShippingInfo(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "user-1", time.Now().UTC())
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	info := &domain.ShippingInfo{CourierName: "Royal Mail", TrackingNumber: "RM1", ShippedAt: time.Now().UTC()}
	if err := repo.SetOrderStatus(ctx, order.ID, domain.OrderStatusShipped, info); err != nil {
		t.Fatalf("set order status failed: %v", err)
	}

	stored, _ := repo.Get(ctx, order.ID)
	if stored.OrderStatus != domain.OrderStatusShipped {
		t.Fatalf("expected shipped, got %s", stored.OrderStatus)
	}
	if stored.ShippingInfo == nil || stored.ShippingInfo.TrackingNumber != "RM1" {
		t.Fatalf("expected shipping info attached, got %+v", stored.ShippingInfo)
	}
}

func TestOrderRepository_ListByUserPagination(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		order := newOrder("order-"+string(rune('a'+i)), "user-1", base.Add(time.Duration(i)*time.Minute))
		if err := repo.Create(ctx, order); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	other := newOrder("other", "user-2", base)
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	page, total, err := repo.ListByUser(ctx, "user-1", 0, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
	// Новые первыми.
	if page[0].ID != "order-e" {
		t.Fatalf("expected newest first, got %s", page[0].ID)
	}

	tail, _, err := repo.ListByUser(ctx, "user-1", 4, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(tail) != 1 {
		t.Fatalf("expected 1 order on last page, got %d", len(tail))
	}
}

func TestOrderRepository_StatsWindow(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	now := time.Now().UTC()

	inside := newOrder("in-1", "user-1", now.Add(-24*time.Hour))
	inside.OrderStatus = domain.OrderStatusProcessing
	outside := newOrder("out-1", "user-1", now.Add(-10*24*time.Hour))
	outside.OrderStatus = domain.OrderStatusPending
	for _, order := range []domain.Order{inside, outside} {
		if err := repo.Create(ctx, order); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	since := now.Add(-7 * 24 * time.Hour)

	revenue, err := repo.RevenueSince(ctx, since)
	if err != nil {
		t.Fatalf("revenue failed: %v", err)
	}
	if revenue != 28.5 {
		t.Fatalf("expected windowed revenue 28.5, got %v", revenue)
	}

	recent, err := repo.CountCreatedSince(ctx, since)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if recent != 1 {
		t.Fatalf("expected 1 recent order, got %d", recent)
	}

	// Счётчики по статусам — за всё время.
	pending, err := repo.CountByOrderStatus(ctx, domain.OrderStatusPending)
	if err != nil {
		t.Fatalf("count by status failed: %v", err)
	}
	if pending != 1 {
		t.Fatalf("expected lifetime pending count 1, got %d", pending)
	}

	dist, err := repo.StatusDistribution(ctx)
	if err != nil {
		t.Fatalf("distribution failed: %v", err)
	}
	if dist["pending"] != 1 || dist["processing"] != 1 {
		t.Fatalf("unexpected distribution %v", dist)
	}
}

func TestOrderRepository_TopProductsAndDailyRevenue(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	now := time.Now().UTC()

	first := newOrder("o-1", "user-1", now.Add(-48*time.Hour))
	second := newOrder("o-2", "user-2", now.Add(-2*time.Hour))
	second.Items = []domain.OrderItem{{ProductID: "p-2", Name: "Tea", UnitPrice: 5.0, Quantity: 10}}
	second.TotalAmount = 50.0
	second.GrandTotal = 53.5
	for _, order := range []domain.Order{first, second} {
		if err := repo.Create(ctx, order); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	since := now.Add(-7 * 24 * time.Hour)
	top, err := repo.TopProductsSince(ctx, since, 5)
	if err != nil {
		t.Fatalf("top products failed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 products, got %d", len(top))
	}
	if top[0].ProductID != "p-2" || top[0].TotalSold != 11 {
		t.Fatalf("unexpected top product %+v", top[0])
	}
	if top[0].TotalRevenue != 55.0 {
		t.Fatalf("expected p-2 revenue 55.0, got %v", top[0].TotalRevenue)
	}

	daily, err := repo.DailyRevenueSince(ctx, since)
	if err != nil {
		t.Fatalf("daily revenue failed: %v", err)
	}
	if len(daily) != 2 {
		t.Fatalf("expected 2 days, got %d", len(daily))
	}
	// Серия отсортирована хронологически.
	if daily[0].Date >= daily[1].Date {
		t.Fatalf("expected chronological order, got %v", daily)
	}
}
