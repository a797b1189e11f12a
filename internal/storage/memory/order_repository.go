package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kirtli/commerce/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
// Используется в тестах и в dev-режиме без настроенного PostgreSQL.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Order
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderExists
	}
	// Нормализация на записи: читающие пути остаются чистыми.
	if order.GrandTotal == 0 {
		order.GrandTotal = order.TotalAmount + order.ShippingCost
	}
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByUser возвращает страницу заказов пользователя, новые первыми.
func (r *orderRepositoryInMemory) ListByUser(_ context.Context, userID string, offset, limit int) ([]domain.Order, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]domain.Order, 0)
	for _, order := range r.items {
		if order.UserID != userID {
			continue
		}
		all = append(all, cloneOrder(order))
	}
	sortNewestFirst(all)

	total := int64(len(all))
	if offset >= len(all) {
		return []domain.Order{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

// MarkPaid выполняет условный переход pending→completed/processing под mutex-ом:
// повторный вызов возвращает false и ничего не меняет.
func (r *orderRepositoryInMemory) MarkPaid(_ context.Context, id, sessionID, paymentIntentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if order.PaymentStatus != domain.PaymentStatusPending {
		return false, nil
	}

	order.PaymentStatus = domain.PaymentStatusCompleted
	order.OrderStatus = domain.OrderStatusProcessing
	order.StripeSessionID = sessionID
	order.StripePaymentIntentID = paymentIntentID
	order.UpdatedAt = time.Now().UTC()
	r.items[id] = order
	return true, nil
}

// SetPaymentStatus обновляет только ось оплаты.
func (r *orderRepositoryInMemory) SetPaymentStatus(_ context.Context, id string, status domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.PaymentStatus = status
	order.UpdatedAt = time.Now().UTC()
	r.items[id] = order
	return nil
}

// SetOrderStatus обновляет ось исполнения и прикрепляет shipping info, если она есть.
func (r *orderRepositoryInMemory) SetOrderStatus(_ context.Context, id string, status domain.OrderStatus, info *domain.ShippingInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.OrderStatus = status
	if info != nil {
		infoCopy := *info
		order.ShippingInfo = &infoCopy
	}
	order.UpdatedAt = time.Now().UTC()
	r.items[id] = order
	return nil
}

func (r *orderRepositoryInMemory) CountAll(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.items)), nil
}

func (r *orderRepositoryInMemory) CountCreatedSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, order := range r.items {
		if !order.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *orderRepositoryInMemory) CountByOrderStatus(_ context.Context, status domain.OrderStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, order := range r.items {
		if order.OrderStatus == status {
			n++
		}
	}
	return n, nil
}

func (r *orderRepositoryInMemory) RevenueSince(_ context.Context, since time.Time) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum float64
	for _, order := range r.items {
		if !order.CreatedAt.Before(since) {
			sum += grandTotal(order)
		}
	}
	return sum, nil
}

func (r *orderRepositoryInMemory) ListCreatedSince(_ context.Context, since time.Time, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recent := make([]domain.Order, 0)
	for _, order := range r.items {
		if !order.CreatedAt.Before(since) {
			recent = append(recent, cloneOrder(order))
		}
	}
	sortNewestFirst(recent)
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

func (r *orderRepositoryInMemory) TopProductsSince(_ context.Context, since time.Time, limit int) ([]domain.ProductSales, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byProduct := make(map[string]*domain.ProductSales)
	for _, order := range r.items {
		if order.CreatedAt.Before(since) {
			continue
		}
		for _, item := range order.Items {
			sales, ok := byProduct[item.ProductID]
			if !ok {
				sales = &domain.ProductSales{ProductID: item.ProductID, Name: item.Name}
				byProduct[item.ProductID] = sales
			}
			sales.TotalSold += int64(item.Quantity)
			sales.TotalRevenue += item.UnitPrice * float64(item.Quantity)
		}
	}

	result := make([]domain.ProductSales, 0, len(byProduct))
	for _, sales := range byProduct {
		result = append(result, *sales)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalSold != result[j].TotalSold {
			return result[i].TotalSold > result[j].TotalSold
		}
		return result[i].ProductID < result[j].ProductID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *orderRepositoryInMemory) StatusDistribution(_ context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dist := make(map[string]int64)
	for _, order := range r.items {
		dist[string(order.OrderStatus)]++
	}
	return dist, nil
}

func (r *orderRepositoryInMemory) DailyRevenueSince(_ context.Context, since time.Time) ([]domain.DailyRevenue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byDay := make(map[string]*domain.DailyRevenue)
	for _, order := range r.items {
		if order.CreatedAt.Before(since) {
			continue
		}
		day := order.CreatedAt.UTC().Format("2006-01-02")
		entry, ok := byDay[day]
		if !ok {
			entry = &domain.DailyRevenue{Date: day}
			byDay[day] = entry
		}
		entry.Revenue += grandTotal(order)
		entry.Orders++
	}

	result := make([]domain.DailyRevenue, 0, len(byDay))
	for _, entry := range byDay {
		result = append(result, *entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

// grandTotal — защитный fallback для записей без нормализованной суммы.
func grandTotal(order domain.Order) float64 {
	if order.GrandTotal != 0 {
		return order.GrandTotal
	}
	return order.TotalAmount + order.ShippingCost
}

func sortNewestFirst(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}

// cloneOrder копирует заказ, чтобы избежать непредсказуемых мутаций извне.
func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Items = append([]domain.OrderItem(nil), order.Items...)
	if order.ShippingInfo != nil {
		info := *order.ShippingInfo
		clone.ShippingInfo = &info
	}
	return clone
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
