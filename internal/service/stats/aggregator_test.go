package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirtli/commerce/internal/domain"
	"github.com/kirtli/commerce/internal/storage/memory"
)

func seedOrder(t *testing.T, repo domain.OrderRepository, id string, createdAt time.Time, status domain.OrderStatus, total float64) {
	t.Helper()
	err := repo.Create(context.Background(), domain.Order{
		ID:     id,
		UserID: "user-1",
		Items: []domain.OrderItem{
			{ProductID: "p-" + id, Name: "Item " + id, UnitPrice: total, Quantity: 1},
		},
		TotalAmount:   total,
		GrandTotal:    total,
		PaymentMethod: domain.PaymentMethodCheckout,
		PaymentStatus: domain.PaymentStatusCompleted,
		OrderStatus:   status,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	})
	require.NoError(t, err)
}

func TestDashboard_WindowVsLifetime(t *testing.T) {
	repo := memory.NewOrderRepository()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	// Два заказа внутри 7-дневного окна, два — за его пределами.
	seedOrder(t, repo, "in-1", now.Add(-24*time.Hour), domain.OrderStatusPending, 100)
	seedOrder(t, repo, "in-2", now.Add(-3*24*time.Hour), domain.OrderStatusDelivered, 50)
	seedOrder(t, repo, "out-1", now.Add(-10*24*time.Hour), domain.OrderStatusPending, 999)
	seedOrder(t, repo, "out-2", now.Add(-14*24*time.Hour), domain.OrderStatusDelivered, 999)

	agg := NewAggregator(repo, nil)
	agg.now = func() time.Time { return now }

	stats, err := agg.Dashboard(context.Background(), 7)
	require.NoError(t, err)

	// Оконные значения игнорируют старые заказы.
	require.EqualValues(t, 2, stats.Summary.RecentOrders)
	require.Equal(t, 150.0, stats.Summary.TotalRevenue)
	require.Equal(t, 75.0, stats.Summary.AverageOrderValue)
	require.Len(t, stats.RecentOrders, 2)
	require.Len(t, stats.DailyRevenue, 2)

	// Счётчики статусов — за всё время.
	require.EqualValues(t, 4, stats.Summary.TotalOrders)
	require.EqualValues(t, 2, stats.Summary.PendingOrders)
	require.EqualValues(t, 2, stats.Summary.CompletedOrders)

	require.Equal(t, 7, stats.TimeRange.Days)
	require.Equal(t, now, stats.TimeRange.To)
}

func TestDashboard_DefaultAndClampedWindow(t *testing.T) {
	repo := memory.NewOrderRepository()
	agg := NewAggregator(repo, nil)

	stats, err := agg.Dashboard(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, DefaultWindowDays, stats.TimeRange.Days)

	stats, err = agg.Dashboard(context.Background(), -3)
	require.NoError(t, err)
	require.Equal(t, DefaultWindowDays, stats.TimeRange.Days)

	stats, err = agg.Dashboard(context.Background(), 10000)
	require.NoError(t, err)
	require.Equal(t, MaxWindowDays, stats.TimeRange.Days)
}

func TestDashboard_EmptyStore(t *testing.T) {
	repo := memory.NewOrderRepository()
	agg := NewAggregator(repo, nil)

	stats, err := agg.Dashboard(context.Background(), 7)
	require.NoError(t, err)

	// Деление на ноль заказов не должно давать NaN.
	require.Equal(t, 0.0, stats.Summary.AverageOrderValue)
	require.EqualValues(t, 0, stats.Summary.TotalOrders)
	require.Empty(t, stats.RecentOrders)
	require.Empty(t, stats.TopProducts)
	require.Empty(t, stats.DailyRevenue)
}

func TestDashboard_TopProductsLimit(t *testing.T) {
	repo := memory.NewOrderRepository()
	now := time.Now().UTC()

	for i := 0; i < 8; i++ {
		seedOrder(t, repo, string(rune('a'+i)), now.Add(-time.Hour), domain.OrderStatusProcessing, float64(10+i))
	}

	agg := NewAggregator(repo, nil)
	stats, err := agg.Dashboard(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, stats.TopProducts, topProductsLimit)
}
