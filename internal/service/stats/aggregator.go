package stats

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kirtli/commerce/internal/domain"
)

const (
	// DefaultWindowDays — окно дашборда по умолчанию.
	DefaultWindowDays = 7
	// MaxWindowDays ограничивает глубину запроса.
	MaxWindowDays = 365

	topProductsLimit  = 5
	recentOrdersLimit = 10
)

// Aggregator собирает сводку для дашборда администратора.
type Aggregator struct {
	source domain.OrderStatsSource
	logger *log.Entry
	now    func() time.Time
}

// NewAggregator создаёт агрегатор поверх источника статистики.
func NewAggregator(source domain.OrderStatsSource, logger *log.Entry) *Aggregator {
	if logger == nil {
		logger = log.New().WithField("component", "stats")
	}
	return &Aggregator{source: source, logger: logger, now: time.Now}
}

// Dashboard собирает сводку за окно в days дней. Выручка, недавние заказы,
// топ товаров и дневная серия считаются по окну; счётчики pending и
// completed — за всё время жизни магазина.
func (a *Aggregator) Dashboard(ctx context.Context, days int) (domain.DashboardStats, error) {
	if days <= 0 {
		days = DefaultWindowDays
	}
	if days > MaxWindowDays {
		days = MaxWindowDays
	}

	to := a.now().UTC()
	from := to.Add(-time.Duration(days) * 24 * time.Hour)

	totalOrders, err := a.source.CountAll(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count orders: %w", err)
	}

	recentCount, err := a.source.CountCreatedSince(ctx, from)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count recent orders: %w", err)
	}

	revenue, err := a.source.RevenueSince(ctx, from)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("windowed revenue: %w", err)
	}

	pending, err := a.source.CountByOrderStatus(ctx, domain.OrderStatusPending)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count pending orders: %w", err)
	}

	// «Завершённые» для дашборда — доставленные заказы.
	completed, err := a.source.CountByOrderStatus(ctx, domain.OrderStatusDelivered)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("count completed orders: %w", err)
	}

	recentOrders, err := a.source.ListCreatedSince(ctx, from, recentOrdersLimit)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("list recent orders: %w", err)
	}

	topProducts, err := a.source.TopProductsSince(ctx, from, topProductsLimit)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("top products: %w", err)
	}

	distribution, err := a.source.StatusDistribution(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("status distribution: %w", err)
	}

	daily, err := a.source.DailyRevenueSince(ctx, from)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("daily revenue: %w", err)
	}

	var average float64
	if recentCount > 0 {
		average = revenue / float64(recentCount)
	}

	return domain.DashboardStats{
		Summary: domain.StatsSummary{
			TotalOrders:       totalOrders,
			RecentOrders:      recentCount,
			TotalRevenue:      revenue,
			PendingOrders:     pending,
			CompletedOrders:   completed,
			AverageOrderValue: average,
		},
		RecentOrders:       recentOrders,
		TopProducts:        topProducts,
		StatusDistribution: distribution,
		DailyRevenue:       daily,
		TimeRange: domain.StatsTimeRange{
			Days: days,
			From: from,
			To:   to,
		},
	}, nil
}
