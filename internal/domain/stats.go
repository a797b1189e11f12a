package domain

import "time"

// ProductSales — продажи одного товара внутри окна.
type ProductSales struct {
	ProductID    string  `json:"productId"`
	Name         string  `json:"name"`
	TotalSold    int64   `json:"totalSold"`
	TotalRevenue float64 `json:"totalRevenue"`
}

// DailyRevenue — выручка и число заказов за один день окна.
type DailyRevenue struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
	Orders  int64   `json:"orders"`
}

// StatsSummary — верхушка дашборда. pendingOrders/completedOrders считаются
// за всё время, totalRevenue и averageOrderValue — только внутри окна.
type StatsSummary struct {
	TotalOrders       int64   `json:"totalOrders"`
	RecentOrders      int64   `json:"recentOrders"`
	TotalRevenue      float64 `json:"totalRevenue"`
	PendingOrders     int64   `json:"pendingOrders"`
	CompletedOrders   int64   `json:"completedOrders"`
	AverageOrderValue float64 `json:"averageOrderValue"`
}

// StatsTimeRange описывает границы окна агрегации.
type StatsTimeRange struct {
	Days int       `json:"days"`
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// DashboardStats — полный ответ дашборда за trailing window.
type DashboardStats struct {
	Summary            StatsSummary     `json:"summary"`
	RecentOrders       []Order          `json:"recentOrders"`
	TopProducts        []ProductSales   `json:"topProducts"`
	StatusDistribution map[string]int64 `json:"statusDistribution"`
	DailyRevenue       []DailyRevenue   `json:"dailyRevenue"`
	TimeRange          StatsTimeRange   `json:"timeRange"`
}
