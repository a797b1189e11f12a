package domain

import (
	"context"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderExists, если ID уже занят.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает страницу заказов пользователя (новые первыми)
	// и общее число его заказов.
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]Order, int64, error)
	// MarkPaid — условный переход pending→completed/processing, записывает
	// идентификаторы сессии и платежа шлюза. Возвращает true только если
	// переход действительно произошёл: повторный вызов для уже оплаченного
	// заказа возвращает false без изменений. Это единственная гарантия
	// идемпотентности побочных эффектов, поэтому обновление атомарно.
	MarkPaid(ctx context.Context, id, sessionID, paymentIntentID string) (bool, error)
	// SetPaymentStatus обновляет только ось оплаты (failed при ошибке шлюза
	// или истёкшей сессии).
	SetPaymentStatus(ctx context.Context, id string, status PaymentStatus) error
	// SetOrderStatus обновляет ось исполнения; shipping info прикрепляется
	// при переходе в shipped.
	SetOrderStatus(ctx context.Context, id string, status OrderStatus, info *ShippingInfo) error

	OrderStatsSource
}

// OrderStatsSource — агрегатные запросы хранилища для дашборда.
// Счётчики по статусам считаются за всё время, остальное — от границы окна.
type OrderStatsSource interface {
	CountAll(ctx context.Context) (int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	CountByOrderStatus(ctx context.Context, status OrderStatus) (int64, error)
	RevenueSince(ctx context.Context, since time.Time) (float64, error)
	ListCreatedSince(ctx context.Context, since time.Time, limit int) ([]Order, error)
	TopProductsSince(ctx context.Context, since time.Time, limit int) ([]ProductSales, error)
	StatusDistribution(ctx context.Context) (map[string]int64, error)
	DailyRevenueSince(ctx context.Context, since time.Time) ([]DailyRevenue, error)
}

// CartStore очищает корзину пользователя после подтверждённой оплаты.
// Сама корзина (CRUD) живёт во внешнем сервисе.
type CartStore interface {
	Clear(ctx context.Context, userID string) error
}

// User — минимальный срез учётной записи, нужный ядру для писем
// и проверок владения. Управление аккаунтами — внешний сервис.
type User struct {
	ID    string
	Email string
	Name  string
}

// UserStore — точка доступа к учётным записям (только чтение).
type UserStore interface {
	// FindByID возвращает пользователя или ErrUserNotFound.
	FindByID(ctx context.Context, id string) (User, error)
}

// EmailSender отправляет транзакционные письма. Возвращает успех отправки;
// ошибки логируются вызывающей стороной, но не прерывают поток.
type EmailSender interface {
	SendOrderConfirmation(order Order, user User) bool
	SendOrderShipped(order Order, info ShippingInfo, user User) bool
}
