package domain

import "context"

// CheckoutSession — созданная шлюзом hosted-payment сессия.
type CheckoutSession struct {
	ID  string
	URL string
}

// SessionStatus — состояние сессии по данным шлюза.
type SessionStatus struct {
	ID string
	// PaymentStatus — строка статуса шлюза; "paid" означает успешную оплату.
	PaymentStatus   string
	PaymentIntentID string
	CustomerEmail   string
}

// Webhook event types шлюза, которые обрабатывает ядро.
const (
	WebhookCheckoutCompleted = "checkout.session.completed"
	WebhookCheckoutExpired   = "checkout.session.expired"
)

// WebhookEvent — проверенное событие, пришедшее от шлюза.
// OrderID и UserID извлекаются из metadata сессии (correlation token).
type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
	OrderID   string
	UserID    string
}

// CheckoutGateway описывает взаимодействие с платёжным шлюзом.
// Шлюз — внешний сервис: ядро не воспроизводит его логику, только контракт.
type CheckoutGateway interface {
	// CreateCheckoutSession создаёт hosted checkout сессию по заказу,
	// передавая ID заказа как correlation token для webhook-ов.
	CreateCheckoutSession(ctx context.Context, order Order) (CheckoutSession, error)
	// GetSessionStatus возвращает статус сессии по её идентификатору.
	GetSessionStatus(ctx context.Context, sessionID string) (SessionStatus, error)
	// VerifyWebhook проверяет подпись сырого payload и разбирает событие.
	// Возвращает ErrInvalidSignature при любой проблеме с подписью.
	VerifyWebhook(payload []byte, signatureHeader string) (WebhookEvent, error)
	// Ping — проба доступности шлюза.
	Ping(ctx context.Context) error
}
