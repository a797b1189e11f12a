package kafka

import "time"

// Типы событий жизненного цикла заказа.
const (
	EventOrderCreated       = "order.created"
	EventPaymentCompleted   = "payment.completed"
	EventPaymentFailed      = "payment.failed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent — событие жизненного цикла заказа для внешних потребителей.
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId"`
	Status     string    `json:"status,omitempty"`
	GrandTotal float64   `json:"grandTotal,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewOrderEvent собирает событие с текущим временем.
func NewOrderEvent(eventType, orderID, userID string) OrderEvent {
	return OrderEvent{
		Type:       eventType,
		OrderID:    orderID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}
