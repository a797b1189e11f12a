package domain

import (
	"strings"
	"time"
)

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	// PaymentStatusPending — checkout-сессия создана, оплата ещё не подтверждена.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted — оплата подтверждена платёжным шлюзом.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed — шлюз отклонил платёж или сессия истекла.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded — деньги возвращены клиенту.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderStatus описывает жизненный цикл исполнения заказа.
// Оси оплаты и исполнения независимы: failed-платёж не отменяет pending-заказ.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// ValidOrderStatus проверяет, что статус входит в перечисление.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentMethodCheckout — единственный способ оплаты в этом потоке:
// hosted checkout платёжного шлюза.
const PaymentMethodCheckout = "stripe"

// OrderItem представляет одну позицию заказа. Позиции неизменяемы после создания.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"price"`
	Quantity  int32   `json:"quantity"`
}

// Address — адрес доставки, встроенный в заказ.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// ShippingInfo прикрепляется к заказу при переходе в статус shipped.
type ShippingInfo struct {
	CourierName    string    `json:"courierName"`
	TrackingNumber string    `json:"trackingNumber"`
	ShippedAt      time.Time `json:"shippedAt"`
}

// Order агрегирует состояние заказа: позиции, суммы, адрес и обе оси статусов.
type Order struct {
	ID     string `json:"_id"`
	UserID string `json:"userId"`
	// Items фиксируются при создании и больше не меняются.
	Items []OrderItem `json:"items"`
	// TotalAmount — сумма позиций, как её прислал клиент.
	TotalAmount float64 `json:"totalAmount"`
	// TaxAmount всегда 0: налоговая логика выведена из скоупа, поле оставлено для совместимости.
	TaxAmount float64 `json:"taxAmount"`
	// ShippingCost — фиксированная ставка доставки из конфигурации на момент создания.
	ShippingCost float64 `json:"shippingCost"`
	// GrandTotal = TotalAmount + ShippingCost, нормализуется при записи.
	GrandTotal      float64       `json:"grandTotal"`
	ShippingAddress Address       `json:"shippingAddress"`
	PaymentMethod   string        `json:"paymentMethod"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	OrderStatus     OrderStatus   `json:"orderStatus"`
	ShippingInfo    *ShippingInfo `json:"shippingInfo,omitempty"`
	// Контакты фиксируются на момент заказа и не зависят от живой учётной записи.
	CustomerEmail string `json:"customerEmail,omitempty"`
	CustomerName  string `json:"customerName,omitempty"`
	// Идентификаторы шлюза записываются при подтверждении оплаты.
	StripeSessionID       string    `json:"stripeSessionId,omitempty"`
	StripePaymentIntentID string    `json:"stripePaymentIntentId,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// ValidateNew проверяет инварианты нового заказа перед сохранением.
func (o *Order) ValidateNew() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
			break
		}
	}
	for _, item := range o.Items {
		if item.UnitPrice <= 0 {
			errs = append(errs, ErrItemPriceInvalid)
			break
		}
	}
	if o.ShippingAddress.Line1 == "" || o.ShippingAddress.City == "" {
		errs = append(errs, ErrAddressRequired)
	}

	return errs
}

// Validate проверяет shipping info для перехода заказа в статус shipped.
func (s *ShippingInfo) Validate() []error {
	var errs []error
	if s == nil {
		return append(errs, ErrShippingInfoRequired)
	}
	if strings.TrimSpace(s.CourierName) == "" {
		errs = append(errs, ErrCourierRequired)
	}
	if strings.TrimSpace(s.TrackingNumber) == "" {
		errs = append(errs, ErrTrackingRequired)
	}
	return errs
}

// OrderNumber возвращает человекочитаемый номер заказа для писем и деталей:
// ORD- плюс последние 8 символов идентификатора.
func (o *Order) OrderNumber() string {
	id := o.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return "ORD-" + strings.ToUpper(id)
}
