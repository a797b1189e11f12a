package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/kirtli/commerce/internal/domain"
	"github.com/kirtli/commerce/internal/messaging/kafka"
	"github.com/kirtli/commerce/internal/metrics"
)

// CreateOrderInput — данные нового заказа от клиента. Контакты опциональны:
// пустые значения заполняются из учётной записи.
type CreateOrderInput struct {
	UserID          string
	Items           []domain.OrderItem
	ShippingAddress domain.Address
	CustomerEmail   string
	CustomerName    string
}

// CreateOrderResult — созданный заказ вместе с checkout session.
type CreateOrderResult struct {
	Order       domain.Order
	SessionID   string
	CheckoutURL string
}

// Manager координирует жизненный цикл заказа: создание, подтверждение
// оплаты, вебхуки шлюза и переходы по оси исполнения.
type Manager struct {
	orders   domain.OrderRepository
	gateway  domain.CheckoutGateway
	carts    domain.CartStore
	users    domain.UserStore
	emails   domain.EmailSender
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
	producer *kafka.Producer // опциональный Kafka producer для event-driven архитектуры

	shippingFee float64

	wg sync.WaitGroup
}

// Options — зависимости Manager. Producer и Metrics опциональны.
type Options struct {
	Orders      domain.OrderRepository
	Gateway     domain.CheckoutGateway
	Carts       domain.CartStore
	Users       domain.UserStore
	Emails      domain.EmailSender
	Logger      *log.Entry
	Metrics     *metrics.OrderMetrics
	Producer    *kafka.Producer
	ShippingFee float64
}

// NewManager создаёт рабочий экземпляр менеджера жизненного цикла.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.New().WithField("component", "lifecycle")
	}
	return &Manager{
		orders:      opts.Orders,
		gateway:     opts.Gateway,
		carts:       opts.Carts,
		users:       opts.Users,
		emails:      opts.Emails,
		logger:      logger,
		metrics:     opts.Metrics,
		producer:    opts.Producer,
		shippingFee: opts.ShippingFee,
	}
}

// CreateOrder валидирует и сохраняет заказ в состоянии pending/pending,
// затем открывает checkout session у платёжного шлюза. Если шлюз недоступен,
// заказ остаётся в базе с payment_status=failed, а ошибка называет его ID.
func (m *Manager) CreateOrder(ctx context.Context, input CreateOrderInput) (CreateOrderResult, error) {
	now := time.Now().UTC()
	order := domain.Order{
		ID:              uuid.NewString(),
		UserID:          input.UserID,
		Items:           input.Items,
		ShippingCost:    m.shippingFee,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   domain.PaymentMethodCheckout,
		PaymentStatus:   domain.PaymentStatusPending,
		OrderStatus:     domain.OrderStatusPending,
		CustomerEmail:   input.CustomerEmail,
		CustomerName:    input.CustomerName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, item := range order.Items {
		order.TotalAmount += item.UnitPrice * float64(item.Quantity)
	}
	order.GrandTotal = order.TotalAmount + order.ShippingCost

	if errs := order.ValidateNew(); len(errs) > 0 {
		return CreateOrderResult{}, errors.Join(errs...)
	}

	// Контакты фиксируются на момент заказа; отсутствие учётки не блокирует заказ.
	if (order.CustomerEmail == "" || order.CustomerName == "") && m.users != nil {
		if user, err := m.users.FindByID(ctx, order.UserID); err == nil {
			if order.CustomerEmail == "" {
				order.CustomerEmail = user.Email
			}
			if order.CustomerName == "" {
				order.CustomerName = user.Name
			}
		}
	}

	if err := m.orders.Create(ctx, order); err != nil {
		return CreateOrderResult{}, fmt.Errorf("persist order: %w", err)
	}
	if m.metrics != nil {
		m.metrics.RecordOrderCreated()
	}

	start := time.Now()
	session, err := m.gateway.CreateCheckoutSession(ctx, order)
	if m.metrics != nil {
		m.metrics.RecordCheckoutDuration(time.Since(start))
	}
	if err != nil {
		m.logger.WithError(err).WithField("order_id", order.ID).Error("checkout session creation failed")
		if setErr := m.orders.SetPaymentStatus(ctx, order.ID, domain.PaymentStatusFailed); setErr != nil {
			m.logger.WithError(setErr).WithField("order_id", order.ID).Error("failed to mark order payment failed")
		}
		if m.metrics != nil {
			m.metrics.RecordPaymentFailed()
		}
		// Заказ уже сохранён: возвращаем его, чтобы клиент знал, какой ID ретраить.
		order.PaymentStatus = domain.PaymentStatusFailed
		return CreateOrderResult{Order: order}, fmt.Errorf("create checkout session for order %s: %w", order.ID, err)
	}

	m.publishEvent(kafka.EventOrderCreated, order, "")
	m.logger.WithFields(log.Fields{
		"order_id":   order.ID,
		"user_id":    order.UserID,
		"session_id": session.ID,
	}).Info("order created")

	return CreateOrderResult{Order: order, SessionID: session.ID, CheckoutURL: session.URL}, nil
}

// ConfirmPayment сверяет состояние checkout session со шлюзом и при
// оплаченной сессии переводит заказ в completed/processing. Повторные
// вызовы безопасны: побочные эффекты выполняются ровно один раз.
func (m *Manager) ConfirmPayment(ctx context.Context, orderID, sessionID string) (domain.Order, error) {
	if sessionID == "" {
		return domain.Order{}, domain.ErrSessionIDRequired
	}

	if _, err := m.orders.Get(ctx, orderID); err != nil {
		return domain.Order{}, err
	}

	status, err := m.gateway.GetSessionStatus(ctx, sessionID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("fetch session status for order %s: %w", orderID, err)
	}
	if status.PaymentStatus != "paid" {
		return domain.Order{}, fmt.Errorf("%w: session %s is not paid (status %q)", domain.ErrValidation, sessionID, status.PaymentStatus)
	}

	transitioned, err := m.orders.MarkPaid(ctx, orderID, sessionID, status.PaymentIntentID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("mark order paid: %w", err)
	}
	if transitioned {
		m.onPaymentCompleted(ctx, orderID)
	} else {
		m.logger.WithField("order_id", orderID).Debug("payment already confirmed, skipping side effects")
	}

	return m.orders.Get(ctx, orderID)
}

// HandleWebhook проверяет подпись и обрабатывает событие шлюза.
// Неизвестные типы событий подтверждаются без действий.
func (m *Manager) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := m.gateway.VerifyWebhook(payload, signatureHeader)
	if err != nil {
		m.recordWebhook("invalid_signature")
		return err
	}

	logger := m.logger.WithFields(log.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"order_id":   event.OrderID,
	})

	switch event.Type {
	case domain.WebhookCheckoutCompleted:
		if event.OrderID == "" {
			m.recordWebhook("missing_order")
			logger.Warn("completed event without order reference")
			return nil
		}
		transitioned, err := m.orders.MarkPaid(ctx, event.OrderID, event.SessionID, "")
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				m.recordWebhook("unknown_order")
				logger.Warn("webhook references unknown order")
				return nil
			}
			m.recordWebhook("error")
			return fmt.Errorf("mark order paid from webhook: %w", err)
		}
		if transitioned {
			m.onPaymentCompleted(ctx, event.OrderID)
			m.recordWebhook("completed")
		} else {
			m.recordWebhook("duplicate")
			logger.Debug("duplicate completed event, order already paid")
		}

	case domain.WebhookCheckoutExpired:
		if event.OrderID == "" {
			m.recordWebhook("missing_order")
			return nil
		}
		if err := m.orders.SetPaymentStatus(ctx, event.OrderID, domain.PaymentStatusFailed); err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				m.recordWebhook("unknown_order")
				return nil
			}
			m.recordWebhook("error")
			return fmt.Errorf("mark order failed from webhook: %w", err)
		}
		if m.metrics != nil {
			m.metrics.RecordPaymentFailed()
		}
		if order, err := m.orders.Get(ctx, event.OrderID); err == nil {
			m.publishEvent(kafka.EventPaymentFailed, order, "")
		}
		m.recordWebhook("expired")
		logger.Info("checkout session expired, order marked failed")

	default:
		m.recordWebhook("ignored")
		logger.Debug("ignoring unhandled webhook event type")
	}

	return nil
}

// UpdateOrderStatus переводит заказ по оси исполнения. Для shipped
// обязательны курьер и трек-номер; покупатель получает письмо.
func (m *Manager) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, info *domain.ShippingInfo) (domain.Order, error) {
	if !domain.ValidOrderStatus(status) {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	if status == domain.OrderStatusShipped {
		if errs := info.Validate(); len(errs) > 0 {
			return domain.Order{}, errors.Join(errs...)
		}
		if info.ShippedAt.IsZero() {
			info.ShippedAt = time.Now().UTC()
		}
	} else {
		info = nil
	}

	if err := m.orders.SetOrderStatus(ctx, orderID, status, info); err != nil {
		return domain.Order{}, err
	}
	if m.metrics != nil {
		m.metrics.RecordStatusChange(string(status))
	}

	order, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	m.publishEvent(kafka.EventOrderStatusChanged, order, string(status))

	if status == domain.OrderStatusShipped {
		shipped := *info
		m.asyncEmail(order, func(user domain.User) bool {
			return m.emails.SendOrderShipped(order, shipped, user)
		})
	}

	m.logger.WithFields(log.Fields{
		"order_id": orderID,
		"status":   status,
	}).Info("order status updated")
	return order, nil
}

// GetOrder возвращает заказ по ID.
func (m *Manager) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return m.orders.Get(ctx, id)
}

// ListOrders возвращает страницу заказов пользователя, новые первыми.
func (m *Manager) ListOrders(ctx context.Context, userID string, offset, limit int) ([]domain.Order, int64, error) {
	return m.orders.ListByUser(ctx, userID, offset, limit)
}

// Wait дожидается фоновых задач (письма). Используется при остановке и в тестах.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// onPaymentCompleted выполняет побочные эффекты ровно выигравшего перехода:
// очистка корзины, письмо покупателю, событие в Kafka.
func (m *Manager) onPaymentCompleted(ctx context.Context, orderID string) {
	if m.metrics != nil {
		m.metrics.RecordPaymentCompleted()
	}

	order, err := m.orders.Get(ctx, orderID)
	if err != nil {
		m.logger.WithError(err).WithField("order_id", orderID).Error("failed to reload paid order")
		return
	}

	if m.carts != nil {
		if err := m.carts.Clear(ctx, order.UserID); err != nil {
			// Заказ уже оплачен: корзину дочистит следующий заход пользователя.
			m.logger.WithError(err).WithField("user_id", order.UserID).Warn("failed to clear cart")
		}
	}

	m.publishEvent(kafka.EventPaymentCompleted, order, "")

	m.asyncEmail(order, func(user domain.User) bool {
		return m.emails.SendOrderConfirmation(order, user)
	})

	m.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
	}).Info("payment confirmed")
}

// asyncEmail отправляет письмо в фоне: почта не должна задерживать ответ.
func (m *Manager) asyncEmail(order domain.Order, send func(domain.User) bool) {
	if m.emails == nil || m.users == nil {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		user, err := m.users.FindByID(context.Background(), order.UserID)
		if err != nil {
			m.logger.WithError(err).WithField("user_id", order.UserID).Warn("user lookup failed, email skipped")
			return
		}

		if send(user) {
			if m.metrics != nil {
				m.metrics.RecordEmailSent()
			}
		} else {
			if m.metrics != nil {
				m.metrics.RecordEmailFailed()
			}
			m.logger.WithField("order_id", order.ID).Warn("notification email was not sent")
		}
	}()
}

func (m *Manager) publishEvent(eventType string, order domain.Order, status string) {
	if m.producer == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.UserID)
	event.Status = status
	event.GrandTotal = order.GrandTotal
	if err := m.producer.Publish(event); err != nil {
		m.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to publish order event")
	}
}

func (m *Manager) recordWebhook(outcome string) {
	if m.metrics != nil {
		m.metrics.RecordWebhook(outcome)
	}
}
