package stripe

import (
	"context"

	"github.com/kirtli/commerce/internal/domain"
)

// MockGateway — конфигурируемая заглушка CheckoutGateway для тестов.
type MockGateway struct {
	Session    domain.CheckoutSession
	SessionErr error

	Status    domain.SessionStatus
	StatusErr error

	Event     domain.WebhookEvent
	VerifyErr error

	PingErr error

	CreateCalls int
	StatusCalls int
	VerifyCalls int
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Session: domain.CheckoutSession{
			ID:  "cs_test_mock",
			URL: "https://checkout.stripe.com/pay/cs_test_mock",
		},
		Status: domain.SessionStatus{
			ID:              "cs_test_mock",
			PaymentStatus:   "paid",
			PaymentIntentID: "pi_test_mock",
		},
	}
}

func (m *MockGateway) CreateCheckoutSession(_ context.Context, _ domain.Order) (domain.CheckoutSession, error) {
	m.CreateCalls++
	return m.Session, m.SessionErr
}

func (m *MockGateway) GetSessionStatus(_ context.Context, _ string) (domain.SessionStatus, error) {
	m.StatusCalls++
	return m.Status, m.StatusErr
}

func (m *MockGateway) VerifyWebhook(_ []byte, _ string) (domain.WebhookEvent, error) {
	m.VerifyCalls++
	return m.Event, m.VerifyErr
}

func (m *MockGateway) Ping(_ context.Context) error {
	return m.PingErr
}

var _ domain.CheckoutGateway = (*MockGateway)(nil)
