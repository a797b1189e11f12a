package email

import (
	"sync"

	"github.com/kirtli/commerce/internal/domain"
)

// MockSender — конфигурируемая заглушка EmailSender для тестов.
type MockSender struct {
	mu sync.Mutex

	ConfirmationResult bool
	ShippedResult      bool

	ConfirmationCalls int
	ShippedCalls      int
	LastRecipient     string
}

// NewMockSender возвращает mock с успешным сценарием по умолчанию.
func NewMockSender() *MockSender {
	return &MockSender{ConfirmationResult: true, ShippedResult: true}
}

func (m *MockSender) SendOrderConfirmation(_ domain.Order, user domain.User) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfirmationCalls++
	m.LastRecipient = user.Email
	return m.ConfirmationResult
}

func (m *MockSender) SendOrderShipped(_ domain.Order, _ domain.ShippingInfo, user domain.User) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShippedCalls++
	m.LastRecipient = user.Email
	return m.ShippedResult
}

// Counts возвращает счётчики вызовов под mutex-ом.
func (m *MockSender) Counts() (confirmations, shipped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ConfirmationCalls, m.ShippedCalls
}

var _ domain.EmailSender = (*MockSender)(nil)
