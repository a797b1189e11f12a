package memory

import (
	"context"
	"sync"

	"github.com/kirtli/commerce/internal/domain"
)

// CartStore — in-memory корзины для тестов и dev-режима без Redis.
type CartStore struct {
	mu    sync.RWMutex
	carts map[string][]string
}

// NewCartStore возвращает пустое in-memory хранилище корзин.
func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string][]string)}
}

// Put кладёт товары в корзину пользователя (хелпер для тестов и сидинга).
func (s *CartStore) Put(userID string, productIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = append(s.carts[userID], productIDs...)
}

// Items возвращает текущее содержимое корзины.
func (s *CartStore) Items(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.carts[userID]...)
}

// Clear очищает корзину пользователя.
func (s *CartStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

var _ domain.CartStore = (*CartStore)(nil)
