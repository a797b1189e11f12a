package memory

import (
	"context"
	"sync"

	"github.com/kirtli/commerce/internal/domain"
)

// UserStore — in-memory срез учётных записей. Управление аккаунтами —
// внешний сервис, ядру нужен только просмотр по ID.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewUserStore возвращает пустое хранилище пользователей.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

// Add регистрирует пользователя (хелпер для тестов и сидинга).
func (s *UserStore) Add(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// FindByID возвращает пользователя или ErrUserNotFound.
func (s *UserStore) FindByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

var _ domain.UserStore = (*UserStore)(nil)
