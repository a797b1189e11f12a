package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirtli/commerce/internal/domain"
)

const (
	cartKeyPrefix  = "cart:"
	defaultTimeout = 3 * time.Second
)

// CartStore очищает корзины, которые фронтенд держит в Redis.
type CartStore struct {
	client *redis.Client
}

// Open подключается к Redis и проверяет доступность.
func Open(ctx context.Context, addr, password string, db int) (*CartStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &CartStore{client: client}, nil
}

// Clear удаляет корзину пользователя. Отсутствие ключа — не ошибка.
func (s *CartStore) Clear(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := s.client.Del(ctx, cartKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("clear cart for %s: %w", userID, err)
	}
	return nil
}

// Ping проверяет доступность Redis.
func (s *CartStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close закрывает подключение.
func (s *CartStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

var _ domain.CartStore = (*CartStore)(nil)
