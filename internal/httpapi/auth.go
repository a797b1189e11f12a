package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirtli/commerce/internal/domain"
)

// Identity — аутентифицированный вызывающий.
type Identity struct {
	UserID  string
	IsAdmin bool
}

// TokenVerifier проверяет bearer-токен и возвращает личность вызывающего.
// Выпуск токенов — зона ответственности внешнего auth-сервиса.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// StaticVerifier — верификатор по фиксированной таблице токенов.
// Используется в dev-режиме и в тестах.
type StaticVerifier struct {
	tokens map[string]Identity
}

// NewStaticVerifier создаёт верификатор с заданной таблицей токенов.
func NewStaticVerifier(tokens map[string]Identity) *StaticVerifier {
	if tokens == nil {
		tokens = make(map[string]Identity)
	}
	return &StaticVerifier{tokens: tokens}
}

// Verify возвращает личность по токену или ErrUnauthorized.
func (v *StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	identity, ok := v.tokens[token]
	if !ok {
		return Identity{}, fmt.Errorf("%w: unknown token", domain.ErrUnauthorized)
	}
	return identity, nil
}

var _ TokenVerifier = (*StaticVerifier)(nil)

type contextKey struct{}

var identityKey contextKey

// identityFrom достаёт личность из контекста запроса.
func identityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// authMiddleware требует валидный bearer-токен и кладёт личность в контекст.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, h.logger, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized))
			return
		}

		identity, err := h.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireOwnerOrAdmin запрещает доступ к чужому заказу не-администратору.
func requireOwnerOrAdmin(identity Identity, ownerID string) error {
	if identity.IsAdmin || identity.UserID == ownerID {
		return nil
	}
	return fmt.Errorf("%w: order belongs to another user", domain.ErrUnauthorized)
}

// requireAdmin допускает только администраторов.
func requireAdmin(identity Identity) error {
	if identity.IsAdmin {
		return nil
	}
	return fmt.Errorf("%w: admin access required", domain.ErrUnauthorized)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}
