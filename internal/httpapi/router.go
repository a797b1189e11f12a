package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/kirtli/commerce/internal/domain"
	"github.com/kirtli/commerce/internal/service/lifecycle"
	"github.com/kirtli/commerce/internal/service/stats"
)

const requestTimeout = 30 * time.Second

// Handler связывает HTTP-поверхность с сервисами жизненного цикла.
type Handler struct {
	lifecycle *lifecycle.Manager
	stats     *stats.Aggregator
	gateway   domain.CheckoutGateway
	verifier  TokenVerifier
	logger    *log.Entry
}

// NewHandler создаёт HTTP-обработчик API.
func NewHandler(
	manager *lifecycle.Manager,
	aggregator *stats.Aggregator,
	gateway domain.CheckoutGateway,
	verifier TokenVerifier,
	logger *log.Entry,
) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "httpapi")
	}
	return &Handler{
		lifecycle: manager,
		stats:     aggregator,
		gateway:   gateway,
		verifier:  verifier,
		logger:    logger,
	}
}

// Router собирает маршруты API. Вебхук шлюза живёт вне auth-middleware:
// его аутентификация — подпись в заголовке.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Post("/api/gateway/webhook", h.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware)

		r.Post("/api/orders", h.handleCreateOrder)
		r.Get("/api/orders", h.handleListOrders)
		r.Get("/api/orders/{id}", h.handleGetOrder)
		r.Get("/api/orders/{id}/details", h.handleOrderDetails)
		// Два маршрута подтверждения: редирект success-страницы и явный вызов фронтенда.
		r.Post("/api/orders/{id}/confirm-stripe", h.handleConfirmPayment)
		r.Post("/api/orders/{id}/success", h.handleConfirmPayment)
		r.Put("/api/orders/{id}/status", h.handleUpdateStatus)

		r.Get("/api/stats", h.handleStats)
		r.Get("/api/gateway/health", h.handleGatewayHealth)
	})

	return r
}
