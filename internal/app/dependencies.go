package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/kirtli/commerce/internal/domain"
	"github.com/kirtli/commerce/internal/gateway/stripe"
	"github.com/kirtli/commerce/internal/messaging/kafka"
	"github.com/kirtli/commerce/internal/service/email"
	"github.com/kirtli/commerce/internal/storage/memory"
	"github.com/kirtli/commerce/internal/storage/postgres"
	redisstore "github.com/kirtli/commerce/internal/storage/redis"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Orders   domain.OrderRepository
	Carts    domain.CartStore
	Users    domain.UserStore
	Gateway  domain.CheckoutGateway
	Emails   domain.EmailSender
	Producer *kafka.Producer
	Logger   *log.Entry

	store      *postgres.Store
	redisCarts *redisstore.CartStore
}

// NewDependencies инициализирует зависимости по конфигурации. Без
// PostgreSQL и Redis приложение работает на in-memory хранилищах,
// без ключа Stripe — на mock-шлюзе: удобно для локальной разработки.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		deps.store = store
		deps.Orders = postgres.NewOrderRepository(store)
		logger.Info("postgres order repository initialized")
	} else {
		deps.Orders = memory.NewOrderRepository()
		logger.Warn("POSTGRES_DSN is empty, using in-memory order repository")
	}

	if cfg.RedisAddr != "" {
		carts, err := redisstore.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		deps.redisCarts = carts
		deps.Carts = carts
		logger.Info("redis cart store initialized")
	} else {
		deps.Carts = memory.NewCartStore()
		logger.Warn("REDIS_ADDR is empty, using in-memory cart store")
	}

	// NOTE: учётные записи живут во внешнем сервисе; in-memory стор
	// покрывает dev-режим и тесты.
	deps.Users = memory.NewUserStore()

	if cfg.StripeSecretKey != "" {
		deps.Gateway = stripe.NewClient(stripe.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			FrontendURL:   cfg.FrontendURL,
			Currency:      cfg.Currency,
		})
	} else {
		deps.Gateway = stripe.NewMockGateway()
		logger.Warn("STRIPE_SECRET_KEY is empty, using mock checkout gateway")
	}

	deps.Emails = email.NewMailgunSender(email.Config{
		APIKey: cfg.MailgunAPIKey,
		Domain: cfg.MailgunDomain,
		From:   cfg.EmailFrom,
	}, logger.WithField("component", "email"))

	if cfg.KafkaBrokers != "" {
		brokers := strings.Split(cfg.KafkaBrokers, ",")
		producer, err := kafka.NewProducer(brokers, cfg.KafkaTopic)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			deps.Producer = producer
			logger.WithField("brokers", brokers).Info("kafka producer initialized")
		}
	}

	return deps, nil
}

// Close освобождает внешние подключения.
func (d *Dependencies) Close() {
	if d.Producer != nil {
		if err := d.Producer.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close kafka producer")
		}
	}
	if d.redisCarts != nil {
		if err := d.redisCarts.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
