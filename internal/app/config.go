package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kirtli/commerce/internal/httpapi"
)

// Config описывает настройки запуска приложения.
type Config struct {
	APIAddr     string
	MetricsAddr string

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers string
	KafkaTopic   string

	StripeSecretKey     string
	StripeWebhookSecret string
	FrontendURL         string
	Currency            string
	ShippingFee         float64

	MailgunAPIKey string
	MailgunDomain string
	EmailFrom     string

	// AuthTokens — таблица токенов вида "token:userID[:admin],...".
	// В production заменяется интеграцией с auth-сервисом.
	AuthTokens string
}

// DefaultConfig возвращает базовые настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		APIAddr:     ":8080",
		MetricsAddr: ":9090",
		KafkaTopic:  "commerce.order.events",
		FrontendURL: "http://localhost:3000",
		Currency:    "gbp",
		ShippingFee: 3.5,
	}
}

// ConfigFromEnv собирает конфигурацию из переменных окружения
// поверх значений по умолчанию.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.APIAddr = getenv("COMMERCE_API_ADDR", cfg.APIAddr)
	cfg.MetricsAddr = getenv("COMMERCE_METRICS_ADDR", cfg.MetricsAddr)
	cfg.PostgresDSN = getenv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getenv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getenvInt("REDIS_DB", cfg.RedisDB)
	cfg.KafkaBrokers = getenv("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = getenv("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.StripeSecretKey = getenv("STRIPE_SECRET_KEY", cfg.StripeSecretKey)
	cfg.StripeWebhookSecret = getenv("STRIPE_WEBHOOK_SECRET", cfg.StripeWebhookSecret)
	cfg.FrontendURL = getenv("FRONTEND_URL", cfg.FrontendURL)
	cfg.Currency = getenv("CURRENCY", cfg.Currency)
	cfg.ShippingFee = getenvFloat("SHIPPING_FEE", cfg.ShippingFee)
	cfg.MailgunAPIKey = getenv("MAILGUN_API_KEY", cfg.MailgunAPIKey)
	cfg.MailgunDomain = getenv("MAILGUN_DOMAIN", cfg.MailgunDomain)
	cfg.EmailFrom = getenv("EMAIL_FROM", cfg.EmailFrom)
	cfg.AuthTokens = getenv("AUTH_TOKENS", cfg.AuthTokens)
	return cfg
}

// ParseAuthTokens разбирает таблицу токенов из конфигурации.
func ParseAuthTokens(raw string) (map[string]httpapi.Identity, error) {
	tokens := make(map[string]httpapi.Identity)
	if strings.TrimSpace(raw) == "" {
		return tokens, nil
	}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid auth token entry %q", entry)
		}
		identity := httpapi.Identity{UserID: parts[1]}
		if len(parts) > 2 && parts[2] == "admin" {
			identity.IsAdmin = true
		}
		tokens[parts[0]] = identity
	}
	return tokens, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
