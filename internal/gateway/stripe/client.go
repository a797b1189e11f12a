package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirtli/commerce/internal/domain"
)

const (
	defaultAPIBase     = "https://api.stripe.com"
	defaultHTTPTimeout = 15 * time.Second

	// Stripe отклоняет платежи меньше минимальной суммы, поэтому каждую
	// позицию поднимаем хотя бы до 50 минорных единиц.
	minUnitAmountMinor = 50
)

// Config — настройки подключения к Stripe.
type Config struct {
	SecretKey     string
	WebhookSecret string
	FrontendURL   string
	Currency      string
	APIBase       string
}

// Client ходит в Stripe REST API и проверяет подписи вебхуков.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient создаёт клиент Stripe. Пустой APIBase означает боевой эндпоинт.
func NewClient(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Currency == "" {
		cfg.Currency = "gbp"
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// CreateCheckoutSession создаёт hosted checkout session для заказа.
// Стоимость доставки передаётся отдельной позицией.
func (c *Client) CreateCheckoutSession(ctx context.Context, order domain.Order) (domain.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", order.ID)
	form.Set("success_url", c.cfg.FrontendURL+"/order-success?session_id={CHECKOUT_SESSION_ID}&orderId="+url.QueryEscape(order.ID))
	form.Set("cancel_url", c.cfg.FrontendURL+"/cart")
	form.Set("metadata[orderId]", order.ID)
	form.Set("metadata[userId]", order.UserID)
	form.Set("shipping_address_collection[allowed_countries][0]", "GB")

	for i, item := range order.Items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.FormatInt(int64(item.Quantity), 10))
		form.Set(prefix+"[price_data][currency]", c.cfg.Currency)
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(toMinorUnits(item.UnitPrice), 10))
	}
	if order.ShippingCost > 0 {
		prefix := fmt.Sprintf("line_items[%d]", len(order.Items))
		form.Set(prefix+"[quantity]", "1")
		form.Set(prefix+"[price_data][currency]", c.cfg.Currency)
		form.Set(prefix+"[price_data][product_data][name]", "Shipping Fee")
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(toMinorUnits(order.ShippingCost), 10))
	}

	var session struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return domain.CheckoutSession{}, err
	}

	return domain.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// GetSessionStatus возвращает состояние оплаты по checkout session.
func (c *Client) GetSessionStatus(ctx context.Context, sessionID string) (domain.SessionStatus, error) {
	var session struct {
		ID              string `json:"id"`
		PaymentStatus   string `json:"payment_status"`
		PaymentIntent   string `json:"payment_intent"`
		CustomerDetails struct {
			Email string `json:"email"`
		} `json:"customer_details"`
	}
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &session); err != nil {
		return domain.SessionStatus{}, err
	}

	return domain.SessionStatus{
		ID:              session.ID,
		PaymentStatus:   session.PaymentStatus,
		PaymentIntentID: session.PaymentIntent,
		CustomerEmail:   session.CustomerDetails.Email,
	}, nil
}

// Ping проверяет валидность ключа и доступность API лёгким запросом баланса.
func (c *Client) Ping(ctx context.Context) error {
	var balance struct {
		Object string `json:"object"`
	}
	return c.do(ctx, http.MethodGet, "/v1/balance", nil, &balance)
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBase+path, body)
	if err != nil {
		return fmt.Errorf("%w: build stripe request: %v", domain.ErrPaymentGateway, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: call stripe %s %s: %v", domain.ErrPaymentGateway, method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read stripe response: %v", domain.ErrPaymentGateway, err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: stripe %s %s: %s", domain.ErrPaymentGateway, method, path, stripeErrorMessage(resp.StatusCode, payload))
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: decode stripe response: %v", domain.ErrPaymentGateway, err)
	}
	return nil
}

func stripeErrorMessage(status int, payload []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Error.Message != "" {
		return fmt.Sprintf("status %d (%s): %s", status, body.Error.Type, body.Error.Message)
	}
	return fmt.Sprintf("status %d", status)
}

// toMinorUnits переводит сумму в минорные единицы с нижней границей Stripe.
func toMinorUnits(amount float64) int64 {
	minor := int64(math.Round(amount * 100))
	if minor < minUnitAmountMinor {
		return minUnitAmountMinor
	}
	return minor
}

var _ domain.CheckoutGateway = (*Client)(nil)
