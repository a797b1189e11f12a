package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kirtli/commerce/internal/domain"
	"github.com/kirtli/commerce/internal/gateway/stripe"
	"github.com/kirtli/commerce/internal/service/email"
	"github.com/kirtli/commerce/internal/service/lifecycle"
	"github.com/kirtli/commerce/internal/service/stats"
	"github.com/kirtli/commerce/internal/storage/memory"
)

type apiFixture struct {
	server  *httptest.Server
	manager *lifecycle.Manager
	orders  domain.OrderRepository
	gateway *stripe.MockGateway
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	orders := memory.NewOrderRepository()
	gateway := stripe.NewMockGateway()
	users := memory.NewUserStore()
	users.Add(domain.User{ID: "user-1", Email: "buyer@example.com", Name: "Buyer"})

	manager := lifecycle.NewManager(lifecycle.Options{
		Orders:      orders,
		Gateway:     gateway,
		Carts:       memory.NewCartStore(),
		Users:       users,
		Emails:      email.NewMockSender(),
		ShippingFee: 3.5,
	})

	verifier := NewStaticVerifier(map[string]Identity{
		"user-token":  {UserID: "user-1"},
		"other-token": {UserID: "user-2"},
		"admin-token": {UserID: "admin-1", IsAdmin: true},
	})

	handler := NewHandler(manager, stats.NewAggregator(orders, nil), gateway, verifier, nil)
	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)

	return &apiFixture{server: server, manager: manager, orders: orders, gateway: gateway}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func createOrderBody() map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"productId": "p-1", "name": "Mug", "price": 10.0, "quantity": 2},
		},
		"shippingAddress": map[string]any{
			"line1": "1 High Street", "city": "London", "postalCode": "N1 1AA", "country": "GB",
		},
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/orders", "user-token", createOrderBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body createOrderResponse
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.OrderID)
	require.Equal(t, "cs_test_mock", body.SessionID)
	require.Contains(t, body.CheckoutURL, "checkout.stripe.com")
	require.Equal(t, "stripe", body.PaymentMethod)
	require.Equal(t, "pending", body.PaymentStatus)
	require.Equal(t, 3.5, body.ShippingFee)
	require.Equal(t, 23.5, body.GrandTotal)
}

func TestCreateOrder_RequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/orders", "", createOrderBody())
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, "/api/orders", "bogus", createOrderBody())
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateOrder_ValidationError(t *testing.T) {
	f := newAPIFixture(t)

	body := createOrderBody()
	body["items"] = []map[string]any{}

	resp := f.do(t, http.MethodPost, "/api/orders", "user-token", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	require.Contains(t, errBody["error"], "at least one item")
}

func TestCreateOrder_InvalidJSON(t *testing.T) {
	f := newAPIFixture(t)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/orders", bytes.NewBufferString("{broken"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer user-token")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConfirmPaymentEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/orders", "user-token", createOrderBody())
	var created createOrderResponse
	decodeBody(t, resp, &created)

	resp = f.do(t, http.MethodPost, "/api/orders/"+created.OrderID+"/confirm-stripe", "user-token",
		map[string]string{"sessionId": "cs_test_mock"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success       bool         `json:"success"`
		OrderID       string       `json:"orderId"`
		PaymentStatus string       `json:"paymentStatus"`
		Order         domain.Order `json:"order"`
	}
	decodeBody(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, created.OrderID, body.OrderID)
	require.Equal(t, string(domain.PaymentStatusCompleted), body.PaymentStatus)
	require.Equal(t, domain.PaymentStatusCompleted, body.Order.PaymentStatus)
	require.Equal(t, domain.OrderStatusProcessing, body.Order.OrderStatus)
}

func TestConfirmPayment_SnakeCaseSessionID(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/orders", "user-token", createOrderBody())
	var created createOrderResponse
	decodeBody(t, resp, &created)

	// Редирект со success-страницы шлёт session_id в snake case.
	resp = f.do(t, http.MethodPost, "/api/orders/"+created.OrderID+"/success", "user-token",
		map[string]string{"session_id": "cs_test_mock"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestConfirmPayment_ForeignOrder(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/orders", "user-token", createOrderBody())
	var created createOrderResponse
	decodeBody(t, resp, &created)

	resp = f.do(t, http.MethodPost, "/api/orders/"+created.OrderID+"/confirm-stripe", "other-token",
		map[string]string{"sessionId": "cs_test_mock"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Администратору можно.
	resp = f.do(t, http.MethodPost, "/api/orders/"+created.OrderID+"/confirm-stripe", "admin-token",
		map[string]string{"sessionId": "cs_test_mock"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestWebhookEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/orders", "user-token", createOrderBody())
	var created createOrderResponse
	decodeBody(t, resp, &created)

	f.gateway.Event = domain.WebhookEvent{
		ID:        "evt_1",
		Type:      domain.WebhookCheckoutCompleted,
		SessionID: "cs_test_mock",
		OrderID:   created.OrderID,
	}

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/gateway/webhook",
		bytes.NewBufferString(`{"type":"checkout.session.completed"}`))
	require.NoError(t, err)
	req.Header.Set("Stripe-Signature", "t=1,v1=x")

	wresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, wresp.StatusCode)

	var body map[string]bool
	decodeBody(t, wresp, &body)
	require.True(t, body["success"])

	stored, err := f.orders.Get(req.Context(), created.OrderID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusCompleted, stored.PaymentStatus)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	f := newAPIFixture(t)
	f.gateway.VerifyErr = domain.ErrInvalidSignature

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/gateway/webhook",
		bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	req.Header.Set("Stripe-Signature", "t=1,v1=bad")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/orders", "user-token", createOrderBody())
	var created createOrderResponse
	decodeBody(t, resp, &created)

	// Не администратору запрещено.
	resp = f.do(t, http.MethodPut, "/api/orders/"+created.OrderID+"/status", "user-token",
		map[string]any{"status": "shipped"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// shipped без трек-номера — ошибка валидации.
	resp = f.do(t, http.MethodPut, "/api/orders/"+created.OrderID+"/status", "admin-token",
		map[string]any{"status": "shipped"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Значение вне перечисления.
	resp = f.do(t, http.MethodPut, "/api/orders/"+created.OrderID+"/status", "admin-token",
		map[string]any{"status": "completed"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPut, "/api/orders/"+created.OrderID+"/status", "admin-token",
		map[string]any{
			"status":       "shipped",
			"shippingInfo": map[string]string{"courierName": "Royal Mail", "trackingNumber": "RM123"},
		})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Order domain.Order `json:"order"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, domain.OrderStatusShipped, body.Order.OrderStatus)
	require.NotNil(t, body.Order.ShippingInfo)
}

func TestGetOrderEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/orders/nope", "user-token", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, "/api/orders", "user-token", createOrderBody())
	var created createOrderResponse
	decodeBody(t, resp, &created)

	resp = f.do(t, http.MethodGet, "/api/orders/"+created.OrderID, "user-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/api/orders/"+created.OrderID, "other-token", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestOrderDetailsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/orders", "user-token", createOrderBody())
	var created createOrderResponse
	decodeBody(t, resp, &created)

	resp = f.do(t, http.MethodGet, "/api/orders/"+created.OrderID+"/details", "user-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID            string `json:"_id"`
		OrderNumber   string `json:"orderNumber"`
		CustomerEmail string `json:"customerEmail"`
	}
	decodeBody(t, resp, &body)
	require.Equal(t, created.OrderID, body.ID)
	require.Equal(t, created.OrderNumber, body.OrderNumber)
	require.Equal(t, "buyer@example.com", body.CustomerEmail)

	resp = f.do(t, http.MethodGet, "/api/orders/"+created.OrderID+"/details", "other-token", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateOrder_GatewayFailureBody(t *testing.T) {
	f := newAPIFixture(t)
	f.gateway.SessionErr = domain.ErrPaymentGateway

	resp := f.do(t, http.MethodPost, "/api/orders", "user-token", createOrderBody())
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body["orderId"])
	require.Equal(t, "failed", body["paymentStatus"])

	// Заказ действительно остался в хранилище.
	stored, err := f.orders.Get(context.Background(), body["orderId"])
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusFailed, stored.PaymentStatus)
}

func TestListOrdersEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	for i := 0; i < 3; i++ {
		resp := f.do(t, http.MethodPost, "/api/orders", "user-token", createOrderBody())
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := f.do(t, http.MethodGet, "/api/orders?limit=2", "user-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Orders     []domain.Order `json:"orders"`
		Total      int64          `json:"total"`
		Page       int            `json:"page"`
		TotalPages int64          `json:"totalPages"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Orders, 2)
	require.EqualValues(t, 3, body.Total)
	require.Equal(t, 1, body.Page)
	require.EqualValues(t, 2, body.TotalPages)

	resp = f.do(t, http.MethodGet, "/api/orders?limit=2&page=2", "user-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &body)
	require.Len(t, body.Orders, 1)

	// Чужой userId доступен только администратору.
	resp = f.do(t, http.MethodGet, "/api/orders?userId=user-1", "other-token", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/api/orders?userId=user-1", "admin-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestStatsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/stats", "user-token", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	created := f.do(t, http.MethodPost, "/api/orders", "user-token", createOrderBody())
	require.Equal(t, http.StatusCreated, created.StatusCode)
	created.Body.Close()

	resp = f.do(t, http.MethodGet, "/api/stats?days=7", "admin-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body domain.DashboardStats
	decodeBody(t, resp, &body)
	require.EqualValues(t, 1, body.Summary.TotalOrders)
	require.EqualValues(t, 1, body.Summary.PendingOrders)
	require.Equal(t, 7, body.TimeRange.Days)
}

func TestGatewayHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/gateway/health", "admin-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	f.gateway.PingErr = domain.ErrPaymentGateway
	resp = f.do(t, http.MethodGet, "/api/gateway/health", "admin-token", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}
