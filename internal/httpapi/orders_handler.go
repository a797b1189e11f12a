package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kirtli/commerce/internal/domain"
	"github.com/kirtli/commerce/internal/service/lifecycle"
)

type createOrderRequest struct {
	Items           []domain.OrderItem `json:"items"`
	ShippingAddress domain.Address     `json:"shippingAddress"`
	CustomerEmail   string             `json:"customerEmail"`
	CustomerName    string             `json:"customerName"`
}

type createOrderResponse struct {
	OrderID       string  `json:"orderId"`
	OrderNumber   string  `json:"orderNumber"`
	SessionID     string  `json:"sessionId"`
	CheckoutURL   string  `json:"checkoutUrl"`
	PaymentMethod string  `json:"paymentMethod"`
	PaymentStatus string  `json:"paymentStatus"`
	ShippingFee   float64 `json:"shippingFee"`
	GrandTotal    float64 `json:"grandTotal"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid json body", domain.ErrValidation))
		return
	}

	result, err := h.lifecycle.CreateOrder(r.Context(), lifecycle.CreateOrderInput{
		UserID:          identity.UserID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    req.CustomerName,
	})
	if err != nil {
		// Заказ сохранён, но сессия у шлюза не открылась: клиенту нужен ID для ретрая.
		if errors.Is(err, domain.ErrPaymentGateway) && result.Order.ID != "" {
			h.logger.WithError(err).Error("payment gateway error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":         err.Error(),
				"orderId":       result.Order.ID,
				"paymentStatus": string(domain.PaymentStatusFailed),
			})
			return
		}
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		OrderID:       result.Order.ID,
		OrderNumber:   result.Order.OrderNumber(),
		SessionID:     result.SessionID,
		CheckoutURL:   result.CheckoutURL,
		PaymentMethod: result.Order.PaymentMethod,
		PaymentStatus: string(result.Order.PaymentStatus),
		ShippingFee:   result.Order.ShippingCost,
		GrandTotal:    result.Order.GrandTotal,
	})
}

type confirmPaymentRequest struct {
	SessionID    string `json:"sessionId"`
	SessionIDAlt string `json:"session_id"`
}

func (r confirmPaymentRequest) sessionID() string {
	if r.SessionID != "" {
		return r.SessionID
	}
	return r.SessionIDAlt
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	orderID := chi.URLParam(r, "id")

	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid json body", domain.ErrValidation))
		return
	}

	order, err := h.lifecycle.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := requireOwnerOrAdmin(identity, order.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	order, err = h.lifecycle.ConfirmPayment(r.Context(), orderID, req.sessionID())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"orderId":       order.ID,
		"paymentStatus": order.PaymentStatus,
		"order":         order,
	})
}

type updateStatusRequest struct {
	Status       string               `json:"status"`
	ShippingInfo *domain.ShippingInfo `json:"shippingInfo"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	if err := requireAdmin(identity); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: invalid json body", domain.ErrValidation))
		return
	}

	order, err := h.lifecycle.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"),
		domain.OrderStatus(req.Status), req.ShippingInfo)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": order})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	order, err := h.lifecycle.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := requireOwnerOrAdmin(identity, order.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

type orderDetailsResponse struct {
	domain.Order
	OrderNumber string `json:"orderNumber"`
}

// handleOrderDetails отдаёт заказ с человекочитаемым номером для страницы деталей.
func (h *Handler) handleOrderDetails(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	order, err := h.lifecycle.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := requireOwnerOrAdmin(identity, order.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, orderDetailsResponse{
		Order:       order,
		OrderNumber: order.OrderNumber(),
	})
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	// Администратор может смотреть заказы любого пользователя.
	userID := identity.UserID
	if requested := r.URL.Query().Get("userId"); requested != "" && requested != identity.UserID {
		if err := requireAdmin(identity); err != nil {
			writeError(w, h.logger, err)
			return
		}
		userID = requested
	}

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", 20)
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	orders, total, err := h.lifecycle.ListOrders(r.Context(), userID, (page-1)*limit, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"orders":     orders,
		"total":      total,
		"page":       page,
		"limit":      limit,
		"totalPages": totalPages,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
