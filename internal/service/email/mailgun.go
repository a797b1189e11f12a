package email

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kirtli/commerce/internal/domain"
)

const (
	defaultAPIBase = "https://api.mailgun.net"
	sendTimeout    = 10 * time.Second
)

// Config — настройки Mailgun.
type Config struct {
	APIKey  string
	Domain  string
	From    string
	APIBase string
}

// MailgunSender отправляет транзакционные письма через Mailgun.
// Отправка не влияет на исход операции с заказом: методы возвращают
// только признак успеха для метрик и логов.
type MailgunSender struct {
	cfg    Config
	http   *http.Client
	logger *log.Entry
}

// NewMailgunSender создаёт отправитель писем.
func NewMailgunSender(cfg Config, logger *log.Entry) *MailgunSender {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if logger == nil {
		logger = log.New().WithField("component", "email")
	}
	return &MailgunSender{
		cfg:    cfg,
		http:   &http.Client{Timeout: sendTimeout},
		logger: logger,
	}
}

// SendOrderConfirmation отправляет письмо о подтверждении оплаты.
func (s *MailgunSender) SendOrderConfirmation(order domain.Order, user domain.User) bool {
	subject := fmt.Sprintf("Order Confirmation %s", order.OrderNumber())
	body := confirmationBody(order, user)
	return s.send(user.Email, subject, body)
}

// SendOrderShipped отправляет письмо с трек-номером.
func (s *MailgunSender) SendOrderShipped(order domain.Order, info domain.ShippingInfo, user domain.User) bool {
	subject := fmt.Sprintf("Your order %s has been shipped", order.OrderNumber())
	body := shippedBody(order, info, user)
	return s.send(user.Email, subject, body)
}

func (s *MailgunSender) send(to, subject, body string) bool {
	if s.cfg.APIKey == "" || s.cfg.Domain == "" {
		s.logger.Debug("mailgun is not configured, skipping email")
		return false
	}
	if to == "" {
		s.logger.Warn("recipient email is empty, skipping email")
		return false
	}

	form := url.Values{}
	form.Set("from", s.cfg.From)
	form.Set("to", to)
	form.Set("subject", subject)
	form.Set("text", body)

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v3/%s/messages", s.cfg.APIBase, s.cfg.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		s.logger.WithError(err).Error("failed to build mailgun request")
		return false
	}
	req.SetBasicAuth("api", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.WithError(err).WithField("to", to).Error("failed to send email")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		s.logger.WithFields(log.Fields{
			"to":     to,
			"status": resp.StatusCode,
		}).Error("mailgun rejected email")
		return false
	}

	s.logger.WithFields(log.Fields{
		"to":      to,
		"subject": subject,
	}).Info("email sent")
	return true
}

func confirmationBody(order domain.Order, user domain.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", user.Name)
	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", order.OrderNumber())
	for _, item := range order.Items {
		fmt.Fprintf(&b, "  %s x%d — £%.2f\n", item.Name, item.Quantity, item.UnitPrice*float64(item.Quantity))
	}
	fmt.Fprintf(&b, "\nShipping: £%.2f\n", order.ShippingCost)
	fmt.Fprintf(&b, "Total: £%.2f\n", order.GrandTotal)
	return b.String()
}

func shippedBody(order domain.Order, info domain.ShippingInfo, user domain.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", user.Name)
	fmt.Fprintf(&b, "Your order %s is on its way.\n\n", order.OrderNumber())
	fmt.Fprintf(&b, "Courier: %s\n", info.CourierName)
	fmt.Fprintf(&b, "Tracking number: %s\n", info.TrackingNumber)
	return b.String()
}

var _ domain.EmailSender = (*MailgunSender)(nil)
