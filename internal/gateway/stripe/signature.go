package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kirtli/commerce/internal/domain"
)

// signatureTolerance ограничивает возраст подписи, чтобы отсечь replay.
const signatureTolerance = 5 * time.Minute

// VerifyWebhook проверяет подпись Stripe-Signature и разбирает событие.
// Тело должно быть сырыми байтами запроса до любого декодирования.
func (c *Client) VerifyWebhook(payload []byte, signatureHeader string) (domain.WebhookEvent, error) {
	ts, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return domain.WebhookEvent{}, err
	}

	if age := time.Since(time.Unix(ts, 0)); age > signatureTolerance || age < -signatureTolerance {
		return domain.WebhookEvent{}, fmt.Errorf("%w: timestamp outside tolerance", domain.ErrInvalidSignature)
	}

	expected := computeSignature(c.cfg.WebhookSecret, ts, payload)
	if !anySignatureMatches(expected, signatures) {
		return domain.WebhookEvent{}, fmt.Errorf("%w: no matching v1 signature", domain.ErrInvalidSignature)
	}

	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID                string `json:"id"`
				ClientReferenceID string `json:"client_reference_id"`
				Metadata          struct {
					OrderID string `json:"orderId"`
					UserID  string `json:"userId"`
				} `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("%w: decode webhook payload: %v", domain.ErrInvalidSignature, err)
	}

	orderID := event.Data.Object.ClientReferenceID
	if orderID == "" {
		orderID = event.Data.Object.Metadata.OrderID
	}

	return domain.WebhookEvent{
		ID:        event.ID,
		Type:      event.Type,
		SessionID: event.Data.Object.ID,
		OrderID:   orderID,
		UserID:    event.Data.Object.Metadata.UserID,
	}, nil
}

// parseSignatureHeader разбирает заголовок вида "t=1699999999,v1=abc,v1=def".
func parseSignatureHeader(header string) (int64, []string, error) {
	if strings.TrimSpace(header) == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", domain.ErrInvalidSignature)
	}

	var (
		ts         int64
		tsFound    bool
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", domain.ErrInvalidSignature)
			}
			ts = parsed
			tsFound = true
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if !tsFound || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: header missing t or v1", domain.ErrInvalidSignature)
	}
	return ts, signatures, nil
}

func computeSignature(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func anySignatureMatches(expected string, candidates []string) bool {
	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return true
		}
	}
	return false
}
