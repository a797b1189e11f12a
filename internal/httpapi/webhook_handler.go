package httpapi

import (
	"io"
	"net/http"
)

// Тело читается сырыми байтами: подпись считается до любого декодирования.
const maxWebhookBody = 1 << 20

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.WithError(err).Warn("failed to read webhook body")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read body"})
		return
	}

	if err := h.lifecycle.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
