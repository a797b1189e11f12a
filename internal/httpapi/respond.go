package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/kirtli/commerce/internal/domain"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит класс ошибки в HTTP-статус. Внутренние ошибки
// наружу не раскрываются.
func writeError(w http.ResponseWriter, logger *log.Entry, err error) {
	switch {
	case domain.IsValidation(err), errors.Is(err, domain.ErrInvalidSignature):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrPaymentGateway):
		logger.WithError(err).Error("payment gateway error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		logger.WithError(err).Error("internal error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
