package httpapi

import (
	"net/http"
)

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	if err := requireAdmin(identity); err != nil {
		writeError(w, h.logger, err)
		return
	}

	days := queryInt(r, "days", 0)
	dashboard, err := h.stats.Dashboard(r.Context(), days)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dashboard)
}

// handleGatewayHealth проверяет связность с платёжным шлюзом.
func (h *Handler) handleGatewayHealth(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	if err := requireAdmin(identity); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.gateway.Ping(r.Context()); err != nil {
		h.logger.WithError(err).Warn("gateway health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"gateway": "unreachable",
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"gateway": "ok"})
}
