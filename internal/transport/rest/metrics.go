package rest

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

func (h *Handler) dashboardMetrics(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}

	includeDebts := false
	if v := r.URL.Query().Get("includeDebts"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			ErrorBadRequest(w, "includeDebts must be true or false")
			return
		}
		includeDebts = parsed
	}

	report, err := h.metrics.ComputeDashboard(r.Context(), period, includeDebts)
	if err != nil {
		h.logger.Warn("dashboard metrics failed", zap.String("period", period), zap.Error(err))
		MapError(w, err)
		return
	}

	Success(w, "", report)
}
