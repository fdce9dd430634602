package rest

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

func (h *Handler) listJournal(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			ErrorBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := h.journal.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list journal failed", zap.Error(err))
		ErrorInternal(w, "failed to list journal")
		return
	}

	Success(w, "", entries)
}
