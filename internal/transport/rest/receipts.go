package rest

import (
	"net/http"
	"strconv"

	"atelier-backend/internal/repository"

	"go.uber.org/zap"
)

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	filter := repository.ReceiptsFilter{}

	if v := r.URL.Query().Get("invoice_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			ErrorBadRequest(w, "invoice_id must be an integer")
			return
		}
		filter.InvoiceID = &id
	}

	receipts, err := h.receipts.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list receipts failed", zap.Error(err))
		ErrorInternal(w, "failed to list receipts")
		return
	}

	Success(w, "", receipts)
}
