package rest

import (
	"net/http"

	"atelier-backend/internal/repository"
	"atelier-backend/internal/transport/auth"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (h *Handler) exportDebts(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "authentication required")
		return
	}

	req, err := ValidateExportRequest(r)
	if err != nil {
		MapError(w, err)
		return
	}

	filter := repository.DebtsFilter{
		Status:         req.Status,
		TechnicianName: req.TechnicianName,
		CreatedSince:   req.CreatedSince,
	}

	exportID, err := h.exports.StartDebtsExport(r.Context(), req.Fields, filter, userID)
	if err != nil {
		h.logger.Warn("start debts export failed", zap.Error(err))
		MapError(w, err)
		return
	}

	SuccessAccepted(w, "export started", map[string]any{"export_id": exportID})
}

func (h *Handler) exportPayments(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "authentication required")
		return
	}

	req, err := ValidateExportRequest(r)
	if err != nil {
		MapError(w, err)
		return
	}

	filter := repository.PaymentsFilter{CreatedSince: req.CreatedSince}

	exportID, err := h.exports.StartPaymentsExport(r.Context(), filter, userID)
	if err != nil {
		h.logger.Error("start payments export failed", zap.Error(err))
		ErrorInternal(w, "failed to start export")
		return
	}

	SuccessAccepted(w, "export started", map[string]any{"export_id": exportID})
}

func (h *Handler) exportReceipts(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "authentication required")
		return
	}

	req, err := ValidateExportRequest(r)
	if err != nil {
		MapError(w, err)
		return
	}

	filter := repository.ReceiptsFilter{CreatedSince: req.CreatedSince}

	exportID, err := h.exports.StartReceiptsExport(r.Context(), filter, userID)
	if err != nil {
		h.logger.Error("start receipts export failed", zap.Error(err))
		ErrorInternal(w, "failed to start export")
		return
	}

	SuccessAccepted(w, "export started", map[string]any{"export_id": exportID})
}

func (h *Handler) exportJournal(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "authentication required")
		return
	}

	exportID, err := h.exports.StartJournalExport(r.Context(), userID)
	if err != nil {
		h.logger.Error("start journal export failed", zap.Error(err))
		ErrorInternal(w, "failed to start export")
		return
	}

	SuccessAccepted(w, "export started", map[string]any{"export_id": exportID})
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "authentication required")
		return
	}

	exports, err := h.exports.GetExports(r.Context(), userID)
	if err != nil {
		h.logger.Error("list exports failed", zap.Error(err))
		ErrorInternal(w, "failed to list exports")
		return
	}

	Success(w, "", exports)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "authentication required")
		return
	}

	exportID := chi.URLParam(r, "export_id")

	export, err := h.exports.GetExport(r.Context(), exportID, userID)
	if err != nil {
		ErrorNotFound(w, "export not found")
		return
	}

	Success(w, "", export)
}
