package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"atelier-backend/internal/domain"
	"atelier-backend/internal/repository"
	"atelier-backend/internal/transport/auth"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func actorFrom(r *http.Request) string {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		return "anonymous"
	}
	return fmt.Sprintf("user:%d", userID)
}

func debtIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, domain.NewValidationError("id", "id must be an integer")
	}
	return id, nil
}

func (h *Handler) createDebt(w http.ResponseWriter, r *http.Request) {
	in, err := ValidateCreateDebtRequest(r)
	if err != nil {
		MapError(w, err)
		return
	}

	debt, err := h.debts.Create(r.Context(), actorFrom(r), *in)
	if err != nil {
		h.logger.Warn("create debt failed", zap.Error(err))
		MapError(w, err)
		return
	}

	SuccessCreated(w, "debt created", debt)
}

func (h *Handler) listDebts(w http.ResponseWriter, r *http.Request) {
	filter := repository.DebtsFilter{}

	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.DebtStatus(v)
		switch status {
		case domain.StatusPending, domain.StatusPartiallyPaid, domain.StatusPaid:
			filter.Status = &status
		default:
			ErrorBadRequest(w, "status must be one of pending, partially_paid, paid")
			return
		}
	}
	if v := r.URL.Query().Get("technician"); v != "" {
		filter.TechnicianName = &v
	}

	debts, err := h.debts.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list debts failed", zap.Error(err))
		ErrorInternal(w, "failed to list debts")
		return
	}

	Success(w, "", debts)
}

func (h *Handler) getDebt(w http.ResponseWriter, r *http.Request) {
	id, err := debtIDParam(r)
	if err != nil {
		MapError(w, err)
		return
	}

	debt, err := h.debts.Get(r.Context(), id)
	if err != nil {
		MapError(w, err)
		return
	}

	Success(w, "", debt)
}

func (h *Handler) updateDebt(w http.ResponseWriter, r *http.Request) {
	id, err := debtIDParam(r)
	if err != nil {
		MapError(w, err)
		return
	}

	in, err := ValidateUpdateDebtRequest(r)
	if err != nil {
		MapError(w, err)
		return
	}

	debt, err := h.debts.Update(r.Context(), actorFrom(r), id, *in)
	if err != nil {
		h.logger.Warn("update debt failed", zap.Int64("id", id), zap.Error(err))
		MapError(w, err)
		return
	}

	Success(w, "debt updated", debt)
}

func (h *Handler) payDebt(w http.ResponseWriter, r *http.Request) {
	id, err := debtIDParam(r)
	if err != nil {
		MapError(w, err)
		return
	}

	amount, err := ValidatePayDebtRequest(r)
	if err != nil {
		MapError(w, err)
		return
	}

	payment, debt, err := h.payments.Apply(r.Context(), actorFrom(r), id, amount)
	if err != nil {
		h.logger.Warn("apply payment failed", zap.Int64("id", id), zap.Error(err))
		MapError(w, err)
		return
	}

	Success(w, "payment applied", map[string]any{
		"debt":    debt,
		"payment": payment,
	})
}

func (h *Handler) deleteDebt(w http.ResponseWriter, r *http.Request) {
	id, err := debtIDParam(r)
	if err != nil {
		MapError(w, err)
		return
	}

	if err := h.debts.Delete(r.Context(), actorFrom(r), id); err != nil {
		h.logger.Warn("delete debt failed", zap.Int64("id", id), zap.Error(err))
		MapError(w, err)
		return
	}

	SuccessNoContent(w)
}
