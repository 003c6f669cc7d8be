package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"psikoadmin/internal/app/apiresp"
)

type Handler struct {
	svc drafter
}

type drafter interface {
	DraftExplanation(ctx context.Context, req DraftRequest) (Result, error)
}

func NewHandler(svc drafter) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) DraftExplanation(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.DraftExplanation(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, result)
}
