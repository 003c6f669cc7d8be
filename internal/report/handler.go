package report

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"psikoadmin/internal/app/apiresp"
	"psikoadmin/internal/auth"
)

type Handler struct {
	svc resultService
}

type resultService interface {
	ListByOwner(ctx context.Context, owner string, limit int) ([]Result, error)
	SummaryByOwner(ctx context.Context, owner string) (*OwnerSummary, error)
}

type resultsPayload struct {
	Items   []Result      `json:"items"`
	Summary *OwnerSummary `json:"summary"`
}

func NewHandler(svc resultService) *Handler {
	return &Handler{svc: svc}
}

// Results lists the caller's practice history. Admins may pass ?owner= to
// read another user's history.
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.CurrentPrincipal(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	owner := p.Subject
	if q := strings.TrimSpace(r.URL.Query().Get("owner")); q != "" && q != p.Subject {
		if !p.IsAdmin() {
			apiresp.WriteError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		owner = q
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			apiresp.WriteError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := h.svc.ListByOwner(r.Context(), owner, limit)
	if err != nil {
		writeResultError(w, r, err)
		return
	}
	summary, err := h.svc.SummaryByOwner(r.Context(), owner)
	if err != nil {
		writeResultError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, resultsPayload{Items: items, Summary: summary})
}

func writeResultError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrInvalidInput) {
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
}
