package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"psikoadmin/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc taxonomyService
}

type taxonomyService interface {
	Catalog(ctx context.Context) (Catalog, error)
	ReplaceTopics(ctx context.Context, category, subcategory string, topics []string) ([]string, error)
}

type replaceTopicsRequest struct {
	Category string   `json:"category"`
	Topics   []string `json:"topics"`
}

func NewHandler(svc taxonomyService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Catalog(r.Context())
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) ReplaceTopics(w http.ResponseWriter, r *http.Request) {
	subcategory, err := url.PathUnescape(chi.URLParam(r, "subcategory"))
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid subcategory")
		return
	}
	var req replaceTopicsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	topics, err := h.svc.ReplaceTopics(r.Context(), req.Category, subcategory, req.Topics)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]any{
		"category":    req.Category,
		"subcategory": subcategory,
		"topics":      topics,
	})
}
