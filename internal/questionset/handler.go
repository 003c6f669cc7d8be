package questionset

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"psikoadmin/internal/app/apiresp"
	"psikoadmin/internal/auth"

	"github.com/go-chi/chi/v5"
)

const maxImportBytes = 10 << 20

type Handler struct {
	svc setService
}

type setService interface {
	CreateSet(ctx context.Context, in CreateSetInput) (*QuestionSet, error)
	GetSet(ctx context.Context, id string) (*QuestionSet, error)
	ListSets(ctx context.Context, q CandidateQuery) (*Page, error)
	UpdateSet(ctx context.Context, id string, patch Patch) (*QuestionSet, error)
	DeleteSet(ctx context.Context, id string) error
	ExportSetsExcel(ctx context.Context, q CandidateQuery) ([]byte, error)
	ImportSetsExcel(ctx context.Context, actor string, r io.Reader) (*ImportReport, error)
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type createSetRequest struct {
	Category       string     `json:"category"`
	Subcategory    string     `json:"subcategory"`
	Topic          string     `json:"topic"`
	Difficulty     string     `json:"difficulty"`
	SharedText     string     `json:"shared_text"`
	SharedImageURL string     `json:"shared_image_url"`
	Questions      []Question `json:"questions"`
}

func NewHandler(svc setService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q, err := candidateQueryFromURL(r)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
		return
	}
	page, err := h.svc.ListSets(r.Context(), q)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: page})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.CurrentPrincipal(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}

	var req createSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	item, err := h.svc.CreateSet(r.Context(), CreateSetInput{
		Category:       req.Category,
		Subcategory:    req.Subcategory,
		Topic:          req.Topic,
		Difficulty:     req.Difficulty,
		SharedText:     req.SharedText,
		SharedImageURL: req.SharedImageURL,
		Questions:      req.Questions,
		CreatedBy:      p.Subject,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: item})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetSet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeSetError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var patch Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	if patch.IsEmpty() {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "empty patch"})
		return
	}
	item, err := h.svc.UpdateSet(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeSetError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSet(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeSetError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]string{"status": "deleted"}})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	q, err := candidateQueryFromURL(r)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
		return
	}
	content, err := h.svc.ExportSetsExcel(r.Context(), q)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}
	filename := "question-sets-" + time.Now().Format("20060102-150405") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.CurrentPrincipal(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid multipart form"})
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "file is required"})
		return
	}
	defer file.Close()

	report, err := h.svc.ImportSetsExcel(r.Context(), p.Subject, file)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: report})
}

func candidateQueryFromURL(r *http.Request) (CandidateQuery, error) {
	v := r.URL.Query()
	q := CandidateQuery{
		Cursor:     strings.TrimSpace(v.Get("cursor")),
		SortField:  strings.TrimSpace(v.Get("sort")),
		SortDir:    strings.TrimSpace(v.Get("dir")),
		Category:   strings.TrimSpace(v.Get("category")),
		Difficulty: strings.TrimSpace(v.Get("difficulty")),
	}
	for _, raw := range v["subcategory"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				q.Subcategories = append(q.Subcategories, s)
			}
		}
	}
	if raw := strings.TrimSpace(v.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return q, errors.New("limit must be a positive integer")
		}
		q.Limit = n
	}
	return q, nil
}

func writeSetError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrSetNotFound):
		writeJSON(w, r, http.StatusNotFound, apiResponse{OK: false, Error: err.Error()})
	default:
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
