package practice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"psikoadmin/internal/app/apiresp"
	"psikoadmin/internal/auth"
	"psikoadmin/internal/questionset"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc practiceService
}

type practiceService interface {
	Start(ctx context.Context, p auth.Principal, req StartRequest) (*Session, error)
	Get(p auth.Principal, id string) (*Session, error)
	SelectAnswer(p auth.Principal, id string, option int) (State, error)
	Advance(p auth.Principal, id string) (State, error)
	Retreat(p auth.Principal, id string) (State, error)
	Summary(p auth.Principal, id string) (Summary, error)
	EditSet(ctx context.Context, p auth.Principal, id string) (*questionset.QuestionSet, error)
	SaveSetEdit(ctx context.Context, p auth.Principal, id, setID string, patch questionset.Patch) (*EditSetResult, error)
	Close(p auth.Principal, id string) error
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type answerRequest struct {
	Option int `json:"option"`
}

type saveEditRequest struct {
	SetID string            `json:"set_id"`
	Patch questionset.Patch `json:"patch"`
}

func NewHandler(svc practiceService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	s, err := h.svc.Start(r.Context(), p, req)
	if err != nil {
		writePracticeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if req.Async {
		code = http.StatusAccepted
	}
	writeJSON(w, r, code, apiResponse{OK: true, Data: s.Snapshot()})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	s, err := h.svc.Get(p, chi.URLParam(r, "id"))
	if err != nil {
		writePracticeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: s.Snapshot()})
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	st, err := h.svc.SelectAnswer(p, chi.URLParam(r, "id"), req.Option)
	if err != nil {
		writePracticeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: st})
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.svc.Advance)
}

func (h *Handler) Retreat(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.svc.Retreat)
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request, fn func(auth.Principal, string) (State, error)) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	st, err := fn(p, chi.URLParam(r, "id"))
	if err != nil {
		writePracticeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: st})
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	sum, err := h.svc.Summary(p, chi.URLParam(r, "id"))
	if err != nil {
		writePracticeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: sum})
}

func (h *Handler) EditSet(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	set, err := h.svc.EditSet(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writePracticeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: set})
}

func (h *Handler) SaveSetEdit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req saveEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	res, err := h.svc.SaveSetEdit(r.Context(), p, chi.URLParam(r, "id"), strings.TrimSpace(req.SetID), req.Patch)
	if err != nil {
		writePracticeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: res})
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.svc.Close(p, chi.URLParam(r, "id")); err != nil {
		writePracticeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]string{"status": "closed"}})
}

func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.CurrentPrincipal(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return auth.Principal{}, false
	}
	return *p, true
}

func writePracticeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidOption), errors.Is(err, questionset.ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, questionset.ErrSetNotFound), errors.Is(err, ErrSetNotInSession):
		writeJSON(w, r, http.StatusNotFound, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrSessionForbidden):
		writeJSON(w, r, http.StatusForbidden, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrAnswerRequired), errors.Is(err, ErrSessionFinished), errors.Is(err, ErrSessionNotFinished),
		errors.Is(err, ErrSessionLoading), errors.Is(err, ErrNoQuestions), errors.Is(err, ErrSessionClosed):
		writeJSON(w, r, http.StatusConflict, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrFetchFailed):
		writeJSON(w, r, http.StatusBadGateway, apiResponse{OK: false, Error: ErrFetchFailed.Error()})
	case errors.Is(err, ErrSaveFailed):
		writeJSON(w, r, http.StatusBadGateway, apiResponse{OK: false, Error: ErrSaveFailed.Error()})
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
