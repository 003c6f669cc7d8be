package practice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"psikoadmin/internal/auth"
	"psikoadmin/internal/questionset"

	"github.com/go-chi/chi/v5"
)

func newPracticeRouter(h *Handler, p *auth.Principal) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if p != nil {
				req = req.WithContext(auth.ContextWithPrincipal(req.Context(), p))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/v1/practice/sessions", func(r chi.Router) {
		r.Post("/", h.Start)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Close)
		r.Post("/{id}/answers", h.Answer)
		r.Post("/{id}/advance", h.Advance)
		r.Post("/{id}/retreat", h.Retreat)
		r.Get("/{id}/summary", h.Summary)
		r.Get("/{id}/edit", h.EditSet)
		r.Patch("/{id}/edit", h.SaveSetEdit)
	})
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v body=%s", err, rr.Body.String())
	}
	return rr, out
}

func TestPracticeHandlerFlow(t *testing.T) {
	m := newTestManager(&fakeStore{sets: []questionset.QuestionSet{
		makeSet("v1", "verbal", "analogies", "", "easy", 2),
	}}, nil)
	router := newPracticeRouter(NewHandler(m), &tester)

	rr, body := doJSON(t, router, http.MethodPost, "/api/v1/practice/sessions", `{"filters":{"categories":["verbal"],"limit":"all"},"time_limit_minutes":5}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%v", rr.Code, body)
	}
	data := body["data"].(map[string]interface{})
	id := data["id"].(string)
	if data["status"] != "active" || data["total"].(float64) != 2 || data["remaining_seconds"].(float64) != 300 {
		t.Fatalf("unexpected start state %v", data)
	}
	current := data["current"].(map[string]interface{})
	if _, leaked := current["correct_answer"]; leaked {
		t.Fatalf("answer key leaked before answering")
	}

	base := "/api/v1/practice/sessions/" + id
	if rr, _ := doJSON(t, router, http.MethodPost, base+"/advance", ``); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 before answering, got %d", rr.Code)
	}
	if rr, _ := doJSON(t, router, http.MethodPost, base+"/answers", `{"option":9}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad option, got %d", rr.Code)
	}
	if rr, _ := doJSON(t, router, http.MethodGet, base+"/summary", ``); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for early summary, got %d", rr.Code)
	}

	for i := 0; i < 2; i++ {
		rr, body := doJSON(t, router, http.MethodPost, base+"/answers", `{"option":1}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("answer: expected 200, got %d body=%v", rr.Code, body)
		}
		cur := body["data"].(map[string]interface{})["current"].(map[string]interface{})
		if cur["correct_answer"] != "1" || cur["is_correct"] != true {
			t.Fatalf("expected feedback after answering, got %v", cur)
		}
		if rr, _ := doJSON(t, router, http.MethodPost, base+"/advance", ``); rr.Code != http.StatusOK {
			t.Fatalf("advance: expected 200, got %d", rr.Code)
		}
	}

	rr, body = doJSON(t, router, http.MethodGet, base+"/summary", ``)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rr.Code)
	}
	sum := body["data"].(map[string]interface{})
	if sum["score"].(float64) != 100 || sum["tier"] != "perfect" {
		t.Fatalf("unexpected summary %v", sum)
	}

	if rr, _ := doJSON(t, router, http.MethodDelete, base, ``); rr.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d", rr.Code)
	}
	if rr, _ := doJSON(t, router, http.MethodGet, base, ``); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", rr.Code)
	}
}

func TestPracticeHandlerRequiresPrincipal(t *testing.T) {
	router := newPracticeRouter(NewHandler(newTestManager(verbalStore(), nil)), nil)
	rr, _ := doJSON(t, router, http.MethodPost, "/api/v1/practice/sessions", `{"filters":{"categories":["verbal"]}}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

type mockPracticeService struct {
	practiceService
	startFn func(ctx context.Context, p auth.Principal, req StartRequest) (*Session, error)
	editFn  func(ctx context.Context, p auth.Principal, id string) (*questionset.QuestionSet, error)
}

func (m *mockPracticeService) Start(ctx context.Context, p auth.Principal, req StartRequest) (*Session, error) {
	return m.startFn(ctx, p, req)
}

func (m *mockPracticeService) EditSet(ctx context.Context, p auth.Principal, id string) (*questionset.QuestionSet, error) {
	return m.editFn(ctx, p, id)
}

func TestPracticeHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"fetch failed", errors.Join(ErrFetchFailed, errors.New("dial tcp")), http.StatusBadGateway},
		{"save failed", ErrSaveFailed, http.StatusBadGateway},
		{"forbidden", ErrSessionForbidden, http.StatusForbidden},
		{"missing set", questionset.ErrSetNotFound, http.StatusNotFound},
		{"loading", ErrSessionLoading, http.StatusConflict},
		{"invalid", ErrInvalidInput, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockPracticeService{
				editFn: func(ctx context.Context, p auth.Principal, id string) (*questionset.QuestionSet, error) {
					if id != "s-1" {
						t.Fatalf("unexpected id %s", id)
					}
					return nil, tc.err
				},
			}
			router := newPracticeRouter(NewHandler(svc), &tester)
			rr, body := doJSON(t, router, http.MethodGet, "/api/v1/practice/sessions/s-1/edit", ``)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
			if body["ok"] != false {
				t.Fatalf("expected ok=false, got %v", body)
			}
		})
	}
}

func TestPracticeHandlerAsyncStart(t *testing.T) {
	var got StartRequest
	svc := &mockPracticeService{
		startFn: func(ctx context.Context, p auth.Principal, req StartRequest) (*Session, error) {
			got = req
			return NewSession(SessionConfig{ID: "s-async", Owner: p, Filters: req.Filters}), nil
		},
	}
	router := newPracticeRouter(NewHandler(svc), &tester)
	rr, body := doJSON(t, router, http.MethodPost, "/api/v1/practice/sessions", `{"filters":{"categories":["logical"],"limit":10},"async":true}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if got.Filters.Limit != 10 || !got.Async {
		t.Fatalf("unexpected request %+v", got)
	}
	if body["data"].(map[string]interface{})["status"] != "loading" {
		t.Fatalf("expected loading state, got %v", body["data"])
	}
}
