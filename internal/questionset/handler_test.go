package questionset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"psikoadmin/internal/auth"

	"github.com/go-chi/chi/v5"
)

type mockSetService struct {
	createFn func(ctx context.Context, in CreateSetInput) (*QuestionSet, error)
	getFn    func(ctx context.Context, id string) (*QuestionSet, error)
	listFn   func(ctx context.Context, q CandidateQuery) (*Page, error)
	updateFn func(ctx context.Context, id string, patch Patch) (*QuestionSet, error)
	deleteFn func(ctx context.Context, id string) error
	exportFn func(ctx context.Context, q CandidateQuery) ([]byte, error)
	importFn func(ctx context.Context, actor string, r io.Reader) (*ImportReport, error)
}

func (m *mockSetService) CreateSet(ctx context.Context, in CreateSetInput) (*QuestionSet, error) {
	if m.createFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createFn(ctx, in)
}

func (m *mockSetService) GetSet(ctx context.Context, id string) (*QuestionSet, error) {
	if m.getFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getFn(ctx, id)
}

func (m *mockSetService) ListSets(ctx context.Context, q CandidateQuery) (*Page, error) {
	if m.listFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listFn(ctx, q)
}

func (m *mockSetService) UpdateSet(ctx context.Context, id string, patch Patch) (*QuestionSet, error) {
	if m.updateFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.updateFn(ctx, id, patch)
}

func (m *mockSetService) DeleteSet(ctx context.Context, id string) error {
	if m.deleteFn == nil {
		return errors.New("not implemented")
	}
	return m.deleteFn(ctx, id)
}

func (m *mockSetService) ExportSetsExcel(ctx context.Context, q CandidateQuery) ([]byte, error) {
	if m.exportFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.exportFn(ctx, q)
}

func (m *mockSetService) ImportSetsExcel(ctx context.Context, actor string, r io.Reader) (*ImportReport, error) {
	if m.importFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.importFn(ctx, actor, r)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestCreateRequiresPrincipal(t *testing.T) {
	h := NewHandler(&mockSetService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/question-sets", bytes.NewBufferString(`{}`))
	rr := httptest.NewRecorder()
	h.Create(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCreatePassesSubjectAsAuthor(t *testing.T) {
	var got CreateSetInput
	h := NewHandler(&mockSetService{
		createFn: func(ctx context.Context, in CreateSetInput) (*QuestionSet, error) {
			got = in
			return &QuestionSet{ID: "s-1", Category: in.Category}, nil
		},
	})
	body := `{"category":"verbal","subcategory":"analogies","difficulty":"easy","questions":[{"text":"a","correct_answer":"1"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/question-sets", bytes.NewBufferString(body))
	req = req.WithContext(auth.ContextWithPrincipal(req.Context(), &auth.Principal{Subject: "editor-9", Role: auth.RoleEditor}))
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if got.CreatedBy != "editor-9" || got.Category != "verbal" || len(got.Questions) != 1 {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestCreateMapsValidationError(t *testing.T) {
	h := NewHandler(&mockSetService{
		createFn: func(ctx context.Context, in CreateSetInput) (*QuestionSet, error) {
			return nil, ErrInvalidInput
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/question-sets", bytes.NewBufferString(`{}`))
	req = req.WithContext(auth.ContextWithPrincipal(req.Context(), &auth.Principal{Subject: "e", Role: auth.RoleEditor}))
	rr := httptest.NewRecorder()
	h.Create(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	errObj, _ := body["error"].(map[string]interface{})
	if errObj["code"] != "invalid_request" {
		t.Fatalf("expected invalid_request code, got %v", body["error"])
	}
}

func TestGetNotFound(t *testing.T) {
	h := NewHandler(&mockSetService{
		getFn: func(ctx context.Context, id string) (*QuestionSet, error) {
			if id != "missing" {
				t.Fatalf("unexpected id %s", id)
			}
			return nil, ErrSetNotFound
		},
	})
	req := withChiParam(httptest.NewRequest(http.MethodGet, "/api/v1/question-sets/missing", nil), "id", "missing")
	rr := httptest.NewRecorder()
	h.Get(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestListParsesFilters(t *testing.T) {
	var got CandidateQuery
	h := NewHandler(&mockSetService{
		listFn: func(ctx context.Context, q CandidateQuery) (*Page, error) {
			got = q
			return &Page{Items: []QuestionSet{}}, nil
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/question-sets?category=quantitative&subcategory=algebra,geometry&subcategory=logic&difficulty=easy&limit=20&sort=updated_at&dir=asc", nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got.Category != "quantitative" || got.Difficulty != "easy" || got.Limit != 20 || got.SortField != "updated_at" || got.SortDir != "asc" {
		t.Fatalf("unexpected query %+v", got)
	}
	if len(got.Subcategories) != 3 || got.Subcategories[2] != "logic" {
		t.Fatalf("unexpected subcategories %v", got.Subcategories)
	}
}

func TestListRejectsBadLimit(t *testing.T) {
	h := NewHandler(&mockSetService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/question-sets?limit=abc", nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUpdateRejectsEmptyPatch(t *testing.T) {
	h := NewHandler(&mockSetService{})
	req := withChiParam(httptest.NewRequest(http.MethodPatch, "/api/v1/question-sets/s1", bytes.NewBufferString(`{}`)), "id", "s1")
	rr := httptest.NewRecorder()
	h.Update(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestExportWritesSpreadsheet(t *testing.T) {
	h := NewHandler(&mockSetService{
		exportFn: func(ctx context.Context, q CandidateQuery) ([]byte, error) {
			return []byte("xlsx"), nil
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/question-sets/export", nil)
	rr := httptest.NewRecorder()
	h.Export(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type %s", ct)
	}
	if rr.Body.String() != "xlsx" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}
