package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/cvsift/internal/bus"
	"github.com/kalambet/cvsift/internal/manifest"
	"github.com/kalambet/cvsift/internal/pipeline"
	"github.com/kalambet/cvsift/internal/reconcile"
)

// --- mocks ---

type mockPipeline struct {
	listFn         func() ([]manifest.Entry, error)
	reviewFn       func(filename, comment string) error
	conditionFn    func() string
	setConditionFn func(condition string) error
	reconcileFn    func(ctx context.Context, force bool) (reconcile.Result, error)
}

func (m *mockPipeline) List() ([]manifest.Entry, error) {
	if m.listFn != nil {
		return m.listFn()
	}
	return nil, nil
}

func (m *mockPipeline) Review(filename, comment string) error {
	if m.reviewFn != nil {
		return m.reviewFn(filename, comment)
	}
	return nil
}

func (m *mockPipeline) Condition() string {
	if m.conditionFn != nil {
		return m.conditionFn()
	}
	return ""
}

func (m *mockPipeline) SetCondition(condition string) error {
	if m.setConditionFn != nil {
		return m.setConditionFn(condition)
	}
	return nil
}

func (m *mockPipeline) Reconcile(ctx context.Context, force bool) (reconcile.Result, error) {
	if m.reconcileFn != nil {
		return m.reconcileFn(ctx, force)
	}
	return reconcile.Result{}, nil
}

// --- helpers ---

const testToken = "test-token"

func newTestHandler(p Pipeline) http.Handler {
	return NewHandler(Deps{Pipeline: p, Events: bus.New(), Token: testToken})
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- tests ---

func TestHealthIsPublic(t *testing.T) {
	h := newTestHandler(&mockPipeline{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestBearerAuthRejectsBadToken(t *testing.T) {
	h := newTestHandler(&mockPipeline{})

	for _, header := range []string{"", "Bearer wrong", "Basic dXNlcg=="} {
		req := httptest.NewRequest(http.MethodGet, "/resumes", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestListResumes(t *testing.T) {
	h := newTestHandler(&mockPipeline{
		listFn: func() ([]manifest.Entry, error) {
			return []manifest.Entry{
				{Filename: "a.pdf", Label: manifest.StatusPending},
				{Filename: "b.pdf", Label: manifest.StatusElite},
			}, nil
		},
	})

	rec := doRequest(t, h, http.MethodGet, "/resumes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var entries []manifest.Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[1].Label != manifest.StatusElite {
		t.Errorf("entries[1].Label = %q, want elite", entries[1].Label)
	}
}

func TestListResumesEmptyIsArray(t *testing.T) {
	h := newTestHandler(&mockPipeline{})

	rec := doRequest(t, h, http.MethodGet, "/resumes", "")
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestReview(t *testing.T) {
	var gotFilename, gotComment string
	h := newTestHandler(&mockPipeline{
		reviewFn: func(filename, comment string) error {
			gotFilename, gotComment = filename, comment
			return nil
		},
	})

	rec := doRequest(t, h, http.MethodPost, "/resumes/candidate.pdf/review", `{"comment":"solid, call back"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if gotFilename != "candidate.pdf" {
		t.Errorf("filename = %q", gotFilename)
	}
	if gotComment != "solid, call back" {
		t.Errorf("comment = %q", gotComment)
	}
}

func TestReviewUnknownFileIs404(t *testing.T) {
	h := newTestHandler(&mockPipeline{
		reviewFn: func(string, string) error { return manifest.ErrNotFound },
	})

	rec := doRequest(t, h, http.MethodPost, "/resumes/ghost.pdf/review", `{"comment":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSetConditionTooLongIs400(t *testing.T) {
	h := newTestHandler(&mockPipeline{
		setConditionFn: func(string) error { return pipeline.ErrConditionTooLong },
	})

	rec := doRequest(t, h, http.MethodPut, "/condition", `{"condition":"way too long"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReconcilePassesForce(t *testing.T) {
	var gotForce bool
	h := newTestHandler(&mockPipeline{
		reconcileFn: func(_ context.Context, force bool) (reconcile.Result, error) {
			gotForce = force
			return reconcile.Result{Removed: 1, Requeued: 2, Kept: 3}, nil
		},
	})

	rec := doRequest(t, h, http.MethodPost, "/reconcile?force=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !gotForce {
		t.Error("force not propagated")
	}

	var res reconcile.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if res.Requeued != 2 {
		t.Errorf("Requeued = %d, want 2", res.Requeued)
	}
}
