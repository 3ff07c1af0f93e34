// Package api exposes the pipeline over HTTP and MCP: manifest listing,
// review verdicts, condition management, reconciliation, and a live SSE
// event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/cvsift/internal/manifest"
	"github.com/kalambet/cvsift/internal/pipeline"
	"github.com/kalambet/cvsift/internal/reconcile"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Pipeline is the service surface the API needs.
type Pipeline interface {
	List() ([]manifest.Entry, error)
	Review(filename, comment string) error
	Condition() string
	SetCondition(condition string) error
	Reconcile(ctx context.Context, force bool) (reconcile.Result, error)
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Pipeline Pipeline
	Events   Subscriber
	Token    string
}

// NewHandler builds the router. /health is public; everything else
// requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/resumes", handleListResumes(deps))
		r.Post("/resumes/{filename}/review", handleReview(deps))
		r.Get("/condition", handleGetCondition(deps))
		r.Put("/condition", handleSetCondition(deps))
		r.Post("/reconcile", handleReconcile(deps))
		r.Get("/events", handleEvents(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleListResumes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := deps.Pipeline.List()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list resumes: %v", err)
			return
		}
		if entries == nil {
			entries = []manifest.Entry{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}

type reviewRequest struct {
	Comment string `json:"comment"`
}

func handleReview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req reviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		err := deps.Pipeline.Review(filename, req.Comment)
		if errors.Is(err, manifest.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "resume not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record review: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "reviewed"})
	}
}

func handleGetCondition(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"condition": deps.Pipeline.Condition()})
	}
}

type conditionRequest struct {
	Condition string `json:"condition"`
}

func handleSetCondition(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req conditionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if err := deps.Pipeline.SetCondition(req.Condition); err != nil {
			if errors.Is(err, pipeline.ErrConditionTooLong) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to set condition: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
	}
}

func handleReconcile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		force := r.URL.Query().Get("force") == "true"

		res, err := deps.Pipeline.Reconcile(r.Context(), force)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reconciliation failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
