package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/formbench/formbench/internal/engine"
	"github.com/formbench/formbench/internal/runner"
)

// TestRunHandler exposes the test run lifecycle.
type TestRunHandler struct {
	runner   *runner.Runner
	registry *engine.Registry
}

// NewTestRunHandler creates the handler.
func NewTestRunHandler(r *runner.Runner, registry *engine.Registry) *TestRunHandler {
	return &TestRunHandler{runner: r, registry: registry}
}

// Attach mounts the routes under /api/tests.
func (h *TestRunHandler) Attach(r chi.Router) {
	r.Post("/run", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/options/libraries", h.handleLibraries)
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/status", h.handleStatus)
	r.Post("/{id}/cancel", h.handleCancel)
}

func (h *TestRunHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req runner.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	run, err := h.runner.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (h *TestRunHandler) handleList(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runner.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *TestRunHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleStatus returns the lightweight polling view of a run.
func (h *TestRunHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                  run.ID,
		"status":              run.Status,
		"processed_documents": run.ProcessedDocuments,
		"total_documents":     run.TotalDocuments,
		"progress_percent":    run.ProgressPercent(),
		"error_message":       run.ErrorMessage,
	})
}

func (h *TestRunHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleLibraries lists the registered layout and OCR libraries so clients
// can populate run options.
func (h *TestRunHandler) handleLibraries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"layout_libraries": h.registry.LayoutNames(),
		"ocr_libraries":    h.registry.OCRNames(),
	})
}
