package server

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/formbench/formbench/internal/analytics"
	"github.com/formbench/formbench/internal/domain/repository"
	"github.com/formbench/formbench/internal/storage"
)

// ResultHandler exposes per-run results and document images.
type ResultHandler struct {
	results   repository.ResultRepository
	batches   repository.BatchRepository
	analytics *analytics.Service
	store     storage.Store
}

// NewResultHandler creates the handler.
func NewResultHandler(results repository.ResultRepository, batches repository.BatchRepository, a *analytics.Service, store storage.Store) *ResultHandler {
	return &ResultHandler{results: results, batches: batches, analytics: a, store: store}
}

// Attach mounts the routes under /api/results.
func (h *ResultHandler) Attach(r chi.Router) {
	r.Get("/{runID}", h.handleList)
	r.Get("/{runID}/summary", h.handleSummary)
	r.Get("/{runID}/document/{docID}", h.handleGet)
	r.Get("/{runID}/document/{docID}/image", h.handleImage)
}

func (h *ResultHandler) handleList(w http.ResponseWriter, r *http.Request) {
	results, err := h.results.FindResultsByTestRunID(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *ResultHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Summary(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *ResultHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	result, err := h.results.FindResultByRunAndDocument(r.Context(),
		chi.URLParam(r, "runID"), chi.URLParam(r, "docID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleImage streams the document image so reviewers can see what the OCR
// saw.
func (h *ResultHandler) handleImage(w http.ResponseWriter, r *http.Request) {
	doc, err := h.batches.FindDocumentByID(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		writeError(w, err)
		return
	}

	reader, err := h.store.Download(r.Context(), storage.NormalizeObjectName(doc.StoragePath))
	if err != nil {
		writeError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "image/png")
	io.Copy(w, reader)
}
