package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/formbench/formbench/internal/domain/repository"
	"github.com/formbench/formbench/internal/verification"
)

// VerificationHandler exposes the human review workflow.
type VerificationHandler struct {
	service *verification.Service
	results repository.ResultRepository
}

// NewVerificationHandler creates the handler.
func NewVerificationHandler(s *verification.Service, results repository.ResultRepository) *VerificationHandler {
	return &VerificationHandler{service: s, results: results}
}

// Attach mounts the routes under /api/verify.
func (h *VerificationHandler) Attach(r chi.Router) {
	r.Put("/{runID}/document/{docID}/field", h.handleVerifyFields)
	r.Put("/{runID}/document/{docID}/regions", h.handleVerifyRegions)
	r.Get("/{runID}/documents", h.handleDocuments)
	r.Get("/{runID}/summary", h.handleSummary)
}

type verifyFieldsRequest struct {
	VerifiedBy  string                           `json:"verified_by"`
	Submissions []verification.FieldSubmission   `json:"submissions"`
}

func (h *VerificationHandler) handleVerifyFields(w http.ResponseWriter, r *http.Request) {
	var req verifyFieldsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.VerifyFields(r.Context(),
		chi.URLParam(r, "runID"), chi.URLParam(r, "docID"), req.VerifiedBy, req.Submissions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type verifyRegionsRequest struct {
	VerifiedBy  string                           `json:"verified_by"`
	Submissions []verification.RegionSubmission  `json:"submissions"`
	Added       []verification.AddedRegion       `json:"added_regions"`
}

func (h *VerificationHandler) handleVerifyRegions(w http.ResponseWriter, r *http.Request) {
	var req verifyRegionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.VerifyRegions(r.Context(),
		chi.URLParam(r, "runID"), chi.URLParam(r, "docID"), req.VerifiedBy, req.Submissions, req.Added)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDocuments lists the run's results with their verification state so
// reviewers can work through the queue.
func (h *VerificationHandler) handleDocuments(w http.ResponseWriter, r *http.Request) {
	results, err := h.results.FindResultsByTestRunID(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, err)
		return
	}

	type docEntry struct {
		DocumentID       string   `json:"document_id"`
		OverallAccuracy  float64  `json:"overall_accuracy"`
		VerifiedAccuracy *float64 `json:"verified_accuracy,omitempty"`
		Verified         bool     `json:"verified"`
	}
	entries := make([]docEntry, 0, len(results))
	for _, result := range results {
		entries = append(entries, docEntry{
			DocumentID:       result.DocumentID,
			OverallAccuracy:  result.OverallAccuracy,
			VerifiedAccuracy: result.VerifiedAccuracy,
			Verified:         result.VerifiedAccuracy != nil,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *VerificationHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.Progress(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}
