package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/formbench/formbench/internal/analytics"
	"github.com/formbench/formbench/internal/export"
	"github.com/formbench/formbench/internal/support/exception"
)

// MetricsHandler exposes aggregate benchmark metrics and exports.
type MetricsHandler struct {
	analytics *analytics.Service
	export    *export.Service
}

// NewMetricsHandler creates the handler.
func NewMetricsHandler(a *analytics.Service, e *export.Service) *MetricsHandler {
	return &MetricsHandler{analytics: a, export: e}
}

// Attach mounts the routes under /api/metrics.
func (h *MetricsHandler) Attach(r chi.Router) {
	r.Get("/aggregate", h.handleAggregate)
	r.Get("/by-field", h.handleByField)
	r.Get("/comparison", h.handleComparison)
	r.Get("/export", h.handleExport)
}

func (h *MetricsHandler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	report, err := h.analytics.Aggregate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *MetricsHandler) handleByField(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.ByField(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *MetricsHandler) handleComparison(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if raw := r.URL.Query().Get("test_run_ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	rows, err := h.analytics.Compare(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *MetricsHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	runID := r.URL.Query().Get("test_run_id")

	rows, err := h.export.BuildRows(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="results.csv"`)
		if err := h.export.WriteCSV(w, rows); err != nil {
			writeError(w, err)
		}
	case "json", "":
		w.Header().Set("Content-Type", "application/json")
		if err := h.export.WriteJSON(w, rows); err != nil {
			writeError(w, err)
		}
	case "parquet":
		objectName, err := h.export.WriteParquet(r.Context(), rows)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"object_path": objectName})
	default:
		writeError(w, exception.NewAppErrorf("server", exception.KindValidation,
			"unknown export format: %s", format))
	}
}
