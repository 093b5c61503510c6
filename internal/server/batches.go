package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/domain/repository"
	"github.com/formbench/formbench/internal/scansim"
	"github.com/formbench/formbench/internal/storage"
	"github.com/formbench/formbench/internal/support/exception"
	"github.com/formbench/formbench/internal/support/logger"
	"github.com/formbench/formbench/internal/synthgen"
)

// uploads are bounded to keep a bad client from exhausting memory.
const maxUploadBytes = 32 << 20

// BatchHandler exposes batch and document management.
type BatchHandler struct {
	batches repository.BatchRepository
	forms   repository.FormRepository
	store   storage.Store
	sim     *scansim.Simulator
	gen     *synthgen.Generator
}

// NewBatchHandler creates the handler.
func NewBatchHandler(batches repository.BatchRepository, forms repository.FormRepository, store storage.Store, sim *scansim.Simulator, gen *synthgen.Generator) *BatchHandler {
	return &BatchHandler{batches: batches, forms: forms, store: store, sim: sim, gen: gen}
}

// Attach mounts the routes under /api/batches.
func (h *BatchHandler) Attach(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Post("/generate", h.handleGenerate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Delete("/{id}", h.handleDelete)
	r.Post("/{id}/documents", h.handleUploadDocument)
	r.Get("/{id}/documents", h.handleListDocuments)
}

type createBatchRequest struct {
	BatchNumber string          `json:"batch_number"`
	FormID      string          `json:"form_id"`
	BatchType   model.BatchType `json:"batch_type"`
	SkewPreset  *string         `json:"skew_preset,omitempty"`
	CreatedBy   string          `json:"created_by"`
}

func (h *BatchHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !req.BatchType.IsValid() {
		writeError(w, exception.NewAppErrorf("server", exception.KindValidation,
			"invalid batch type: %s", req.BatchType))
		return
	}
	if req.SkewPreset != nil {
		if _, err := scansim.LookupPreset(*req.SkewPreset); err != nil {
			writeError(w, err)
			return
		}
	}

	batch := &model.Batch{
		ID:          uuid.NewString(),
		BatchNumber: req.BatchNumber,
		BatchType:   req.BatchType,
		SkewPreset:  req.SkewPreset,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   time.Now(),
	}
	if req.FormID != "" {
		form, err := h.forms.FindFormByID(r.Context(), req.FormID)
		if err != nil {
			writeError(w, err)
			return
		}
		batch.FormID = form.ID
		batch.FormName = form.Name
	}

	if err := h.batches.SaveBatch(r.Context(), batch); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, batch)
}

type generateBatchRequest struct {
	FormID            string              `json:"form_id"`
	BatchNumber       string              `json:"batch_number"`
	Count             int                 `json:"count"`
	SkewPreset        *string             `json:"skew_preset,omitempty"`
	FieldValueOptions map[string][]string `json:"field_value_options,omitempty"`
	CreatedBy         string              `json:"created_by"`
}

type generateBatchResponse struct {
	Batch     *model.Batch      `json:"batch"`
	Documents []*model.Document `json:"documents"`
}

// handleGenerate creates a whole batch of generated documents from a form
// template. Empty forms get field values rendered onto the template;
// handwritten forms get skewed copies of the scan instead.
func (h *BatchHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Count < 1 || req.Count > 100 {
		writeError(w, exception.NewAppErrorf("server", exception.KindValidation,
			"count must be between 1 and 100"))
		return
	}

	form, err := h.forms.FindFormByID(r.Context(), req.FormID)
	if err != nil {
		writeError(w, err)
		return
	}

	handwritten := form.FormType == "handwritten"
	skewPreset := req.SkewPreset
	if handwritten && skewPreset == nil {
		// A clean handwritten copy teaches nothing; default to medium.
		preset := "medium"
		skewPreset = &preset
	}
	var preset scansim.Preset
	if skewPreset != nil {
		preset, err = scansim.LookupPreset(*skewPreset)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	if !handwritten && len(form.FieldMappings) == 0 {
		writeError(w, exception.NewAppErrorf("server", exception.KindValidation,
			"form has no field mappings defined"))
		return
	}

	template, err := h.downloadObject(r.Context(), form.StoragePath)
	if err != nil {
		writeError(w, err)
		return
	}

	batch := &model.Batch{
		ID:          uuid.NewString(),
		BatchNumber: req.BatchNumber,
		FormID:      form.ID,
		FormName:    form.Name,
		BatchType:   model.BatchTypeSynthetic,
		SkewPreset:  skewPreset,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   time.Now(),
	}
	if handwritten {
		batch.BatchType = model.BatchTypeHandwritten
	}

	docs := make([]*model.Document, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		imageData := template
		fieldValues := model.FieldValues{}

		if !handwritten {
			imageData, fieldValues, err = h.gen.Fill(template, form.FieldMappings, req.FieldValueOptions)
			if err != nil {
				writeError(w, err)
				return
			}
		}
		isSkewed := false
		if skewPreset != nil {
			imageData, err = h.sim.Apply(imageData, preset)
			if err != nil {
				writeError(w, err)
				return
			}
			isSkewed = true
		}

		doc := &model.Document{
			ID:          uuid.NewString(),
			BatchID:     batch.ID,
			FieldValues: fieldValues,
			IsSkewed:    isSkewed,
			Position:    i,
			CreatedAt:   time.Now(),
		}
		doc.StoragePath = storage.DocumentObjectPath(batch.ID, doc.ID)
		docs = append(docs, doc)

		if err := h.store.Upload(r.Context(), doc.StoragePath, bytes.NewReader(imageData), "image/png"); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := h.batches.SaveBatch(r.Context(), batch); err != nil {
		writeError(w, err)
		return
	}
	for _, doc := range docs {
		if err := h.batches.SaveDocument(r.Context(), doc); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, generateBatchResponse{Batch: batch, Documents: docs})
}

// downloadObject reads a stored object fully into memory.
func (h *BatchHandler) downloadObject(ctx context.Context, path string) ([]byte, error) {
	rc, err := h.store.Download(ctx, storage.NormalizeObjectName(path))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, exception.NewAppError("server", "failed to read stored object", err, exception.KindInternal)
	}
	return data, nil
}

func (h *BatchHandler) handleList(w http.ResponseWriter, r *http.Request) {
	batches, err := h.batches.FindAllBatches(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

func (h *BatchHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	batch, err := h.batches.FindBatchByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// handleDelete removes the batch, its documents and their stored images.
func (h *BatchHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	docs, err := h.batches.FindDocumentsByBatchID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.batches.DeleteBatch(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	for _, doc := range docs {
		if err := h.store.Delete(r.Context(), storage.NormalizeObjectName(doc.StoragePath)); err != nil {
			logger.Warnf("Failed to delete stored image %s: %v", doc.StoragePath, err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadDocument accepts a multipart upload with an "image" file part
// and a "field_values" JSON part mapping field names to expected values.
// When the batch carries a skew preset the image goes through the scan
// simulator before storage.
func (h *BatchHandler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")
	batch, err := h.batches.FindBatchByID(r.Context(), batchID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, exception.NewAppError("server", "malformed multipart body", err, exception.KindUnprocessable))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, exception.NewAppError("server", "missing image part", err, exception.KindUnprocessable))
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, exception.NewAppError("server", "failed to read image", err, exception.KindInternal))
		return
	}

	fieldValues := model.FieldValues{}
	if raw := r.FormValue("field_values"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &fieldValues); err != nil {
			writeError(w, exception.NewAppError("server", "malformed field_values", err, exception.KindUnprocessable))
			return
		}
	}

	isSkewed := false
	if batch.SkewPreset != nil {
		preset, err := scansim.LookupPreset(*batch.SkewPreset)
		if err != nil {
			writeError(w, err)
			return
		}
		imageData, err = h.sim.Apply(imageData, preset)
		if err != nil {
			writeError(w, err)
			return
		}
		isSkewed = true
	}

	docs, err := h.batches.FindDocumentsByBatchID(r.Context(), batchID)
	if err != nil {
		writeError(w, err)
		return
	}

	doc := &model.Document{
		ID:          uuid.NewString(),
		BatchID:     batchID,
		FieldValues: fieldValues,
		IsSkewed:    isSkewed,
		Position:    len(docs),
		CreatedAt:   time.Now(),
	}
	doc.StoragePath = storage.DocumentObjectPath(batchID, doc.ID)

	if err := h.store.Upload(r.Context(), doc.StoragePath, bytes.NewReader(imageData), "image/png"); err != nil {
		writeError(w, err)
		return
	}
	if err := h.batches.SaveDocument(r.Context(), doc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *BatchHandler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if _, err := h.batches.FindBatchByID(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	docs, err := h.batches.FindDocumentsByBatchID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}
