package server

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/domain/repository"
	"github.com/formbench/formbench/internal/storage"
	"github.com/formbench/formbench/internal/support/exception"
	"github.com/formbench/formbench/internal/support/logger"
)

// FormHandler exposes form template management.
type FormHandler struct {
	forms repository.FormRepository
	store storage.Store
}

// NewFormHandler creates the handler.
func NewFormHandler(forms repository.FormRepository, store storage.Store) *FormHandler {
	return &FormHandler{forms: forms, store: store}
}

// Attach mounts the routes under /api/forms.
func (h *FormHandler) Attach(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Put("/{id}/fields", h.handleUpdateFields)
	r.Delete("/{id}", h.handleDelete)
}

// handleCreate accepts a multipart upload with an "image" file part plus
// "name", "form_type", "uploaded_by" and optional "field_mappings" JSON.
func (h *FormHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, exception.NewAppError("server", "malformed multipart body", err, exception.KindUnprocessable))
		return
	}

	name := r.FormValue("name")
	if name == "" {
		writeError(w, exception.NewAppErrorf("server", exception.KindValidation,
			"form name is required"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, exception.NewAppError("server", "missing image part", err, exception.KindUnprocessable))
		return
	}
	defer file.Close()

	var mappings model.FieldMappings
	if raw := r.FormValue("field_mappings"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
			writeError(w, exception.NewAppError("server", "malformed field_mappings", err, exception.KindUnprocessable))
			return
		}
	}

	form := &model.Form{
		ID:            uuid.NewString(),
		Name:          name,
		FormType:      r.FormValue("form_type"),
		FieldMappings: mappings,
		UploadedBy:    r.FormValue("uploaded_by"),
		UploadedAt:    time.Now(),
	}
	form.StoragePath = storage.FormObjectPath(form.ID, imageExt(header))

	if err := h.store.Upload(r.Context(), form.StoragePath, io.LimitReader(file, maxUploadBytes), "image/png"); err != nil {
		writeError(w, err)
		return
	}
	if err := h.forms.SaveForm(r.Context(), form); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, form)
}

func (h *FormHandler) handleList(w http.ResponseWriter, r *http.Request) {
	forms, err := h.forms.FindAllForms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, forms)
}

func (h *FormHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	form, err := h.forms.FindFormByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

type updateFormRequest struct {
	Name     *string `json:"name,omitempty"`
	FormType *string `json:"form_type,omitempty"`
}

// handleUpdate changes a form's metadata. Omitted fields keep their
// current value.
func (h *FormHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	form, err := h.forms.FindFormByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateFormRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, exception.NewAppErrorf("server", exception.KindValidation,
				"form name must not be empty"))
			return
		}
		form.Name = *req.Name
	}
	if req.FormType != nil {
		form.FormType = *req.FormType
	}

	if err := h.forms.UpdateForm(r.Context(), form); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// handleUpdateFields replaces the form's field mappings.
func (h *FormHandler) handleUpdateFields(w http.ResponseWriter, r *http.Request) {
	form, err := h.forms.FindFormByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var mappings model.FieldMappings
	if err := decodeJSON(r, &mappings); err != nil {
		writeError(w, err)
		return
	}

	form.FieldMappings = mappings
	if err := h.forms.UpdateForm(r.Context(), form); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (h *FormHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	form, err := h.forms.FindFormByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.forms.DeleteForm(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.Delete(r.Context(), storage.NormalizeObjectName(form.StoragePath)); err != nil {
		logger.Warnf("Failed to delete stored template %s: %v", form.StoragePath, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// imageExt keeps the uploaded extension when it looks like an image type.
func imageExt(header *multipart.FileHeader) string {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg":
		return ext
	default:
		return ".png"
	}
}
