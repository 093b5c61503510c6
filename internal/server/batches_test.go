package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbench/formbench/internal/config"
	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/repository/inmemory"
	"github.com/formbench/formbench/internal/scansim"
	"github.com/formbench/formbench/internal/storage"
	"github.com/formbench/formbench/internal/synthgen"
)

func newBatchTestServer(t *testing.T) (*httptest.Server, *inmemory.Repository, storage.Store) {
	t.Helper()
	repo := inmemory.NewRepository()
	store, err := storage.NewLocalStore(config.StorageConfig{Type: "local", BaseDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewBatchHandler(repo, repo, store, scansim.New(11), synthgen.New(11))
	r := chi.NewRouter()
	r.Route("/api/batches", h.Attach)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo, store
}

func seedTemplateForm(t *testing.T, repo *inmemory.Repository, store storage.Store, formType string, mappings model.FieldMappings) *model.Form {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 300, 150))
	for y := 0; y < 150; y++ {
		for x := 0; x < 300; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	form := &model.Form{
		ID:            "form-1",
		Name:          "small claims petition",
		FormType:      formType,
		StoragePath:   storage.FormObjectPath("form-1", ".png"),
		FieldMappings: mappings,
		UploadedAt:    time.Now(),
	}
	require.NoError(t, store.Upload(context.Background(), form.StoragePath, &buf, "image/png"))
	require.NoError(t, repo.SaveForm(context.Background(), form))
	return form
}

func TestGenerateSyntheticBatch(t *testing.T) {
	srv, repo, store := newBatchTestServer(t)
	seedTemplateForm(t, repo, store, "empty", model.FieldMappings{
		{Name: "defendant_name", FieldType: "full_name", X: 20, Y: 30, FontSize: 14},
	})

	body := bytes.NewBufferString(`{"form_id": "form-1", "batch_number": "B-001", "count": 3, "created_by": "clerk"}`)
	resp, err := http.Post(srv.URL+"/api/batches/generate", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got generateBatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotNil(t, got.Batch)
	assert.Equal(t, model.BatchTypeSynthetic, got.Batch.BatchType)
	require.Len(t, got.Documents, 3)

	for i, doc := range got.Documents {
		assert.Equal(t, i, doc.Position)
		assert.NotEmpty(t, doc.FieldValues["defendant_name"])
		assert.False(t, doc.IsSkewed)

		rc, err := store.Download(context.Background(), storage.NormalizeObjectName(doc.StoragePath))
		require.NoError(t, err)
		img, err := png.Decode(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 300, 150), img.Bounds())
	}

	docs, err := repo.FindDocumentsByBatchID(context.Background(), got.Batch.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestGenerateHandwrittenBatchDefaultsToSkew(t *testing.T) {
	srv, repo, store := newBatchTestServer(t)
	seedTemplateForm(t, repo, store, "handwritten", nil)

	body := bytes.NewBufferString(`{"form_id": "form-1", "batch_number": "B-002", "count": 2}`)
	resp, err := http.Post(srv.URL+"/api/batches/generate", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got generateBatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, model.BatchTypeHandwritten, got.Batch.BatchType)
	require.NotNil(t, got.Batch.SkewPreset)
	assert.Equal(t, "medium", *got.Batch.SkewPreset)
	require.Len(t, got.Documents, 2)
	for _, doc := range got.Documents {
		assert.True(t, doc.IsSkewed)
		assert.Empty(t, doc.FieldValues)
	}
}

func TestGenerateRejectsBadCount(t *testing.T) {
	srv, repo, store := newBatchTestServer(t)
	seedTemplateForm(t, repo, store, "empty", model.FieldMappings{{Name: "a", X: 0, Y: 0}})

	for _, payload := range []string{
		`{"form_id": "form-1", "count": 0}`,
		`{"form_id": "form-1", "count": 101}`,
	} {
		resp, err := http.Post(srv.URL+"/api/batches/generate", "application/json", bytes.NewBufferString(payload))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestGenerateRequiresFieldMappings(t *testing.T) {
	srv, repo, store := newBatchTestServer(t)
	seedTemplateForm(t, repo, store, "empty", nil)

	body := bytes.NewBufferString(`{"form_id": "form-1", "count": 1}`)
	resp, err := http.Post(srv.URL+"/api/batches/generate", "application/json", body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
