package server

import (
	"bytes"
	"context"
	"encoding/json"
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
	"github.com/formbench/formbench/internal/storage"
)

func newFormTestServer(t *testing.T) (*httptest.Server, *inmemory.Repository) {
	t.Helper()
	repo := inmemory.NewRepository()
	store, err := storage.NewLocalStore(config.StorageConfig{Type: "local", BaseDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r := chi.NewRouter()
	r.Route("/api/forms", NewFormHandler(repo, store).Attach)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo
}

func seedForm(t *testing.T, repo *inmemory.Repository) *model.Form {
	t.Helper()
	form := &model.Form{
		ID:         "form-1",
		Name:       "eviction complaint",
		FormType:   "empty",
		UploadedBy: "clerk",
		UploadedAt: time.Now(),
	}
	require.NoError(t, repo.SaveForm(context.Background(), form))
	return form
}

func TestUpdateFormMetadata(t *testing.T) {
	srv, repo := newFormTestServer(t)
	seedForm(t, repo)

	body := bytes.NewBufferString(`{"name": "small claims petition", "form_type": "handwritten"}`)
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/forms/form-1", body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got model.Form
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "small claims petition", got.Name)
	assert.Equal(t, "handwritten", got.FormType)

	stored, err := repo.FindFormByID(context.Background(), "form-1")
	require.NoError(t, err)
	assert.Equal(t, "small claims petition", stored.Name)
	assert.Equal(t, "handwritten", stored.FormType)
}

func TestUpdateFormKeepsOmittedFields(t *testing.T) {
	srv, repo := newFormTestServer(t)
	seedForm(t, repo)

	body := bytes.NewBufferString(`{"form_type": "handwritten"}`)
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/forms/form-1", body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := repo.FindFormByID(context.Background(), "form-1")
	require.NoError(t, err)
	assert.Equal(t, "eviction complaint", stored.Name)
	assert.Equal(t, "handwritten", stored.FormType)
}

func TestUpdateFormRejectsEmptyName(t *testing.T) {
	srv, repo := newFormTestServer(t)
	seedForm(t, repo)

	body := bytes.NewBufferString(`{"name": ""}`)
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/forms/form-1", body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateFormNotFound(t *testing.T) {
	srv, _ := newFormTestServer(t)

	body := bytes.NewBufferString(`{"name": "anything"}`)
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/forms/missing", body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
