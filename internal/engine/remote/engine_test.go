package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbench/formbench/internal/config"
	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/engine/remote"
)

func TestLayoutDetectMapsRegions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"regions":[
			{"id":0,"label":"title","bbox":[10,20,300,60],"confidence":0.91},
			{"id":1,"label":"text","bbox":[10,80,300,400],"confidence":0.84}
		]}`))
	}))
	defer srv.Close()

	detector, err := remote.NewLayout(config.EngineConfig{Name: "doclayout-yolo", Endpoint: srv.URL})
	require.NoError(t, err)

	regions, err := detector.Detect(context.Background(), []byte("img"))
	require.NoError(t, err)
	require.Len(t, regions, 2)

	assert.Equal(t, "title", regions[0].Type)
	assert.Equal(t, model.BoundingBox{X1: 10, Y1: 20, X2: 300, Y2: 60}, regions[0].BBox)
	assert.InDelta(t, 0.91, regions[0].Confidence, 1e-9)
	assert.InDelta(t, 0.84, regions[1].Confidence, 1e-9)
}

func TestOCRExtractSendsRegionsAndDecodesLines(t *testing.T) {
	var got struct {
		Regions []struct {
			ID         int     `json:"id"`
			Label      string  `json:"label"`
			BBox       [4]int  `json:"bbox"`
			Confidence float64 `json:"confidence"`
		} `json:"regions"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"regions":[
			{"region_id":0,"full_text":"John Smith","lines":[
				{"text":" John Smith ","confidence":0.92},
				{"text":"   ","confidence":0.1}
			]}
		]}`))
	}))
	defer srv.Close()

	ocr, err := remote.NewOCR(config.EngineConfig{Name: "easyocr", Endpoint: srv.URL})
	require.NoError(t, err)

	out, err := ocr.Extract(context.Background(), []byte("img"), []model.Region{
		{ID: 0, Type: "title", BBox: model.BoundingBox{X1: 1, Y1: 2, X2: 3, Y2: 4}, Confidence: 0.77},
	})
	require.NoError(t, err)

	require.Len(t, got.Regions, 1)
	assert.Equal(t, "title", got.Regions[0].Label)
	assert.Equal(t, [4]int{1, 2, 3, 4}, got.Regions[0].BBox)
	assert.InDelta(t, 0.77, got.Regions[0].Confidence, 1e-9)

	require.Len(t, out, 1)
	assert.Equal(t, "John Smith", out[0].FullText)
	// Blank lines are dropped, kept lines are trimmed.
	require.Len(t, out[0].Lines, 1)
	assert.Equal(t, "John Smith", out[0].Lines[0].Text)
}

func TestSidecarErrorSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	ocr, err := remote.NewOCR(config.EngineConfig{Name: "surya", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = ocr.Extract(context.Background(), []byte("img"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestMissingEndpointRejected(t *testing.T) {
	_, err := remote.NewLayout(config.EngineConfig{Name: "surya"})
	assert.Error(t, err)

	_, err = remote.NewOCR(config.EngineConfig{Name: "surya"})
	assert.Error(t, err)
}
