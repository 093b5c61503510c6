// Package remote provides layout and OCR adapters that call sidecar model
// servers over HTTP. EasyOCR, PaddleOCR, Surya, DocTR and DocLayout-YOLO all
// run as Python processes behind this protocol.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/formbench/formbench/internal/config"
	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/engine"
	"github.com/formbench/formbench/internal/support/exception"
)

const (
	moduleName     = "engine.remote"
	defaultTimeout = 120 * time.Second
)

type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	Regions []remoteRegion `json:"regions"`
}

type remoteRegion struct {
	ID         int     `json:"id"`
	Label      string  `json:"label"`
	BBox       [4]int  `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

type extractRequest struct {
	Image     string         `json:"image"`
	Languages []string       `json:"languages,omitempty"`
	Regions   []remoteRegion `json:"regions,omitempty"`
}

type extractResponse struct {
	Regions []remoteOCRRegion `json:"regions"`
}

type remoteOCRRegion struct {
	RegionID int    `json:"region_id"`
	FullText string `json:"full_text"`
	Lines    []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"lines"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// client holds the shared HTTP plumbing for both adapter kinds.
type client struct {
	name     string
	endpoint string
	http     *http.Client
}

func newClient(cfg config.EngineConfig) client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return client{
		name:     cfg.Name,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

// post sends one JSON request to the sidecar and decodes the response into
// out. Non-2xx responses surface the sidecar's error message.
func (c client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return exception.NewAppError(moduleName, "failed to encode request", err, exception.KindAdapter)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return exception.NewAppError(moduleName, "failed to build request", err, exception.KindAdapter)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return exception.NewAppErrorf(moduleName, exception.KindAdapter,
			"'%s' sidecar unreachable at %s: %v", c.name, c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&errResp); decodeErr == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return exception.NewAppErrorf(moduleName, exception.KindAdapter,
			"'%s' sidecar request failed: %s", c.name, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return exception.NewAppError(moduleName, "failed to decode response", err, exception.KindAdapter)
	}
	return nil
}

// LayoutEngine is a layout detector backed by a sidecar server.
type LayoutEngine struct {
	client
}

var _ engine.LayoutDetector = (*LayoutEngine)(nil)

// NewLayout creates a remote layout detector. The endpoint is required.
func NewLayout(cfg config.EngineConfig) (*LayoutEngine, error) {
	if cfg.Endpoint == "" {
		return nil, exception.NewAppErrorf(moduleName, exception.KindValidation,
			"layout engine '%s' has no endpoint configured", cfg.Name)
	}
	return &LayoutEngine{client: newClient(cfg)}, nil
}

// Name returns the configured library name.
func (e *LayoutEngine) Name() string {
	return e.name
}

// Detect posts the image to the sidecar's /detect endpoint.
func (e *LayoutEngine) Detect(ctx context.Context, imageData []byte) ([]model.Region, error) {
	var resp detectResponse
	req := detectRequest{Image: base64.StdEncoding.EncodeToString(imageData)}
	if err := e.post(ctx, "/detect", req, &resp); err != nil {
		return nil, err
	}

	regions := make([]model.Region, 0, len(resp.Regions))
	for _, r := range resp.Regions {
		regions = append(regions, model.Region{
			ID:         r.ID,
			Type:       r.Label,
			BBox:       model.BoundingBox{X1: r.BBox[0], Y1: r.BBox[1], X2: r.BBox[2], Y2: r.BBox[3]},
			Confidence: r.Confidence,
		})
	}
	return regions, nil
}

// OCREngineAdapter is an OCR engine backed by a sidecar server.
type OCREngineAdapter struct {
	client
	languages []string
}

var _ engine.OCREngine = (*OCREngineAdapter)(nil)

// NewOCR creates a remote OCR engine. The endpoint is required.
func NewOCR(cfg config.EngineConfig) (*OCREngineAdapter, error) {
	if cfg.Endpoint == "" {
		return nil, exception.NewAppErrorf(moduleName, exception.KindValidation,
			"ocr engine '%s' has no endpoint configured", cfg.Name)
	}
	return &OCREngineAdapter{client: newClient(cfg), languages: cfg.Languages}, nil
}

// Name returns the configured library name.
func (e *OCREngineAdapter) Name() string {
	return e.name
}

// Extract posts the image and regions to the sidecar's /extract endpoint.
// With no regions the sidecar runs full-image OCR and reports region_id -1.
func (e *OCREngineAdapter) Extract(ctx context.Context, imageData []byte, regions []model.Region) ([]model.OCRRegion, error) {
	req := extractRequest{
		Image:     base64.StdEncoding.EncodeToString(imageData),
		Languages: e.languages,
	}
	for _, r := range regions {
		req.Regions = append(req.Regions, remoteRegion{
			ID:         r.ID,
			Label:      r.Type,
			BBox:       [4]int{r.BBox.X1, r.BBox.Y1, r.BBox.X2, r.BBox.Y2},
			Confidence: r.Confidence,
		})
	}

	var resp extractResponse
	if err := e.post(ctx, "/extract", req, &resp); err != nil {
		return nil, err
	}

	out := make([]model.OCRRegion, 0, len(resp.Regions))
	for _, r := range resp.Regions {
		region := model.OCRRegion{
			RegionID: r.RegionID,
			FullText: strings.TrimSpace(r.FullText),
		}
		for _, line := range r.Lines {
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}
			region.Lines = append(region.Lines, model.OCRLine{Text: text, Confidence: line.Confidence})
		}
		out = append(out, region)
	}
	return out, nil
}
