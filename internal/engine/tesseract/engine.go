// Package tesseract provides the Tesseract OCR adapter via gosseract.
package tesseract

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/formbench/formbench/internal/config"
	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/engine"
	"github.com/formbench/formbench/internal/support/exception"
)

const moduleName = "engine.tesseract"

// Engine runs Tesseract locally. gosseract clients are not goroutine safe,
// so a fresh client is created per call.
type Engine struct {
	name      string
	languages []string
}

var _ engine.OCREngine = (*Engine)(nil)

// New creates a Tesseract OCR engine from configuration.
func New(cfg config.EngineConfig) *Engine {
	name := cfg.Name
	if name == "" {
		name = "tesseract"
	}
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{name: name, languages: languages}
}

// Name returns the configured library name.
func (e *Engine) Name() string {
	return e.name
}

// Extract runs OCR over the given regions, or over the whole image when no
// regions are provided.
func (e *Engine) Extract(ctx context.Context, imageData []byte, regions []model.Region) ([]model.OCRRegion, error) {
	if len(regions) == 0 {
		out, err := e.recognize(imageData, -1)
		if err != nil {
			return nil, err
		}
		return []model.OCRRegion{out}, nil
	}

	src, err := engine.DecodeImage(imageData)
	if err != nil {
		return nil, err
	}

	results := make([]model.OCRRegion, 0, len(regions))
	for _, region := range regions {
		cropped, err := engine.Crop(src, region.BBox)
		if err != nil {
			return nil, err
		}
		out, err := e.recognize(cropped, region.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, out)
	}
	return results, nil
}

// recognize runs one Tesseract pass over the image bytes.
func (e *Engine) recognize(imageData []byte, regionID int) (model.OCRRegion, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return model.OCRRegion{}, exception.NewAppError(moduleName, "failed to set languages", err, exception.KindAdapter)
	}
	if err := client.SetImageFromBytes(imageData); err != nil {
		return model.OCRRegion{}, exception.NewAppError(moduleName, "failed to set image", err, exception.KindAdapter)
	}

	fullText, err := client.Text()
	if err != nil {
		return model.OCRRegion{}, exception.NewAppError(moduleName, "text extraction failed", err, exception.KindAdapter)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return model.OCRRegion{}, exception.NewAppError(moduleName, "bounding box extraction failed", err, exception.KindAdapter)
	}

	lines := make([]model.OCRLine, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		lines = append(lines, model.OCRLine{
			Text: text,
			// Tesseract reports confidence as a percentage.
			Confidence: box.Confidence / 100.0,
		})
	}

	return model.OCRRegion{
		RegionID: regionID,
		FullText: strings.TrimSpace(fullText),
		Lines:    lines,
	}, nil
}
