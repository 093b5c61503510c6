// Package engine defines the layout detection and OCR adapter interfaces
// and the registry the runner resolves libraries from.
package engine

import (
	"context"

	"github.com/formbench/formbench/internal/domain/model"
)

// LayoutDetector locates text-bearing regions on a document image.
type LayoutDetector interface {
	// Name returns the library name ("doclayout-yolo", "surya", ...).
	Name() string
	// Detect returns the layout regions of the image (PNG or JPEG bytes).
	Detect(ctx context.Context, image []byte) ([]model.Region, error)
}

// OCREngine extracts text from a document image.
type OCREngine interface {
	// Name returns the library name ("tesseract", "easyocr", ...).
	Name() string
	// Extract runs OCR over the given regions; with no regions it runs over
	// the whole image (full-text mode).
	Extract(ctx context.Context, image []byte, regions []model.Region) ([]model.OCRRegion, error)
}
