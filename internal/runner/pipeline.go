package runner

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/scoring"
	"github.com/formbench/formbench/internal/storage"
	"github.com/formbench/formbench/internal/support/exception"
)

// LayoutMethodFullText is recorded on handwritten results, where no layout
// detection runs and the whole image goes through OCR.
const LayoutMethodFullText = "none (full-text OCR)"

// processDocument runs one document through the benchmark pipeline and
// builds its Result. Synthetic documents get layout detection, region OCR
// and field matching; handwritten documents get full-image OCR with no
// automatic score.
func (r *Runner) processDocument(ctx context.Context, run *model.TestRun, batch *model.Batch, doc *model.Document) (*model.Result, error) {
	reader, err := r.store.Download(ctx, storage.NormalizeObjectName(doc.StoragePath))
	if err != nil {
		return nil, err
	}
	imageData, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return nil, exception.NewAppError(moduleName, "failed to read document image", err, exception.KindInternal)
	}

	result := &model.Result{
		ID:         uuid.NewString(),
		TestRunID:  run.ID,
		DocumentID: doc.ID,
		BatchID:    batch.ID,
		CreatedAt:  time.Now(),
	}

	if batch.BatchType == model.BatchTypeHandwritten {
		return r.processHandwritten(ctx, run, result, imageData)
	}
	return r.processSynthetic(ctx, run, result, doc, imageData)
}

func (r *Runner) processSynthetic(ctx context.Context, run *model.TestRun, result *model.Result, doc *model.Document, imageData []byte) (*model.Result, error) {
	detector, err := r.registry.Layout(run.LayoutLibrary)
	if err != nil {
		return nil, err
	}
	ocr, err := r.registry.OCR(run.OCRLibrary)
	if err != nil {
		return nil, err
	}

	regions, err := detector.Detect(ctx, imageData)
	if err != nil {
		r.recorder.RecordAdapterError(ctx, run.LayoutLibrary, "layout")
		return nil, err
	}

	ocrRegions, err := ocr.Extract(ctx, imageData, regions)
	if err != nil {
		r.recorder.RecordAdapterError(ctx, run.OCRLibrary, "ocr")
		return nil, err
	}

	fields := scoring.MatchFields(doc.FieldValues, ocrRegions)
	accuracy, noScored := scoring.DocumentAccuracy(fields)

	result.LayoutRegions = regions
	result.LayoutMethod = run.LayoutLibrary
	result.OCRRegions = ocrRegions
	result.ExtractedFields = fields
	result.OverallAccuracy = accuracy
	result.NoScoredFields = noScored
	return result, nil
}

func (r *Runner) processHandwritten(ctx context.Context, run *model.TestRun, result *model.Result, imageData []byte) (*model.Result, error) {
	ocr, err := r.registry.OCR(run.OCRLibrary)
	if err != nil {
		return nil, err
	}

	ocrRegions, err := ocr.Extract(ctx, imageData, nil)
	if err != nil {
		r.recorder.RecordAdapterError(ctx, run.OCRLibrary, "ocr")
		return nil, err
	}

	var fullTexts []string
	var textRegions model.TextRegions
	for _, region := range ocrRegions {
		if region.FullText != "" {
			fullTexts = append(fullTexts, region.FullText)
		}
		for _, line := range region.Lines {
			textRegions = append(textRegions, model.TextRegion{
				Text:               line.Text,
				Confidence:         line.Confidence,
				IsImportant:        true,
				VerificationStatus: model.VerificationUnverified,
			})
		}
	}

	result.LayoutMethod = LayoutMethodFullText
	result.OCRRegions = ocrRegions
	result.FullText = strings.Join(fullTexts, "\n")
	result.TextRegions = textRegions
	result.OverallAccuracy = 0
	result.NoScoredFields = true
	return result, nil
}
