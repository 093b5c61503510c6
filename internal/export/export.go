// Package export flattens benchmark results into rows and renders them as
// CSV, JSON or Parquet. Parquet artifacts land in object storage under
// exports/ and the object path is returned to the caller.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/fx"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/domain/repository"
	"github.com/formbench/formbench/internal/storage"
	"github.com/formbench/formbench/internal/support/exception"
	"github.com/formbench/formbench/internal/support/logger"
)

const moduleName = "export"

// Row is one exported field-level record. Parquet tags drive schema
// reflection in the Parquet writer.
type Row struct {
	TestRunID          string  `json:"test_run_id" parquet:"name=test_run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	LayoutLibrary      string  `json:"layout_library" parquet:"name=layout_library, type=BYTE_ARRAY, convertedtype=UTF8"`
	OCRLibrary         string  `json:"ocr_library" parquet:"name=ocr_library, type=BYTE_ARRAY, convertedtype=UTF8"`
	BatchID            string  `json:"batch_id" parquet:"name=batch_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	DocumentID         string  `json:"document_id" parquet:"name=document_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	FieldName          string  `json:"field_name" parquet:"name=field_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	ExpectedValue      string  `json:"expected_value" parquet:"name=expected_value, type=BYTE_ARRAY, convertedtype=UTF8"`
	ExtractedValue     string  `json:"extracted_value" parquet:"name=extracted_value, type=BYTE_ARRAY, convertedtype=UTF8"`
	MatchScore         float64 `json:"match_score" parquet:"name=match_score, type=DOUBLE"`
	VerificationStatus string  `json:"verification_status" parquet:"name=verification_status, type=BYTE_ARRAY, convertedtype=UTF8"`
	CorrectedValue     string  `json:"corrected_value" parquet:"name=corrected_value, type=BYTE_ARRAY, convertedtype=UTF8"`
	DocumentAccuracy   float64 `json:"document_accuracy" parquet:"name=document_accuracy, type=DOUBLE"`
}

// Service builds export rows and renders them.
type Service struct {
	runs    repository.TestRunRepository
	results repository.ResultRepository
	store   storage.Store
}

// NewService creates an export service.
func NewService(runs repository.TestRunRepository, results repository.ResultRepository, store storage.Store) *Service {
	return &Service{runs: runs, results: results, store: store}
}

// Module is an Fx module that provides the export service.
var Module = fx.Options(
	fx.Provide(NewService),
)

// BuildRows flattens results into field-level rows. With a run id only that
// run is exported; otherwise every completed run is.
func (s *Service) BuildRows(ctx context.Context, runID string) ([]Row, error) {
	var runs []*model.TestRun
	if runID != "" {
		run, err := s.runs.FindTestRunByID(ctx, runID)
		if err != nil {
			return nil, err
		}
		runs = []*model.TestRun{run}
	} else {
		var err error
		runs, err = s.runs.FindTestRunsByStatus(ctx, model.RunStatusCompleted)
		if err != nil {
			return nil, err
		}
	}

	var rows []Row
	for _, run := range runs {
		results, err := s.results.FindResultsByTestRunID(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		for _, result := range results {
			accuracy := result.EffectiveAccuracy()
			base := Row{
				TestRunID:        run.ID,
				LayoutLibrary:    run.LayoutLibrary,
				OCRLibrary:       run.OCRLibrary,
				BatchID:          result.BatchID,
				DocumentID:       result.DocumentID,
				DocumentAccuracy: accuracy,
			}

			if len(result.ExtractedFields) == 0 {
				// Handwritten and unscorable documents still export one row
				// so every document appears in the artifact.
				rows = append(rows, base)
				continue
			}
			for _, f := range result.ExtractedFields {
				row := base
				row.FieldName = f.FieldName
				row.ExpectedValue = f.ExpectedValue
				row.ExtractedValue = f.ExtractedValue
				row.MatchScore = f.MatchScore
				row.VerificationStatus = string(f.VerificationStatus)
				if f.CorrectedValue != nil {
					row.CorrectedValue = *f.CorrectedValue
				}
				rows = append(rows, row)
			}
		}
	}
	return rows, nil
}

// WriteCSV streams rows as CSV.
func (s *Service) WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	header := []string{
		"test_run_id", "layout_library", "ocr_library", "batch_id", "document_id",
		"field_name", "expected_value", "extracted_value", "match_score",
		"verification_status", "corrected_value", "document_accuracy",
	}
	if err := cw.Write(header); err != nil {
		return exception.NewAppError(moduleName, "failed to write csv header", err, exception.KindInternal)
	}
	for _, row := range rows {
		record := []string{
			row.TestRunID, row.LayoutLibrary, row.OCRLibrary, row.BatchID, row.DocumentID,
			row.FieldName, row.ExpectedValue, row.ExtractedValue,
			strconv.FormatFloat(row.MatchScore, 'f', 6, 64),
			row.VerificationStatus, row.CorrectedValue,
			strconv.FormatFloat(row.DocumentAccuracy, 'f', 6, 64),
		}
		if err := cw.Write(record); err != nil {
			return exception.NewAppError(moduleName, "failed to write csv record", err, exception.KindInternal)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return exception.NewAppError(moduleName, "failed to flush csv", err, exception.KindInternal)
	}
	return nil
}

// WriteJSON streams rows as a JSON array.
func (s *Service) WriteJSON(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(rows); err != nil {
		return exception.NewAppError(moduleName, "failed to encode json export", err, exception.KindInternal)
	}
	return nil
}

// WriteParquet renders rows as a SNAPPY-compressed Parquet file, uploads it
// to object storage and returns the object path.
func (s *Service) WriteParquet(ctx context.Context, rows []Row) (string, error) {
	if len(rows) == 0 {
		return "", exception.NewAppErrorf(moduleName, exception.KindValidation,
			"nothing to export")
	}

	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(Row), int64(len(rows)))
	if err != nil {
		return "", exception.NewAppError(moduleName, "failed to create parquet writer", err, exception.KindInternal)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			return "", exception.NewAppError(moduleName, "failed to write parquet row", err, exception.KindInternal)
		}
	}
	if err := stopParquetWriter(pw); err != nil {
		return "", err
	}

	name := fmt.Sprintf("results_%s_%s.parquet", time.Now().Format("20060102150405"), uuid.NewString()[:8])
	objectName := storage.ExportObjectPath(name)
	if err := s.store.Upload(ctx, objectName, buf, "application/octet-stream"); err != nil {
		return "", err
	}
	logger.Infof("Exported %d rows to %s.", len(rows), objectName)
	return objectName, nil
}

// stopParquetWriter finalizes the file, converting library panics to errors.
func stopParquetWriter(pw *writer.ParquetWriter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = exception.NewAppErrorf(moduleName, exception.KindInternal,
				"parquet writer panicked during finalize: %v", r)
		}
	}()
	if werr := pw.WriteStop(); werr != nil {
		return exception.NewAppError(moduleName, "failed to finalize parquet file", werr, exception.KindInternal)
	}
	return nil
}
