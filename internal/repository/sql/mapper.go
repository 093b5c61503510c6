package sql

import (
	"github.com/formbench/formbench/internal/domain/model"
)

// Mapping between domain objects and schema entities. The entities mirror
// the domain shapes closely; the split keeps GORM tags out of the domain.

func toFormEntity(f *model.Form) *FormEntity {
	return &FormEntity{
		ID:            f.ID,
		Name:          f.Name,
		FormType:      f.FormType,
		StoragePath:   f.StoragePath,
		FieldMappings: f.FieldMappings,
		UploadedBy:    f.UploadedBy,
		UploadedAt:    f.UploadedAt,
	}
}

func toFormModel(e *FormEntity) *model.Form {
	return &model.Form{
		ID:            e.ID,
		Name:          e.Name,
		FormType:      e.FormType,
		StoragePath:   e.StoragePath,
		FieldMappings: e.FieldMappings,
		UploadedBy:    e.UploadedBy,
		UploadedAt:    e.UploadedAt,
	}
}

func toBatchEntity(b *model.Batch) *BatchEntity {
	return &BatchEntity{
		ID:          b.ID,
		BatchNumber: b.BatchNumber,
		FormID:      b.FormID,
		FormName:    b.FormName,
		BatchType:   string(b.BatchType),
		SkewPreset:  b.SkewPreset,
		CreatedBy:   b.CreatedBy,
		CreatedAt:   b.CreatedAt,
	}
}

func toBatchModel(e *BatchEntity) *model.Batch {
	return &model.Batch{
		ID:          e.ID,
		BatchNumber: e.BatchNumber,
		FormID:      e.FormID,
		FormName:    e.FormName,
		BatchType:   model.BatchType(e.BatchType),
		SkewPreset:  e.SkewPreset,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
	}
}

func toDocumentEntity(d *model.Document) *DocumentEntity {
	return &DocumentEntity{
		ID:          d.ID,
		BatchID:     d.BatchID,
		StoragePath: d.StoragePath,
		FieldValues: d.FieldValues,
		IsSkewed:    d.IsSkewed,
		Position:    d.Position,
		CreatedAt:   d.CreatedAt,
	}
}

func toDocumentModel(e *DocumentEntity) *model.Document {
	return &model.Document{
		ID:          e.ID,
		BatchID:     e.BatchID,
		StoragePath: e.StoragePath,
		FieldValues: e.FieldValues,
		IsSkewed:    e.IsSkewed,
		Position:    e.Position,
		CreatedAt:   e.CreatedAt,
	}
}

func toTestRunEntity(r *model.TestRun) *TestRunEntity {
	return &TestRunEntity{
		ID:                 r.ID,
		BatchIDs:           r.BatchIDs,
		LayoutLibrary:      r.LayoutLibrary,
		OCRLibrary:         r.OCRLibrary,
		Status:             string(r.Status),
		TotalDocuments:     r.TotalDocuments,
		ProcessedDocuments: r.ProcessedDocuments,
		StartedBy:          r.StartedBy,
		StartedAt:          r.StartedAt,
		CompletedAt:        r.CompletedAt,
		ErrorMessage:       r.ErrorMessage,
		CreatedAt:          r.CreatedAt,
		Version:            r.Version,
	}
}

func toTestRunModel(e *TestRunEntity) *model.TestRun {
	return &model.TestRun{
		ID:                 e.ID,
		BatchIDs:           e.BatchIDs,
		LayoutLibrary:      e.LayoutLibrary,
		OCRLibrary:         e.OCRLibrary,
		Status:             model.RunStatus(e.Status),
		TotalDocuments:     e.TotalDocuments,
		ProcessedDocuments: e.ProcessedDocuments,
		StartedBy:          e.StartedBy,
		StartedAt:          e.StartedAt,
		CompletedAt:        e.CompletedAt,
		ErrorMessage:       e.ErrorMessage,
		CreatedAt:          e.CreatedAt,
		Version:            e.Version,
	}
}

func toResultEntity(r *model.Result) *ResultEntity {
	return &ResultEntity{
		ID:               r.ID,
		TestRunID:        r.TestRunID,
		DocumentID:       r.DocumentID,
		BatchID:          r.BatchID,
		LayoutRegions:    r.LayoutRegions,
		LayoutMethod:     r.LayoutMethod,
		OCRRegions:       r.OCRRegions,
		FullText:         r.FullText,
		TextRegions:      r.TextRegions,
		ExtractedFields:  r.ExtractedFields,
		OverallAccuracy:  r.OverallAccuracy,
		NoScoredFields:   r.NoScoredFields,
		VerifiedAccuracy: r.VerifiedAccuracy,
		VerifiedBy:       r.VerifiedBy,
		VerifiedAt:       r.VerifiedAt,
		CreatedAt:        r.CreatedAt,
	}
}

func toResultModel(e *ResultEntity) *model.Result {
	return &model.Result{
		ID:               e.ID,
		TestRunID:        e.TestRunID,
		DocumentID:       e.DocumentID,
		BatchID:          e.BatchID,
		LayoutRegions:    e.LayoutRegions,
		LayoutMethod:     e.LayoutMethod,
		OCRRegions:       e.OCRRegions,
		FullText:         e.FullText,
		TextRegions:      e.TextRegions,
		ExtractedFields:  e.ExtractedFields,
		OverallAccuracy:  e.OverallAccuracy,
		NoScoredFields:   e.NoScoredFields,
		VerifiedAccuracy: e.VerifiedAccuracy,
		VerifiedBy:       e.VerifiedBy,
		VerifiedAt:       e.VerifiedAt,
		CreatedAt:        e.CreatedAt,
	}
}
