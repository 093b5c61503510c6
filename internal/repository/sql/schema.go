// Package sql provides the GORM-backed implementations of the domain
// repositories.
package sql

import (
	"time"

	"github.com/formbench/formbench/internal/domain/model"
)

// FormEntity is a schema model used for persistence.
type FormEntity struct {
	ID            string `gorm:"primaryKey"`
	Name          string
	FormType      string
	StoragePath   string
	FieldMappings model.FieldMappings `gorm:"type:text"`
	UploadedBy    string
	UploadedAt    time.Time
}

func (FormEntity) TableName() string {
	return "bench_form"
}

// BatchEntity is a schema model used for persistence.
type BatchEntity struct {
	ID          string `gorm:"primaryKey"`
	BatchNumber string
	FormID      string
	FormName    string
	BatchType   string
	SkewPreset  *string
	CreatedBy   string
	CreatedAt   time.Time
}

func (BatchEntity) TableName() string {
	return "bench_batch"
}

// DocumentEntity is a schema model used for persistence.
type DocumentEntity struct {
	ID          string `gorm:"primaryKey"`
	BatchID     string `gorm:"index"`
	StoragePath string
	FieldValues model.FieldValues `gorm:"type:text"`
	IsSkewed    bool
	Position    int
	CreatedAt   time.Time
}

func (DocumentEntity) TableName() string {
	return "bench_document"
}

// TestRunEntity is a schema model used for persistence.
type TestRunEntity struct {
	ID                 string           `gorm:"primaryKey"`
	BatchIDs           model.StringList `gorm:"type:text"`
	LayoutLibrary      string
	OCRLibrary         string `gorm:"column:ocr_library"`
	Status             string `gorm:"index"`
	TotalDocuments     int
	ProcessedDocuments int
	StartedBy          string
	StartedAt          time.Time
	CompletedAt        *time.Time
	ErrorMessage       *string
	CreatedAt          time.Time
	Version            int
}

func (TestRunEntity) TableName() string {
	return "bench_test_run"
}

// ResultEntity is a schema model used for persistence.
type ResultEntity struct {
	ID               string `gorm:"primaryKey"`
	TestRunID        string `gorm:"index"`
	DocumentID       string `gorm:"index"`
	BatchID          string
	LayoutRegions    model.Regions `gorm:"type:text"`
	LayoutMethod     string
	OCRRegions       model.OCRRegions `gorm:"column:ocr_regions;type:text"`
	FullText         string
	TextRegions      model.TextRegions     `gorm:"type:text"`
	ExtractedFields  model.ExtractedFields `gorm:"type:text"`
	OverallAccuracy  float64
	NoScoredFields   bool
	VerifiedAccuracy *float64
	VerifiedBy       *string
	VerifiedAt       *time.Time
	CreatedAt        time.Time
}

func (ResultEntity) TableName() string {
	return "bench_result"
}
