// Package model defines the core domain objects of FormBench: forms,
// batches, documents, test runs and their per-document results.
// Collection-valued fields are stored as JSON columns and therefore
// implement driver.Valuer and sql.Scanner.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus represents the lifecycle state of a test run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// String returns the string representation of the status.
func (s RunStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status is final. Terminal runs never
// change state again.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValid reports whether the value is one of the known statuses.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// VerificationStatus marks the human review state of an extracted field or
// text region.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationVerified   VerificationStatus = "verified"
	VerificationCorrected  VerificationStatus = "corrected"
)

// BatchType distinguishes synthetic form batches (typed field values placed
// on a known template) from handwritten scans evaluated in full-text mode.
type BatchType string

const (
	BatchTypeSynthetic   BatchType = "synthetic"
	BatchTypeHandwritten BatchType = "handwritten"
)

// IsValid reports whether the value is a known batch type.
func (t BatchType) IsValid() bool {
	return t == BatchTypeSynthetic || t == BatchTypeHandwritten
}

// jsonValue marshals v for storage in a JSON column.
func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// jsonScan unmarshals a JSON column value (string or []byte) into dest.
func jsonScan(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported scan type %T for JSON column", value)
	}
}

// StringList is a JSON-stored list of string identifiers.
type StringList []string

func (l StringList) Value() (driver.Value, error) { return jsonValue(l) }
func (l *StringList) Scan(value interface{}) error {
	return jsonScan(value, l)
}

// FieldValues maps a form field name to its expected (ground truth) value.
type FieldValues map[string]string

func (f FieldValues) Value() (driver.Value, error) { return jsonValue(f) }
func (f *FieldValues) Scan(value interface{}) error {
	return jsonScan(value, f)
}

// BoundingBox is a pixel-space rectangle [x1, y1, x2, y2].
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Region is a single layout detection: a typed box with a confidence.
type Region struct {
	ID         int         `json:"id"`
	Type       string      `json:"type"`
	BBox       BoundingBox `json:"bbox"`
	Confidence float64     `json:"confidence"`
}

// Regions is a JSON-stored list of layout regions.
type Regions []Region

func (r Regions) Value() (driver.Value, error) { return jsonValue(r) }
func (r *Regions) Scan(value interface{}) error {
	return jsonScan(value, r)
}

// OCRLine is one recognized text line with its confidence.
type OCRLine struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// OCRRegion holds the OCR output for one layout region. RegionID is -1 for
// full-image extraction.
type OCRRegion struct {
	RegionID int       `json:"region_id"`
	FullText string    `json:"full_text"`
	Lines    []OCRLine `json:"lines"`
}

// OCRRegions is a JSON-stored list of per-region OCR output.
type OCRRegions []OCRRegion

func (r OCRRegions) Value() (driver.Value, error) { return jsonValue(r) }
func (r *OCRRegions) Scan(value interface{}) error {
	return jsonScan(value, r)
}

// ExtractedField pairs an expected field value with the best matching OCR
// text and its score, plus the human verification state.
type ExtractedField struct {
	FieldName          string             `json:"field_name"`
	ExpectedValue      string             `json:"expected_value"`
	ExtractedValue     string             `json:"extracted_value"`
	Confidence         float64            `json:"confidence"`
	MatchScore         float64            `json:"match_score"`
	IsImportant        bool               `json:"is_important"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	CorrectedValue     *string            `json:"corrected_value,omitempty"`
}

// ExtractedFields is a JSON-stored list of extracted fields.
type ExtractedFields []ExtractedField

func (f ExtractedFields) Value() (driver.Value, error) { return jsonValue(f) }
func (f *ExtractedFields) Scan(value interface{}) error {
	return jsonScan(value, f)
}

// TextRegion is one full-text OCR region of a handwritten document,
// including the human verification state. UserAdded marks regions a
// reviewer added because the OCR missed the text entirely.
type TextRegion struct {
	Text               string             `json:"text"`
	Confidence         float64            `json:"confidence"`
	IsImportant        bool               `json:"is_important"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	CorrectedValue     *string            `json:"corrected_value,omitempty"`
	UserAdded          bool               `json:"user_added"`
}

// TextRegions is a JSON-stored list of text regions.
type TextRegions []TextRegion

func (r TextRegions) Value() (driver.Value, error) { return jsonValue(r) }
func (r *TextRegions) Scan(value interface{}) error {
	return jsonScan(value, r)
}

// FieldMapping places a named form field on the template image. FieldType
// selects the synthetic value pool used when generating filled documents;
// FontColor is an optional "#rrggbb" hex, black when empty.
type FieldMapping struct {
	Name      string `json:"name"`
	FieldType string `json:"field_type,omitempty"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color,omitempty"`
}

// FieldMappings is a JSON-stored list of field mappings.
type FieldMappings []FieldMapping

func (m FieldMappings) Value() (driver.Value, error) { return jsonValue(m) }
func (m *FieldMappings) Scan(value interface{}) error {
	return jsonScan(value, m)
}

// Form is an uploaded court form template with its field placements.
type Form struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	FormType      string        `json:"form_type"`
	StoragePath   string        `json:"storage_path"`
	FieldMappings FieldMappings `json:"field_mappings"`
	UploadedBy    string        `json:"uploaded_by"`
	UploadedAt    time.Time     `json:"uploaded_at"`
}

// Batch is a set of documents generated from or scanned against one form.
type Batch struct {
	ID          string    `json:"id"`
	BatchNumber string    `json:"batch_number"`
	FormID      string    `json:"form_id"`
	FormName    string    `json:"form_name"`
	BatchType   BatchType `json:"batch_type"`
	// SkewPreset, when set, names the scan-simulation preset applied to
	// documents uploaded into this batch ("light", "medium", "heavy").
	SkewPreset *string   `json:"skew_preset,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Document is one image inside a batch together with its expected values.
type Document struct {
	ID          string      `json:"id"`
	BatchID     string      `json:"batch_id"`
	StoragePath string      `json:"storage_path"`
	FieldValues FieldValues `json:"field_values"`
	IsSkewed    bool        `json:"is_skewed"`
	Position    int         `json:"position"`
	CreatedAt   time.Time   `json:"created_at"`
}

// TestRun is one benchmark execution of a layout/OCR library pair over one
// or more batches.
type TestRun struct {
	ID                 string     `json:"id"`
	BatchIDs           StringList `json:"batch_ids"`
	LayoutLibrary      string     `json:"layout_library"`
	OCRLibrary         string     `json:"ocr_library"`
	Status             RunStatus  `json:"status"`
	TotalDocuments     int        `json:"total_documents"`
	ProcessedDocuments int        `json:"processed_documents"`
	StartedBy          string     `json:"started_by"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	Version            int        `json:"-"`
}

// ProgressPercent reports processed documents as a percentage of the total,
// 0 for a run with no documents.
func (r *TestRun) ProgressPercent() float64 {
	if r.TotalDocuments == 0 {
		return 0
	}
	return float64(r.ProcessedDocuments) / float64(r.TotalDocuments) * 100
}

// Result is the per-document outcome of a test run.
type Result struct {
	ID         string `json:"id"`
	TestRunID  string `json:"test_run_id"`
	DocumentID string `json:"document_id"`
	BatchID    string `json:"batch_id"`

	LayoutRegions Regions `json:"layout_regions"`
	// LayoutMethod names the layout library used, or "none (full-text OCR)"
	// for handwritten documents.
	LayoutMethod string     `json:"layout_method"`
	OCRRegions   OCRRegions `json:"ocr_regions"`

	// FullText and TextRegions are populated in handwritten full-text mode.
	FullText    string      `json:"full_text,omitempty"`
	TextRegions TextRegions `json:"text_regions,omitempty"`

	ExtractedFields ExtractedFields `json:"extracted_fields"`
	OverallAccuracy float64         `json:"overall_accuracy"`
	// NoScoredFields flags documents where nothing was scorable, instead of
	// reporting a misleading zero mean.
	NoScoredFields bool `json:"no_scored_fields"`

	// VerifiedAccuracy is nil until the first verification submission.
	VerifiedAccuracy *float64   `json:"verified_accuracy,omitempty"`
	VerifiedBy       *string    `json:"verified_by,omitempty"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// EffectiveAccuracy returns the verified accuracy when present, else the
// automatic overall accuracy.
func (r *Result) EffectiveAccuracy() float64 {
	if r.VerifiedAccuracy != nil {
		return *r.VerifiedAccuracy
	}
	return r.OverallAccuracy
}
