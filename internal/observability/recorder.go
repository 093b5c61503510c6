// Package observability carries the metric recorder and OpenTelemetry
// wiring for the benchmark service.
package observability

import (
	"context"
	"time"
)

// Recorder is an abstract interface for recording benchmark metrics.
// Implementations exist for Prometheus and for tests (NoopRecorder).
type Recorder interface {
	// RecordRunStart records the start of a test run.
	RecordRunStart(ctx context.Context, layoutLibrary, ocrLibrary string)

	// RecordRunEnd records a test run reaching a terminal status.
	RecordRunEnd(ctx context.Context, layoutLibrary, ocrLibrary, status string, duration time.Duration)

	// RecordDocumentProcessed records one processed document and its
	// processing time.
	RecordDocumentProcessed(ctx context.Context, layoutLibrary, ocrLibrary string, duration time.Duration)

	// RecordAdapterError records a failed layout or OCR adapter call.
	RecordAdapterError(ctx context.Context, library, kind string)

	// RecordVerification records one verification submission.
	RecordVerification(ctx context.Context, status string)
}

// NoopRecorder discards all metrics.
type NoopRecorder struct{}

// NewNoopRecorder creates a recorder that does nothing.
func NewNoopRecorder() Recorder {
	return &NoopRecorder{}
}

func (r *NoopRecorder) RecordRunStart(ctx context.Context, layoutLibrary, ocrLibrary string) {}
func (r *NoopRecorder) RecordRunEnd(ctx context.Context, layoutLibrary, ocrLibrary, status string, duration time.Duration) {
}
func (r *NoopRecorder) RecordDocumentProcessed(ctx context.Context, layoutLibrary, ocrLibrary string, duration time.Duration) {
}
func (r *NoopRecorder) RecordAdapterError(ctx context.Context, library, kind string) {}
func (r *NoopRecorder) RecordVerification(ctx context.Context, status string)       {}

var _ Recorder = (*NoopRecorder)(nil)
