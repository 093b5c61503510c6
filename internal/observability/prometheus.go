package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/formbench/formbench/internal/support/logger"
)

// PrometheusRecorder is a Prometheus implementation of the Recorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Run metrics
	runDurationSeconds *prometheus.HistogramVec
	runStatusCounter   *prometheus.CounterVec

	// Document metrics
	documentDurationSeconds *prometheus.HistogramVec
	documentCounter         *prometheus.CounterVec

	// Adapter metrics
	adapterErrorCounter *prometheus.CounterVec

	// Verification metrics
	verificationCounter *prometheus.CounterVec

	// Mirrored OTel instruments for the OTLP pipeline.
	otel *otelInstruments
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		otel:     newOtelInstruments(),
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bench_run_duration_seconds",
			Help:    "Duration of benchmark test runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"layout_library", "ocr_library", "status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bench_run_status_total",
			Help: "Total number of benchmark test runs by status.",
		}, []string{"layout_library", "ocr_library", "status"}),
		documentDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bench_document_duration_seconds",
			Help:    "Duration of per-document processing.",
			Buckets: prometheus.DefBuckets,
		}, []string{"layout_library", "ocr_library"}),
		documentCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bench_documents_processed_total",
			Help: "Total documents processed by library pair.",
		}, []string{"layout_library", "ocr_library"}),
		adapterErrorCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bench_adapter_errors_total",
			Help: "Total adapter call failures by library and kind.",
		}, []string{"library", "kind"}), // kind: layout, ocr
		verificationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bench_verifications_total",
			Help: "Total verification submissions by status.",
		}, []string{"status"}),
	}

	// Register all metrics with the registry.
	registry.MustRegister(r.runDurationSeconds)
	registry.MustRegister(r.runStatusCounter)
	registry.MustRegister(r.documentDurationSeconds)
	registry.MustRegister(r.documentCounter)
	registry.MustRegister(r.adapterErrorCounter)
	registry.MustRegister(r.verificationCounter)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordRunStart records the start of a test run.
func (r *PrometheusRecorder) RecordRunStart(ctx context.Context, layoutLibrary, ocrLibrary string) {
	r.runStatusCounter.WithLabelValues(layoutLibrary, ocrLibrary, "running").Inc()
	r.otel.recordRunStatus(ctx, layoutLibrary, ocrLibrary, "running")
	logger.Debugf("Metrics: run started for %s/%s.", layoutLibrary, ocrLibrary)
}

// RecordRunEnd records a test run reaching a terminal status.
func (r *PrometheusRecorder) RecordRunEnd(ctx context.Context, layoutLibrary, ocrLibrary, status string, duration time.Duration) {
	r.runStatusCounter.WithLabelValues(layoutLibrary, ocrLibrary, status).Inc()
	r.runDurationSeconds.WithLabelValues(layoutLibrary, ocrLibrary, status).Observe(duration.Seconds())
	r.otel.recordRunStatus(ctx, layoutLibrary, ocrLibrary, status)
	r.otel.recordRunDuration(ctx, layoutLibrary, ocrLibrary, status, duration)
	logger.Debugf("Metrics: run ended with status '%s'. Duration: %.3fs", status, duration.Seconds())
}

// RecordDocumentProcessed records one processed document.
func (r *PrometheusRecorder) RecordDocumentProcessed(ctx context.Context, layoutLibrary, ocrLibrary string, duration time.Duration) {
	r.documentCounter.WithLabelValues(layoutLibrary, ocrLibrary).Inc()
	r.documentDurationSeconds.WithLabelValues(layoutLibrary, ocrLibrary).Observe(duration.Seconds())
	r.otel.recordDocument(ctx, layoutLibrary, ocrLibrary, duration)
}

// RecordAdapterError records a failed adapter call.
func (r *PrometheusRecorder) RecordAdapterError(ctx context.Context, library, kind string) {
	r.adapterErrorCounter.WithLabelValues(library, kind).Inc()
	r.otel.recordAdapterError(ctx, library, kind)
}

// RecordVerification records one verification submission.
func (r *PrometheusRecorder) RecordVerification(ctx context.Context, status string) {
	r.verificationCounter.WithLabelValues(status).Inc()
	r.otel.recordVerification(ctx, status)
}

var _ Recorder = (*PrometheusRecorder)(nil)
