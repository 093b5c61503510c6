package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/formbench/formbench/internal/support/logger"
)

// otelInstruments mirrors the Prometheus metrics onto the global OTel meter
// so the OTLP pipeline exports them when an endpoint is configured. The
// global meter delegates, so instruments created before Init bind to the
// real provider once it is installed.
type otelInstruments struct {
	runStatus     metric.Int64Counter
	runDuration   metric.Float64Histogram
	docProcessed  metric.Int64Counter
	docDuration   metric.Float64Histogram
	adapterErrors metric.Int64Counter
	verifications metric.Int64Counter
}

func newOtelInstruments() *otelInstruments {
	meter := otel.Meter(TracerName)
	ins := &otelInstruments{}
	var err error

	if ins.runStatus, err = meter.Int64Counter("bench.run.status",
		metric.WithDescription("Benchmark test runs by status.")); err != nil {
		logger.Warnf("Failed to create otel run status counter: %v", err)
	}
	if ins.runDuration, err = meter.Float64Histogram("bench.run.duration",
		metric.WithDescription("Duration of benchmark test runs."),
		metric.WithUnit("s")); err != nil {
		logger.Warnf("Failed to create otel run duration histogram: %v", err)
	}
	if ins.docProcessed, err = meter.Int64Counter("bench.documents.processed",
		metric.WithDescription("Documents processed by library pair.")); err != nil {
		logger.Warnf("Failed to create otel document counter: %v", err)
	}
	if ins.docDuration, err = meter.Float64Histogram("bench.document.duration",
		metric.WithDescription("Duration of per-document processing."),
		metric.WithUnit("s")); err != nil {
		logger.Warnf("Failed to create otel document duration histogram: %v", err)
	}
	if ins.adapterErrors, err = meter.Int64Counter("bench.adapter.errors",
		metric.WithDescription("Adapter call failures by library and kind.")); err != nil {
		logger.Warnf("Failed to create otel adapter error counter: %v", err)
	}
	if ins.verifications, err = meter.Int64Counter("bench.verifications",
		metric.WithDescription("Verification submissions by status.")); err != nil {
		logger.Warnf("Failed to create otel verification counter: %v", err)
	}
	return ins
}

func (i *otelInstruments) recordRunStatus(ctx context.Context, layout, ocr, status string) {
	if i.runStatus == nil {
		return
	}
	i.runStatus.Add(ctx, 1, metric.WithAttributes(
		attribute.String("layout_library", layout),
		attribute.String("ocr_library", ocr),
		attribute.String("status", status),
	))
}

func (i *otelInstruments) recordRunDuration(ctx context.Context, layout, ocr, status string, d time.Duration) {
	if i.runDuration == nil {
		return
	}
	i.runDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("layout_library", layout),
		attribute.String("ocr_library", ocr),
		attribute.String("status", status),
	))
}

func (i *otelInstruments) recordDocument(ctx context.Context, layout, ocr string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("layout_library", layout),
		attribute.String("ocr_library", ocr),
	)
	if i.docProcessed != nil {
		i.docProcessed.Add(ctx, 1, attrs)
	}
	if i.docDuration != nil {
		i.docDuration.Record(ctx, d.Seconds(), attrs)
	}
}

func (i *otelInstruments) recordAdapterError(ctx context.Context, library, kind string) {
	if i.adapterErrors == nil {
		return
	}
	i.adapterErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("library", library),
		attribute.String("kind", kind),
	))
}

func (i *otelInstruments) recordVerification(ctx context.Context, status string) {
	if i.verifications == nil {
		return
	}
	i.verifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}
