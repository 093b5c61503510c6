package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestPrometheusRecorderCounters(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx := context.Background()

	r.RecordRunStart(ctx, "yolo", "tesseract")
	r.RecordRunEnd(ctx, "yolo", "tesseract", "completed", 2*time.Second)
	r.RecordDocumentProcessed(ctx, "yolo", "tesseract", 150*time.Millisecond)
	r.RecordAdapterError(ctx, "tesseract", "ocr")
	r.RecordVerification(ctx, "verified")

	assert.Equal(t, float64(1), testutil.ToFloat64(
		r.runStatusCounter.WithLabelValues("yolo", "tesseract", "running")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		r.runStatusCounter.WithLabelValues("yolo", "tesseract", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		r.documentCounter.WithLabelValues("yolo", "tesseract")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		r.adapterErrorCounter.WithLabelValues("tesseract", "ocr")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		r.verificationCounter.WithLabelValues("verified")))
}

func TestRecorderMirrorsOntoOtelMeter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = provider.Shutdown(context.Background())
	})

	r := NewPrometheusRecorder()
	ctx := context.Background()

	r.RecordRunStart(ctx, "yolo", "tesseract")
	r.RecordRunEnd(ctx, "yolo", "tesseract", "completed", 2*time.Second)
	r.RecordDocumentProcessed(ctx, "yolo", "tesseract", 150*time.Millisecond)
	r.RecordAdapterError(ctx, "tesseract", "ocr")
	r.RecordVerification(ctx, "verified")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["bench.run.status"])
	assert.True(t, names["bench.run.duration"])
	assert.True(t, names["bench.documents.processed"])
	assert.True(t, names["bench.document.duration"])
	assert.True(t, names["bench.adapter.errors"])
	assert.True(t, names["bench.verifications"])
}
