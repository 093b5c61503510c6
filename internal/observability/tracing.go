package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/formbench/formbench/internal/config"
	"github.com/formbench/formbench/internal/support/exception"
	"github.com/formbench/formbench/internal/support/logger"
)

const moduleName = "observability"

// TracerName identifies spans emitted by this service.
const TracerName = "github.com/formbench/formbench"

// Telemetry owns the OTel provider pipelines and shuts them down together.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *metric.MeterProvider
}

// Init configures the global tracer and meter providers from configuration.
// When no OTLP endpoint is configured only propagators are installed and
// span export stays disabled.
func Init(ctx context.Context, cfg config.ObservabilityConfig) (*Telemetry, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t := &Telemetry{}
	if cfg.OTLP.Endpoint == "" {
		logger.Debugf("Observability: no OTLP endpoint configured. Span export disabled.")
		return t, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, exception.NewAppError(moduleName, "failed to build otel resource", err, exception.KindInternal)
	}

	traceExporter, err := newTraceExporter(ctx, cfg.OTLP)
	if err != nil {
		return nil, err
	}
	t.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(t.tracerProvider)

	metricExporter, err := newMetricExporter(ctx, cfg.OTLP)
	if err != nil {
		return nil, err
	}
	t.meterProvider = metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(30*time.Second))),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(t.meterProvider)

	logger.Infof("Observability: OTLP export enabled to %s over %s.", cfg.OTLP.Endpoint, cfg.OTLP.Protocol)
	return t, nil
}

// Tracer returns the service tracer.
func (t *Telemetry) Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Shutdown flushes and stops the provider pipelines.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			return exception.NewAppError(moduleName, "failed to shut down tracer provider", err, exception.KindInternal)
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			return exception.NewAppError(moduleName, "failed to shut down meter provider", err, exception.KindInternal)
		}
	}
	return nil
}

func newTraceExporter(ctx context.Context, cfg config.OTLPConfig) (*otlptrace.Exporter, error) {
	var exporter *otlptrace.Exporter
	var err error
	switch cfg.Protocol {
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, exception.NewAppError(moduleName, "failed to create trace exporter", err, exception.KindInternal)
	}
	return exporter, nil
}

func newMetricExporter(ctx context.Context, cfg config.OTLPConfig) (metric.Exporter, error) {
	var exporter metric.Exporter
	var err error
	switch cfg.Protocol {
	case "http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	default:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, exception.NewAppError(moduleName, "failed to create metric exporter", err, exception.KindInternal)
	}
	return exporter, nil
}
