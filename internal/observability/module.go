package observability

import (
	"context"

	"go.uber.org/fx"

	"github.com/formbench/formbench/internal/config"
)

// Module is an Fx module that provides the Prometheus recorder and the OTel
// telemetry pipelines.
var Module = fx.Options(
	// Provide PrometheusRecorder both concretely (for the /metrics handler)
	// and as the Recorder interface.
	fx.Provide(
		NewPrometheusRecorder,
		func(r *PrometheusRecorder) Recorder { return r },
	),
	fx.Provide(func(lc fx.Lifecycle, cfg *config.Config) (*Telemetry, error) {
		t, err := Init(context.Background(), cfg.Formbench.Observability)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return t.Shutdown(ctx)
			},
		})
		return t, nil
	}),
)
