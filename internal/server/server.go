// Package server assembles the chi router and HTTP server for the
// benchmark API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/formbench/formbench/internal/config"
	"github.com/formbench/formbench/internal/observability"
	"github.com/formbench/formbench/internal/support/logger"
)

// Params collects everything the router mounts.
type Params struct {
	fx.In

	Config       *config.Config
	Recorder     *observability.PrometheusRecorder
	TestRuns     *TestRunHandler
	Results      *ResultHandler
	Verification *VerificationHandler
	Metrics      *MetricsHandler
	Batches      *BatchHandler
	Forms        *FormHandler
}

// NewRouter builds the chi router with all API routes mounted.
func NewRouter(p Params) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: p.Config.Formbench.Server.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
		p.Recorder.GetRegistry(), promhttp.HandlerOpts{}))

	r.Route("/api/tests", p.TestRuns.Attach)
	r.Route("/api/results", p.Results.Attach)
	r.Route("/api/verify", p.Verification.Attach)
	r.Route("/api/metrics", p.Metrics.Attach)
	r.Route("/api/batches", p.Batches.Attach)
	r.Route("/api/forms", p.Forms.Attach)

	return r
}

// NewHTTPServer creates the HTTP server and binds it to the fx lifecycle.
func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, router chi.Router) *http.Server {
	sc := cfg.Formbench.Server
	srv := &http.Server{
		Addr:         sc.Address,
		Handler:      router,
		ReadTimeout:  time.Duration(sc.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(sc.WriteTimeoutSeconds) * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Infof("HTTP server listening on %s", srv.Addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatalf("HTTP server failed: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Shutting down HTTP server.")
			return srv.Shutdown(ctx)
		},
	})
	return srv
}

// Module is an Fx module that provides the handlers, router and server.
var Module = fx.Options(
	fx.Provide(
		NewTestRunHandler,
		NewResultHandler,
		NewVerificationHandler,
		NewMetricsHandler,
		NewBatchHandler,
		NewFormHandler,
		NewRouter,
		NewHTTPServer,
	),
	fx.Invoke(func(*http.Server) {}),
)
