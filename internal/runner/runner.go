// Package runner owns the test run lifecycle: validation, asynchronous
// execution over batches, cancellation and atomic status transitions.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/domain/repository"
	"github.com/formbench/formbench/internal/engine"
	"github.com/formbench/formbench/internal/observability"
	"github.com/formbench/formbench/internal/storage"
	"github.com/formbench/formbench/internal/support/exception"
	"github.com/formbench/formbench/internal/support/logger"
)

const moduleName = "runner"

// CreateRequest describes a new benchmark run.
type CreateRequest struct {
	BatchIDs      []string `json:"batch_ids"`
	LayoutLibrary string   `json:"layout_library"`
	OCRLibrary    string   `json:"ocr_library"`
	StartedBy     string   `json:"started_by"`
}

// Runner validates, starts and cancels test runs.
type Runner struct {
	runs     repository.TestRunRepository
	batches  repository.BatchRepository
	results  repository.ResultRepository
	registry *engine.Registry
	store    storage.Store
	recorder observability.Recorder

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Params collects the runner's dependencies.
type Params struct {
	fx.In

	Runs     repository.TestRunRepository
	Batches  repository.BatchRepository
	Results  repository.ResultRepository
	Registry *engine.Registry
	Store    storage.Store
	Recorder observability.Recorder
}

// New creates a Runner.
func New(p Params) *Runner {
	return &Runner{
		runs:     p.Runs,
		batches:  p.Batches,
		results:  p.Results,
		registry: p.Registry,
		store:    p.Store,
		recorder: p.Recorder,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Module is an Fx module that provides the Runner.
var Module = fx.Options(
	fx.Provide(New),
)

// Create validates the request, persists a pending run and starts its
// execution goroutine. No run is persisted when validation fails.
func (r *Runner) Create(ctx context.Context, req CreateRequest) (*model.TestRun, error) {
	if len(req.BatchIDs) == 0 {
		return nil, exception.NewAppErrorf(moduleName, exception.KindValidation,
			"at least one batch id is required")
	}
	if req.OCRLibrary == "" {
		return nil, exception.NewAppErrorf(moduleName, exception.KindValidation,
			"ocr_library is required")
	}
	if !r.registry.HasOCR(req.OCRLibrary) {
		return nil, exception.NewAppErrorf(moduleName, exception.KindValidation,
			"unknown OCR library: %s", req.OCRLibrary)
	}

	var total int
	var anySynthetic bool
	for _, batchID := range req.BatchIDs {
		batch, err := r.batches.FindBatchByID(ctx, batchID)
		if err != nil {
			return nil, exception.NewAppErrorf(moduleName, exception.KindValidation,
				"unknown batch: %s", batchID)
		}
		if batch.BatchType == model.BatchTypeSynthetic {
			anySynthetic = true
		}
		docs, err := r.batches.FindDocumentsByBatchID(ctx, batchID)
		if err != nil {
			return nil, exception.NewAppError(moduleName, "failed to count batch documents", err, exception.KindInternal)
		}
		total += len(docs)
	}

	if anySynthetic && !r.registry.HasLayout(req.LayoutLibrary) {
		return nil, exception.NewAppErrorf(moduleName, exception.KindValidation,
			"unknown layout library: %s", req.LayoutLibrary)
	}
	if total == 0 {
		return nil, exception.NewAppErrorf(moduleName, exception.KindValidation,
			"selected batches contain no documents")
	}

	now := time.Now()
	run := &model.TestRun{
		ID:             uuid.NewString(),
		BatchIDs:       append(model.StringList{}, req.BatchIDs...),
		LayoutLibrary:  req.LayoutLibrary,
		OCRLibrary:     req.OCRLibrary,
		Status:         model.RunStatusPending,
		TotalDocuments: total,
		StartedBy:      req.StartedBy,
		StartedAt:      now,
		CreatedAt:      now,
	}
	if err := r.runs.SaveTestRun(ctx, run); err != nil {
		return nil, exception.NewAppError(moduleName, "failed to persist test run", err, exception.KindInternal)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancels[run.ID] = cancel
	r.mu.Unlock()

	go r.execute(runCtx, run.ID)

	return run, nil
}

// Get returns a run by id.
func (r *Runner) Get(ctx context.Context, id string) (*model.TestRun, error) {
	return r.runs.FindTestRunByID(ctx, id)
}

// List returns all runs.
func (r *Runner) List(ctx context.Context) ([]*model.TestRun, error) {
	return r.runs.FindAllTestRuns(ctx)
}

// Cancel requests cancellation of a run. Cancelling a terminal run is an
// idempotent no-op that returns the current state.
func (r *Runner) Cancel(ctx context.Context, id string) (*model.TestRun, error) {
	run, err := r.runs.FindTestRunByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status.IsTerminal() {
		return run, nil
	}

	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}

	// Transition here so the caller observes the cancelled state without
	// waiting for the goroutine to reach its next document boundary. The
	// goroutine's own terminal transition then loses the race and no-ops.
	if _, err := r.runs.TransitionStatus(ctx, id,
		[]model.RunStatus{model.RunStatusPending, model.RunStatusRunning},
		model.RunStatusCancelled, nil); err != nil {
		return nil, err
	}
	return r.runs.FindTestRunByID(ctx, id)
}

// execute drains the run's batches document by document. Cancellation is
// observed only at document boundaries; the document in flight finishes.
func (r *Runner) execute(ctx context.Context, runID string) {
	defer func() {
		r.mu.Lock()
		delete(r.cancels, runID)
		r.mu.Unlock()
	}()

	tracer := otel.Tracer(observability.TracerName)
	start := time.Now()

	run, err := r.runs.FindTestRunByID(context.Background(), runID)
	if err != nil {
		logger.Errorf("Run '%s' disappeared before execution: %v", runID, err)
		return
	}

	ok, err := r.runs.TransitionStatus(ctx, runID,
		[]model.RunStatus{model.RunStatusPending}, model.RunStatusRunning, nil)
	if err != nil {
		logger.Errorf("Run '%s' could not enter running: %v", runID, err)
		return
	}
	if !ok {
		// Cancelled before the goroutine got scheduled.
		logger.Infof("Run '%s' was cancelled before it started.", runID)
		return
	}
	r.recorder.RecordRunStart(ctx, run.LayoutLibrary, run.OCRLibrary)

	runCtx, span := tracer.Start(ctx, "test_run")
	span.SetAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("run.layout_library", run.LayoutLibrary),
		attribute.String("run.ocr_library", run.OCRLibrary),
		attribute.Int("run.total_documents", run.TotalDocuments),
	)
	defer span.End()

	finish := func(status model.RunStatus, errorMessage *string) {
		applied, terr := r.runs.TransitionStatus(context.Background(), runID,
			[]model.RunStatus{model.RunStatusPending, model.RunStatusRunning},
			status, errorMessage)
		if terr != nil {
			logger.Errorf("Run '%s' terminal transition failed: %v", runID, terr)
			return
		}
		final := status
		if !applied {
			// Lost the race against Cancel.
			if current, gerr := r.runs.FindTestRunByID(context.Background(), runID); gerr == nil {
				final = current.Status
			}
		}
		r.recorder.RecordRunEnd(context.Background(), run.LayoutLibrary, run.OCRLibrary,
			final.String(), time.Since(start))
		logger.Infof("Run '%s' finished with status '%s'.", runID, final)
	}

	fail := func(err error) {
		msg := exception.ExtractErrorMessage(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		finish(model.RunStatusFailed, &msg)
	}

	for _, batchID := range run.BatchIDs {
		batch, err := r.batches.FindBatchByID(runCtx, batchID)
		if err != nil {
			fail(err)
			return
		}
		docs, err := r.batches.FindDocumentsByBatchID(runCtx, batchID)
		if err != nil {
			fail(err)
			return
		}

		for _, doc := range docs {
			if ctx.Err() != nil {
				finish(model.RunStatusCancelled, nil)
				return
			}

			docStart := time.Now()
			docCtx, docSpan := tracer.Start(runCtx, "process_document")
			docSpan.SetAttributes(attribute.String("document.id", doc.ID))

			// Let an adapter call in flight finish even if the run is
			// cancelled mid-document.
			result, err := r.processDocument(context.WithoutCancel(docCtx), run, batch, doc)
			if err != nil {
				docSpan.RecordError(err)
				docSpan.SetStatus(codes.Error, err.Error())
				docSpan.End()
				fail(err)
				return
			}

			if err := r.results.SaveResult(docCtx, result); err != nil {
				docSpan.End()
				fail(err)
				return
			}
			if err := r.runs.IncrementProcessed(docCtx, runID); err != nil {
				docSpan.End()
				fail(err)
				return
			}
			docSpan.End()
			r.recorder.RecordDocumentProcessed(ctx, run.LayoutLibrary, run.OCRLibrary, time.Since(docStart))
		}
	}

	if ctx.Err() != nil {
		finish(model.RunStatusCancelled, nil)
		return
	}
	finish(model.RunStatusCompleted, nil)
}
