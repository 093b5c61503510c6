// Package repository defines the persistence interfaces for the FormBench
// domain and the sentinel errors implementations must return.
package repository

import (
	"context"
	"errors"

	"github.com/formbench/formbench/internal/domain/model"
)

// Sentinel errors returned by repository implementations.
var (
	ErrFormNotFound     = errors.New("form not found")
	ErrBatchNotFound    = errors.New("batch not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrTestRunNotFound  = errors.New("test run not found")
	ErrResultNotFound   = errors.New("result not found")
)

// FormRepository persists form templates.
type FormRepository interface {
	SaveForm(ctx context.Context, form *model.Form) error
	UpdateForm(ctx context.Context, form *model.Form) error
	FindFormByID(ctx context.Context, id string) (*model.Form, error)
	FindAllForms(ctx context.Context) ([]*model.Form, error)
	DeleteForm(ctx context.Context, id string) error
}

// BatchRepository persists batches and their documents.
type BatchRepository interface {
	SaveBatch(ctx context.Context, batch *model.Batch) error
	FindBatchByID(ctx context.Context, id string) (*model.Batch, error)
	FindAllBatches(ctx context.Context) ([]*model.Batch, error)
	DeleteBatch(ctx context.Context, id string) error

	SaveDocument(ctx context.Context, doc *model.Document) error
	FindDocumentByID(ctx context.Context, id string) (*model.Document, error)
	FindDocumentsByBatchID(ctx context.Context, batchID string) ([]*model.Document, error)
}

// TestRunRepository persists test runs and owns their state transitions.
type TestRunRepository interface {
	SaveTestRun(ctx context.Context, run *model.TestRun) error
	FindTestRunByID(ctx context.Context, id string) (*model.TestRun, error)
	FindAllTestRuns(ctx context.Context) ([]*model.TestRun, error)
	FindTestRunsByStatus(ctx context.Context, status model.RunStatus) ([]*model.TestRun, error)

	// TransitionStatus atomically moves a run from any of the `from`
	// statuses to `to`, recording the error message and setting CompletedAt
	// when `to` is terminal. It reports whether the transition was applied;
	// a lost race (current status not in `from`) returns (false, nil).
	TransitionStatus(ctx context.Context, id string, from []model.RunStatus, to model.RunStatus, errorMessage *string) (bool, error)

	// IncrementProcessed bumps ProcessedDocuments by one.
	IncrementProcessed(ctx context.Context, id string) error
}

// ResultRepository persists per-document results.
type ResultRepository interface {
	SaveResult(ctx context.Context, result *model.Result) error
	UpdateResult(ctx context.Context, result *model.Result) error
	FindResultByRunAndDocument(ctx context.Context, runID, documentID string) (*model.Result, error)
	FindResultsByTestRunID(ctx context.Context, runID string) ([]*model.Result, error)
	FindAllResults(ctx context.Context) ([]*model.Result, error)
}
