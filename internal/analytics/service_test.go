package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbench/formbench/internal/analytics"
	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/repository/inmemory"
)

func floatptr(v float64) *float64 { return &v }

func seedRun(t *testing.T, repo *inmemory.Repository, layout, ocr string, status model.RunStatus) *model.TestRun {
	t.Helper()
	run := &model.TestRun{
		ID:            uuid.NewString(),
		LayoutLibrary: layout,
		OCRLibrary:    ocr,
		Status:        status,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, repo.SaveTestRun(context.Background(), run))
	return run
}

func seedResult(t *testing.T, repo *inmemory.Repository, runID string, accuracy float64, verified *float64, fields model.ExtractedFields) {
	t.Helper()
	result := &model.Result{
		ID:               uuid.NewString(),
		TestRunID:        runID,
		DocumentID:       uuid.NewString(),
		ExtractedFields:  fields,
		OverallAccuracy:  accuracy,
		VerifiedAccuracy: verified,
	}
	require.NoError(t, repo.SaveResult(context.Background(), result))
}

func TestAggregatePrefersVerifiedAccuracy(t *testing.T) {
	repo := inmemory.NewRepository()
	svc := analytics.NewService(repo, repo)
	ctx := context.Background()

	run := seedRun(t, repo, "surya", "tesseract", model.RunStatusCompleted)
	seedResult(t, repo, run.ID, 0.5, floatptr(0.9), nil)
	seedResult(t, repo, run.ID, 0.7, nil, nil)

	report, err := svc.Aggregate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalRuns)
	assert.Equal(t, 2, report.TotalDocuments)
	assert.InDelta(t, 0.8, report.AverageAccuracy, 1e-9)

	require.Len(t, report.ByOCRLibrary, 1)
	assert.Equal(t, "tesseract", report.ByOCRLibrary[0].Library)
	assert.Equal(t, 1, report.ByOCRLibrary[0].RunCount)
	assert.Equal(t, 2, report.ByOCRLibrary[0].DocumentCount)
}

func TestAggregateIgnoresNonCompletedRuns(t *testing.T) {
	repo := inmemory.NewRepository()
	svc := analytics.NewService(repo, repo)
	ctx := context.Background()

	failed := seedRun(t, repo, "surya", "easyocr", model.RunStatusFailed)
	seedResult(t, repo, failed.ID, 0.9, nil, nil)

	report, err := svc.Aggregate(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.TotalRuns)
	assert.Zero(t, report.TotalDocuments)
}

func TestByFieldSortsWorstFirst(t *testing.T) {
	repo := inmemory.NewRepository()
	svc := analytics.NewService(repo, repo)
	ctx := context.Background()

	run := seedRun(t, repo, "surya", "tesseract", model.RunStatusCompleted)
	seedResult(t, repo, run.ID, 0.8, nil, model.ExtractedFields{
		{FieldName: "name", ExpectedValue: "x", MatchScore: 0.9, IsImportant: true},
		{FieldName: "signature", ExpectedValue: "y", MatchScore: 0.3, IsImportant: true},
		{FieldName: "blank", ExpectedValue: "", MatchScore: 0.0, IsImportant: true},
	})

	stats, err := svc.ByField(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "signature", stats[0].FieldName)
	assert.Equal(t, "name", stats[1].FieldName)
}

func TestCompareRequiresTwoRuns(t *testing.T) {
	repo := inmemory.NewRepository()
	svc := analytics.NewService(repo, repo)
	ctx := context.Background()

	run := seedRun(t, repo, "surya", "tesseract", model.RunStatusCompleted)

	rows, err := svc.Compare(ctx, []string{run.ID})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = svc.Compare(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCompareSkipsUnknownAndNonCompleted(t *testing.T) {
	repo := inmemory.NewRepository()
	svc := analytics.NewService(repo, repo)
	ctx := context.Background()

	a := seedRun(t, repo, "surya", "tesseract", model.RunStatusCompleted)
	b := seedRun(t, repo, "doclayout-yolo", "easyocr", model.RunStatusCompleted)
	running := seedRun(t, repo, "surya", "paddleocr", model.RunStatusRunning)

	seedResult(t, repo, a.ID, 0.9, nil, model.ExtractedFields{
		{FieldName: "name", ExpectedValue: "x", MatchScore: 0.9, IsImportant: true},
	})
	seedResult(t, repo, b.ID, 0.6, nil, nil)

	rows, err := svc.Compare(ctx, []string{a.ID, b.ID, running.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, a.ID, rows[0].TestRunID)
	assert.InDelta(t, 0.9, rows[0].AverageAccuracy, 1e-9)
	assert.InDelta(t, 0.9, rows[0].FieldAccuracies["name"], 1e-9)
	assert.Equal(t, b.ID, rows[1].TestRunID)
}

func TestSummaryBucketsDistribution(t *testing.T) {
	repo := inmemory.NewRepository()
	svc := analytics.NewService(repo, repo)
	ctx := context.Background()

	run := seedRun(t, repo, "surya", "tesseract", model.RunStatusCompleted)
	for _, acc := range []float64{0.05, 0.25, 0.55, 0.79, 0.99, 1.0} {
		seedResult(t, repo, run.ID, acc, nil, nil)
	}

	summary, err := svc.Summary(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.DocumentCount)
	require.Len(t, summary.Distribution, 5)
	assert.Equal(t, 1, summary.Distribution[0].Count)
	assert.Equal(t, 1, summary.Distribution[1].Count)
	assert.Equal(t, 1, summary.Distribution[2].Count)
	assert.Equal(t, 1, summary.Distribution[3].Count)
	assert.Equal(t, 2, summary.Distribution[4].Count)
}

func TestSummaryUnknownRun(t *testing.T) {
	repo := inmemory.NewRepository()
	svc := analytics.NewService(repo, repo)

	_, err := svc.Summary(context.Background(), "missing")
	assert.Error(t, err)
}
