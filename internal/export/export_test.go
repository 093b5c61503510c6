package export_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/export"
	"github.com/formbench/formbench/internal/repository/inmemory"
)

func seedRun(t *testing.T, repo *inmemory.Repository) *model.TestRun {
	t.Helper()
	ctx := context.Background()

	base := time.Now()
	run := &model.TestRun{
		ID:            "run-1",
		BatchIDs:      model.StringList{"batch-1"},
		LayoutLibrary: "surya",
		OCRLibrary:    "easyocr",
		Status:        model.RunStatusCompleted,
		CreatedAt:     base,
	}
	require.NoError(t, repo.SaveTestRun(ctx, run))

	corrected := "John Smith"
	require.NoError(t, repo.SaveResult(ctx, &model.Result{
		ID:         "res-1",
		TestRunID:  run.ID,
		DocumentID: "doc-1",
		BatchID:    "batch-1",
		ExtractedFields: model.ExtractedFields{
			{
				FieldName:          "name",
				ExpectedValue:      "John Smith",
				ExtractedValue:     "John Smlth",
				MatchScore:         0.9,
				VerificationStatus: model.VerificationCorrected,
				CorrectedValue:     &corrected,
			},
			{
				FieldName:          "case_number",
				ExpectedValue:      "CV-2024-001",
				ExtractedValue:     "CV-2024-001",
				MatchScore:         1.0,
				VerificationStatus: model.VerificationUnverified,
			},
		},
		OverallAccuracy: 0.95,
		CreatedAt:       base,
	}))

	// A handwritten document with no scored fields.
	require.NoError(t, repo.SaveResult(ctx, &model.Result{
		ID:             "res-2",
		TestRunID:      run.ID,
		DocumentID:     "doc-2",
		BatchID:        "batch-1",
		NoScoredFields: true,
		CreatedAt:      base.Add(time.Second),
	}))

	return run
}

func TestBuildRowsFlattensFields(t *testing.T) {
	repo := inmemory.NewRepository()
	run := seedRun(t, repo)
	svc := export.NewService(repo, repo, nil)

	rows, err := svc.BuildRows(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "name", rows[0].FieldName)
	assert.Equal(t, "John Smith", rows[0].CorrectedValue)
	assert.Equal(t, "corrected", rows[0].VerificationStatus)
	assert.InDelta(t, 0.95, rows[0].DocumentAccuracy, 1e-9)

	assert.Equal(t, "case_number", rows[1].FieldName)

	// Unscorable documents still appear, with empty field columns.
	assert.Equal(t, "doc-2", rows[2].DocumentID)
	assert.Empty(t, rows[2].FieldName)
}

func TestBuildRowsUnknownRun(t *testing.T) {
	repo := inmemory.NewRepository()
	svc := export.NewService(repo, repo, nil)

	_, err := svc.BuildRows(context.Background(), "missing")
	assert.Error(t, err)
}

func TestBuildRowsAllCompletedRuns(t *testing.T) {
	repo := inmemory.NewRepository()
	seedRun(t, repo)
	require.NoError(t, repo.SaveTestRun(context.Background(), &model.TestRun{
		ID:        "run-2",
		Status:    model.RunStatusFailed,
		CreatedAt: time.Now(),
	}))
	svc := export.NewService(repo, repo, nil)

	rows, err := svc.BuildRows(context.Background(), "")
	require.NoError(t, err)
	// Only the completed run contributes rows.
	for _, row := range rows {
		assert.Equal(t, "run-1", row.TestRunID)
	}
	assert.Len(t, rows, 3)
}

func TestWriteCSV(t *testing.T) {
	repo := inmemory.NewRepository()
	run := seedRun(t, repo)
	svc := export.NewService(repo, repo, nil)

	rows, err := svc.BuildRows(context.Background(), run.ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4) // header + 3 rows
	assert.Equal(t, "test_run_id", records[0][0])
	assert.Equal(t, "0.900000", records[1][8])
}
