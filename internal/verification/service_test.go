package verification_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/observability"
	"github.com/formbench/formbench/internal/repository/inmemory"
	"github.com/formbench/formbench/internal/scoring"
	"github.com/formbench/formbench/internal/verification"
)

func strptr(s string) *string { return &s }

func seedRun(t *testing.T, repo *inmemory.Repository, status model.RunStatus) *model.TestRun {
	t.Helper()
	run := &model.TestRun{
		ID:             uuid.NewString(),
		Status:         status,
		TotalDocuments: 1,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, repo.SaveTestRun(context.Background(), run))
	return run
}

func seedFieldResult(t *testing.T, repo *inmemory.Repository, runID string) *model.Result {
	t.Helper()
	result := &model.Result{
		ID:         uuid.NewString(),
		TestRunID:  runID,
		DocumentID: uuid.NewString(),
		ExtractedFields: model.ExtractedFields{
			{FieldName: "name", ExpectedValue: "John Smith", ExtractedValue: "John Smlth",
				MatchScore: 0.9, IsImportant: true, VerificationStatus: model.VerificationUnverified},
			{FieldName: "case_number", ExpectedValue: "CV-2024-001", ExtractedValue: "CV-2024-001",
				MatchScore: 1.0, IsImportant: true, VerificationStatus: model.VerificationUnverified},
		},
		OverallAccuracy: 0.95,
	}
	require.NoError(t, repo.SaveResult(context.Background(), result))
	return result
}

func seedRegionResult(t *testing.T, repo *inmemory.Repository, runID string) *model.Result {
	t.Helper()
	result := &model.Result{
		ID:           uuid.NewString(),
		TestRunID:    runID,
		DocumentID:   uuid.NewString(),
		LayoutMethod: "none (full-text OCR)",
		TextRegions: model.TextRegions{
			{Text: "plaintiff requests relief", Confidence: 0.8, IsImportant: true,
				VerificationStatus: model.VerificationUnverified},
			{Text: "signed on march 3rd", Confidence: 0.7, IsImportant: true,
				VerificationStatus: model.VerificationUnverified},
		},
		NoScoredFields: true,
	}
	require.NoError(t, repo.SaveResult(context.Background(), result))
	return result
}

func newService(repo *inmemory.Repository) *verification.Service {
	return verification.NewService(repo, repo, observability.NewNoopRecorder())
}

func TestVerifyFieldsComputesVerifiedAccuracy(t *testing.T) {
	repo := inmemory.NewRepository()
	run := seedRun(t, repo, model.RunStatusCompleted)
	result := seedFieldResult(t, repo, run.ID)
	svc := newService(repo)
	ctx := context.Background()

	// Before any submission the verified accuracy is unset.
	stored, err := repo.FindResultByRunAndDocument(ctx, run.ID, result.DocumentID)
	require.NoError(t, err)
	assert.Nil(t, stored.VerifiedAccuracy)

	updated, err := svc.VerifyFields(ctx, run.ID, result.DocumentID, "reviewer", []verification.FieldSubmission{
		{FieldName: "name", Status: model.VerificationVerified},
	})
	require.NoError(t, err)
	require.NotNil(t, updated.VerifiedAccuracy)
	// Only the submitted field contributes.
	assert.InDelta(t, 1.0, *updated.VerifiedAccuracy, 1e-9)
	assert.Equal(t, "reviewer", *updated.VerifiedBy)
	assert.NotNil(t, updated.VerifiedAt)

	// A correction scores the reviewer's text against the extraction.
	updated, err = svc.VerifyFields(ctx, run.ID, result.DocumentID, "reviewer", []verification.FieldSubmission{
		{FieldName: "case_number", Status: model.VerificationCorrected, CorrectedValue: strptr("CV-2024-002")},
	})
	require.NoError(t, err)
	want := (1.0 + scoring.Similarity("CV-2024-002", "CV-2024-001")) / 2
	assert.InDelta(t, want, *updated.VerifiedAccuracy, 1e-9)
}

func TestVerifyFieldsResubmissionOverwrites(t *testing.T) {
	repo := inmemory.NewRepository()
	run := seedRun(t, repo, model.RunStatusCompleted)
	result := seedFieldResult(t, repo, run.ID)
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.VerifyFields(ctx, run.ID, result.DocumentID, "reviewer", []verification.FieldSubmission{
		{FieldName: "name", Status: model.VerificationCorrected, CorrectedValue: strptr("Jane Doe")},
	})
	require.NoError(t, err)

	updated, err := svc.VerifyFields(ctx, run.ID, result.DocumentID, "reviewer", []verification.FieldSubmission{
		{FieldName: "name", Status: model.VerificationVerified},
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, *updated.VerifiedAccuracy, 1e-9)
	assert.Nil(t, updated.ExtractedFields[0].CorrectedValue)
}

func TestVerifyFieldsRejectsNonCompletedRun(t *testing.T) {
	repo := inmemory.NewRepository()
	svc := newService(repo)
	ctx := context.Background()

	for _, status := range []model.RunStatus{
		model.RunStatusPending, model.RunStatusRunning,
		model.RunStatusFailed, model.RunStatusCancelled,
	} {
		run := seedRun(t, repo, status)
		result := seedFieldResult(t, repo, run.ID)
		_, err := svc.VerifyFields(ctx, run.ID, result.DocumentID, "reviewer", []verification.FieldSubmission{
			{FieldName: "name", Status: model.VerificationVerified},
		})
		assert.Error(t, err, "status %s", status)
	}
}

func TestVerifyFieldsRejectsMalformedSubmissions(t *testing.T) {
	repo := inmemory.NewRepository()
	run := seedRun(t, repo, model.RunStatusCompleted)
	result := seedFieldResult(t, repo, run.ID)
	svc := newService(repo)
	ctx := context.Background()

	cases := [][]verification.FieldSubmission{
		nil,
		{{FieldName: "name", Status: "approved"}},
		{{FieldName: "name", Status: model.VerificationCorrected}},
		{{FieldName: "missing_field", Status: model.VerificationVerified}},
	}
	for _, subs := range cases {
		_, err := svc.VerifyFields(ctx, run.ID, result.DocumentID, "reviewer", subs)
		assert.Error(t, err)
	}
}

func TestVerifyRegionsWithUserAdded(t *testing.T) {
	repo := inmemory.NewRepository()
	run := seedRun(t, repo, model.RunStatusCompleted)
	result := seedRegionResult(t, repo, run.ID)
	svc := newService(repo)
	ctx := context.Background()

	updated, err := svc.VerifyRegions(ctx, run.ID, result.DocumentID, "reviewer",
		[]verification.RegionSubmission{
			{Index: 0, Status: model.VerificationVerified, IsImportant: true},
			{Index: 1, Status: model.VerificationCorrected, IsImportant: true, CorrectedValue: strptr("signed on march 3rd")},
		},
		[]verification.AddedRegion{{Text: "notary stamp in the margin"}},
	)
	require.NoError(t, err)

	require.Len(t, updated.TextRegions, 3)
	added := updated.TextRegions[2]
	assert.True(t, added.UserAdded)
	assert.True(t, added.IsImportant)

	// verified 1.0, corrected 1.0 (identical text), added 0.0 => 2/3.
	require.NotNil(t, updated.VerifiedAccuracy)
	assert.InDelta(t, 2.0/3.0, *updated.VerifiedAccuracy, 1e-9)
}

func TestVerifyRegionsUnimportantExcluded(t *testing.T) {
	repo := inmemory.NewRepository()
	run := seedRun(t, repo, model.RunStatusCompleted)
	result := seedRegionResult(t, repo, run.ID)
	svc := newService(repo)
	ctx := context.Background()

	// The second region is smudged boilerplate the reviewer deems
	// unimportant; only the first counts.
	updated, err := svc.VerifyRegions(ctx, run.ID, result.DocumentID, "reviewer",
		[]verification.RegionSubmission{
			{Index: 0, Status: model.VerificationVerified, IsImportant: true},
			{Index: 1, Status: model.VerificationCorrected, IsImportant: false, CorrectedValue: strptr("wrong text")},
		}, nil)
	require.NoError(t, err)

	assert.False(t, updated.TextRegions[1].IsImportant)
	require.NotNil(t, updated.VerifiedAccuracy)
	assert.InDelta(t, 1.0, *updated.VerifiedAccuracy, 1e-9)

	// Resubmission overwrites the judgment: re-including the region pulls
	// its correction back into the mean.
	updated, err = svc.VerifyRegions(ctx, run.ID, result.DocumentID, "reviewer",
		[]verification.RegionSubmission{
			{Index: 1, Status: model.VerificationCorrected, IsImportant: true, CorrectedValue: strptr("signed on march 3rd")},
		}, nil)
	require.NoError(t, err)
	assert.True(t, updated.TextRegions[1].IsImportant)
	assert.InDelta(t, 1.0, *updated.VerifiedAccuracy, 1e-9)

	// And a region can be retracted to excluded after being verified.
	updated, err = svc.VerifyRegions(ctx, run.ID, result.DocumentID, "reviewer",
		[]verification.RegionSubmission{
			{Index: 0, Status: model.VerificationVerified, IsImportant: false},
		}, nil)
	require.NoError(t, err)
	assert.False(t, updated.TextRegions[0].IsImportant)
	// Only region 1's correction (identical text, 1.0) remains in the mean.
	assert.InDelta(t, 1.0, *updated.VerifiedAccuracy, 1e-9)
}

func TestVerifyRegionsIndexOutOfRange(t *testing.T) {
	repo := inmemory.NewRepository()
	run := seedRun(t, repo, model.RunStatusCompleted)
	result := seedRegionResult(t, repo, run.ID)
	svc := newService(repo)

	_, err := svc.VerifyRegions(context.Background(), run.ID, result.DocumentID, "reviewer",
		[]verification.RegionSubmission{{Index: 5, Status: model.VerificationVerified}}, nil)
	assert.Error(t, err)
}

func TestProgress(t *testing.T) {
	repo := inmemory.NewRepository()
	run := seedRun(t, repo, model.RunStatusCompleted)
	result := seedFieldResult(t, repo, run.ID)
	svc := newService(repo)
	ctx := context.Background()

	p, err := svc.Progress(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.VerifiedDocuments)
	assert.Equal(t, 2, p.TotalFields)
	assert.Equal(t, 0, p.VerifiedFields)

	_, err = svc.VerifyFields(ctx, run.ID, result.DocumentID, "reviewer", []verification.FieldSubmission{
		{FieldName: "name", Status: model.VerificationVerified},
	})
	require.NoError(t, err)

	p, err = svc.Progress(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.VerifiedDocuments)
	assert.Equal(t, 1, p.VerifiedFields)
}
