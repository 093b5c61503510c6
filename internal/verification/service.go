// Package verification implements the human review workflow: reviewers
// confirm or correct extracted fields and text regions, producing a
// verified accuracy separate from the automatic score.
package verification

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/domain/repository"
	"github.com/formbench/formbench/internal/observability"
	"github.com/formbench/formbench/internal/scoring"
	"github.com/formbench/formbench/internal/support/exception"
)

const moduleName = "verification"

// FieldSubmission verifies or corrects one extracted field of a synthetic
// document. Resubmitting a field overwrites its previous verdict.
type FieldSubmission struct {
	FieldName      string                   `json:"field_name"`
	Status         model.VerificationStatus `json:"status"`
	CorrectedValue *string                  `json:"corrected_value,omitempty"`
}

// RegionSubmission verifies or corrects one text region of a handwritten
// document, addressed by its index in the result. IsImportant is the
// reviewer's judgment: regions marked unimportant are excluded from the
// verified accuracy entirely. Resubmitting overwrites both verdicts.
type RegionSubmission struct {
	Index          int                      `json:"index"`
	Status         model.VerificationStatus `json:"status"`
	IsImportant    bool                     `json:"is_important"`
	CorrectedValue *string                  `json:"corrected_value,omitempty"`
}

// AddedRegion is text the reviewer found on the document that the OCR
// missed entirely. Added regions always count against the verified score.
type AddedRegion struct {
	Text string `json:"text"`
}

// Progress summarizes how far verification of a run has come.
type Progress struct {
	TestRunID         string `json:"test_run_id"`
	TotalDocuments    int    `json:"total_documents"`
	VerifiedDocuments int    `json:"verified_documents"`
	TotalFields       int    `json:"total_fields"`
	VerifiedFields    int    `json:"verified_fields"`
}

// Service applies verification submissions to results.
type Service struct {
	runs     repository.TestRunRepository
	results  repository.ResultRepository
	recorder observability.Recorder
}

// NewService creates a verification service.
func NewService(runs repository.TestRunRepository, results repository.ResultRepository, recorder observability.Recorder) *Service {
	return &Service{runs: runs, results: results, recorder: recorder}
}

// Module is an Fx module that provides the verification service.
var Module = fx.Options(
	fx.Provide(NewService),
)

// loadResult checks the run is completed and returns the document's result.
func (s *Service) loadResult(ctx context.Context, runID, documentID string) (*model.Result, error) {
	run, err := s.runs.FindTestRunByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != model.RunStatusCompleted {
		return nil, exception.NewAppErrorf(moduleName, exception.KindConflict,
			"run %s is %s; only completed runs accept verification", runID, run.Status)
	}
	result, err := s.results.FindResultByRunAndDocument(ctx, runID, documentID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// VerifyFields applies field submissions to a synthetic document result and
// recomputes its verified accuracy.
func (s *Service) VerifyFields(ctx context.Context, runID, documentID, verifiedBy string, submissions []FieldSubmission) (*model.Result, error) {
	if len(submissions) == 0 {
		return nil, exception.NewAppErrorf(moduleName, exception.KindUnprocessable,
			"no field submissions given")
	}

	result, err := s.loadResult(ctx, runID, documentID)
	if err != nil {
		return nil, err
	}

	for _, sub := range submissions {
		if err := validateStatus(sub.Status, sub.CorrectedValue); err != nil {
			return nil, err
		}

		idx := -1
		for i := range result.ExtractedFields {
			if result.ExtractedFields[i].FieldName == sub.FieldName {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, exception.NewAppErrorf(moduleName, exception.KindUnprocessable,
				"unknown field: %s", sub.FieldName)
		}

		field := &result.ExtractedFields[idx]
		field.VerificationStatus = sub.Status
		if sub.Status == model.VerificationCorrected {
			field.CorrectedValue = sub.CorrectedValue
		} else {
			field.CorrectedValue = nil
		}
		s.recorder.RecordVerification(ctx, string(sub.Status))
	}

	result.VerifiedAccuracy = fieldVerifiedAccuracy(result.ExtractedFields)
	stamp(result, verifiedBy)

	if err := s.results.UpdateResult(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// VerifyRegions applies region submissions and reviewer-added regions to a
// handwritten document result and recomputes its verified accuracy.
func (s *Service) VerifyRegions(ctx context.Context, runID, documentID, verifiedBy string, submissions []RegionSubmission, added []AddedRegion) (*model.Result, error) {
	if len(submissions) == 0 && len(added) == 0 {
		return nil, exception.NewAppErrorf(moduleName, exception.KindUnprocessable,
			"no region submissions given")
	}

	result, err := s.loadResult(ctx, runID, documentID)
	if err != nil {
		return nil, err
	}

	for _, sub := range submissions {
		if err := validateStatus(sub.Status, sub.CorrectedValue); err != nil {
			return nil, err
		}
		if sub.Index < 0 || sub.Index >= len(result.TextRegions) {
			return nil, exception.NewAppErrorf(moduleName, exception.KindUnprocessable,
				"region index %d out of range", sub.Index)
		}
		region := &result.TextRegions[sub.Index]
		if region.UserAdded {
			return nil, exception.NewAppErrorf(moduleName, exception.KindUnprocessable,
				"region index %d was added by a reviewer and cannot be resubmitted", sub.Index)
		}
		region.VerificationStatus = sub.Status
		region.IsImportant = sub.IsImportant
		if sub.Status == model.VerificationCorrected {
			region.CorrectedValue = sub.CorrectedValue
		} else {
			region.CorrectedValue = nil
		}
		s.recorder.RecordVerification(ctx, string(sub.Status))
	}

	for _, add := range added {
		if add.Text == "" {
			return nil, exception.NewAppErrorf(moduleName, exception.KindUnprocessable,
				"added region text must not be empty")
		}
		result.TextRegions = append(result.TextRegions, model.TextRegion{
			Text:               add.Text,
			IsImportant:        true,
			VerificationStatus: model.VerificationCorrected,
			UserAdded:          true,
		})
		s.recorder.RecordVerification(ctx, "added")
	}

	result.VerifiedAccuracy = regionVerifiedAccuracy(result.TextRegions)
	stamp(result, verifiedBy)

	if err := s.results.UpdateResult(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Progress reports verification coverage for one run.
func (s *Service) Progress(ctx context.Context, runID string) (*Progress, error) {
	run, err := s.runs.FindTestRunByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	results, err := s.results.FindResultsByTestRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	p := &Progress{TestRunID: runID, TotalDocuments: run.TotalDocuments}
	for _, result := range results {
		if result.VerifiedAccuracy != nil {
			p.VerifiedDocuments++
		}
		for _, f := range result.ExtractedFields {
			p.TotalFields++
			if f.VerificationStatus != model.VerificationUnverified {
				p.VerifiedFields++
			}
		}
		for _, r := range result.TextRegions {
			p.TotalFields++
			if r.VerificationStatus != model.VerificationUnverified {
				p.VerifiedFields++
			}
		}
	}
	return p, nil
}

func validateStatus(status model.VerificationStatus, corrected *string) error {
	switch status {
	case model.VerificationVerified:
		return nil
	case model.VerificationCorrected:
		if corrected == nil {
			return exception.NewAppErrorf(moduleName, exception.KindUnprocessable,
				"status 'corrected' requires corrected_value")
		}
		return nil
	default:
		return exception.NewAppErrorf(moduleName, exception.KindUnprocessable,
			"invalid verification status: %s", status)
	}
}

func stamp(result *model.Result, verifiedBy string) {
	now := time.Now()
	result.VerifiedBy = &verifiedBy
	result.VerifiedAt = &now
}

// fieldVerifiedAccuracy averages the contribution of every field with a
// submission: verified counts 1.0, corrected counts the similarity between
// what the reviewer typed and what the OCR extracted. Nil when nothing has
// been submitted yet.
func fieldVerifiedAccuracy(fields []model.ExtractedField) *float64 {
	var sum float64
	var count int
	for _, f := range fields {
		switch f.VerificationStatus {
		case model.VerificationVerified:
			sum += 1.0
			count++
		case model.VerificationCorrected:
			if f.CorrectedValue != nil {
				sum += scoring.Similarity(*f.CorrectedValue, f.ExtractedValue)
				count++
			}
		}
	}
	if count == 0 {
		return nil
	}
	v := sum / float64(count)
	return &v
}

// regionVerifiedAccuracy averages over important regions with a submission.
// Reviewer-added regions contribute 0.0 since the OCR missed them.
func regionVerifiedAccuracy(regions []model.TextRegion) *float64 {
	var sum float64
	var count int
	for _, r := range regions {
		if !r.IsImportant {
			continue
		}
		if r.UserAdded {
			count++
			continue
		}
		switch r.VerificationStatus {
		case model.VerificationVerified:
			sum += 1.0
			count++
		case model.VerificationCorrected:
			if r.CorrectedValue != nil {
				sum += scoring.Similarity(*r.CorrectedValue, r.Text)
				count++
			}
		}
	}
	if count == 0 {
		return nil
	}
	v := sum / float64(count)
	return &v
}
