// Package analytics aggregates benchmark results across completed runs:
// per-library accuracy, per-field weak spots, run comparisons and score
// distributions.
package analytics

import (
	"context"
	"sort"

	"go.uber.org/fx"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/domain/repository"
)

// LibraryStats is the aggregate for one library (layout or OCR).
type LibraryStats struct {
	Library         string  `json:"library"`
	RunCount        int     `json:"run_count"`
	DocumentCount   int     `json:"document_count"`
	AverageAccuracy float64 `json:"average_accuracy"`
}

// AggregateReport is the top-level metrics view.
type AggregateReport struct {
	TotalRuns       int            `json:"total_runs"`
	TotalDocuments  int            `json:"total_documents"`
	AverageAccuracy float64        `json:"average_accuracy"`
	ByLayoutLibrary []LibraryStats `json:"by_layout_library"`
	ByOCRLibrary    []LibraryStats `json:"by_ocr_library"`
}

// FieldStats is the aggregate for one form field across all completed runs.
type FieldStats struct {
	FieldName         string  `json:"field_name"`
	SampleCount       int     `json:"sample_count"`
	AverageMatchScore float64 `json:"average_match_score"`
}

// ComparisonRow describes one run inside a side-by-side comparison.
type ComparisonRow struct {
	TestRunID       string             `json:"test_run_id"`
	LayoutLibrary   string             `json:"layout_library"`
	OCRLibrary      string             `json:"ocr_library"`
	DocumentCount   int                `json:"document_count"`
	AverageAccuracy float64            `json:"average_accuracy"`
	FieldAccuracies map[string]float64 `json:"field_accuracies"`
}

// DistributionBucket counts documents whose effective accuracy falls in a
// 20-point band.
type DistributionBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// RunSummary is the per-run distribution view.
type RunSummary struct {
	TestRunID       string               `json:"test_run_id"`
	DocumentCount   int                  `json:"document_count"`
	AverageAccuracy float64              `json:"average_accuracy"`
	Distribution    []DistributionBucket `json:"distribution"`
}

// Service computes aggregate metrics over completed runs. A run's effective
// accuracy prefers the human-verified score over the automatic one.
type Service struct {
	runs    repository.TestRunRepository
	results repository.ResultRepository
}

// NewService creates an analytics service.
func NewService(runs repository.TestRunRepository, results repository.ResultRepository) *Service {
	return &Service{runs: runs, results: results}
}

// Module is an Fx module that provides the analytics service.
var Module = fx.Options(
	fx.Provide(NewService),
)

// completedRuns returns the completed runs keyed by id.
func (s *Service) completedRuns(ctx context.Context) (map[string]*model.TestRun, error) {
	runs, err := s.runs.FindTestRunsByStatus(ctx, model.RunStatusCompleted)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.TestRun, len(runs))
	for _, run := range runs {
		byID[run.ID] = run
	}
	return byID, nil
}

// Aggregate computes totals and per-library averages over completed runs.
func (s *Service) Aggregate(ctx context.Context) (*AggregateReport, error) {
	runs, err := s.completedRuns(ctx)
	if err != nil {
		return nil, err
	}
	results, err := s.results.FindAllResults(ctx)
	if err != nil {
		return nil, err
	}

	report := &AggregateReport{TotalRuns: len(runs)}
	layoutAcc := make(map[string]*accumulator)
	ocrAcc := make(map[string]*accumulator)
	layoutRuns := make(map[string]map[string]bool)
	ocrRuns := make(map[string]map[string]bool)

	var total accumulator
	for _, result := range results {
		run, ok := runs[result.TestRunID]
		if !ok {
			continue
		}
		acc := result.EffectiveAccuracy()
		total.add(acc)
		report.TotalDocuments++

		if run.LayoutLibrary != "" {
			accFor(layoutAcc, run.LayoutLibrary).add(acc)
			markRun(layoutRuns, run.LayoutLibrary, run.ID)
		}
		accFor(ocrAcc, run.OCRLibrary).add(acc)
		markRun(ocrRuns, run.OCRLibrary, run.ID)
	}

	report.AverageAccuracy = total.mean()
	report.ByLayoutLibrary = libraryStats(layoutAcc, layoutRuns)
	report.ByOCRLibrary = libraryStats(ocrAcc, ocrRuns)
	return report, nil
}

// ByField computes per-field average match scores, worst first, so the
// weakest fields surface at the top.
func (s *Service) ByField(ctx context.Context) ([]FieldStats, error) {
	runs, err := s.completedRuns(ctx)
	if err != nil {
		return nil, err
	}
	results, err := s.results.FindAllResults(ctx)
	if err != nil {
		return nil, err
	}

	byField := make(map[string]*accumulator)
	for _, result := range results {
		if _, ok := runs[result.TestRunID]; !ok {
			continue
		}
		for _, f := range result.ExtractedFields {
			if !f.IsImportant || f.ExpectedValue == "" {
				continue
			}
			accFor(byField, f.FieldName).add(f.MatchScore)
		}
	}

	stats := make([]FieldStats, 0, len(byField))
	for name, acc := range byField {
		stats = append(stats, FieldStats{
			FieldName:         name,
			SampleCount:       acc.count,
			AverageMatchScore: acc.mean(),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].AverageMatchScore != stats[j].AverageMatchScore {
			return stats[i].AverageMatchScore < stats[j].AverageMatchScore
		}
		return stats[i].FieldName < stats[j].FieldName
	})
	return stats, nil
}

// Compare builds side-by-side rows for the given run ids. Fewer than two
// ids yields an empty result; ids that are unknown or not completed are
// skipped.
func (s *Service) Compare(ctx context.Context, runIDs []string) ([]ComparisonRow, error) {
	if len(runIDs) < 2 {
		return []ComparisonRow{}, nil
	}

	rows := make([]ComparisonRow, 0, len(runIDs))
	for _, runID := range runIDs {
		run, err := s.runs.FindTestRunByID(ctx, runID)
		if err != nil {
			continue
		}
		if run.Status != model.RunStatusCompleted {
			continue
		}
		results, err := s.results.FindResultsByTestRunID(ctx, runID)
		if err != nil {
			return nil, err
		}

		var total accumulator
		fieldAcc := make(map[string]*accumulator)
		for _, result := range results {
			total.add(result.EffectiveAccuracy())
			for _, f := range result.ExtractedFields {
				if !f.IsImportant || f.ExpectedValue == "" {
					continue
				}
				accFor(fieldAcc, f.FieldName).add(f.MatchScore)
			}
		}

		fields := make(map[string]float64, len(fieldAcc))
		for name, acc := range fieldAcc {
			fields[name] = acc.mean()
		}
		rows = append(rows, ComparisonRow{
			TestRunID:       runID,
			LayoutLibrary:   run.LayoutLibrary,
			OCRLibrary:      run.OCRLibrary,
			DocumentCount:   len(results),
			AverageAccuracy: total.mean(),
			FieldAccuracies: fields,
		})
	}
	return rows, nil
}

// Summary computes the accuracy distribution of one completed run.
func (s *Service) Summary(ctx context.Context, runID string) (*RunSummary, error) {
	if _, err := s.runs.FindTestRunByID(ctx, runID); err != nil {
		return nil, err
	}
	results, err := s.results.FindResultsByTestRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	labels := []string{"0-20%", "20-40%", "40-60%", "60-80%", "80-100%"}
	counts := make([]int, len(labels))

	var total accumulator
	for _, result := range results {
		acc := result.EffectiveAccuracy()
		total.add(acc)

		bucket := int(acc * 100 / 20)
		if bucket >= len(labels) {
			bucket = len(labels) - 1
		}
		if bucket < 0 {
			bucket = 0
		}
		counts[bucket]++
	}

	summary := &RunSummary{
		TestRunID:       runID,
		DocumentCount:   len(results),
		AverageAccuracy: total.mean(),
	}
	for i, label := range labels {
		summary.Distribution = append(summary.Distribution, DistributionBucket{Label: label, Count: counts[i]})
	}
	return summary, nil
}

type accumulator struct {
	sum   float64
	count int
}

func (a *accumulator) add(v float64) {
	a.sum += v
	a.count++
}

func (a *accumulator) mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

func accFor(m map[string]*accumulator, key string) *accumulator {
	acc, ok := m[key]
	if !ok {
		acc = &accumulator{}
		m[key] = acc
	}
	return acc
}

func markRun(m map[string]map[string]bool, library, runID string) {
	runs, ok := m[library]
	if !ok {
		runs = make(map[string]bool)
		m[library] = runs
	}
	runs[runID] = true
}

func libraryStats(acc map[string]*accumulator, runs map[string]map[string]bool) []LibraryStats {
	stats := make([]LibraryStats, 0, len(acc))
	for library, a := range acc {
		stats = append(stats, LibraryStats{
			Library:         library,
			RunCount:        len(runs[library]),
			DocumentCount:   a.count,
			AverageAccuracy: a.mean(),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Library < stats[j].Library
	})
	return stats
}
