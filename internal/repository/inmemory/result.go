package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/domain/repository"
)

// SaveResult persists a new per-document result.
func (r *Repository) SaveResult(ctx context.Context, result *model.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.results[result.ID]; exists {
		return fmt.Errorf("result with ID %s already exists", result.ID)
	}
	r.results[result.ID] = cloneResult(result)
	return nil
}

// UpdateResult replaces an existing result (used by verification).
func (r *Repository) UpdateResult(ctx context.Context, result *model.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.results[result.ID]; !exists {
		return repository.ErrResultNotFound
	}
	r.results[result.ID] = cloneResult(result)
	return nil
}

// FindResultByRunAndDocument finds the result of one document within a run.
func (r *Repository) FindResultByRunAndDocument(ctx context.Context, runID, documentID string) (*model.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, res := range r.results {
		if res.TestRunID == runID && res.DocumentID == documentID {
			return cloneResult(res), nil
		}
	}
	return nil, repository.ErrResultNotFound
}

// FindResultsByTestRunID returns all results of a run, oldest first.
func (r *Repository) FindResultsByTestRunID(ctx context.Context, runID string) ([]*model.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*model.Result
	for _, res := range r.results {
		if res.TestRunID == runID {
			results = append(results, cloneResult(res))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	return results, nil
}

// FindAllResults returns every result across all runs.
func (r *Repository) FindAllResults(ctx context.Context) ([]*model.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*model.Result, 0, len(r.results))
	for _, res := range r.results {
		results = append(results, cloneResult(res))
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	return results, nil
}
