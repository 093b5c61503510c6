package inmemory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/domain/repository"
)

// SaveTestRun persists a new test run. It returns an error if a run with the
// same ID already exists.
func (r *Repository) SaveTestRun(ctx context.Context, run *model.TestRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.testRuns[run.ID]; exists {
		return fmt.Errorf("test run with ID %s already exists", run.ID)
	}
	r.testRuns[run.ID] = cloneTestRun(run)
	return nil
}

// FindTestRunByID finds a test run by its ID.
func (r *Repository) FindTestRunByID(ctx context.Context, id string) (*model.TestRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.testRuns[id]
	if !ok {
		return nil, repository.ErrTestRunNotFound
	}
	return cloneTestRun(run), nil
}

// FindAllTestRuns returns every test run, newest first.
func (r *Repository) FindAllTestRuns(ctx context.Context) ([]*model.TestRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*model.TestRun, 0, len(r.testRuns))
	for _, run := range r.testRuns {
		runs = append(runs, cloneTestRun(run))
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[j].CreatedAt.Before(runs[i].CreatedAt)
	})
	return runs, nil
}

// FindTestRunsByStatus returns runs in the given status, newest first.
func (r *Repository) FindTestRunsByStatus(ctx context.Context, status model.RunStatus) ([]*model.TestRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var runs []*model.TestRun
	for _, run := range r.testRuns {
		if run.Status == status {
			runs = append(runs, cloneTestRun(run))
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[j].CreatedAt.Before(runs[i].CreatedAt)
	})
	return runs, nil
}

// TransitionStatus atomically moves a run between statuses. The check and
// the write happen under the same lock, so concurrent finishers race safely:
// exactly one of them observes (true, nil).
func (r *Repository) TransitionStatus(ctx context.Context, id string, from []model.RunStatus, to model.RunStatus, errorMessage *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.testRuns[id]
	if !ok {
		return false, repository.ErrTestRunNotFound
	}

	matched := false
	for _, s := range from {
		if run.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	run.Status = to
	run.Version++
	if errorMessage != nil {
		run.ErrorMessage = cloneStringPtr(errorMessage)
	}
	if to.IsTerminal() {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	return true, nil
}

// IncrementProcessed bumps ProcessedDocuments by one.
func (r *Repository) IncrementProcessed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.testRuns[id]
	if !ok {
		return repository.ErrTestRunNotFound
	}
	run.ProcessedDocuments++
	run.Version++
	return nil
}
