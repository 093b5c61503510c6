package inmemory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/domain/repository"
	"github.com/formbench/formbench/internal/repository/inmemory"
)

func newRun(status model.RunStatus) *model.TestRun {
	return &model.TestRun{
		ID:             uuid.NewString(),
		Status:         status,
		TotalDocuments: 5,
		CreatedAt:      time.Now(),
	}
}

func TestTransitionStatus(t *testing.T) {
	repo := inmemory.NewRepository()
	ctx := context.Background()
	run := newRun(model.RunStatusPending)
	require.NoError(t, repo.SaveTestRun(ctx, run))

	ok, err := repo.TransitionStatus(ctx, run.ID,
		[]model.RunStatus{model.RunStatusPending}, model.RunStatusRunning, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second transition from pending loses.
	ok, err = repo.TransitionStatus(ctx, run.ID,
		[]model.RunStatus{model.RunStatusPending}, model.RunStatusRunning, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	msg := "adapter blew up"
	ok, err = repo.TransitionStatus(ctx, run.ID,
		[]model.RunStatus{model.RunStatusPending, model.RunStatusRunning},
		model.RunStatusFailed, &msg)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindTestRunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msg, *got.ErrorMessage)
	assert.NotNil(t, got.CompletedAt)
}

func TestTransitionStatusUnknownRun(t *testing.T) {
	repo := inmemory.NewRepository()
	_, err := repo.TransitionStatus(context.Background(), "missing",
		[]model.RunStatus{model.RunStatusPending}, model.RunStatusRunning, nil)
	assert.ErrorIs(t, err, repository.ErrTestRunNotFound)
}

func TestConcurrentFinishersRaceSafely(t *testing.T) {
	repo := inmemory.NewRepository()
	ctx := context.Background()
	run := newRun(model.RunStatusRunning)
	require.NoError(t, repo.SaveTestRun(ctx, run))

	from := []model.RunStatus{model.RunStatusPending, model.RunStatusRunning}
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, to := range []model.RunStatus{
		model.RunStatusCompleted, model.RunStatusCancelled, model.RunStatusFailed,
	} {
		wg.Add(1)
		go func(to model.RunStatus) {
			defer wg.Done()
			ok, err := repo.TransitionStatus(ctx, run.ID, from, to, nil)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(to)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := repo.FindTestRunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.IsTerminal())
}

func TestIncrementProcessed(t *testing.T) {
	repo := inmemory.NewRepository()
	ctx := context.Background()
	run := newRun(model.RunStatusRunning)
	require.NoError(t, repo.SaveTestRun(ctx, run))

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.IncrementProcessed(ctx, run.ID))
	}
	got, err := repo.FindTestRunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ProcessedDocuments)
}

func TestReadsReturnCopies(t *testing.T) {
	repo := inmemory.NewRepository()
	ctx := context.Background()
	run := newRun(model.RunStatusPending)
	run.BatchIDs = model.StringList{"b1"}
	require.NoError(t, repo.SaveTestRun(ctx, run))

	got, err := repo.FindTestRunByID(ctx, run.ID)
	require.NoError(t, err)
	got.Status = model.RunStatusFailed
	got.BatchIDs[0] = "mutated"

	again, err := repo.FindTestRunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPending, again.Status)
	assert.Equal(t, "b1", again.BatchIDs[0])
}
