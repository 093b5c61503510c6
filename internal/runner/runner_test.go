package runner_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/engine"
	"github.com/formbench/formbench/internal/observability"
	"github.com/formbench/formbench/internal/repository/inmemory"
	"github.com/formbench/formbench/internal/runner"
)

// memStore is an in-memory object store for tests.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Upload(ctx context.Context, name string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = b
	return nil
}

func (s *memStore) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[name]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", name)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *memStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, name)
	return nil
}

func (s *memStore) List(ctx context.Context, prefix string, fn func(string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.objects {
		if strings.HasPrefix(name, prefix) {
			if err := fn(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *memStore) Close() error { return nil }

// stubLayout returns one region covering the page.
type stubLayout struct{}

func (stubLayout) Name() string { return "stub-layout" }

func (stubLayout) Detect(ctx context.Context, image []byte) ([]model.Region, error) {
	return []model.Region{{ID: 0, Type: "text", BBox: model.BoundingBox{X2: 100, Y2: 40}, Confidence: 0.9}}, nil
}

// stubOCR echoes configured text per call and can invoke a hook after each
// extraction, which tests use to trigger cancellation mid-run.
type stubOCR struct {
	text string
	err  error

	mu    sync.Mutex
	calls int
	after func(call int)
}

func (s *stubOCR) Name() string { return "stub-ocr" }

func (s *stubOCR) Extract(ctx context.Context, image []byte, regions []model.Region) ([]model.OCRRegion, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	after := s.after
	s.mu.Unlock()

	if after != nil {
		after(call)
	}
	if s.err != nil {
		return nil, s.err
	}

	regionID := -1
	if len(regions) > 0 {
		regionID = regions[0].ID
	}
	return []model.OCRRegion{{
		RegionID: regionID,
		FullText: s.text,
		Lines:    []model.OCRLine{{Text: s.text, Confidence: 0.85}},
	}}, nil
}

type fixture struct {
	repo   *inmemory.Repository
	store  *memStore
	ocr    *stubOCR
	runner *runner.Runner
}

func newFixture(t *testing.T, ocr *stubOCR) *fixture {
	t.Helper()
	repo := inmemory.NewRepository()
	store := newMemStore()

	registry := engine.NewRegistry()
	registry.RegisterLayout(stubLayout{})
	registry.RegisterOCR(ocr)

	r := runner.New(runner.Params{
		Runs:     repo,
		Batches:  repo,
		Results:  repo,
		Registry: registry,
		Store:    store,
		Recorder: observability.NewNoopRecorder(),
	})
	return &fixture{repo: repo, store: store, ocr: ocr, runner: r}
}

// seedBatch creates a batch with n documents whose expected value for field
// "name" is "John Smith".
func (f *fixture) seedBatch(t *testing.T, batchType model.BatchType, n int) *model.Batch {
	t.Helper()
	ctx := context.Background()
	batch := &model.Batch{
		ID:        uuid.NewString(),
		BatchType: batchType,
		FormName:  "petition",
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.repo.SaveBatch(ctx, batch))

	for i := 0; i < n; i++ {
		doc := &model.Document{
			ID:          uuid.NewString(),
			BatchID:     batch.ID,
			StoragePath: fmt.Sprintf("batches/%s/doc-%d.png", batch.ID, i),
			FieldValues: model.FieldValues{"name": "John Smith"},
			Position:    i,
		}
		require.NoError(t, f.store.Upload(ctx, doc.StoragePath, bytes.NewReader([]byte("img")), "image/png"))
		require.NoError(t, f.repo.SaveDocument(ctx, doc))
	}
	return batch
}

func waitTerminal(t *testing.T, f *fixture, runID string) *model.TestRun {
	t.Helper()
	var run *model.TestRun
	assert.Eventually(t, func() bool {
		var err error
		run, err = f.runner.Get(context.Background(), runID)
		require.NoError(t, err)
		return run.Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	return run
}

func TestRunCompletesAndScores(t *testing.T) {
	f := newFixture(t, &stubOCR{text: "John Smith"})
	batch := f.seedBatch(t, model.BatchTypeSynthetic, 3)

	run, err := f.runner.Create(context.Background(), runner.CreateRequest{
		BatchIDs:      []string{batch.ID},
		LayoutLibrary: "stub-layout",
		OCRLibrary:    "stub-ocr",
		StartedBy:     "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusPending, run.Status)
	assert.Equal(t, 3, run.TotalDocuments)

	final := waitTerminal(t, f, run.ID)
	assert.Equal(t, model.RunStatusCompleted, final.Status)
	assert.Equal(t, 3, final.ProcessedDocuments)
	assert.NotNil(t, final.CompletedAt)

	results, err := f.repo.FindResultsByTestRunID(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		assert.Equal(t, "stub-layout", res.LayoutMethod)
		require.Len(t, res.ExtractedFields, 1)
		assert.Equal(t, "name", res.ExtractedFields[0].FieldName)
		assert.InDelta(t, 1.0, res.ExtractedFields[0].MatchScore, 1e-9)
		assert.InDelta(t, 1.0, res.OverallAccuracy, 1e-9)
		assert.False(t, res.NoScoredFields)
		assert.Nil(t, res.VerifiedAccuracy)
	}
}

func TestRunHandwrittenFullText(t *testing.T) {
	f := newFixture(t, &stubOCR{text: "handwritten petition text"})
	batch := f.seedBatch(t, model.BatchTypeHandwritten, 1)

	run, err := f.runner.Create(context.Background(), runner.CreateRequest{
		BatchIDs:   []string{batch.ID},
		OCRLibrary: "stub-ocr",
		StartedBy:  "tester",
	})
	require.NoError(t, err)

	final := waitTerminal(t, f, run.ID)
	assert.Equal(t, model.RunStatusCompleted, final.Status)

	results, err := f.repo.FindResultsByTestRunID(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, "none (full-text OCR)", res.LayoutMethod)
	assert.Equal(t, "handwritten petition text", res.FullText)
	require.Len(t, res.TextRegions, 1)
	assert.True(t, res.TextRegions[0].IsImportant)
	assert.Empty(t, res.ExtractedFields)
	assert.Zero(t, res.OverallAccuracy)
	assert.True(t, res.NoScoredFields)
}

func TestCreateValidationDoesNotPersist(t *testing.T) {
	f := newFixture(t, &stubOCR{text: "x"})
	batch := f.seedBatch(t, model.BatchTypeSynthetic, 1)
	ctx := context.Background()

	cases := []runner.CreateRequest{
		{OCRLibrary: "stub-ocr", LayoutLibrary: "stub-layout"},                                              // no batches
		{BatchIDs: []string{"missing"}, OCRLibrary: "stub-ocr", LayoutLibrary: "stub-layout"},               // unknown batch
		{BatchIDs: []string{batch.ID}, OCRLibrary: "easyocr", LayoutLibrary: "stub-layout"},                 // unknown ocr
		{BatchIDs: []string{batch.ID}, OCRLibrary: "stub-ocr", LayoutLibrary: "doclayout-yolo"},             // unknown layout
	}
	for _, req := range cases {
		_, err := f.runner.Create(ctx, req)
		assert.Error(t, err)
	}

	runs, err := f.runner.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestCreateRejectsEmptyBatches(t *testing.T) {
	f := newFixture(t, &stubOCR{text: "x"})
	ctx := context.Background()

	batch := &model.Batch{ID: uuid.NewString(), BatchType: model.BatchTypeSynthetic}
	require.NoError(t, f.repo.SaveBatch(ctx, batch))

	_, err := f.runner.Create(ctx, runner.CreateRequest{
		BatchIDs:      []string{batch.ID},
		LayoutLibrary: "stub-layout",
		OCRLibrary:    "stub-ocr",
	})
	assert.Error(t, err)
}

func TestCancelKeepsPartialResults(t *testing.T) {
	ocr := &stubOCR{text: "John Smith"}
	f := newFixture(t, ocr)
	batch := f.seedBatch(t, model.BatchTypeSynthetic, 10)

	var r *runner.Runner
	var runID string
	done := make(chan struct{})
	var once sync.Once
	ocr.after = func(call int) {
		if call == 4 {
			once.Do(func() {
				_, err := r.Cancel(context.Background(), runID)
				assert.NoError(t, err)
				close(done)
			})
		}
	}

	r = f.runner
	run, err := r.Create(context.Background(), runner.CreateRequest{
		BatchIDs:      []string{batch.ID},
		LayoutLibrary: "stub-layout",
		OCRLibrary:    "stub-ocr",
		StartedBy:     "tester",
	})
	require.NoError(t, err)
	runID = run.ID

	<-done
	final := waitTerminal(t, f, run.ID)
	assert.Equal(t, model.RunStatusCancelled, final.Status)
	assert.Less(t, final.ProcessedDocuments, final.TotalDocuments)

	// Everything processed before the cancel stays persisted.
	results, err := f.repo.FindResultsByTestRunID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.Equal(t, final.ProcessedDocuments, len(results))
}

func TestCancelTerminalRunIsNoop(t *testing.T) {
	f := newFixture(t, &stubOCR{text: "John Smith"})
	batch := f.seedBatch(t, model.BatchTypeSynthetic, 1)

	run, err := f.runner.Create(context.Background(), runner.CreateRequest{
		BatchIDs:      []string{batch.ID},
		LayoutLibrary: "stub-layout",
		OCRLibrary:    "stub-ocr",
	})
	require.NoError(t, err)
	waitTerminal(t, f, run.ID)

	got, err := f.runner.Cancel(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, 1, got.ProcessedDocuments)
}

func TestFailureKeepsPartialResults(t *testing.T) {
	ocr := &stubOCR{text: "John Smith"}
	f := newFixture(t, ocr)
	batch := f.seedBatch(t, model.BatchTypeSynthetic, 5)

	ocr.after = func(call int) {
		if call == 3 {
			ocr.err = fmt.Errorf("model server crashed")
		}
	}

	run, err := f.runner.Create(context.Background(), runner.CreateRequest{
		BatchIDs:      []string{batch.ID},
		LayoutLibrary: "stub-layout",
		OCRLibrary:    "stub-ocr",
	})
	require.NoError(t, err)

	final := waitTerminal(t, f, run.ID)
	assert.Equal(t, model.RunStatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "crashed")

	results, err := f.repo.FindResultsByTestRunID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 2, final.ProcessedDocuments)
}

func TestProgressIsMonotonic(t *testing.T) {
	f := newFixture(t, &stubOCR{text: "John Smith"})
	batch := f.seedBatch(t, model.BatchTypeSynthetic, 6)

	run, err := f.runner.Create(context.Background(), runner.CreateRequest{
		BatchIDs:      []string{batch.ID},
		LayoutLibrary: "stub-layout",
		OCRLibrary:    "stub-ocr",
	})
	require.NoError(t, err)

	last := 0
	assert.Eventually(t, func() bool {
		current, err := f.runner.Get(context.Background(), run.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, current.ProcessedDocuments, last)
		assert.LessOrEqual(t, current.ProcessedDocuments, current.TotalDocuments)
		last = current.ProcessedDocuments
		return current.Status.IsTerminal()
	}, 5*time.Second, time.Millisecond)

	final, err := f.runner.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, final.ProcessedDocuments)
}
