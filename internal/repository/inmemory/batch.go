package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/domain/repository"
)

// SaveBatch persists a new batch. It returns an error if a batch with the
// same ID already exists.
func (r *Repository) SaveBatch(ctx context.Context, batch *model.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.batches[batch.ID]; exists {
		return fmt.Errorf("batch with ID %s already exists", batch.ID)
	}
	r.batches[batch.ID] = cloneBatch(batch)
	return nil
}

// FindBatchByID finds a batch by its ID.
func (r *Repository) FindBatchByID(ctx context.Context, id string) (*model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	batch, ok := r.batches[id]
	if !ok {
		return nil, repository.ErrBatchNotFound
	}
	return cloneBatch(batch), nil
}

// FindAllBatches returns every batch, newest first.
func (r *Repository) FindAllBatches(ctx context.Context) ([]*model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	batches := make([]*model.Batch, 0, len(r.batches))
	for _, b := range r.batches {
		batches = append(batches, cloneBatch(b))
	}
	sort.Slice(batches, func(i, j int) bool {
		return batches[j].CreatedAt.Before(batches[i].CreatedAt)
	})
	return batches, nil
}

// DeleteBatch removes a batch and all of its documents.
func (r *Repository) DeleteBatch(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.batches[id]; !ok {
		return repository.ErrBatchNotFound
	}
	delete(r.batches, id)
	for docID, doc := range r.documents {
		if doc.BatchID == id {
			delete(r.documents, docID)
		}
	}
	return nil
}

// SaveDocument persists a new document inside a batch.
func (r *Repository) SaveDocument(ctx context.Context, doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.batches[doc.BatchID]; !ok {
		return repository.ErrBatchNotFound
	}
	if _, exists := r.documents[doc.ID]; exists {
		return fmt.Errorf("document with ID %s already exists", doc.ID)
	}
	r.documents[doc.ID] = cloneDocument(doc)
	return nil
}

// FindDocumentByID finds a document by its ID.
func (r *Repository) FindDocumentByID(ctx context.Context, id string) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[id]
	if !ok {
		return nil, repository.ErrDocumentNotFound
	}
	return cloneDocument(doc), nil
}

// FindDocumentsByBatchID returns the documents of a batch ordered by position.
func (r *Repository) FindDocumentsByBatchID(ctx context.Context, batchID string) ([]*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var docs []*model.Document
	for _, d := range r.documents {
		if d.BatchID == batchID {
			docs = append(docs, cloneDocument(d))
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Position < docs[j].Position
	})
	return docs, nil
}
