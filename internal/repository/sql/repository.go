package sql

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/domain/repository"
)

// Repository implements every domain repository interface on top of GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a GORM-backed repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var (
	_ repository.FormRepository    = (*Repository)(nil)
	_ repository.BatchRepository   = (*Repository)(nil)
	_ repository.TestRunRepository = (*Repository)(nil)
	_ repository.ResultRepository  = (*Repository)(nil)
)

// --- forms ---

func (r *Repository) SaveForm(ctx context.Context, form *model.Form) error {
	return r.db.WithContext(ctx).Create(toFormEntity(form)).Error
}

func (r *Repository) UpdateForm(ctx context.Context, form *model.Form) error {
	tx := r.db.WithContext(ctx).Model(&FormEntity{}).Where("id = ?", form.ID).
		Updates(toFormEntity(form))
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return repository.ErrFormNotFound
	}
	return nil
}

func (r *Repository) FindFormByID(ctx context.Context, id string) (*model.Form, error) {
	var entity FormEntity
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrFormNotFound
		}
		return nil, err
	}
	return toFormModel(&entity), nil
}

func (r *Repository) FindAllForms(ctx context.Context) ([]*model.Form, error) {
	var entities []FormEntity
	if err := r.db.WithContext(ctx).Order("uploaded_at DESC").Find(&entities).Error; err != nil {
		return nil, err
	}
	forms := make([]*model.Form, len(entities))
	for i := range entities {
		forms[i] = toFormModel(&entities[i])
	}
	return forms, nil
}

func (r *Repository) DeleteForm(ctx context.Context, id string) error {
	tx := r.db.WithContext(ctx).Delete(&FormEntity{}, "id = ?", id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return repository.ErrFormNotFound
	}
	return nil
}

// --- batches and documents ---

func (r *Repository) SaveBatch(ctx context.Context, batch *model.Batch) error {
	return r.db.WithContext(ctx).Create(toBatchEntity(batch)).Error
}

func (r *Repository) FindBatchByID(ctx context.Context, id string) (*model.Batch, error) {
	var entity BatchEntity
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrBatchNotFound
		}
		return nil, err
	}
	return toBatchModel(&entity), nil
}

func (r *Repository) FindAllBatches(ctx context.Context) ([]*model.Batch, error) {
	var entities []BatchEntity
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&entities).Error; err != nil {
		return nil, err
	}
	batches := make([]*model.Batch, len(entities))
	for i := range entities {
		batches[i] = toBatchModel(&entities[i])
	}
	return batches, nil
}

// DeleteBatch removes the batch and its documents in one transaction.
func (r *Repository) DeleteBatch(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&BatchEntity{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrBatchNotFound
		}
		return tx.Delete(&DocumentEntity{}, "batch_id = ?", id).Error
	})
}

func (r *Repository) SaveDocument(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Create(toDocumentEntity(doc)).Error
}

func (r *Repository) FindDocumentByID(ctx context.Context, id string) (*model.Document, error) {
	var entity DocumentEntity
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrDocumentNotFound
		}
		return nil, err
	}
	return toDocumentModel(&entity), nil
}

func (r *Repository) FindDocumentsByBatchID(ctx context.Context, batchID string) ([]*model.Document, error) {
	var entities []DocumentEntity
	if err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).
		Order("position ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	docs := make([]*model.Document, len(entities))
	for i := range entities {
		docs[i] = toDocumentModel(&entities[i])
	}
	return docs, nil
}

// --- test runs ---

func (r *Repository) SaveTestRun(ctx context.Context, run *model.TestRun) error {
	return r.db.WithContext(ctx).Create(toTestRunEntity(run)).Error
}

func (r *Repository) FindTestRunByID(ctx context.Context, id string) (*model.TestRun, error) {
	var entity TestRunEntity
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrTestRunNotFound
		}
		return nil, err
	}
	return toTestRunModel(&entity), nil
}

func (r *Repository) FindAllTestRuns(ctx context.Context) ([]*model.TestRun, error) {
	var entities []TestRunEntity
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&entities).Error; err != nil {
		return nil, err
	}
	runs := make([]*model.TestRun, len(entities))
	for i := range entities {
		runs[i] = toTestRunModel(&entities[i])
	}
	return runs, nil
}

func (r *Repository) FindTestRunsByStatus(ctx context.Context, status model.RunStatus) ([]*model.TestRun, error) {
	var entities []TestRunEntity
	if err := r.db.WithContext(ctx).Where("status = ?", string(status)).
		Order("created_at DESC").Find(&entities).Error; err != nil {
		return nil, err
	}
	runs := make([]*model.TestRun, len(entities))
	for i := range entities {
		runs[i] = toTestRunModel(&entities[i])
	}
	return runs, nil
}

// TransitionStatus performs the move as a single conditional UPDATE so
// concurrent finishers cannot both win: the loser matches zero rows.
func (r *Repository) TransitionStatus(ctx context.Context, id string, from []model.RunStatus, to model.RunStatus, errorMessage *string) (bool, error) {
	fromValues := make([]string, len(from))
	for i, s := range from {
		fromValues[i] = string(s)
	}

	updates := map[string]interface{}{
		"status":  string(to),
		"version": gorm.Expr("version + 1"),
	}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}
	if to.IsTerminal() {
		updates["completed_at"] = time.Now().UTC()
	}

	tx := r.db.WithContext(ctx).Model(&TestRunEntity{}).
		Where("id = ? AND status IN ?", id, fromValues).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected == 0 {
		// Distinguish a missing run from a lost transition race.
		var count int64
		if err := r.db.WithContext(ctx).Model(&TestRunEntity{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, repository.ErrTestRunNotFound
		}
		return false, nil
	}
	return true, nil
}

func (r *Repository) IncrementProcessed(ctx context.Context, id string) error {
	tx := r.db.WithContext(ctx).Model(&TestRunEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_documents": gorm.Expr("processed_documents + 1"),
			"version":             gorm.Expr("version + 1"),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return repository.ErrTestRunNotFound
	}
	return nil
}

// --- results ---

func (r *Repository) SaveResult(ctx context.Context, result *model.Result) error {
	return r.db.WithContext(ctx).Create(toResultEntity(result)).Error
}

func (r *Repository) UpdateResult(ctx context.Context, result *model.Result) error {
	tx := r.db.WithContext(ctx).Model(&ResultEntity{}).Where("id = ?", result.ID).
		Updates(toResultEntity(result))
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return repository.ErrResultNotFound
	}
	return nil
}

func (r *Repository) FindResultByRunAndDocument(ctx context.Context, runID, documentID string) (*model.Result, error) {
	var entity ResultEntity
	if err := r.db.WithContext(ctx).
		First(&entity, "test_run_id = ? AND document_id = ?", runID, documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrResultNotFound
		}
		return nil, err
	}
	return toResultModel(&entity), nil
}

func (r *Repository) FindResultsByTestRunID(ctx context.Context, runID string) ([]*model.Result, error) {
	var entities []ResultEntity
	if err := r.db.WithContext(ctx).Where("test_run_id = ?", runID).
		Order("created_at ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	results := make([]*model.Result, len(entities))
	for i := range entities {
		results[i] = toResultModel(&entities[i])
	}
	return results, nil
}

func (r *Repository) FindAllResults(ctx context.Context) ([]*model.Result, error) {
	var entities []ResultEntity
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	results := make([]*model.Result, len(entities))
	for i := range entities {
		results[i] = toResultModel(&entities[i])
	}
	return results, nil
}

// Module provides the GORM repository bound to every repository interface.
var Module = fx.Options(
	fx.Provide(
		NewRepository,
		func(r *Repository) repository.FormRepository { return r },
		func(r *Repository) repository.BatchRepository { return r },
		func(r *Repository) repository.TestRunRepository { return r },
		func(r *Repository) repository.ResultRepository { return r },
	),
)
