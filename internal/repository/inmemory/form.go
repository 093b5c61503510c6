package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/domain/repository"
)

// SaveForm persists a new form. It returns an error if a form with the same
// ID already exists.
func (r *Repository) SaveForm(ctx context.Context, form *model.Form) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.forms[form.ID]; exists {
		return fmt.Errorf("form with ID %s already exists", form.ID)
	}
	r.forms[form.ID] = cloneForm(form)
	return nil
}

// UpdateForm replaces an existing form.
func (r *Repository) UpdateForm(ctx context.Context, form *model.Form) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.forms[form.ID]; !exists {
		return repository.ErrFormNotFound
	}
	r.forms[form.ID] = cloneForm(form)
	return nil
}

// FindFormByID finds a form by its ID.
func (r *Repository) FindFormByID(ctx context.Context, id string) (*model.Form, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	form, ok := r.forms[id]
	if !ok {
		return nil, repository.ErrFormNotFound
	}
	return cloneForm(form), nil
}

// FindAllForms returns every form, newest first.
func (r *Repository) FindAllForms(ctx context.Context) ([]*model.Form, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	forms := make([]*model.Form, 0, len(r.forms))
	for _, f := range r.forms {
		forms = append(forms, cloneForm(f))
	}
	sort.Slice(forms, func(i, j int) bool {
		return forms[j].UploadedAt.Before(forms[i].UploadedAt)
	})
	return forms, nil
}

// DeleteForm removes a form by ID.
func (r *Repository) DeleteForm(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.forms[id]; !ok {
		return repository.ErrFormNotFound
	}
	delete(r.forms, id)
	return nil
}
