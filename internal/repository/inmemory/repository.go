// Package inmemory provides map-backed implementations of the domain
// repositories, guarded by a single RWMutex. All reads return deep copies
// so callers cannot mutate internal state.
package inmemory

import (
	"sync"

	"go.uber.org/fx"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/domain/repository"
)

// Repository is the shared in-memory store backing every domain repository
// interface.
type Repository struct {
	mu sync.RWMutex

	forms     map[string]*model.Form
	batches   map[string]*model.Batch
	documents map[string]*model.Document
	testRuns  map[string]*model.TestRun
	results   map[string]*model.Result
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		forms:     make(map[string]*model.Form),
		batches:   make(map[string]*model.Batch),
		documents: make(map[string]*model.Document),
		testRuns:  make(map[string]*model.TestRun),
		results:   make(map[string]*model.Result),
	}
}

var (
	_ repository.FormRepository    = (*Repository)(nil)
	_ repository.BatchRepository   = (*Repository)(nil)
	_ repository.TestRunRepository = (*Repository)(nil)
	_ repository.ResultRepository  = (*Repository)(nil)
)

// Module provides the in-memory repository bound to every repository interface.
var Module = fx.Options(
	fx.Provide(
		NewRepository,
		func(r *Repository) repository.FormRepository { return r },
		func(r *Repository) repository.BatchRepository { return r },
		func(r *Repository) repository.TestRunRepository { return r },
		func(r *Repository) repository.ResultRepository { return r },
	),
)
