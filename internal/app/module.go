// Package app wires the application together: configuration, repositories,
// engines, services and the HTTP server.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/formbench/formbench/internal/analytics"
	"github.com/formbench/formbench/internal/config"
	gormdb "github.com/formbench/formbench/internal/database/gorm"
	"github.com/formbench/formbench/internal/domain/repository"
	"github.com/formbench/formbench/internal/export"
	"github.com/formbench/formbench/internal/migration"
	"github.com/formbench/formbench/internal/observability"
	"github.com/formbench/formbench/internal/repository/inmemory"
	sqlrepo "github.com/formbench/formbench/internal/repository/sql"
	"github.com/formbench/formbench/internal/runner"
	"github.com/formbench/formbench/internal/scansim"
	"github.com/formbench/formbench/internal/server"
	"github.com/formbench/formbench/internal/storage"
	"github.com/formbench/formbench/internal/support/exception"
	"github.com/formbench/formbench/internal/synthgen"
	"github.com/formbench/formbench/internal/verification"
)

const moduleName = "app"

// repositories bundles the four domain repositories so one provider can
// select the backing implementation from configuration.
type repositories struct {
	fx.Out

	Forms   repository.FormRepository
	Batches repository.BatchRepository
	Runs    repository.TestRunRepository
	Results repository.ResultRepository
}

// newRepositories selects the repository implementation: "memory" uses the
// map-backed store, everything else opens a GORM connection and applies the
// embedded migrations when enabled.
func newRepositories(lc fx.Lifecycle, cfg *config.Config) (repositories, error) {
	dbCfg := cfg.Formbench.Database

	if dbCfg.Type == "memory" {
		repo := inmemory.NewRepository()
		return repositories{Forms: repo, Batches: repo, Runs: repo, Results: repo}, nil
	}

	db, err := gormdb.Open(dbCfg)
	if err != nil {
		return repositories{}, exception.NewAppError(moduleName, "failed to open database", err, exception.KindInternal)
	}

	if dbCfg.Migrate {
		sqlDB, err := db.DB()
		if err != nil {
			return repositories{}, exception.NewAppError(moduleName, "failed to get sql.DB for migration", err, exception.KindInternal)
		}
		if err := migration.NewMigrator(sqlDB, dbCfg.Type).Up(context.Background()); err != nil {
			return repositories{}, exception.NewAppError(moduleName, "schema migration failed", err, exception.KindInternal)
		}
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return gormdb.Close(db)
		},
	})

	repo := sqlrepo.NewRepository(db)
	return repositories{Forms: repo, Batches: repo, Runs: repo, Results: repo}, nil
}

// Module assembles every application component.
var Module = fx.Options(
	config.Module,
	observability.Module,
	storage.Module,
	runner.Module,
	verification.Module,
	analytics.Module,
	export.Module,
	server.Module,
	fx.Provide(
		newRepositories,
		NewEngineRegistry,
		func() *scansim.Simulator {
			return scansim.New(time.Now().UnixNano())
		},
		func() *synthgen.Generator {
			return synthgen.New(time.Now().UnixNano())
		},
	),
)
