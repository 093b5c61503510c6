package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/formbench/formbench/internal/config"
	"github.com/formbench/formbench/internal/support/logger"
)

// RunApplication builds the Fx container and runs it until the context is
// cancelled or the container stops on its own.
func RunApplication(ctx context.Context, envFilePath string, embeddedConfig []byte) {
	application := fx.New(
		fx.Supply(
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		),
		fx.Provide(func() config.EmbeddedConfig {
			return config.EmbeddedConfig(embeddedConfig)
		}),
		Module,
		fx.NopLogger,
	)

	if err := application.Start(ctx); err != nil {
		logger.Fatalf("Failed to start application: %v", err)
	}

	select {
	case <-ctx.Done():
		logger.Infof("Shutdown requested.")
	case <-application.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := application.Stop(stopCtx); err != nil {
		logger.Errorf("Failed to stop application cleanly: %v", err)
	}
}
