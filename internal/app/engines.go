package app

import (
	"context"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/fx"

	"github.com/formbench/formbench/internal/config"
	"github.com/formbench/formbench/internal/engine"
	"github.com/formbench/formbench/internal/engine/remote"
	"github.com/formbench/formbench/internal/engine/tesseract"
	"github.com/formbench/formbench/internal/engine/vision"
	"github.com/formbench/formbench/internal/support/exception"
	"github.com/formbench/formbench/internal/support/logger"
)

// NewEngineRegistry builds the adapter registry from the engines section of
// the configuration and closes every adapter on shutdown.
func NewEngineRegistry(lc fx.Lifecycle, cfg *config.Config) (*engine.Registry, error) {
	registry := engine.NewRegistry()

	for _, raw := range cfg.Formbench.Engines.Layout {
		ec, err := decodeEngineConfig(raw)
		if err != nil {
			return nil, err
		}
		if ec.Type == "remote" && ec.Endpoint == "" {
			logger.Warnf("Layout detector '%s' has no endpoint configured. Skipping.", ec.Name)
			continue
		}
		detector, err := buildLayoutDetector(ec)
		if err != nil {
			return nil, err
		}
		registry.RegisterLayout(detector)
		logger.Infof("Registered layout detector '%s' (%s).", detector.Name(), ec.Type)
	}

	for _, raw := range cfg.Formbench.Engines.OCR {
		ec, err := decodeEngineConfig(raw)
		if err != nil {
			return nil, err
		}
		if ec.Type == "remote" && ec.Endpoint == "" {
			logger.Warnf("OCR engine '%s' has no endpoint configured. Skipping.", ec.Name)
			continue
		}
		ocr, err := buildOCREngine(ec)
		if err != nil {
			return nil, err
		}
		registry.RegisterOCR(ocr)
		logger.Infof("Registered OCR engine '%s' (%s).", ocr.Name(), ec.Type)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return registry.CloseAll()
		},
	})
	return registry, nil
}

func decodeEngineConfig(raw map[string]interface{}) (config.EngineConfig, error) {
	var ec config.EngineConfig
	if err := mapstructure.Decode(raw, &ec); err != nil {
		return ec, exception.NewAppError(moduleName, "failed to decode engine config", err, exception.KindInternal)
	}
	return ec, nil
}

func buildLayoutDetector(ec config.EngineConfig) (engine.LayoutDetector, error) {
	switch ec.Type {
	case "remote":
		return remote.NewLayout(ec)
	default:
		return nil, exception.NewAppErrorf(moduleName, exception.KindInternal,
			"unknown layout engine type: %s", ec.Type)
	}
}

func buildOCREngine(ec config.EngineConfig) (engine.OCREngine, error) {
	switch ec.Type {
	case "tesseract":
		return tesseract.New(ec), nil
	case "vision":
		return vision.New(context.Background(), ec)
	case "remote":
		return remote.NewOCR(ec)
	default:
		return nil, exception.NewAppErrorf(moduleName, exception.KindInternal,
			"unknown ocr engine type: %s", ec.Type)
	}
}
