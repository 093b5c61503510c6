// Package storage provides the object store used for form template images,
// batch document images and metric exports. Two backends exist: a local
// filesystem store and Google Cloud Storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"go.uber.org/fx"

	"github.com/formbench/formbench/internal/config"
)

// Store is a minimal object store.
type Store interface {
	// Upload writes an object, creating or replacing it.
	Upload(ctx context.Context, objectName string, data io.Reader, contentType string) error
	// Download opens an object for reading. The caller closes the reader.
	Download(ctx context.Context, objectName string) (io.ReadCloser, error)
	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectName string) error
	// List calls fn for every object under the prefix.
	List(ctx context.Context, prefix string, fn func(objectName string) error) error
	Close() error
}

// Object path layout. Results reference documents through these paths, so
// the layout is part of the stored data contract.

// FormObjectPath returns the object name for a form template image.
func FormObjectPath(formID, ext string) string {
	return path.Join("forms", formID+ext)
}

// DocumentObjectPath returns the object name for a batch document image.
func DocumentObjectPath(batchID, documentID string) string {
	return path.Join("batches", batchID, documentID+".png")
}

// ExportObjectPath returns the object name for a metrics export artifact.
func ExportObjectPath(name string) string {
	return path.Join("exports", name)
}

// NormalizeObjectName strips a gs://bucket/ prefix so stored paths written
// by earlier tooling resolve against the configured bucket.
func NormalizeObjectName(name string) string {
	if !strings.HasPrefix(name, "gs://") {
		return name
	}
	rest := strings.TrimPrefix(name, "gs://")
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return rest[idx+1:]
	}
	return rest
}

// NewStore creates the store selected by configuration.
func NewStore(cfg *config.Config) (Store, error) {
	sc := cfg.Formbench.Storage
	switch sc.Type {
	case "local":
		return NewLocalStore(sc)
	case "gcs":
		return NewGCSStore(context.Background(), sc)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", sc.Type)
	}
}

// Module provides the object store and closes it on shutdown.
var Module = fx.Options(
	fx.Provide(func(lc fx.Lifecycle, cfg *config.Config) (Store, error) {
		store, err := NewStore(cfg)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return store.Close()
			},
		})
		return store, nil
	}),
)
