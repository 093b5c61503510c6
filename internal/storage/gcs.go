package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/formbench/formbench/internal/config"
	"github.com/formbench/formbench/internal/support/logger"
)

// gcsStore implements Store on a Google Cloud Storage bucket.
type gcsStore struct {
	client *gcs.Client
	bucket string
}

var _ Store = (*gcsStore)(nil)

// NewGCSStore creates a GCS-backed store. When a credentials file is
// configured it is used explicitly; otherwise application default
// credentials apply.
func NewGCSStore(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs storage: bucket must be specified in configuration")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage: failed to create client: %w", err)
	}
	return &gcsStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *gcsStore) Upload(ctx context.Context, objectName string, data io.Reader, contentType string) error {
	objectName = NormalizeObjectName(objectName)
	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object '%s': %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object '%s': %w", objectName, err)
	}
	logger.Debugf("Uploaded object '%s' (gs://%s).", objectName, s.bucket)
	return nil
}

func (s *gcsStore) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	objectName = NormalizeObjectName(objectName)
	r, err := s.client.Bucket(s.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open object '%s': %w", objectName, err)
	}
	return r, nil
}

func (s *gcsStore) Delete(ctx context.Context, objectName string) error {
	objectName = NormalizeObjectName(objectName)
	err := s.client.Bucket(s.bucket).Object(objectName).Delete(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			logger.Warnf("Attempted to delete non-existent object '%s' (gs://%s).", objectName, s.bucket)
			return nil
		}
		return fmt.Errorf("failed to delete object '%s': %w", objectName, err)
	}
	return nil
}

func (s *gcsStore) List(ctx context.Context, prefix string, fn func(objectName string) error) error {
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list objects with prefix '%s': %w", prefix, err)
		}
		if err := fn(attrs.Name); err != nil {
			return err
		}
	}
}

func (s *gcsStore) Close() error {
	return s.client.Close()
}
