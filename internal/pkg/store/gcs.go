package store

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/FACorreiaa/go-runworld/internal/pkg/config"
)

// ObjectStore keeps each document as a single object in a GCS bucket.
// A write is one whole-object PUT; atomicity is the object store's
// last-writer-wins PUT semantics, with no compare-and-swap.
type ObjectStore struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

func NewObjectStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*ObjectStore, error) {
	var opts []option.ClientOption
	if cfg.CredsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create GCS client")
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Close releases the underlying GCS client.
func (s *ObjectStore) Close() error {
	return s.client.Close()
}

// objectName derives the per-user object address. Pure and backend-specific:
// documents live under a users/ namespace inside the bucket.
func objectName(key string) string {
	return "users/" + key + ".json"
}

// Get treats every fetch failure as "absent" so the application stays usable
// through transient remote errors; the caller persists a fresh default.
func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(objectName(key)).NewReader(ctx)
	if err != nil {
		if err != storage.ErrObjectNotExist {
			s.logger.Warn("GCS read failed, treating document as absent",
				zap.String("key", key), zap.Error(err))
		}
		return nil, ErrNotFound
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		s.logger.Warn("GCS read failed, treating document as absent",
			zap.String("key", key), zap.Error(err))
		return nil, ErrNotFound
	}

	return data, nil
}

// Put propagates failures: the write path never swallows data loss.
func (s *ObjectStore) Put(ctx context.Context, key string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(objectName(key)).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return pkgerrors.Wrapf(err, "write object for %s", key)
	}
	if err := w.Close(); err != nil {
		return pkgerrors.Wrapf(err, "commit object for %s", key)
	}

	return nil
}
