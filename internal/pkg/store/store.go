// Package store provides durable key -> document persistence with two
// backends: a crash-safe local filesystem store and a GCS object store.
// Documents are opaque byte payloads at this layer; healing and schema
// concerns live in the domain packages.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/FACorreiaa/go-runworld/internal/pkg/config"
)

// ErrNotFound is returned by Get when no document exists under a key. A
// corrupt local document is quarantined and also reported as not found, so
// callers always recover by persisting a fresh default.
var ErrNotFound = errors.New("document not found")

// Store is the persistence boundary for whole-document reads and writes.
// Put replaces the entire document; there are no partial updates and no
// cross-key transactions.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// New selects the backend from configuration.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return NewLocalStore(cfg.DataDir, logger), nil
	case config.BackendGCS:
		return NewObjectStore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
