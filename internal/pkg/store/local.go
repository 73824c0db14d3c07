package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// LocalStore persists one JSON file per key under a data directory. Writes
// are atomic: temp file in the same directory, fsync, then rename over the
// destination. A crash mid-write leaves the previous version intact and a
// reader never observes a partial document.
type LocalStore struct {
	dir    string
	logger *zap.Logger
}

func NewLocalStore(dir string, logger *zap.Logger) *LocalStore {
	return &LocalStore{dir: dir, logger: logger}
}

// Path derives the file path for a logical key. Pure; exported so the
// invite registry can place its lock marker next to the document.
func (s *LocalStore) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	path := s.Path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrapf(err, "read document %s", key)
	}

	// A file that is not valid JSON can never heal; move it aside for
	// forensics and let the caller start from a fresh default. Losing a
	// user-recoverable progress record beats losing availability.
	if !json.Valid(data) {
		s.quarantine(path, key)
		return nil, ErrNotFound
	}

	return data, nil
}

func (s *LocalStore) Put(_ context.Context, key string, data []byte) error {
	path := s.Path(key)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkgerrors.Wrapf(err, "create data dir for %s", key)
	}

	tmp, err := os.CreateTemp(dir, "rw_*.tmp")
	if err != nil {
		return pkgerrors.Wrapf(err, "create temp file for %s", key)
	}
	tmpPath := tmp.Name()

	// On any failure before the rename the destination is untouched; only
	// the temp file needs cleaning up.
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return pkgerrors.Wrapf(err, "write temp file for %s", key)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return pkgerrors.Wrapf(err, "sync temp file for %s", key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return pkgerrors.Wrapf(err, "close temp file for %s", key)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return pkgerrors.Wrapf(err, "replace document %s", key)
	}

	return nil
}

func (s *LocalStore) quarantine(path, key string) {
	quarantined := path + ".corrupted"
	if err := os.Rename(path, quarantined); err != nil {
		s.logger.Warn("Failed to quarantine corrupt document",
			zap.String("key", key), zap.Error(err))
		return
	}
	s.logger.Warn("Quarantined corrupt document",
		zap.String("key", key), zap.String("moved_to", quarantined))
}
