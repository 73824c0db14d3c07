// Package filelock implements an advisory mutual-exclusion lock using an
// exclusive-create file marker. It serializes read-modify-write sequences on
// shared documents (the invite table) across processes on the same host.
//
// The lock only arbitrates between processes that share a filesystem; a
// load-balanced deployment on the remote backend would need a
// conditional-write primitive on the object store instead. That limitation is
// deliberate and documented, not a bug.
package filelock

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"
)

// ErrTimeout signals that the lock stayed busy for the whole acquisition
// window. Callers should surface it as "busy, retry", never as corruption.
var ErrTimeout = errors.New("timed out waiting for lock")

const (
	DefaultTimeout = 5 * time.Second
	pollInterval   = 50 * time.Millisecond

	// A marker this much older than the acquisition timeout can only be an
	// orphan from a crashed holder; the original implementation leaked these
	// forever. Breaking it is a deliberate design choice.
	staleFactor = 10
)

// FileLock guards a named resource via a marker file at path. Non-reentrant.
type FileLock struct {
	path    string
	timeout time.Duration
	logger  *zap.Logger
}

func New(path string, timeout time.Duration, logger *zap.Logger) *FileLock {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FileLock{path: path, timeout: timeout, logger: logger}
}

// Lock blocks until the marker is created exclusively, the timeout elapses,
// or ctx is cancelled. The O_EXCL create is the atomic arbitration point:
// exactly one concurrent caller wins per poll cycle.
func (l *FileLock) Lock(ctx context.Context) error {
	deadline := time.Now().Add(l.timeout)

	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return nil
		}
		if !os.IsExist(err) {
			return err
		}

		l.breakIfStale()

		if time.Now().After(deadline) {
			return ErrTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Unlock removes the marker. Best effort and unconditional: it must run on
// every exit path even when the protected operation failed.
func (l *FileLock) Unlock() {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.logger.Warn("Failed to release file lock",
			zap.String("path", l.path), zap.Error(err))
	}
}

func (l *FileLock) breakIfStale() {
	info, err := os.Stat(l.path)
	if err != nil {
		return
	}
	age := time.Since(info.ModTime())
	if age < l.timeout*staleFactor {
		return
	}
	if err := os.Remove(l.path); err == nil {
		l.logger.Warn("Removed stale lock marker",
			zap.String("path", l.path), zap.Duration("age", age))
	}
}
