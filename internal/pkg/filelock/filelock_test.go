package filelock

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLock(t *testing.T, timeout time.Duration) *FileLock {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "invites.lock"), timeout, zap.NewNop())
}

func TestLockAcquireRelease(t *testing.T) {
	l := newTestLock(t, time.Second)
	ctx := context.Background()

	require.NoError(t, l.Lock(ctx))

	_, err := os.Stat(l.path)
	assert.NoError(t, err, "marker should exist while held")

	l.Unlock()

	_, err = os.Stat(l.path)
	assert.True(t, os.IsNotExist(err), "marker should be gone after release")
}

func TestLockTimesOutWhileHeld(t *testing.T) {
	l := newTestLock(t, 150*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Lock(ctx))
	defer l.Unlock()

	contender := New(l.path, 150*time.Millisecond, zap.NewNop())
	err := contender.Lock(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestLockUnlockIsIdempotent(t *testing.T) {
	l := newTestLock(t, time.Second)

	require.NoError(t, l.Lock(context.Background()))
	l.Unlock()
	l.Unlock() // releasing an unheld lock must not panic or error
}

func TestLockHonorsContextCancellation(t *testing.T) {
	l := newTestLock(t, 10*time.Second)
	require.NoError(t, l.Lock(context.Background()))
	defer l.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	contender := New(l.path, 10*time.Second, zap.NewNop())
	err := contender.Lock(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLockBreaksStaleMarker(t *testing.T) {
	l := newTestLock(t, 100*time.Millisecond)

	// Plant an orphaned marker, aged well past the stale threshold.
	require.NoError(t, os.WriteFile(l.path, nil, 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(l.path, old, old))

	err := l.Lock(context.Background())
	require.NoError(t, err, "stale marker from a crashed holder should be broken")
	l.Unlock()
}

func TestLockMutualExclusion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.lock")
	ctx := context.Background()

	var mu sync.Mutex
	inCritical := 0
	maxInCritical := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := New(path, 5*time.Second, zap.NewNop())
			require.NoError(t, l.Lock(ctx))
			defer l.Unlock()

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInCritical, "at most one holder at a time")
}
