package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	return NewLocalStore(t.TempDir(), zap.NewNop())
}

func TestLocalStorePutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := []byte(`{"meta":{"schema_version":3}}`)
	require.NoError(t, s.Put(ctx, "u_abc", doc))

	got, err := s.Get(ctx, "u_abc")
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestLocalStoreGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "u_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorePutOverwritesAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "u_abc", []byte(`{"v":1}`)))
	require.NoError(t, s.Put(ctx, "u_abc", []byte(`{"v":2}`)))

	got, err := s.Get(ctx, "u_abc")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":2}`), got)

	// No temp files may survive a successful write.
	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "u_abc.json", entries[0].Name())
}

func TestLocalStoreQuarantinesCorruptDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	path := s.Path("u_abc")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := s.Get(ctx, "u_abc")
	assert.ErrorIs(t, err, ErrNotFound)

	// Original moved aside for forensics.
	_, err = os.Stat(path + ".corrupted")
	assert.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

// A failure between temp-file write and rename must leave the previous
// version byte-for-byte intact. Simulated by dropping an unrenamed temp file
// next to the document, exactly what a crash mid-Put leaves behind.
func TestLocalStoreCrashBeforeRenameKeepsPriorVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	original := []byte(`{"v":"original"}`)
	require.NoError(t, s.Put(ctx, "u_abc", original))

	leftover := filepath.Join(s.dir, "rw_crashed.tmp")
	require.NoError(t, os.WriteFile(leftover, []byte(`{"v":"partial`), 0o644))

	got, err := s.Get(ctx, "u_abc")
	require.NoError(t, err)
	assert.Equal(t, original, got)
}
