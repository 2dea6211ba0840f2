package snapshot

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
)

func testEnvConfig() *config.EnvironmentConfig {
	return &config.EnvironmentConfig{
		CircuitBreakerMaxRequests:         1,
		CircuitBreakerInterval:            60 * time.Second,
		CircuitBreakerTimeout:             30 * time.Second,
		CircuitBreakerMaxConsecutiveFails: 2,
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logging.NewLoggerWithWriter(io.Discard, slog.LevelDebug)
	store, err := NewStore(filepath.Join(t.TempDir(), "snaps"), testEnvConfig(), logger)
	require.NoError(t, err)
	return store
}

func TestNewStoreRequiresDir(t *testing.T) {
	_, err := NewStore("", testEnvConfig(), nil)
	assert.Error(t, err)
}

func TestStoreSaveAndLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.Latest()
	assert.ErrorIs(t, err, ErrNoSnapshot)

	for _, tick := range []uint64{60, 1200, 300} {
		path, err := store.Save(ctx, testSnapshot(tick))
		require.NoError(t, err)
		assert.FileExists(t, path)
	}

	snap, path, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(1200), snap.Tick)
	assert.Equal(t, "world-000000001200.msgpack", filepath.Base(path))

	loaded, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
}

func TestStoreLeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Save(context.Background(), testSnapshot(1))
	require.NoError(t, err)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "world-000000000001.msgpack", entries[0].Name())
}

func TestStorePrunesOldSnapshots(t *testing.T) {
	store := newTestStore(t)
	store.SetKeep(2)
	store.SetKeep(0) // ignored

	for tick := uint64(1); tick <= 5; tick++ {
		_, err := store.Save(context.Background(), testSnapshot(tick))
		require.NoError(t, err)
	}

	files, err := store.list()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "world-000000000004.msgpack", filepath.Base(files[0]))
	assert.Equal(t, "world-000000000005.msgpack", filepath.Base(files[1]))
}

func TestStoreLoadCorrupted(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(store.Dir(), "world-000000000009.msgpack")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := store.Load(path)
	assert.ErrorIs(t, err, ErrEmptySnapshot)

	_, _, err = store.Latest()
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestStoreCircuitBreakerTrips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, os.RemoveAll(store.Dir()))

	for i := 0; i < 2; i++ {
		_, err := store.Save(ctx, testSnapshot(uint64(i)))
		assert.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, store.State())

	// open circuit rejects without touching the disk
	require.NoError(t, os.MkdirAll(store.Dir(), 0o755))
	_, err := store.Save(ctx, testSnapshot(3))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, gobreaker.StateOpen, store.State())
	assert.Zero(t, store.Counts().TotalSuccesses)
}

func TestStoreSaveNil(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Save(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptySnapshot)
	assert.Equal(t, gobreaker.StateClosed, store.State())
}
