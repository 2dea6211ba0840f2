// pkg/engine/persist.go
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/opd-ai/go-arcadeflight/pkg/event"
	"github.com/opd-ai/go-arcadeflight/pkg/snapshot"
)

// SnapshotStore persists world snapshots. *snapshot.Store implements it.
type SnapshotStore interface {
	Save(ctx context.Context, snap *snapshot.WorldSnapshot) (string, error)
	Latest() (*snapshot.WorldSnapshot, string, error)
}

// SaveSnapshot captures the world into store and publishes SnapshotSaved
func (w *World) SaveSnapshot(ctx context.Context, store SnapshotStore) (string, error) {
	snap := w.Snapshot()
	path, err := store.Save(ctx, snap)
	if err != nil {
		return "", err
	}
	w.EventBus.Publish(event.NewSnapshotEvent(w, snap.Tick, path, len(snap.Vehicles)))
	return path, nil
}

// RestoreLatest replaces the world with the newest snapshot in store. It
// reports false without error when the store is empty.
func (w *World) RestoreLatest(ctx context.Context, store SnapshotStore) (bool, error) {
	snap, path, err := store.Latest()
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := w.Restore(snap); err != nil {
		return false, err
	}
	w.Logger.Info(ctx, "Restored world snapshot",
		"path", path,
		"tick", snap.Tick,
		"vehicles", len(snap.Vehicles),
	)
	return true, nil
}

// RunSnapshots saves the world every interval until ctx is cancelled, then
// saves once more. Failed saves are logged and do not stop the loop.
func (w *World) RunSnapshots(ctx context.Context, store SnapshotStore, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// the run context is gone; the final save gets its own
			if _, err := w.SaveSnapshot(context.WithoutCancel(ctx), store); err != nil {
				w.Logger.Error(ctx, "Final snapshot failed", err)
				return err
			}
			return nil
		case <-ticker.C:
			if _, err := w.SaveSnapshot(ctx, store); err != nil {
				w.Logger.Warn(ctx, "Periodic snapshot failed", "error", err.Error())
			}
		}
	}
}
