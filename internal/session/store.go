package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"studio/internal/layers"
	"studio/internal/storage"
)

// SnapshotStore persists one snapshot per session.
type SnapshotStore interface {
	Load(ctx context.Context, sessionID string) (layers.Snapshot, error)
	Save(ctx context.Context, sessionID string, snap layers.Snapshot) error
	Delete(ctx context.Context, sessionID string) error
}

// BlobSnapshots stores snapshots as JSON documents under sessions/<id>.json
// in any storage.Store.
type BlobSnapshots struct {
	store storage.Store
}

// NewBlobSnapshots wraps store.
func NewBlobSnapshots(store storage.Store) *BlobSnapshots {
	return &BlobSnapshots{store: store}
}

func snapshotKey(sessionID string) string {
	return "sessions/" + sessionID + ".json"
}

// Load returns ErrNotFound when the session has never been saved.
func (b *BlobSnapshots) Load(ctx context.Context, sessionID string) (layers.Snapshot, error) {
	data, err := b.store.Get(ctx, snapshotKey(sessionID))
	if errors.Is(err, storage.ErrNotFound) {
		return layers.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return layers.Snapshot{}, fmt.Errorf("session: load %s: %w", sessionID, err)
	}
	var snap layers.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return layers.Snapshot{}, fmt.Errorf("session: decode %s: %w", sessionID, err)
	}
	return snap, nil
}

func (b *BlobSnapshots) Save(ctx context.Context, sessionID string, snap layers.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", sessionID, err)
	}
	if _, err := b.store.Put(ctx, snapshotKey(sessionID), data); err != nil {
		return fmt.Errorf("session: save %s: %w", sessionID, err)
	}
	return nil
}

func (b *BlobSnapshots) Delete(ctx context.Context, sessionID string) error {
	if err := b.store.Delete(ctx, snapshotKey(sessionID)); err != nil {
		return fmt.Errorf("session: delete %s: %w", sessionID, err)
	}
	return nil
}

var _ SnapshotStore = (*BlobSnapshots)(nil)
