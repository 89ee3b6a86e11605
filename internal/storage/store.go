// Package storage persists per-user snapshots and pushes committed writes
// back to subscribers, this client's own writes included.
package storage

import (
	"context"
	"errors"

	"github.com/vikramsk/tickd/internal/model"
)

var ErrNotFound = errors.New("storage: not found")

// SnapshotStore is the durable store boundary. Put with merge upserts the
// day index and goals carried by the snapshot; without merge it replaces
// the user's stored projection wholesale. Every committed Put is echoed to
// all of the user's subscribers.
type SnapshotStore interface {
	Get(ctx context.Context, userID string) (model.Snapshot, error)
	Put(ctx context.Context, userID string, snap model.Snapshot, merge bool) error
	Subscribe(userID string, fn func(model.Snapshot)) (func(), error)
}
