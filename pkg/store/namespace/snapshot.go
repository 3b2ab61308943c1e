package namespace

import (
	"context"

	"github.com/marmos91/nameserver/pkg/kv"
)

// SnapShotFile implements NameServerStorage.
//
// Both writes go into one engine batch. Snapshot records are immutable, so
// an occupied snapshotKey fails with KeyAlreadyExist and nothing is written.
func (s *Store) SnapShotFile(ctx context.Context, originalKey string, originalInfo *FileInfo, snapshotKey string, snapshotInfo *FileInfo) error {
	op := s.begin(ctx, "SnapShotFile", originalKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	origK, snapK := []byte(originalKey), []byte(snapshotKey)
	err := s.engine.Update(ctx, func(txn kv.Txn) error {
		occupied, err := kv.Exists(txn, snapK)
		if err != nil {
			return err
		}
		if occupied {
			return newError(KeyAlreadyExist, snapK, nil)
		}
		if err := txn.Set(origK, encodeFileInfo(originalInfo)); err != nil {
			return err
		}
		return txn.Set(snapK, encodeFileInfo(snapshotInfo))
	})
	return op.end(engineError(origK, err))
}

// LoadSnapShotFile implements NameServerStorage.
func (s *Store) LoadSnapShotFile(ctx context.Context) ([]*FileInfo, error) {
	start, end := SnapshotPrefixRange()
	return s.listFiles(ctx, "LoadSnapShotFile", start, end)
}

// ListSnapshotFile implements NameServerStorage.
func (s *Store) ListSnapshotFile(ctx context.Context, startKey, endKey string) ([]*FileInfo, error) {
	return s.listFiles(ctx, "ListSnapshotFile", startKey, endKey)
}
