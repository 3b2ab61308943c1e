package namespace

import (
	"context"

	"github.com/marmos91/nameserver/pkg/kv"
)

// PutFile implements NameServerStorage.
func (s *Store) PutFile(ctx context.Context, key string, info *FileInfo) error {
	op := s.begin(ctx, "PutFile", key)

	s.mu.Lock()
	defer s.mu.Unlock()

	k := []byte(key)
	err := s.engine.Update(ctx, func(txn kv.Txn) error {
		return txn.Set(k, encodeFileInfo(info))
	})
	return op.end(engineError(k, err))
}

// GetFile implements NameServerStorage.
func (s *Store) GetFile(ctx context.Context, key string) (*FileInfo, error) {
	op := s.begin(ctx, "GetFile", key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	k := []byte(key)
	var info *FileInfo
	err := s.engine.View(ctx, func(txn kv.Txn) error {
		data, err := txn.Get(k)
		if err != nil {
			return err
		}
		info, err = decodeFileInfo(data)
		if err != nil {
			return newError(InternalError, k, err)
		}
		return nil
	})
	if err != nil {
		return nil, op.end(engineError(k, err))
	}
	return info, op.end(nil)
}

// DeleteFile implements NameServerStorage.
func (s *Store) DeleteFile(ctx context.Context, key string) error {
	op := s.begin(ctx, "DeleteFile", key)

	s.mu.Lock()
	defer s.mu.Unlock()

	return op.end(s.deleteKey(ctx, []byte(key)))
}

// RenameFile implements NameServerStorage.
//
// Renaming a key onto itself replaces the record with newInfo. oldInfo is
// not persisted.
func (s *Store) RenameFile(ctx context.Context, oldKey string, oldInfo *FileInfo, newKey string, newInfo *FileInfo) error {
	op := s.begin(ctx, "RenameFile", oldKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	oldK, newK := []byte(oldKey), []byte(newKey)
	err := s.engine.Update(ctx, func(txn kv.Txn) error {
		found, err := kv.Exists(txn, oldK)
		if err != nil {
			return err
		}
		if !found {
			return newError(KeyNotExist, oldK, nil)
		}

		if oldKey != newKey {
			occupied, err := kv.Exists(txn, newK)
			if err != nil {
				return err
			}
			if occupied {
				return newError(KeyAlreadyExist, newK, nil)
			}
			if err := txn.Delete(oldK); err != nil {
				return err
			}
		}

		return txn.Set(newK, encodeFileInfo(newInfo))
	})
	return op.end(engineError(oldK, err))
}

// ListFile implements NameServerStorage.
func (s *Store) ListFile(ctx context.Context, startKey, endKey string) ([]*FileInfo, error) {
	return s.listFiles(ctx, "ListFile", startKey, endKey)
}

// deleteKey removes key inside one batch, reporting KeyNotExist when absent.
// Callers hold s.mu for writing.
func (s *Store) deleteKey(ctx context.Context, key []byte) error {
	err := s.engine.Update(ctx, func(txn kv.Txn) error {
		found, err := kv.Exists(txn, key)
		if err != nil {
			return err
		}
		if !found {
			return newError(KeyNotExist, key, nil)
		}
		return txn.Delete(key)
	})
	return engineError(key, err)
}

// listFiles decodes every record in [startKey, endKey). A record that fails
// to decode fails the whole scan with InternalError.
func (s *Store) listFiles(ctx context.Context, name, startKey, endKey string) ([]*FileInfo, error) {
	op := s.begin(ctx, name, startKey)

	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]*FileInfo, 0)
	err := s.engine.View(ctx, func(txn kv.Txn) error {
		return txn.Iterate([]byte(startKey), []byte(endKey), func(key, value []byte) error {
			info, err := decodeFileInfo(value)
			if err != nil {
				return newError(InternalError, key, err)
			}
			files = append(files, info)
			return nil
		})
	})
	if err != nil {
		return nil, op.end(engineError([]byte(startKey), err))
	}

	op.scanned(len(files))
	return files, op.end(nil)
}
