package namespace

import (
	"context"

	"github.com/marmos91/nameserver/pkg/kv"
)

// GetSegment implements NameServerStorage.
func (s *Store) GetSegment(ctx context.Context, key string) (*PageFileSegment, error) {
	op := s.begin(ctx, "GetSegment", key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	k := []byte(key)
	var segment *PageFileSegment
	err := s.engine.View(ctx, func(txn kv.Txn) error {
		data, err := txn.Get(k)
		if err != nil {
			return err
		}
		segment, err = decodeSegment(data)
		if err != nil {
			return newError(InternalError, k, err)
		}
		return nil
	})
	if err != nil {
		return nil, op.end(engineError(k, err))
	}
	return segment, op.end(nil)
}

// PutSegment implements NameServerStorage.
func (s *Store) PutSegment(ctx context.Context, key string, segment *PageFileSegment) error {
	op := s.begin(ctx, "PutSegment", key)

	s.mu.Lock()
	defer s.mu.Unlock()

	k := []byte(key)
	err := s.engine.Update(ctx, func(txn kv.Txn) error {
		return txn.Set(k, encodeSegment(segment))
	})
	return op.end(engineError(k, err))
}

// DeleteSegment implements NameServerStorage.
func (s *Store) DeleteSegment(ctx context.Context, key string) error {
	op := s.begin(ctx, "DeleteSegment", key)

	s.mu.Lock()
	defer s.mu.Unlock()

	return op.end(s.deleteKey(ctx, []byte(key)))
}

// ListSegment implements NameServerStorage.
func (s *Store) ListSegment(ctx context.Context, inodeID InodeID) ([]*PageFileSegment, error) {
	start, end := SegmentRange(inodeID)
	op := s.begin(ctx, "ListSegment", start)

	s.mu.RLock()
	defer s.mu.RUnlock()

	segments := make([]*PageFileSegment, 0)
	err := s.engine.View(ctx, func(txn kv.Txn) error {
		return txn.Iterate([]byte(start), []byte(end), func(key, value []byte) error {
			segment, err := decodeSegment(value)
			if err != nil {
				return newError(InternalError, key, err)
			}
			segments = append(segments, segment)
			return nil
		})
	})
	if err != nil {
		return nil, op.end(engineError([]byte(start), err))
	}

	op.scanned(len(segments))
	return segments, op.end(nil)
}

// SegmentInodes returns the distinct inode ids that own at least one
// segment, in ascending order. Values are not decoded.
func (s *Store) SegmentInodes(ctx context.Context) ([]InodeID, error) {
	start, end := SegmentPrefixRange()
	op := s.begin(ctx, "SegmentInodes", start)

	s.mu.RLock()
	defer s.mu.RUnlock()

	inodes := make([]InodeID, 0)
	err := s.engine.View(ctx, func(txn kv.Txn) error {
		return txn.Iterate([]byte(start), []byte(end), func(key, _ []byte) error {
			inode, _, err := DecodeSegmentStoreKey(string(key))
			if err != nil {
				return newError(InternalError, key, err)
			}
			if n := len(inodes); n == 0 || inodes[n-1] != inode {
				inodes = append(inodes, inode)
			}
			return nil
		})
	})
	if err != nil {
		return nil, op.end(engineError([]byte(start), err))
	}

	op.scanned(len(inodes))
	return inodes, op.end(nil)
}
