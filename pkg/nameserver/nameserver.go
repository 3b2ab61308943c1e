// Package nameserver implements path-level namespace operations on top of
// the namespace store.
//
// The store only understands keys. This package resolves slash separated
// paths from the root directory (inode 0, name "/"), hands out inode ids,
// allocates segments, and owns the caller-side rules the store leaves out:
// a directory must be empty before it is deleted, deleting a page file
// deletes its segments, and a file with snapshots cannot be deleted.
package nameserver

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/nameserver/internal/logger"
	"github.com/marmos91/nameserver/pkg/idgen"
	"github.com/marmos91/nameserver/pkg/store/namespace"
	"github.com/marmos91/nameserver/pkg/topology"
)

// Config holds the defaults applied to new files.
type Config struct {
	// DefaultChunkSize is the chunk size of new page files in bytes.
	DefaultChunkSize uint32

	// DefaultSegmentSize is the segment size of new page files in bytes.
	// Must be a multiple of DefaultChunkSize.
	DefaultSegmentSize uint32

	// Owner is recorded on every new entry.
	Owner string
}

// NameServer serves path-level operations.
//
// Thread Safety:
// Mutating operations read, check and write several records, so they are
// serialised by mu. Read-only operations go straight to the store.
type NameServer struct {
	mu        sync.Mutex
	store     namespace.NameServerStorage
	inodes    idgen.InodeIDGenerator
	allocator *topology.ChunkSegmentAllocator
	config    Config
	now       func() time.Time
}

// New creates a NameServer.
func New(store namespace.NameServerStorage, inodes idgen.InodeIDGenerator, allocator *topology.ChunkSegmentAllocator, config Config) (*NameServer, error) {
	if config.DefaultChunkSize == 0 || config.DefaultSegmentSize == 0 ||
		config.DefaultSegmentSize%config.DefaultChunkSize != 0 {
		return nil, fmt.Errorf("invalid geometry: segment size %d, chunk size %d",
			config.DefaultSegmentSize, config.DefaultChunkSize)
	}
	return &NameServer{
		store:     store,
		inodes:    inodes,
		allocator: allocator,
		config:    config,
		now:       time.Now,
	}, nil
}

// rootInfo is the synthetic record of "/". It is never stored.
func rootInfo() *namespace.FileInfo {
	return &namespace.FileInfo{
		ID:       namespace.RootInodeID,
		ParentID: namespace.RootInodeID,
		FileName: "/",
		FileType: namespace.FileTypeDirectory,
	}
}

// splitPath cleans an absolute path and returns its components.
func splitPath(p string) (string, []string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", nil, newPathError(ErrInvalidArgument, p)
	}
	clean := path.Clean(p)
	if clean == "/" {
		return clean, nil, nil
	}
	return clean, strings.Split(clean[1:], "/"), nil
}

// entry is a resolved path.
type entry struct {
	path     string
	parentID namespace.InodeID
	name     string
	key      string

	// info is nil when the final component does not exist.
	info *namespace.FileInfo

	// ancestors are the directory ids from the root to the parent.
	ancestors []namespace.InodeID
}

// resolve walks p. Every component but the last must be an existing
// directory; the last may be missing, in which case info is nil.
func (ns *NameServer) resolve(ctx context.Context, p string) (*entry, error) {
	clean, parts, err := splitPath(p)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return &entry{path: clean, name: "/", info: rootInfo()}, nil
	}

	parent := namespace.RootInodeID
	ancestors := []namespace.InodeID{parent}
	for _, dir := range parts[:len(parts)-1] {
		info, err := ns.store.GetFile(ctx, namespace.EncodeFileStoreKey(parent, dir))
		if err != nil {
			return nil, storeError(err, clean)
		}
		if info.FileType != namespace.FileTypeDirectory {
			return nil, newPathError(ErrNotDirectory, clean)
		}
		parent = info.ID
		ancestors = append(ancestors, parent)
	}

	name := parts[len(parts)-1]
	e := &entry{
		path:      clean,
		parentID:  parent,
		name:      name,
		key:       namespace.EncodeFileStoreKey(parent, name),
		ancestors: ancestors,
	}

	info, err := ns.store.GetFile(ctx, e.key)
	switch {
	case err == nil:
		e.info = info
	case namespace.IsNotExist(err):
	default:
		return nil, storeError(err, clean)
	}
	return e, nil
}

func (ns *NameServer) lookup(ctx context.Context, p string) (*entry, error) {
	e, err := ns.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if e.info == nil {
		return nil, newPathError(ErrNotFound, e.path)
	}
	return e, nil
}

func (ns *NameServer) create(ctx context.Context, p string, fileType namespace.FileType, length uint64) (*namespace.FileInfo, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	e, err := ns.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if e.key == "" || e.info != nil {
		return nil, newPathError(ErrAlreadyExists, e.path)
	}

	id, err := ns.inodes.GenInodeID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate inode id: %w", err)
	}

	info := &namespace.FileInfo{
		ID:         id,
		ParentID:   e.parentID,
		FileName:   e.name,
		FileType:   fileType,
		Length:     length,
		CTime:      uint64(ns.now().UnixMicro()),
		SeqNum:     1,
		FileStatus: namespace.FileStatusCreated,
		Owner:      ns.config.Owner,
	}
	if fileType == namespace.FileTypePageFile {
		info.ChunkSize = ns.config.DefaultChunkSize
		info.SegmentSize = ns.config.DefaultSegmentSize
	}

	if err := ns.store.PutFile(ctx, e.key, info); err != nil {
		return nil, storeError(err, e.path)
	}

	logger.Debug("created %s %s (inode %d)", fileType, e.path, id)
	return info, nil
}

// MkDir creates a directory.
func (ns *NameServer) MkDir(ctx context.Context, p string) (*namespace.FileInfo, error) {
	return ns.create(ctx, p, namespace.FileTypeDirectory, 0)
}

// CreateFile creates a page file of the given length. Segments are
// allocated on first use or by Extend.
//
// length must be a multiple of the default segment size.
func (ns *NameServer) CreateFile(ctx context.Context, p string, length uint64) (*namespace.FileInfo, error) {
	if length%uint64(ns.config.DefaultSegmentSize) != 0 {
		e := newPathError(ErrInvalidArgument, p)
		e.Message = fmt.Sprintf("length %d is not a multiple of segment size %d", length, ns.config.DefaultSegmentSize)
		return nil, e
	}
	return ns.create(ctx, p, namespace.FileTypePageFile, length)
}

// Stat returns the record of p.
func (ns *NameServer) Stat(ctx context.Context, p string) (*namespace.FileInfo, error) {
	e, err := ns.lookup(ctx, p)
	if err != nil {
		return nil, err
	}
	return e.info, nil
}

// ReadDir lists the direct children of directory p in name order.
func (ns *NameServer) ReadDir(ctx context.Context, p string) ([]*namespace.FileInfo, error) {
	e, err := ns.lookup(ctx, p)
	if err != nil {
		return nil, err
	}
	if e.info.FileType != namespace.FileTypeDirectory {
		return nil, newPathError(ErrNotDirectory, e.path)
	}

	start, end := namespace.DirectoryRange(e.info.ID)
	children, err := ns.store.ListFile(ctx, start, end)
	if err != nil {
		return nil, storeError(err, e.path)
	}
	return children, nil
}

// Rename moves oldPath to newPath. The target must not exist, a directory
// cannot be moved below itself and a page file with snapshots cannot move.
func (ns *NameServer) Rename(ctx context.Context, oldPath, newPath string) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	src, err := ns.lookup(ctx, oldPath)
	if err != nil {
		return err
	}
	if src.key == "" {
		return newPathError(ErrInvalidArgument, src.path)
	}

	dst, err := ns.resolve(ctx, newPath)
	if err != nil {
		return err
	}
	if dst.key == "" {
		return newPathError(ErrAlreadyExists, dst.path)
	}
	if dst.key == src.key {
		return nil
	}
	if src.info.FileType == namespace.FileTypePageFile {
		snapshots, err := ns.snapshotsOf(ctx, src)
		if err != nil {
			return err
		}
		if len(snapshots) > 0 {
			return newPathError(ErrBusy, src.path)
		}
	}
	if src.info.FileType == namespace.FileTypeDirectory {
		for _, id := range dst.ancestors {
			if id == src.info.ID {
				e := newPathError(ErrInvalidArgument, dst.path)
				e.Message = "cannot move a directory below itself"
				return e
			}
		}
	}

	moved := src.info.Clone()
	moved.ParentID = dst.parentID
	moved.FileName = dst.name

	if err := ns.store.RenameFile(ctx, src.key, src.info, dst.key, moved); err != nil {
		return storeError(err, dst.path)
	}

	logger.Debug("renamed %s to %s", src.path, dst.path)
	return nil
}

// pageFile resolves p and checks it is a page file.
func (ns *NameServer) pageFile(ctx context.Context, p string) (*entry, error) {
	e, err := ns.lookup(ctx, p)
	if err != nil {
		return nil, err
	}
	switch e.info.FileType {
	case namespace.FileTypePageFile:
		return e, nil
	case namespace.FileTypeDirectory:
		return nil, newPathError(ErrIsDirectory, e.path)
	default:
		err := newPathError(ErrInvalidArgument, e.path)
		err.Message = fmt.Sprintf("not a page file (%s)", e.info.FileType)
		return nil, err
	}
}

// checkGeometry rejects page files whose segment layout cannot be
// computed. Records written around the name server may carry any sizes.
func checkGeometry(e *entry) error {
	chunk, segment := e.info.ChunkSize, e.info.SegmentSize
	if chunk == 0 || segment == 0 || segment%chunk != 0 {
		err := newPathError(ErrInvalidArgument, e.path)
		err.Message = fmt.Sprintf("invalid geometry (segment %d, chunk %d)", segment, chunk)
		return err
	}
	return nil
}

// getOrAllocateSegment returns the segment of info at offset, allocating
// and storing it when missing.
func (ns *NameServer) getOrAllocateSegment(ctx context.Context, e *entry, offset uint64) (*namespace.PageFileSegment, error) {
	key := namespace.EncodeSegmentStoreKey(e.info.ID, offset)

	segment, err := ns.store.GetSegment(ctx, key)
	if err == nil {
		return segment, nil
	}
	if !namespace.IsNotExist(err) {
		return nil, storeError(err, e.path)
	}

	segment, err = ns.allocator.AllocateChunkSegment(ctx, e.info.FileType, e.info.SegmentSize, e.info.ChunkSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate segment at %d of %s: %w", offset, e.path, err)
	}
	if err := ns.store.PutSegment(ctx, key, segment); err != nil {
		return nil, storeError(err, e.path)
	}
	return segment, nil
}

// GetOrAllocateSegment returns the segment of page file p covering offset,
// allocating it on first use.
func (ns *NameServer) GetOrAllocateSegment(ctx context.Context, p string, offset uint64) (*namespace.PageFileSegment, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	e, err := ns.pageFile(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := checkGeometry(e); err != nil {
		return nil, err
	}
	if offset >= e.info.Length {
		err := newPathError(ErrInvalidArgument, e.path)
		err.Message = fmt.Sprintf("offset %d beyond length %d", offset, e.info.Length)
		return nil, err
	}

	start := offset - offset%uint64(e.info.SegmentSize)
	return ns.getOrAllocateSegment(ctx, e, start)
}

// Segments returns the allocated segments of page file p in offset order.
func (ns *NameServer) Segments(ctx context.Context, p string) ([]*namespace.PageFileSegment, error) {
	e, err := ns.pageFile(ctx, p)
	if err != nil {
		return nil, err
	}
	segments, err := ns.store.ListSegment(ctx, e.info.ID)
	if err != nil {
		return nil, storeError(err, e.path)
	}
	return segments, nil
}

// Extend grows page file p to newLength and allocates every segment below
// it that is still missing. Shrinking is not supported.
func (ns *NameServer) Extend(ctx context.Context, p string, newLength uint64) (*namespace.FileInfo, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	e, err := ns.pageFile(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := checkGeometry(e); err != nil {
		return nil, err
	}

	segmentSize := uint64(e.info.SegmentSize)
	if newLength < e.info.Length || newLength%segmentSize != 0 {
		err := newPathError(ErrInvalidArgument, e.path)
		err.Message = fmt.Sprintf("cannot extend from %d to %d with segment size %d", e.info.Length, newLength, segmentSize)
		return nil, err
	}

	for offset := uint64(0); offset < newLength; offset += segmentSize {
		if _, err := ns.getOrAllocateSegment(ctx, e, offset); err != nil {
			return nil, err
		}
	}

	updated := e.info.Clone()
	updated.Length = newLength
	if err := ns.store.PutFile(ctx, e.key, updated); err != nil {
		return nil, storeError(err, e.path)
	}

	logger.Debug("extended %s to %d bytes", e.path, newLength)
	return updated, nil
}

// DeleteFile removes p. Directories must be empty; page files must have
// no snapshots, and their segments are deleted first.
func (ns *NameServer) DeleteFile(ctx context.Context, p string) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	e, err := ns.lookup(ctx, p)
	if err != nil {
		return err
	}
	if e.key == "" {
		return newPathError(ErrInvalidArgument, e.path)
	}

	switch e.info.FileType {
	case namespace.FileTypeDirectory:
		start, end := namespace.DirectoryRange(e.info.ID)
		children, err := ns.store.ListFile(ctx, start, end)
		if err != nil {
			return storeError(err, e.path)
		}
		if len(children) > 0 {
			return newPathError(ErrNotEmpty, e.path)
		}

	case namespace.FileTypePageFile:
		snapshots, err := ns.snapshotsOf(ctx, e)
		if err != nil {
			return err
		}
		if len(snapshots) > 0 {
			return newPathError(ErrBusy, e.path)
		}

		segments, err := ns.store.ListSegment(ctx, e.info.ID)
		if err != nil {
			return storeError(err, e.path)
		}
		for _, segment := range segments {
			key := namespace.EncodeSegmentStoreKey(e.info.ID, segment.StartOffset)
			if err := ns.store.DeleteSegment(ctx, key); err != nil {
				return storeError(err, e.path)
			}
		}
	}

	if err := ns.store.DeleteFile(ctx, e.key); err != nil {
		return storeError(err, e.path)
	}

	logger.Debug("deleted %s (inode %d)", e.path, e.info.ID)
	return nil
}

// Snapshot records a point-in-time copy of page file p. The snapshot keeps
// the current sequence number and the live file's is bumped.
func (ns *NameServer) Snapshot(ctx context.Context, p string) (*namespace.FileInfo, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	e, err := ns.pageFile(ctx, p)
	if err != nil {
		return nil, err
	}

	id, err := ns.inodes.GenInodeID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate inode id: %w", err)
	}

	snapshot := e.info.Clone()
	snapshot.ID = id
	snapshot.FileType = namespace.FileTypeSnapshotPageFile
	snapshot.CTime = uint64(ns.now().UnixMicro())
	snapshot.OriginalFullPathName = e.path
	snapshot.Owner = ns.config.Owner

	live := e.info.Clone()
	live.SeqNum++

	snapKey := namespace.EncodeSnapShotFileStoreKey(e.parentID, e.name, snapshot.SeqNum)
	if err := ns.store.SnapShotFile(ctx, e.key, live, snapKey, snapshot); err != nil {
		return nil, storeError(err, e.path)
	}

	logger.Info("snapshot of %s taken at seq %d", e.path, snapshot.SeqNum)
	return snapshot, nil
}

func (ns *NameServer) snapshotsOf(ctx context.Context, e *entry) ([]*namespace.FileInfo, error) {
	start, end := namespace.SnapshotRange(e.parentID, e.name)
	records, err := ns.store.ListSnapshotFile(ctx, start, end)
	if err != nil {
		return nil, storeError(err, e.path)
	}

	snapshots := records[:0]
	for _, s := range records {
		if s.FileName == e.name {
			snapshots = append(snapshots, s)
		}
	}
	return snapshots, nil
}

// ListSnapshots returns the snapshots of p in sequence order.
func (ns *NameServer) ListSnapshots(ctx context.Context, p string) ([]*namespace.FileInfo, error) {
	e, err := ns.pageFile(ctx, p)
	if err != nil {
		return nil, err
	}
	return ns.snapshotsOf(ctx, e)
}

// DeleteSnapshot removes the snapshot of p taken at seq.
func (ns *NameServer) DeleteSnapshot(ctx context.Context, p string, seq uint64) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	e, err := ns.pageFile(ctx, p)
	if err != nil {
		return err
	}

	key := namespace.EncodeSnapShotFileStoreKey(e.parentID, e.name, seq)
	if err := ns.store.DeleteFile(ctx, key); err != nil {
		return storeError(err, fmt.Sprintf("%s@%d", e.path, seq))
	}
	return nil
}

// Recover loads every snapshot record at startup. Snapshots whose live
// file is gone are reported with a warning and still returned.
func (ns *NameServer) Recover(ctx context.Context) ([]*namespace.FileInfo, error) {
	snapshots, err := ns.store.LoadSnapShotFile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}

	orphans := 0
	for _, s := range snapshots {
		_, err := ns.store.GetFile(ctx, namespace.EncodeFileStoreKey(s.ParentID, s.FileName))
		if namespace.IsNotExist(err) {
			orphans++
			logger.Warn("snapshot %s@%d (parent %d, name %q) has no live file",
				s.OriginalFullPathName, s.SeqNum, s.ParentID, s.FileName)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check snapshot origin: %w", err)
		}
	}

	logger.Info("recovered %d snapshots (%d orphaned)", len(snapshots), orphans)
	return snapshots, nil
}
