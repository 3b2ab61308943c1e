package namespace

import "fmt"

// InodeID identifies a namespace entry. It is the cross-reference used by
// segment keys; the identity of a record is its store key.
type InodeID = uint64

// RootInodeID is the parent id of entries in the root directory.
const RootInodeID InodeID = 0

// FileType is the kind of a namespace entry.
type FileType int32

const (
	// FileTypeDirectory is a directory. Its children live in the range
	// returned by DirectoryRange(id).
	FileTypeDirectory FileType = iota

	// FileTypePageFile is a block volume made of fixed-size segments.
	FileTypePageFile

	// FileTypeAppendFile is an append-only file.
	FileTypeAppendFile

	// FileTypeAppendECFile is an erasure-coded append-only file.
	FileTypeAppendECFile

	// FileTypeSnapshotPageFile is the point-in-time copy of a page file kept
	// under the snapshot prefix.
	FileTypeSnapshotPageFile
)

func (t FileType) String() string {
	switch t {
	case FileTypeDirectory:
		return "Directory"
	case FileTypePageFile:
		return "PageFile"
	case FileTypeAppendFile:
		return "AppendFile"
	case FileTypeAppendECFile:
		return "AppendECFile"
	case FileTypeSnapshotPageFile:
		return "SnapshotPageFile"
	default:
		return fmt.Sprintf("FileType(%d)", int32(t))
	}
}

// FileStatus tracks a file through deletion and clone workflows.
type FileStatus int32

const (
	FileStatusCreated FileStatus = iota
	FileStatusDeleting
	FileStatusCloning
	FileStatusCloneMetaInstalled
	FileStatusCloned
	FileStatusBeingCloned
)

func (s FileStatus) String() string {
	switch s {
	case FileStatusCreated:
		return "Created"
	case FileStatusDeleting:
		return "Deleting"
	case FileStatusCloning:
		return "Cloning"
	case FileStatusCloneMetaInstalled:
		return "CloneMetaInstalled"
	case FileStatusCloned:
		return "Cloned"
	case FileStatusBeingCloned:
		return "BeingCloned"
	default:
		return fmt.Sprintf("FileStatus(%d)", int32(s))
	}
}

// FileInfo is the metadata record of one namespace entry: a file, a
// directory or a snapshot.
type FileInfo struct {
	ID          InodeID
	ParentID    InodeID
	FileName    string
	FileType    FileType
	ChunkSize   uint32
	SegmentSize uint32

	// Length is the logical size in bytes.
	Length uint64

	// CTime is the creation time in microseconds since the Unix epoch.
	CTime uint64

	// SeqNum is the file version. Taking a snapshot bumps it on the live
	// record; the snapshot record keeps the value it was taken at.
	SeqNum uint64

	FileStatus FileStatus
	Owner      string

	// OriginalFullPathName is the path of the live file at the time a
	// snapshot record was taken. Later renames of ancestor directories do
	// not update it; ParentID and FileName keep locating the live file.
	// Empty for live entries.
	OriginalFullPathName string
}

// Clone returns a copy of f.
func (f *FileInfo) Clone() *FileInfo {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// PageFileChunkInfo pairs a chunk with the copyset that stores it.
type PageFileChunkInfo struct {
	ChunkID   uint64
	CopysetID uint32
}

// PageFileSegment describes one fixed-size extent of a page file.
type PageFileSegment struct {
	LogicalPoolID uint32
	SegmentSize   uint32
	ChunkSize     uint32

	// StartOffset is the segment's byte offset inside the file. It is a
	// multiple of SegmentSize.
	StartOffset uint64

	// Epoch is bumped every time the segment is reallocated.
	Epoch uint64

	// Chunks are ordered by offset within the segment. An empty list is
	// stored as no chunks and reads back as nil.
	Chunks []PageFileChunkInfo
}

// Clone returns a deep copy of s.
func (s *PageFileSegment) Clone() *PageFileSegment {
	if s == nil {
		return nil
	}
	c := *s
	c.Chunks = nil
	if len(s.Chunks) > 0 {
		c.Chunks = make([]PageFileChunkInfo, len(s.Chunks))
		copy(c.Chunks, s.Chunks)
	}
	return &c
}
