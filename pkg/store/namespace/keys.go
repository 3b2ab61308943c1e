package namespace

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/marmos91/nameserver/pkg/kv"
)

// Store Key Namespace Design
// ==========================
//
// The store keeps every record in one flat, lexicographically ordered key
// space. Record kinds are told apart by a two-byte prefix:
//
// Data Type        Prefix  Key Format                                      Value
// ==============================================================================
// Live file        "01"    01<parentID:8 BE><name>                         FileInfo
// Segment          "02"    02<inodeID:8 BE><offset:8 BE>                   PageFileSegment
// Snapshot         "03"    03<parentID:8 BE><name>-<seq:20 decimal>        FileInfo
// Id generator     "04"    04<generator name>                              uint64 (BE)
//
// Key Design Rationale:
//
// 1. Live files (01)
//   - The parent id is fixed width, so every direct child of one directory
//     shares the 10-byte prefix 01<parentID> and the children form one
//     contiguous range. Listing a directory is a range scan over
//     DirectoryRange(parentID).
//
// 2. Segments (02)
//   - Fixed-width big-endian offsets make byte order equal numeric order,
//     so SegmentRange(inodeID) yields the segments of one file in offset order.
//
// 3. Snapshots (03)
//   - "03" sorts after every "01" key, so snapshot records never fall into
//     a directory range and LoadSnapShotFile can match by prefix alone.
//   - The sequence number is zero padded so the snapshots of one file sort
//     by version.
//
// The store itself treats keys as opaque ordered strings; the helpers below
// are the only place that knows this layout.
const (
	FileInfoKeyPrefix         = "01"
	SegmentInfoKeyPrefix      = "02"
	SnapshotFileInfoKeyPrefix = "03"
	IDGeneratorKeyPrefix      = "04"
)

const (
	prefixLen = 2
	idLen     = 8
	seqDigits = 20
)

func appendID(buf []byte, id uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, id)
}

// EncodeFileStoreKey returns the key of the live entry name under parentID.
func EncodeFileStoreKey(parentID InodeID, name string) string {
	buf := make([]byte, 0, prefixLen+idLen+len(name))
	buf = append(buf, FileInfoKeyPrefix...)
	buf = appendID(buf, parentID)
	buf = append(buf, name...)
	return string(buf)
}

// EncodeSnapShotFileStoreKey returns the key of the snapshot of name under
// parentID taken at seq.
func EncodeSnapShotFileStoreKey(parentID InodeID, name string, seq uint64) string {
	buf := make([]byte, 0, prefixLen+idLen+len(name)+1+seqDigits)
	buf = append(buf, SnapshotFileInfoKeyPrefix...)
	buf = appendID(buf, parentID)
	buf = append(buf, name...)
	buf = append(buf, '-')
	buf = fmt.Appendf(buf, "%0*d", seqDigits, seq)
	return string(buf)
}

// EncodeSegmentStoreKey returns the key of the segment of inodeID starting at offset.
func EncodeSegmentStoreKey(inodeID InodeID, offset uint64) string {
	buf := make([]byte, 0, prefixLen+2*idLen)
	buf = append(buf, SegmentInfoKeyPrefix...)
	buf = appendID(buf, inodeID)
	buf = binary.BigEndian.AppendUint64(buf, offset)
	return string(buf)
}

// EncodeIDGeneratorKey returns the key under which a persistent id
// generator keeps its high-water mark.
func EncodeIDGeneratorKey(name string) string {
	return IDGeneratorKeyPrefix + name
}

func prefixRange(prefix string) (string, string) {
	return prefix, string(kv.PrefixEnd([]byte(prefix)))
}

// DirectoryRange returns the [start, end) range holding exactly the direct
// children of parentID.
func DirectoryRange(parentID InodeID) (start, end string) {
	return prefixRange(EncodeFileStoreKey(parentID, ""))
}

// SegmentRange returns the [start, end) range holding the segments of inodeID.
func SegmentRange(inodeID InodeID) (start, end string) {
	buf := appendID([]byte(SegmentInfoKeyPrefix), inodeID)
	return prefixRange(string(buf))
}

// SnapshotRange returns the [start, end) range holding the snapshots of
// name under parentID.
//
// The range also covers snapshots of siblings whose name starts with
// name + "-"; callers filter on FileInfo.FileName.
func SnapshotRange(parentID InodeID, name string) (start, end string) {
	buf := append([]byte(SnapshotFileInfoKeyPrefix), appendID(nil, parentID)...)
	buf = append(buf, name...)
	buf = append(buf, '-')
	return prefixRange(string(buf))
}

// FilePrefixRange returns the range holding every live file record.
func FilePrefixRange() (start, end string) {
	return prefixRange(FileInfoKeyPrefix)
}

// SegmentPrefixRange returns the range holding every segment record.
func SegmentPrefixRange() (start, end string) {
	return prefixRange(SegmentInfoKeyPrefix)
}

// SnapshotPrefixRange returns the range holding every snapshot record.
func SnapshotPrefixRange() (start, end string) {
	return prefixRange(SnapshotFileInfoKeyPrefix)
}

// DecodeFileStoreKey splits a live file key into parent id and name.
func DecodeFileStoreKey(key string) (InodeID, string, error) {
	if len(key) < prefixLen+idLen || key[:prefixLen] != FileInfoKeyPrefix {
		return 0, "", fmt.Errorf("not a file key: %q", key)
	}
	parentID := binary.BigEndian.Uint64([]byte(key[prefixLen : prefixLen+idLen]))
	return parentID, key[prefixLen+idLen:], nil
}

// DecodeSnapShotFileStoreKey splits a snapshot key into parent id, file
// name and sequence number.
func DecodeSnapShotFileStoreKey(key string) (InodeID, string, uint64, error) {
	minLen := prefixLen + idLen + 1 + seqDigits
	if len(key) < minLen || key[:prefixLen] != SnapshotFileInfoKeyPrefix || key[len(key)-seqDigits-1] != '-' {
		return 0, "", 0, fmt.Errorf("not a snapshot key: %q", key)
	}
	seq, err := strconv.ParseUint(key[len(key)-seqDigits:], 10, 64)
	if err != nil {
		return 0, "", 0, fmt.Errorf("bad snapshot sequence in key %q: %w", key, err)
	}
	parentID := binary.BigEndian.Uint64([]byte(key[prefixLen : prefixLen+idLen]))
	name := key[prefixLen+idLen : len(key)-seqDigits-1]
	return parentID, name, seq, nil
}

// DecodeSegmentStoreKey splits a segment key into inode id and offset.
func DecodeSegmentStoreKey(key string) (InodeID, uint64, error) {
	if len(key) != prefixLen+2*idLen || key[:prefixLen] != SegmentInfoKeyPrefix {
		return 0, 0, fmt.Errorf("not a segment key: %q", key)
	}
	inodeID := binary.BigEndian.Uint64([]byte(key[prefixLen : prefixLen+idLen]))
	offset := binary.BigEndian.Uint64([]byte(key[prefixLen+idLen:]))
	return inodeID, offset, nil
}

// describeKey renders a store key for errors and logs. Keys that decode as
// file, snapshot or segment keys are shown by their parts.
func describeKey(key string) string {
	if parent, name, seq, err := DecodeSnapShotFileStoreKey(key); err == nil {
		return fmt.Sprintf("snapshot %d/%q@%d", parent, name, seq)
	}
	if inode, offset, err := DecodeSegmentStoreKey(key); err == nil {
		return fmt.Sprintf("segment %d@%d", inode, offset)
	}
	if parent, name, err := DecodeFileStoreKey(key); err == nil {
		return fmt.Sprintf("file %d/%q", parent, name)
	}
	return fmt.Sprintf("key %q", key)
}
