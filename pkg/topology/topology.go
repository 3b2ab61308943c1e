// Package topology maps page-file chunks onto placement targets.
//
// Placement and capacity algorithms live outside the name server; Admin is
// the boundary it talks to. StaticAdmin is a deterministic stand-in that
// places chunk i on copyset i of one logical pool.
package topology

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/nameserver/internal/logger"
	"github.com/marmos91/nameserver/pkg/idgen"
	"github.com/marmos91/nameserver/pkg/store/namespace"
)

// CopysetIDInfo identifies one placement target.
type CopysetIDInfo struct {
	LogicalPoolID uint32
	CopysetID     uint32
}

// Admin allocates placement targets for new chunks.
type Admin interface {
	// AllocateChunkRandomInSingleLogicalPool returns chunkNumber targets,
	// all in the same logical pool, for a file of the given type.
	AllocateChunkRandomInSingleLogicalPool(ctx context.Context, fileType namespace.FileType, chunkNumber uint32) ([]CopysetIDInfo, error)
}

// StaticAdmin returns {LogicalPoolID, i} for the i-th requested chunk.
type StaticAdmin struct {
	LogicalPoolID uint32
}

var _ Admin = (*StaticAdmin)(nil)

// NewStaticAdmin creates a StaticAdmin placing every chunk in pool.
func NewStaticAdmin(pool uint32) *StaticAdmin {
	return &StaticAdmin{LogicalPoolID: pool}
}

// AllocateChunkRandomInSingleLogicalPool implements Admin.
func (a *StaticAdmin) AllocateChunkRandomInSingleLogicalPool(ctx context.Context, fileType namespace.FileType, chunkNumber uint32) ([]CopysetIDInfo, error) {
	infos := make([]CopysetIDInfo, chunkNumber)
	for i := range infos {
		infos[i] = CopysetIDInfo{LogicalPoolID: a.LogicalPoolID, CopysetID: uint32(i)}
	}
	return infos, nil
}

// ErrInvalidSegment is returned for unusable segment geometry.
var ErrInvalidSegment = errors.New("topology: invalid segment geometry")

// ChunkSegmentAllocator builds fully placed segments for page files.
type ChunkSegmentAllocator struct {
	admin    Admin
	chunkIDs idgen.ChunkIDGenerator
}

// NewChunkSegmentAllocator creates an allocator drawing placement from admin
// and chunk ids from chunkIDs.
func NewChunkSegmentAllocator(admin Admin, chunkIDs idgen.ChunkIDGenerator) *ChunkSegmentAllocator {
	return &ChunkSegmentAllocator{admin: admin, chunkIDs: chunkIDs}
}

// AllocateChunkSegment returns the segment of a file starting at offset,
// with segmentSize/chunkSize chunks.
//
// Returns ErrInvalidSegment when either size is zero, segmentSize is not a
// multiple of chunkSize, or offset is not segment aligned.
func (a *ChunkSegmentAllocator) AllocateChunkSegment(ctx context.Context, fileType namespace.FileType, segmentSize, chunkSize uint32, offset uint64) (*namespace.PageFileSegment, error) {
	if segmentSize == 0 || chunkSize == 0 || segmentSize%chunkSize != 0 {
		return nil, fmt.Errorf("%w: segment size %d, chunk size %d", ErrInvalidSegment, segmentSize, chunkSize)
	}
	if offset%uint64(segmentSize) != 0 {
		return nil, fmt.Errorf("%w: offset %d not aligned to segment size %d", ErrInvalidSegment, offset, segmentSize)
	}

	count := segmentSize / chunkSize
	targets, err := a.admin.AllocateChunkRandomInSingleLogicalPool(ctx, fileType, count)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate %d chunks: %w", count, err)
	}
	if uint32(len(targets)) != count {
		return nil, fmt.Errorf("topology returned %d targets, want %d", len(targets), count)
	}

	segment := &namespace.PageFileSegment{
		LogicalPoolID: targets[0].LogicalPoolID,
		SegmentSize:   segmentSize,
		ChunkSize:     chunkSize,
		StartOffset:   offset,
		Chunks:        make([]namespace.PageFileChunkInfo, count),
	}

	for i, target := range targets {
		if target.LogicalPoolID != segment.LogicalPoolID {
			return nil, fmt.Errorf("topology spread chunks over pools %d and %d", segment.LogicalPoolID, target.LogicalPoolID)
		}
		id, err := a.chunkIDs.GenChunkID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate chunk id: %w", err)
		}
		segment.Chunks[i] = namespace.PageFileChunkInfo{ChunkID: id, CopysetID: target.CopysetID}
	}

	logger.Debug("allocated segment: offset=%d chunks=%d pool=%d", offset, count, segment.LogicalPoolID)
	return segment, nil
}
