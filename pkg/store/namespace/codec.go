package namespace

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Serialization Strategy
// ======================
//
// Records are stored in protobuf wire format, written field by field with
// protowire. Field numbers are stable; fields holding their zero value are
// omitted, so encoding is deterministic. Decoding skips unknown field
// numbers and rejects malformed input or a known field with the wrong wire
// type.

// FileInfo field numbers.
const (
	fileFieldID                   protowire.Number = 1
	fileFieldFileName             protowire.Number = 2
	fileFieldParentID             protowire.Number = 3
	fileFieldFileType             protowire.Number = 4
	fileFieldOwner                protowire.Number = 5
	fileFieldChunkSize            protowire.Number = 6
	fileFieldSegmentSize          protowire.Number = 7
	fileFieldLength               protowire.Number = 8
	fileFieldCTime                protowire.Number = 9
	fileFieldSeqNum               protowire.Number = 10
	fileFieldFileStatus           protowire.Number = 11
	fileFieldOriginalFullPathName protowire.Number = 12
)

// PageFileSegment and PageFileChunkInfo field numbers.
const (
	segmentFieldLogicalPoolID protowire.Number = 1
	segmentFieldStartOffset   protowire.Number = 2
	segmentFieldSegmentSize   protowire.Number = 3
	segmentFieldChunkSize     protowire.Number = 4
	segmentFieldChunks        protowire.Number = 5
	segmentFieldEpoch         protowire.Number = 6

	chunkFieldChunkID   protowire.Number = 1
	chunkFieldCopysetID protowire.Number = 2
)

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// encodeFileInfo serializes a FileInfo.
func encodeFileInfo(info *FileInfo) []byte {
	var b []byte
	b = appendVarintField(b, fileFieldID, info.ID)
	b = appendStringField(b, fileFieldFileName, info.FileName)
	b = appendVarintField(b, fileFieldParentID, info.ParentID)
	b = appendVarintField(b, fileFieldFileType, uint64(info.FileType))
	b = appendStringField(b, fileFieldOwner, info.Owner)
	b = appendVarintField(b, fileFieldChunkSize, uint64(info.ChunkSize))
	b = appendVarintField(b, fileFieldSegmentSize, uint64(info.SegmentSize))
	b = appendVarintField(b, fileFieldLength, info.Length)
	b = appendVarintField(b, fileFieldCTime, info.CTime)
	b = appendVarintField(b, fileFieldSeqNum, info.SeqNum)
	b = appendVarintField(b, fileFieldFileStatus, uint64(info.FileStatus))
	b = appendStringField(b, fileFieldOriginalFullPathName, info.OriginalFullPathName)
	if b == nil {
		b = []byte{}
	}
	return b
}

// encodeSegment serializes a PageFileSegment.
func encodeSegment(segment *PageFileSegment) []byte {
	var b []byte
	b = appendVarintField(b, segmentFieldLogicalPoolID, uint64(segment.LogicalPoolID))
	b = appendVarintField(b, segmentFieldStartOffset, segment.StartOffset)
	b = appendVarintField(b, segmentFieldSegmentSize, uint64(segment.SegmentSize))
	b = appendVarintField(b, segmentFieldChunkSize, uint64(segment.ChunkSize))
	for _, chunk := range segment.Chunks {
		var c []byte
		c = appendVarintField(c, chunkFieldChunkID, chunk.ChunkID)
		c = appendVarintField(c, chunkFieldCopysetID, uint64(chunk.CopysetID))
		b = protowire.AppendTag(b, segmentFieldChunks, protowire.BytesType)
		b = protowire.AppendBytes(b, c)
	}
	b = appendVarintField(b, segmentFieldEpoch, segment.Epoch)
	if b == nil {
		b = []byte{}
	}
	return b
}

// fieldVisitor handles one known field. It returns the number of bytes
// consumed, or a negative protowire error code; ok is false for unknown fields.
type fieldVisitor func(num protowire.Number, typ protowire.Type, b []byte) (n int, ok bool, err error)

func walkFields(b []byte, visit fieldVisitor) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, ok, err := visit(num, typ, b)
		if err != nil {
			return err
		}
		if !ok {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func wrongType(num protowire.Number, typ protowire.Type) error {
	return fmt.Errorf("field %d: unexpected wire type %d", num, typ)
}

func consumeUint32(b []byte, num protowire.Number, dst *uint32) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return n, nil
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("field %d: value %d overflows uint32", num, v)
	}
	*dst = uint32(v)
	return n, nil
}

func consumeInt32(b []byte, num protowire.Number, dst *int32) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return n, nil
	}
	if v > math.MaxInt32 {
		return 0, fmt.Errorf("field %d: value %d overflows int32", num, v)
	}
	*dst = int32(v)
	return n, nil
}

// decodeFileInfo deserializes a FileInfo.
func decodeFileInfo(data []byte) (*FileInfo, error) {
	info := &FileInfo{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		var n int
		var err error

		switch num {
		case fileFieldFileName, fileFieldOwner, fileFieldOriginalFullPathName:
			if typ != protowire.BytesType {
				return 0, true, wrongType(num, typ)
			}
			var s string
			s, n = protowire.ConsumeString(b)
			switch num {
			case fileFieldFileName:
				info.FileName = s
			case fileFieldOwner:
				info.Owner = s
			default:
				info.OriginalFullPathName = s
			}
			return n, true, nil

		case fileFieldChunkSize:
			if typ != protowire.VarintType {
				return 0, true, wrongType(num, typ)
			}
			n, err = consumeUint32(b, num, &info.ChunkSize)
			return n, true, err

		case fileFieldSegmentSize:
			if typ != protowire.VarintType {
				return 0, true, wrongType(num, typ)
			}
			n, err = consumeUint32(b, num, &info.SegmentSize)
			return n, true, err

		case fileFieldFileType, fileFieldFileStatus:
			if typ != protowire.VarintType {
				return 0, true, wrongType(num, typ)
			}
			var v int32
			n, err = consumeInt32(b, num, &v)
			if num == fileFieldFileType {
				info.FileType = FileType(v)
			} else {
				info.FileStatus = FileStatus(v)
			}
			return n, true, err

		case fileFieldID, fileFieldParentID, fileFieldLength, fileFieldCTime, fileFieldSeqNum:
			if typ != protowire.VarintType {
				return 0, true, wrongType(num, typ)
			}
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			switch num {
			case fileFieldID:
				info.ID = v
			case fileFieldParentID:
				info.ParentID = v
			case fileFieldLength:
				info.Length = v
			case fileFieldCTime:
				info.CTime = v
			default:
				info.SeqNum = v
			}
			return n, true, nil
		}
		return 0, false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode file info: %w", err)
	}
	return info, nil
}

func decodeChunk(data []byte) (PageFileChunkInfo, error) {
	var chunk PageFileChunkInfo
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		switch num {
		case chunkFieldChunkID:
			if typ != protowire.VarintType {
				return 0, true, wrongType(num, typ)
			}
			v, n := protowire.ConsumeVarint(b)
			chunk.ChunkID = v
			return n, true, nil
		case chunkFieldCopysetID:
			if typ != protowire.VarintType {
				return 0, true, wrongType(num, typ)
			}
			n, err := consumeUint32(b, num, &chunk.CopysetID)
			return n, true, err
		}
		return 0, false, nil
	})
	return chunk, err
}

// decodeSegment deserializes a PageFileSegment.
func decodeSegment(data []byte) (*PageFileSegment, error) {
	segment := &PageFileSegment{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, bool, error) {
		switch num {
		case segmentFieldLogicalPoolID, segmentFieldSegmentSize, segmentFieldChunkSize:
			if typ != protowire.VarintType {
				return 0, true, wrongType(num, typ)
			}
			dst := &segment.LogicalPoolID
			if num == segmentFieldSegmentSize {
				dst = &segment.SegmentSize
			} else if num == segmentFieldChunkSize {
				dst = &segment.ChunkSize
			}
			n, err := consumeUint32(b, num, dst)
			return n, true, err

		case segmentFieldStartOffset, segmentFieldEpoch:
			if typ != protowire.VarintType {
				return 0, true, wrongType(num, typ)
			}
			v, n := protowire.ConsumeVarint(b)
			if num == segmentFieldStartOffset {
				segment.StartOffset = v
			} else {
				segment.Epoch = v
			}
			return n, true, nil

		case segmentFieldChunks:
			if typ != protowire.BytesType {
				return 0, true, wrongType(num, typ)
			}
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, true, nil
			}
			chunk, err := decodeChunk(raw)
			if err != nil {
				return 0, true, fmt.Errorf("chunk %d: %w", len(segment.Chunks), err)
			}
			segment.Chunks = append(segment.Chunks, chunk)
			return n, true, nil
		}
		return 0, false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode segment: %w", err)
	}
	return segment, nil
}
