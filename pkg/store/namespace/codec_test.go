package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestEncodeFileInfoIsDeterministic(t *testing.T) {
	info := &FileInfo{ID: 1, FileName: "a", Length: 10}
	assert.Equal(t, encodeFileInfo(info), encodeFileInfo(info.Clone()))
	assert.Empty(t, encodeFileInfo(&FileInfo{}))
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	b := encodeFileInfo(&FileInfo{ID: 5, FileName: "x"})
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 100, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)

	info, err := decodeFileInfo(b)
	require.NoError(t, err)
	assert.Equal(t, &FileInfo{ID: 5, FileName: "x"}, info)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated varint", []byte{0x08, 0x80}},
		{"truncated string", []byte{0x12, 0x05, 'a'}},
		{"wrong wire type", protowire.AppendString(protowire.AppendTag(nil, fileFieldID, protowire.BytesType), "x")},
		{"chunk size overflow", protowire.AppendVarint(protowire.AppendTag(nil, fileFieldChunkSize, protowire.VarintType), 1<<40)},
		{"bad tag", []byte{0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeFileInfo(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestSegmentCodec(t *testing.T) {
	segment := &PageFileSegment{
		LogicalPoolID: 2,
		SegmentSize:   1 << 30,
		ChunkSize:     16 << 20,
		StartOffset:   3 << 30,
		Epoch:         4,
		Chunks: []PageFileChunkInfo{
			{ChunkID: 1, CopysetID: 0},
			{ChunkID: 0, CopysetID: 9},
			{ChunkID: 1 << 50, CopysetID: 1},
		},
	}

	got, err := decodeSegment(encodeSegment(segment))
	require.NoError(t, err)
	assert.Equal(t, segment, got)

	bad := protowire.AppendTag(nil, segmentFieldChunks, protowire.BytesType)
	bad = protowire.AppendBytes(bad, []byte{0x10})
	_, err = decodeSegment(bad)
	assert.Error(t, err)
}
