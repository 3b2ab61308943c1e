package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKeyRoundTrip(t *testing.T) {
	key := EncodeFileStoreKey(258, "disk.img")
	assert.Equal(t, "01\x00\x00\x00\x00\x00\x00\x01\x02disk.img", key)

	parent, name, err := DecodeFileStoreKey(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(258), parent)
	assert.Equal(t, "disk.img", name)

	_, _, err = DecodeFileStoreKey("02short")
	assert.Error(t, err)
}

func TestDirectoryRangeIsTight(t *testing.T) {
	start, end := DirectoryRange(1)

	inside := []string{
		EncodeFileStoreKey(1, ""),
		EncodeFileStoreKey(1, "a"),
		EncodeFileStoreKey(1, "\xff\xff"),
	}
	outside := []string{
		EncodeFileStoreKey(0, "z"),
		EncodeFileStoreKey(2, ""),
		EncodeFileStoreKey(256, "a"),
		EncodeSnapShotFileStoreKey(1, "a", 1),
		EncodeSegmentStoreKey(1, 0),
	}

	for _, k := range inside {
		assert.True(t, k >= start && k < end, "%q should be inside", k)
	}
	for _, k := range outside {
		assert.False(t, k >= start && k < end, "%q should be outside", k)
	}
}

func TestSnapshotKeys(t *testing.T) {
	key := EncodeSnapShotFileStoreKey(7, "vol-a", 12)

	parent, name, seq, err := DecodeSnapShotFileStoreKey(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), parent)
	assert.Equal(t, "vol-a", name)
	assert.Equal(t, uint64(12), seq)

	assert.Less(t, EncodeSnapShotFileStoreKey(7, "vol", 9), EncodeSnapShotFileStoreKey(7, "vol", 10))

	start, end := SnapshotPrefixRange()
	assert.True(t, key >= start && key < end)
	assert.Greater(t, start, EncodeFileStoreKey(^uint64(0), "\xff"))

	fileStart, fileEnd := SnapshotRange(7, "vol-a")
	assert.True(t, key >= fileStart && key < fileEnd)

	_, _, _, err = DecodeSnapShotFileStoreKey(EncodeFileStoreKey(7, "vol"))
	assert.Error(t, err)
}

func TestSegmentKeys(t *testing.T) {
	a := EncodeSegmentStoreKey(3, 1<<30)
	b := EncodeSegmentStoreKey(3, 1<<32)
	assert.Less(t, a, b)

	inode, offset, err := DecodeSegmentStoreKey(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), inode)
	assert.Equal(t, uint64(1<<32), offset)

	start, end := SegmentRange(3)
	assert.True(t, a >= start && a < end)
	other := EncodeSegmentStoreKey(4, 0)
	assert.False(t, other >= start && other < end)
}

func TestIDGeneratorKey(t *testing.T) {
	key := EncodeIDGeneratorKey("inode")
	assert.Equal(t, "04inode", key)

	start, end := SnapshotPrefixRange()
	assert.False(t, key >= start && key < end)
}
