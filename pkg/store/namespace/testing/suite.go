// Package testing provides a conformance suite for NameServerStorage
// implementations. Backend packages run it against their own engine.
package testing

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/marmos91/nameserver/pkg/store/namespace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite runs the namespace conformance tests against stores built
// by NewStore. Each subtest gets a fresh, empty store.
type StoreTestSuite struct {
	NewStore func(t *testing.T) namespace.NameServerStorage
}

// Run executes all namespace store tests.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("FileOperations", func(t *testing.T) {
		t.Run("RoundTrip", suite.testRoundTrip)
		t.Run("PutReplaces", suite.testPutReplaces)
		t.Run("DeleteDetectsAbsence", suite.testDeleteDetectsAbsence)
		t.Run("GetMissing", suite.testGetMissing)
	})

	t.Run("Listing", func(t *testing.T) {
		t.Run("RangeExactness", suite.testRangeExactness)
		t.Run("DirectoryRange", suite.testDirectoryRange)
		t.Run("EmptyRange", suite.testEmptyRange)
	})

	t.Run("Rename", func(t *testing.T) {
		t.Run("Scenario", suite.testRenameScenario)
		t.Run("SourceMissing", suite.testRenameSourceMissing)
		t.Run("TargetOccupied", suite.testRenameTargetOccupied)
		t.Run("OntoItself", suite.testRenameOntoItself)
		t.Run("Atomicity", suite.testRenameAtomicity)
	})

	t.Run("Snapshot", func(t *testing.T) {
		t.Run("Discrimination", suite.testSnapshotDiscrimination)
		t.Run("Immutable", suite.testSnapshotImmutable)
		t.Run("ListPerFile", suite.testListSnapshotsPerFile)
		t.Run("Atomicity", suite.testSnapshotAtomicity)
	})

	t.Run("Segments", func(t *testing.T) {
		t.Run("CRUD", suite.testSegmentCRUD)
		t.Run("EmptyChunks", suite.testSegmentEmptyChunks)
		t.Run("ListOrder", suite.testSegmentListOrder)
	})
}

func status(err error) namespace.StoreStatus {
	return namespace.StatusOf(err)
}

func sampleFile(id uint64, name string) *namespace.FileInfo {
	return &namespace.FileInfo{
		ID:          id,
		ParentID:    1,
		FileName:    name,
		FileType:    namespace.FileTypePageFile,
		ChunkSize:   16 << 20,
		SegmentSize: 1 << 30,
		Length:      10 << 30,
		CTime:       1700000000000000,
		SeqNum:      1,
		FileStatus:  namespace.FileStatusCreated,
		Owner:       "curve",
	}
}

func names(files []*namespace.FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.FileName
	}
	return out
}

func (suite *StoreTestSuite) testRoundTrip(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	info := sampleFile(42, "vol.img")
	info.OriginalFullPathName = "/pool/vol.img"
	info.FileStatus = namespace.FileStatusCloneMetaInstalled

	require.NoError(t, store.PutFile(ctx, "k", info))

	got, err := store.GetFile(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, info, got)

	empty := &namespace.FileInfo{}
	require.NoError(t, store.PutFile(ctx, "empty", empty))
	got, err = store.GetFile(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, empty, got)
}

func (suite *StoreTestSuite) testPutReplaces(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	first := sampleFile(1, "a")
	first.Owner = "alice"
	require.NoError(t, store.PutFile(ctx, "k", first))

	second := &namespace.FileInfo{ID: 2, FileName: "b"}
	require.NoError(t, store.PutFile(ctx, "k", second))
	require.NoError(t, store.PutFile(ctx, "k", second))

	got, err := store.GetFile(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, second, got, "put must fully replace the record")
}

func (suite *StoreTestSuite) testDeleteDetectsAbsence(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	err := store.DeleteFile(ctx, "never")
	assert.Equal(t, namespace.KeyNotExist, status(err))

	require.NoError(t, store.PutFile(ctx, "k", sampleFile(1, "a")))
	require.NoError(t, store.DeleteFile(ctx, "k"))

	err = store.DeleteFile(ctx, "k")
	assert.Equal(t, namespace.KeyNotExist, status(err))
	assert.ErrorIs(t, err, namespace.ErrKeyNotExist)
}

func (suite *StoreTestSuite) testGetMissing(t *testing.T) {
	store := suite.NewStore(t)

	info, err := store.GetFile(context.Background(), "missing")
	assert.Nil(t, info)
	assert.Equal(t, namespace.KeyNotExist, status(err))
	assert.True(t, namespace.IsNotExist(err))
}

func (suite *StoreTestSuite) testRangeExactness(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	for _, key := range []string{"b/1", "a/3", "a/1", "a/2"} {
		require.NoError(t, store.PutFile(ctx, key, &namespace.FileInfo{FileName: key}))
	}

	files, err := store.ListFile(ctx, "a/", "b/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "a/2", "a/3"}, names(files))

	again, err := store.ListFile(ctx, "a/", "b/")
	require.NoError(t, err)
	assert.Equal(t, names(files), names(again))
}

func (suite *StoreTestSuite) testDirectoryRange(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	// parent 256 and 1 differ only in a non-final byte; 2 is adjacent to 1.
	for _, parent := range []uint64{1, 2, 256} {
		for _, name := range []string{"z", "a", "m"} {
			key := namespace.EncodeFileStoreKey(parent, name)
			info := &namespace.FileInfo{ParentID: parent, FileName: name}
			require.NoError(t, store.PutFile(ctx, key, info))
		}
	}
	snapKey := namespace.EncodeSnapShotFileStoreKey(1, "a", 1)
	require.NoError(t, store.PutFile(ctx, snapKey, &namespace.FileInfo{ParentID: 1, FileName: "a"}))

	start, end := namespace.DirectoryRange(1)
	files, err := store.ListFile(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, []string{"a", "m", "z"}, names(files))
	for _, f := range files {
		assert.Equal(t, uint64(1), f.ParentID)
	}
}

func (suite *StoreTestSuite) testEmptyRange(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutFile(ctx, "a", &namespace.FileInfo{}))

	files, err := store.ListFile(ctx, "x", "y")
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = store.ListFile(ctx, "b", "a")
	require.NoError(t, err)
	assert.Empty(t, files)

	snapshots, err := store.LoadSnapShotFile(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}

func (suite *StoreTestSuite) testRenameScenario(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	info := &namespace.FileInfo{ID: 1, FileName: "a.img"}
	require.NoError(t, store.PutFile(ctx, "/ns/1/a.img", info))

	got, err := store.GetFile(ctx, "/ns/1/a.img")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.ID)

	renamed := &namespace.FileInfo{ID: 1, FileName: "b.img"}
	require.NoError(t, store.RenameFile(ctx, "/ns/1/a.img", info, "/ns/1/b.img", renamed))

	_, err = store.GetFile(ctx, "/ns/1/a.img")
	assert.Equal(t, namespace.KeyNotExist, status(err))

	got, err = store.GetFile(ctx, "/ns/1/b.img")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.ID)
	assert.Equal(t, "b.img", got.FileName)
}

func (suite *StoreTestSuite) testRenameSourceMissing(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutFile(ctx, "other", &namespace.FileInfo{ID: 9}))

	err := store.RenameFile(ctx, "old", &namespace.FileInfo{}, "new", &namespace.FileInfo{ID: 1})
	assert.Equal(t, namespace.KeyNotExist, status(err))

	_, err = store.GetFile(ctx, "new")
	assert.Equal(t, namespace.KeyNotExist, status(err))
	files, err := store.ListFile(ctx, "", "\xff")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, uint64(9), files[0].ID)
}

func (suite *StoreTestSuite) testRenameTargetOccupied(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	oldInfo := &namespace.FileInfo{ID: 1, FileName: "old"}
	occupant := &namespace.FileInfo{ID: 2, FileName: "new"}
	require.NoError(t, store.PutFile(ctx, "old", oldInfo))
	require.NoError(t, store.PutFile(ctx, "new", occupant))

	err := store.RenameFile(ctx, "old", oldInfo, "new", &namespace.FileInfo{ID: 1, FileName: "new"})
	assert.Equal(t, namespace.KeyAlreadyExist, status(err))
	assert.True(t, namespace.IsAlreadyExist(err))

	got, err := store.GetFile(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, oldInfo, got)
	got, err = store.GetFile(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, occupant, got)
}

func (suite *StoreTestSuite) testRenameOntoItself(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	info := &namespace.FileInfo{ID: 1, Length: 1}
	require.NoError(t, store.PutFile(ctx, "k", info))

	updated := &namespace.FileInfo{ID: 1, Length: 2}
	require.NoError(t, store.RenameFile(ctx, "k", info, "k", updated))

	got, err := store.GetFile(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

// testRenameAtomicity bounces one record between two keys while listers
// check that exactly one of them is ever visible.
func (suite *StoreTestSuite) testRenameAtomicity(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	info := &namespace.FileInfo{ID: 7}
	require.NoError(t, store.PutFile(ctx, "dir/a", info))

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		from, to := "dir/a", "dir/b"
		for i := 0; i < 300; i++ {
			if !assert.NoError(t, store.RenameFile(ctx, from, info, to, info)) {
				return
			}
			from, to = to, from
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				files, err := store.ListFile(ctx, "dir/", "dir0")
				if !assert.NoError(t, err) || !assert.Len(t, files, 1) {
					return
				}
			}
		}()
	}

	wg.Wait()
}

func (suite *StoreTestSuite) testSnapshotDiscrimination(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	origKey := namespace.EncodeFileStoreKey(1, "vol")
	orig := sampleFile(10, "vol")
	require.NoError(t, store.PutFile(ctx, origKey, orig))

	bumped := orig.Clone()
	bumped.SeqNum = 2
	snap := orig.Clone()
	snap.FileType = namespace.FileTypeSnapshotPageFile
	snap.OriginalFullPathName = "/vol"
	snapKey := namespace.EncodeSnapShotFileStoreKey(1, "vol", orig.SeqNum)

	require.NoError(t, store.SnapShotFile(ctx, origKey, bumped, snapKey, snap))

	snapshots, err := store.LoadSnapShotFile(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, snap, snapshots[0])

	got, err := store.GetFile(ctx, origKey)
	require.NoError(t, err)
	assert.Equal(t, bumped, got)

	start, end := namespace.DirectoryRange(1)
	live, err := store.ListFile(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, bumped, live[0])
}

func (suite *StoreTestSuite) testSnapshotImmutable(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	origKey := namespace.EncodeFileStoreKey(1, "vol")
	snapKey := namespace.EncodeSnapShotFileStoreKey(1, "vol", 1)
	orig := sampleFile(10, "vol")
	snap := &namespace.FileInfo{ID: 10, SeqNum: 1, FileType: namespace.FileTypeSnapshotPageFile}

	require.NoError(t, store.SnapShotFile(ctx, origKey, orig, snapKey, snap))

	changed := orig.Clone()
	changed.SeqNum = 99
	err := store.SnapShotFile(ctx, origKey, changed, snapKey, &namespace.FileInfo{ID: 11})
	assert.Equal(t, namespace.KeyAlreadyExist, status(err))

	got, err := store.GetFile(ctx, origKey)
	require.NoError(t, err)
	assert.Equal(t, orig, got, "failed snapshot must not touch the original")

	snapshots, err := store.LoadSnapShotFile(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, snap, snapshots[0])

	require.NoError(t, store.DeleteFile(ctx, snapKey))
	snapshots, err = store.LoadSnapShotFile(ctx)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}

func (suite *StoreTestSuite) testListSnapshotsPerFile(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	put := func(parent uint64, name string, seq uint64) {
		key := namespace.EncodeSnapShotFileStoreKey(parent, name, seq)
		require.NoError(t, store.PutFile(ctx, key, &namespace.FileInfo{FileName: name, SeqNum: seq}))
	}
	put(1, "vol", 10)
	put(1, "vol", 2)
	put(1, "vol", 1)
	put(1, "volume", 1)
	put(2, "vol", 1)

	start, end := namespace.SnapshotRange(1, "vol")
	snapshots, err := store.ListSnapshotFile(ctx, start, end)
	require.NoError(t, err)

	var seqs []uint64
	for _, s := range snapshots {
		assert.Equal(t, "vol", s.FileName)
		seqs = append(seqs, s.SeqNum)
	}
	assert.Equal(t, []uint64{1, 2, 10}, seqs)

	all, err := store.LoadSnapShotFile(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

// testSnapshotAtomicity takes snapshots while readers scan a range covering
// both the live record and its snapshots; the live SeqNum must always match
// the number of snapshots taken so far.
func (suite *StoreTestSuite) testSnapshotAtomicity(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	origKey := namespace.EncodeFileStoreKey(5, "vol")
	require.NoError(t, store.PutFile(ctx, origKey, &namespace.FileInfo{ID: 5, FileName: "vol", SeqNum: 1}))

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for seq := uint64(1); seq <= 100; seq++ {
			live := &namespace.FileInfo{ID: 5, FileName: "vol", SeqNum: seq + 1}
			snap := &namespace.FileInfo{ID: 5, FileName: "vol", SeqNum: seq, FileType: namespace.FileTypeSnapshotPageFile}
			snapKey := namespace.EncodeSnapShotFileStoreKey(5, "vol", seq)
			if !assert.NoError(t, store.SnapShotFile(ctx, origKey, live, snapKey, snap)) {
				return
			}
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				records, err := store.ListFile(ctx, namespace.FileInfoKeyPrefix, namespace.IDGeneratorKeyPrefix)
				if !assert.NoError(t, err) || !assert.NotEmpty(t, records) {
					return
				}
				live := records[0]
				snapshots := len(records) - 1
				if !assert.Equal(t, uint64(snapshots+1), live.SeqNum, fmt.Sprintf("records=%d", len(records))) {
					return
				}
			}
		}()
	}

	wg.Wait()
}

func (suite *StoreTestSuite) testSegmentCRUD(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	key := namespace.EncodeSegmentStoreKey(3, 0)
	_, err := store.GetSegment(ctx, key)
	assert.Equal(t, namespace.KeyNotExist, status(err))

	segment := &namespace.PageFileSegment{
		LogicalPoolID: 1,
		SegmentSize:   1 << 30,
		ChunkSize:     16 << 20,
		StartOffset:   0,
		Chunks: []namespace.PageFileChunkInfo{
			{ChunkID: 100, CopysetID: 0},
			{ChunkID: 101, CopysetID: 1},
		},
	}
	require.NoError(t, store.PutSegment(ctx, key, segment))

	got, err := store.GetSegment(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, segment, got)

	realloc := segment.Clone()
	realloc.Epoch = 1
	realloc.Chunks[0].ChunkID = 200
	require.NoError(t, store.PutSegment(ctx, key, realloc))
	got, err = store.GetSegment(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, realloc, got)
	assert.Equal(t, uint64(100), segment.Chunks[0].ChunkID, "clone must not alias chunks")

	require.NoError(t, store.DeleteSegment(ctx, key))
	assert.Equal(t, namespace.KeyNotExist, status(store.DeleteSegment(ctx, key)))
}

func (suite *StoreTestSuite) testSegmentEmptyChunks(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	segment := &namespace.PageFileSegment{
		LogicalPoolID: 1,
		SegmentSize:   1 << 30,
		ChunkSize:     16 << 20,
		Chunks:        []namespace.PageFileChunkInfo{},
	}
	key := namespace.EncodeSegmentStoreKey(4, 0)
	require.NoError(t, store.PutSegment(ctx, key, segment))

	got, err := store.GetSegment(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got.Chunks)
	assert.Equal(t, segment.Clone(), got)
}

func (suite *StoreTestSuite) testSegmentListOrder(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	const segmentSize = 1 << 30
	for _, offset := range []uint64{5 * segmentSize, 0, 256 * segmentSize, segmentSize} {
		seg := &namespace.PageFileSegment{SegmentSize: segmentSize, StartOffset: offset}
		require.NoError(t, store.PutSegment(ctx, namespace.EncodeSegmentStoreKey(7, offset), seg))
	}
	require.NoError(t, store.PutSegment(ctx, namespace.EncodeSegmentStoreKey(8, 0), &namespace.PageFileSegment{}))
	require.NoError(t, store.PutSegment(ctx, namespace.EncodeSegmentStoreKey(6, 0), &namespace.PageFileSegment{}))

	segments, err := store.ListSegment(ctx, 7)
	require.NoError(t, err)

	var offsets []uint64
	for _, s := range segments {
		offsets = append(offsets, s.StartOffset)
	}
	assert.Equal(t, []uint64{0, segmentSize, 5 * segmentSize, 256 * segmentSize}, offsets)

	none, err := store.ListSegment(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, none)
}
