package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/nameserver/pkg/idgen"
	"github.com/marmos91/nameserver/pkg/kv/badger"
	"github.com/marmos91/nameserver/pkg/kv/memory"
	"github.com/marmos91/nameserver/pkg/repo"
)

func TestCreateEngine_Memory(t *testing.T) {
	engine, err := CreateEngine(context.Background(), &StorageConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create memory engine: %v", err)
	}
	defer func() { _ = engine.Close() }()

	if _, ok := engine.(*memory.Engine); !ok {
		t.Errorf("Expected *memory.Engine, got %T", engine)
	}
}

func TestCreateEngine_Badger(t *testing.T) {
	cfg := &StorageConfig{
		Type: "badger",
		Badger: map[string]any{
			"db_path":     filepath.Join(t.TempDir(), "db"),
			"compression": "snappy",
			"gc_interval": "30s",
		},
	}

	engine, err := CreateEngine(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create badger engine: %v", err)
	}
	defer func() { _ = engine.Close() }()

	if _, ok := engine.(*badger.Engine); !ok {
		t.Errorf("Expected *badger.Engine, got %T", engine)
	}
}

func TestCreateEngine_UnknownType(t *testing.T) {
	if _, err := CreateEngine(context.Background(), &StorageConfig{Type: "etcd"}); err == nil {
		t.Fatal("Expected error for unknown storage type")
	}
}

func TestCreateEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := CreateEngine(ctx, &StorageConfig{Type: "memory"}); err == nil {
		t.Fatal("Expected error for cancelled context")
	}
}

func TestDecodeBadgerOptions(t *testing.T) {
	opts, err := decodeBadgerOptions(map[string]any{
		"db_path":             "/data",
		"sync_writes":         "true",
		"block_cache_size_mb": 128,
		"gc_interval":         "2m",
		"gc_discard_ratio":    0.7,
	})
	if err != nil {
		t.Fatalf("Failed to decode options: %v", err)
	}

	if opts.DBPath != "/data" || !opts.SyncWrites {
		t.Errorf("Unexpected options: %+v", opts)
	}
	if opts.BlockCacheSizeMB != 128 {
		t.Errorf("Expected block cache 128MB, got %d", opts.BlockCacheSizeMB)
	}
	if opts.GCInterval != 2*time.Minute {
		t.Errorf("Expected gc interval 2m, got %v", opts.GCInterval)
	}
	if opts.GCDiscardRatio != 0.7 {
		t.Errorf("Expected discard ratio 0.7, got %v", opts.GCDiscardRatio)
	}
}

func TestCreateGenerators(t *testing.T) {
	engine := memory.New()
	defer func() { _ = engine.Close() }()

	inodes, chunks, err := CreateGenerators(&IDGenConfig{InodeInitial: 10, ChunkInitial: 20, BundleSize: 5, Persistent: true}, engine)
	if err != nil {
		t.Fatalf("Failed to create generators: %v", err)
	}
	if _, ok := inodes.(*idgen.KVGenerator); !ok {
		t.Errorf("Expected persistent inode generator, got %T", inodes)
	}

	ctx := context.Background()
	inode, err := inodes.GenInodeID(ctx)
	if err != nil || inode != 11 {
		t.Errorf("Expected first inode 11, got %d (err %v)", inode, err)
	}
	chunk, err := chunks.GenChunkID(ctx)
	if err != nil || chunk != 21 {
		t.Errorf("Expected first chunk 21, got %d (err %v)", chunk, err)
	}

	inodes, _, err = CreateGenerators(&IDGenConfig{InodeInitial: 10, BundleSize: 5}, engine)
	if err != nil {
		t.Fatalf("Failed to create counters: %v", err)
	}
	if _, ok := inodes.(*idgen.Counter); !ok {
		t.Errorf("Expected in-process counter, got %T", inodes)
	}
}

func TestCreateRepo(t *testing.T) {
	engine := memory.New()
	defer func() { _ = engine.Close() }()

	ctx := context.Background()
	r, err := CreateRepo(ctx, engine)
	if err != nil {
		t.Fatalf("Failed to create repo: %v", err)
	}

	if err := r.Zones().Insert(ctx, repo.ZoneRepoItem{ZoneID: 1, ZoneName: "zone1"}); err != nil {
		t.Errorf("Expected tables to exist after CreateRepo, got: %v", err)
	}
}

func TestBuild(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Namespace.DefaultChunkSize = 4096
	cfg.Namespace.DefaultSegmentSize = 4096 * 4

	ctx := context.Background()
	components, err := Build(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to build components: %v", err)
	}
	defer func() { _ = components.Close() }()

	if components.Metrics.Server != nil {
		t.Error("Expected no metrics server when metrics are disabled")
	}

	ns := components.NameServer
	if _, err := ns.MkDir(ctx, "/vols"); err != nil {
		t.Fatalf("MkDir failed: %v", err)
	}
	info, err := ns.CreateFile(ctx, "/vols/a.img", 4096*8)
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if info.Owner != cfg.Namespace.Owner {
		t.Errorf("Expected owner %q, got %q", cfg.Namespace.Owner, info.Owner)
	}

	segment, err := ns.GetOrAllocateSegment(ctx, "/vols/a.img", 0)
	if err != nil {
		t.Fatalf("GetOrAllocateSegment failed: %v", err)
	}
	if segment.LogicalPoolID != cfg.Topology.LogicalPoolID {
		t.Errorf("Expected pool %d, got %d", cfg.Topology.LogicalPoolID, segment.LogicalPoolID)
	}
	if len(segment.Chunks) != 4 {
		t.Errorf("Expected 4 chunks per segment, got %d", len(segment.Chunks))
	}
}

func TestCreateCollector(t *testing.T) {
	engine := memory.New()
	store := CreateNamespaceStore(engine, nil)
	defer func() { _ = store.Close() }()

	collector := CreateCollector(&GCConfig{Interval: time.Minute, BatchSize: 10, DryRun: true}, store)
	stats, err := collector.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if stats.OrphanedCount != 0 {
		t.Errorf("Expected no orphans in an empty store, got %d", stats.OrphanedCount)
	}
}
