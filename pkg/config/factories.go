package config

import (
	"context"
	"fmt"

	"github.com/marmos91/nameserver/internal/logger"
	"github.com/marmos91/nameserver/pkg/gc"
	"github.com/marmos91/nameserver/pkg/idgen"
	"github.com/marmos91/nameserver/pkg/kv"
	"github.com/marmos91/nameserver/pkg/kv/badger"
	"github.com/marmos91/nameserver/pkg/kv/memory"
	"github.com/marmos91/nameserver/pkg/metrics"
	"github.com/marmos91/nameserver/pkg/nameserver"
	"github.com/marmos91/nameserver/pkg/repo"
	"github.com/marmos91/nameserver/pkg/store/namespace"
	"github.com/marmos91/nameserver/pkg/topology"
	"github.com/mitchellh/mapstructure"
)

// Generator names used as id generator keys.
const (
	InodeGeneratorName = "inode"
	ChunkGeneratorName = "chunk"
)

// decodeBadgerOptions decodes the storage.badger option map.
//
// Values coming from YAML or environment variables may be strings, so the
// decoder is weakly typed and parses durations.
func decodeBadgerOptions(options map[string]any) (badger.Config, error) {
	var opts badger.Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &opts,
	})
	if err != nil {
		return opts, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return opts, fmt.Errorf("failed to decode badger options: %w", err)
	}
	return opts, nil
}

// CreateEngine creates the key-value engine selected by cfg.Type.
func CreateEngine(ctx context.Context, cfg *StorageConfig) (kv.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	case "badger":
		opts, err := decodeBadgerOptions(cfg.Badger)
		if err != nil {
			return nil, err
		}
		engine, err := badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create badger engine: %w", err)
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

// CreateNamespaceStore wraps engine in a namespace store reporting to
// namespaceMetrics.
func CreateNamespaceStore(engine kv.Engine, namespaceMetrics metrics.NamespaceMetrics) *namespace.Store {
	if namespaceMetrics == nil {
		namespaceMetrics = metrics.NoopNamespaceMetrics()
	}
	return namespace.New(engine, namespace.WithMetrics(namespaceMetrics))
}

// CreateGenerators creates the inode and chunk id generators.
//
// Persistent generators keep their high-water marks in engine. Otherwise
// plain in-process counters are used and ids restart from the configured
// initial values.
func CreateGenerators(cfg *IDGenConfig, engine kv.Engine) (idgen.InodeIDGenerator, idgen.ChunkIDGenerator, error) {
	if !cfg.Persistent {
		return idgen.NewCounter(cfg.InodeInitial), idgen.NewCounter(cfg.ChunkInitial), nil
	}

	inodes, err := idgen.NewKVGenerator(engine, InodeGeneratorName, cfg.InodeInitial, cfg.BundleSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create inode id generator: %w", err)
	}
	chunks, err := idgen.NewKVGenerator(engine, ChunkGeneratorName, cfg.ChunkInitial, cfg.BundleSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chunk id generator: %w", err)
	}
	return inodes, chunks, nil
}

// CreateRepo creates the MDS repository on engine and makes sure every
// table exists.
func CreateRepo(ctx context.Context, engine kv.Engine) (*repo.Repo, error) {
	r := repo.New(engine)
	if err := r.CreateAllTables(ctx); err != nil {
		return nil, fmt.Errorf("failed to create repo tables: %w", err)
	}
	return r, nil
}

// CreateNameServer wires a NameServer over store.
func CreateNameServer(cfg *Config, store namespace.NameServerStorage, inodes idgen.InodeIDGenerator, chunks idgen.ChunkIDGenerator) (*nameserver.NameServer, error) {
	admin := topology.NewStaticAdmin(cfg.Topology.LogicalPoolID)
	allocator := topology.NewChunkSegmentAllocator(admin, chunks)

	return nameserver.New(store, inodes, allocator, nameserver.Config{
		DefaultChunkSize:   cfg.Namespace.DefaultChunkSize,
		DefaultSegmentSize: cfg.Namespace.DefaultSegmentSize,
		Owner:              cfg.Namespace.Owner,
	})
}

// CreateCollector creates the orphaned segment collector over store.
func CreateCollector(cfg *GCConfig, store gc.SegmentStore) *gc.Collector {
	return gc.NewCollector(store, gc.Config{
		Enabled:    cfg.Enabled,
		Interval:   cfg.Interval,
		BatchSize:  cfg.BatchSize,
		DryRun:     cfg.DryRun,
		DeleteRate: cfg.DeleteRate,
	})
}

// Components holds everything built from one Config.
type Components struct {
	Engine     kv.Engine
	Store      *namespace.Store
	Repo       *repo.Repo
	NameServer *nameserver.NameServer
	Collector  *gc.Collector
	Metrics    *MetricsResult
}

// Build creates the engine, store, generators, repository and name server
// described by cfg. The caller owns the result and must Close it.
func Build(ctx context.Context, cfg *Config) (*Components, error) {
	metricsResult := InitializeMetrics(cfg)

	engine, err := CreateEngine(ctx, &cfg.Storage)
	if err != nil {
		return nil, err
	}

	store := CreateNamespaceStore(engine, metricsResult.NamespaceMetrics)

	inodes, chunks, err := CreateGenerators(&cfg.IDGen, engine)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	r, err := CreateRepo(ctx, engine)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	ns, err := CreateNameServer(cfg, store, inodes, chunks)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Debug("components built: storage=%s persistent_ids=%t pool=%d",
		cfg.Storage.Type, cfg.IDGen.Persistent, cfg.Topology.LogicalPoolID)

	return &Components{
		Engine:     engine,
		Store:      store,
		Repo:       r,
		NameServer: ns,
		Collector:  CreateCollector(&cfg.GC, store),
		Metrics:    metricsResult,
	}, nil
}

// Close releases the engine.
func (c *Components) Close() error {
	return c.Store.Close()
}
