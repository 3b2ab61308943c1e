// Package repo is the MDS repository: plain CRUD tables for cluster topology
// bookkeeping (chunkservers, servers, zones, pools, copysets) and client
// sessions.
//
// Rows are stored as JSON in a kv.Engine under "repo/<table>/<primary key>".
// A table must be created with CreateAllTables before it accepts rows.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/marmos91/nameserver/internal/logger"
	"github.com/marmos91/nameserver/pkg/kv"
)

// Key prefix of every repository row.
const keyPrefix = "repo/"

// tablesKeyPrefix holds one marker per created table.
const tablesKeyPrefix = keyPrefix + "_tables/"

// Table names.
const (
	ChunkServerTable  = "chunkserver"
	ServerTable       = "server"
	ZoneTable         = "zone"
	PhysicalPoolTable = "physicalpool"
	LogicalPoolTable  = "logicalpool"
	CopySetTable      = "copyset"
	SessionTable      = "session"
)

var allTables = []string{
	ChunkServerTable,
	ServerTable,
	ZoneTable,
	PhysicalPoolTable,
	LogicalPoolTable,
	CopySetTable,
	SessionTable,
}

var (
	// ErrItemNotFound is returned by Query, Update and Delete for a missing row.
	ErrItemNotFound = errors.New("repo: item not found")

	// ErrItemExists is returned by Insert when the primary key is taken.
	ErrItemExists = errors.New("repo: item already exists")

	// ErrTableNotFound is returned when a table has not been created.
	ErrTableNotFound = errors.New("repo: table does not exist")
)

// MdsRepo is the repository used by topology bookkeeping.
type MdsRepo interface {
	// CreateAllTables creates every table. Existing tables and rows are kept.
	CreateAllTables(ctx context.Context) error

	// DropDataBase removes every table and row.
	DropDataBase(ctx context.Context) error

	ChunkServers() *Table[ChunkServerRepoItem]
	Servers() *Table[ServerRepoItem]
	Zones() *Table[ZoneRepoItem]
	PhysicalPools() *Table[PhysicalPoolRepoItem]
	LogicalPools() *Table[LogicalPoolRepoItem]
	CopySets() *Table[CopySetRepoItem]
	Sessions() *Table[SessionRepoItem]
}

// Repo is the kv.Engine-backed MdsRepo.
type Repo struct {
	engine kv.Engine

	chunkServers  *Table[ChunkServerRepoItem]
	servers       *Table[ServerRepoItem]
	zones         *Table[ZoneRepoItem]
	physicalPools *Table[PhysicalPoolRepoItem]
	logicalPools  *Table[LogicalPoolRepoItem]
	copySets      *Table[CopySetRepoItem]
	sessions      *Table[SessionRepoItem]
}

var _ MdsRepo = (*Repo)(nil)

// New creates a repository over engine. The engine may be shared with
// other users of disjoint key prefixes.
func New(engine kv.Engine) *Repo {
	return &Repo{
		engine:        engine,
		chunkServers:  newTable[ChunkServerRepoItem](engine, ChunkServerTable),
		servers:       newTable[ServerRepoItem](engine, ServerTable),
		zones:         newTable[ZoneRepoItem](engine, ZoneTable),
		physicalPools: newTable[PhysicalPoolRepoItem](engine, PhysicalPoolTable),
		logicalPools:  newTable[LogicalPoolRepoItem](engine, LogicalPoolTable),
		copySets:      newTable[CopySetRepoItem](engine, CopySetTable),
		sessions:      newTable[SessionRepoItem](engine, SessionTable),
	}
}

func (r *Repo) ChunkServers() *Table[ChunkServerRepoItem]   { return r.chunkServers }
func (r *Repo) Servers() *Table[ServerRepoItem]             { return r.servers }
func (r *Repo) Zones() *Table[ZoneRepoItem]                 { return r.zones }
func (r *Repo) PhysicalPools() *Table[PhysicalPoolRepoItem] { return r.physicalPools }
func (r *Repo) LogicalPools() *Table[LogicalPoolRepoItem]   { return r.logicalPools }
func (r *Repo) CopySets() *Table[CopySetRepoItem]           { return r.copySets }
func (r *Repo) Sessions() *Table[SessionRepoItem]           { return r.sessions }

// CreateAllTables implements MdsRepo.
func (r *Repo) CreateAllTables(ctx context.Context) error {
	err := r.engine.Update(ctx, func(txn kv.Txn) error {
		for _, table := range allTables {
			if err := txn.Set([]byte(tablesKeyPrefix+table), []byte("1")); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	logger.Info("repo: created %d tables", len(allTables))
	return nil
}

// DropDataBase implements MdsRepo.
func (r *Repo) DropDataBase(ctx context.Context) error {
	start := []byte(keyPrefix)
	end := kv.PrefixEnd(start)

	dropped := 0
	err := r.engine.Update(ctx, func(txn kv.Txn) error {
		var keys [][]byte
		if err := txn.Iterate(start, end, func(key, _ []byte) error {
			keys = append(keys, key)
			return nil
		}); err != nil {
			return err
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		dropped = len(keys)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}
	logger.Info("repo: dropped database (%d keys)", dropped)
	return nil
}

// TableStat summarises one table.
type TableStat struct {
	Name    string
	Created bool
	Rows    int
}

// TableStats returns every table in creation order with its row count, in
// one consistent view.
func (r *Repo) TableStats(ctx context.Context) ([]TableStat, error) {
	stats := make([]TableStat, 0, len(allTables))
	err := r.engine.View(ctx, func(txn kv.Txn) error {
		for _, name := range allTables {
			created, err := kv.Exists(txn, []byte(tablesKeyPrefix+name))
			if err != nil {
				return err
			}
			stat := TableStat{Name: name, Created: created}
			prefix := []byte(keyPrefix + name + "/")
			if err := txn.Iterate(prefix, kv.PrefixEnd(prefix), func(_, _ []byte) error {
				stat.Rows++
				return nil
			}); err != nil {
				return err
			}
			stats = append(stats, stat)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read table stats: %w", err)
	}
	return stats, nil
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// Table is one repository table of rows of type T.
type Table[T Item] struct {
	engine kv.Engine
	name   string
	prefix []byte
}

func newTable[T Item](engine kv.Engine, name string) *Table[T] {
	return &Table[T]{
		engine: engine,
		name:   name,
		prefix: []byte(keyPrefix + name + "/"),
	}
}

// Name returns the table name.
func (t *Table[T]) Name() string {
	return t.name
}

func (t *Table[T]) rowKey(key string) []byte {
	return append(append([]byte(nil), t.prefix...), key...)
}

func (t *Table[T]) checkTable(txn kv.Txn) error {
	found, err := kv.Exists(txn, []byte(tablesKeyPrefix+t.name))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrTableNotFound, t.name)
	}
	return nil
}

func (t *Table[T]) write(ctx context.Context, item T, mustExist bool) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode %s row: %w", t.name, err)
	}

	key := t.rowKey(item.RepoKey())
	return t.engine.Update(ctx, func(txn kv.Txn) error {
		if err := t.checkTable(txn); err != nil {
			return err
		}
		found, err := kv.Exists(txn, key)
		if err != nil {
			return err
		}
		switch {
		case mustExist && !found:
			return fmt.Errorf("%w: %s %s", ErrItemNotFound, t.name, item.RepoKey())
		case !mustExist && found:
			return fmt.Errorf("%w: %s %s", ErrItemExists, t.name, item.RepoKey())
		}
		return txn.Set(key, data)
	})
}

// Insert adds a row, failing with ErrItemExists if its key is taken.
func (t *Table[T]) Insert(ctx context.Context, item T) error {
	return t.write(ctx, item, false)
}

// Update replaces an existing row, failing with ErrItemNotFound if absent.
func (t *Table[T]) Update(ctx context.Context, item T) error {
	return t.write(ctx, item, true)
}

// Delete removes the row at key, failing with ErrItemNotFound if absent.
func (t *Table[T]) Delete(ctx context.Context, key string) error {
	k := t.rowKey(key)
	return t.engine.Update(ctx, func(txn kv.Txn) error {
		if err := t.checkTable(txn); err != nil {
			return err
		}
		found, err := kv.Exists(txn, k)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s %s", ErrItemNotFound, t.name, key)
		}
		return txn.Delete(k)
	})
}

// Query returns the row at key, or ErrItemNotFound.
func (t *Table[T]) Query(ctx context.Context, key string) (*T, error) {
	var item T
	err := t.engine.View(ctx, func(txn kv.Txn) error {
		if err := t.checkTable(txn); err != nil {
			return err
		}
		data, err := txn.Get(t.rowKey(key))
		if errors.Is(err, kv.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s %s", ErrItemNotFound, t.name, key)
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &item); err != nil {
			return fmt.Errorf("failed to decode %s row %s: %w", t.name, key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Load returns every row in primary key order.
func (t *Table[T]) Load(ctx context.Context) ([]T, error) {
	items := make([]T, 0)
	err := t.engine.View(ctx, func(txn kv.Txn) error {
		if err := t.checkTable(txn); err != nil {
			return err
		}
		return txn.Iterate(t.prefix, kv.PrefixEnd(t.prefix), func(key, value []byte) error {
			var item T
			if err := json.Unmarshal(value, &item); err != nil {
				return fmt.Errorf("failed to decode %s row %s: %w", t.name, key, err)
			}
			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
