package repo

import (
	"context"
	"testing"

	"github.com/marmos91/nameserver/pkg/kv"
	"github.com/marmos91/nameserver/pkg/kv/badger"
	"github.com/marmos91/nameserver/pkg/kv/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepos(t *testing.T) map[string]*Repo {
	engine, err := badger.Open(badger.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	return map[string]*Repo{
		"memory": New(memory.New()),
		"badger": New(engine),
	}
}

func TestTablesMustBeCreated(t *testing.T) {
	ctx := context.Background()
	for name, r := range newRepos(t) {
		t.Run(name, func(t *testing.T) {
			err := r.Zones().Insert(ctx, ZoneRepoItem{ZoneID: 1})
			assert.ErrorIs(t, err, ErrTableNotFound)

			require.NoError(t, r.CreateAllTables(ctx))
			require.NoError(t, r.Zones().Insert(ctx, ZoneRepoItem{ZoneID: 1}))
		})
	}
}

func TestChunkServerCRUD(t *testing.T) {
	ctx := context.Background()
	for name, r := range newRepos(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, r.CreateAllTables(ctx))
			table := r.ChunkServers()

			cs := ChunkServerRepoItem{ChunkServerID: 7, Token: "t", InternalHostIP: "10.0.0.1", Port: 8200, Capacity: 100}
			require.NoError(t, table.Insert(ctx, cs))
			assert.ErrorIs(t, table.Insert(ctx, cs), ErrItemExists)

			got, err := table.Query(ctx, ChunkServerKey(7))
			require.NoError(t, err)
			assert.Equal(t, cs, *got)

			cs.Used = 40
			require.NoError(t, table.Update(ctx, cs))
			got, err = table.Query(ctx, ChunkServerKey(7))
			require.NoError(t, err)
			assert.Equal(t, uint64(40), got.Used)

			require.NoError(t, table.Delete(ctx, ChunkServerKey(7)))
			_, err = table.Query(ctx, ChunkServerKey(7))
			assert.ErrorIs(t, err, ErrItemNotFound)
			assert.ErrorIs(t, table.Delete(ctx, ChunkServerKey(7)), ErrItemNotFound)
			assert.ErrorIs(t, table.Update(ctx, cs), ErrItemNotFound)
		})
	}
}

func TestLoadIsOrderedAndScopedToTable(t *testing.T) {
	ctx := context.Background()
	r := New(memory.New())
	require.NoError(t, r.CreateAllTables(ctx))

	for _, id := range []uint32{10, 2, 1} {
		require.NoError(t, r.Servers().Insert(ctx, ServerRepoItem{ServerID: id}))
	}
	require.NoError(t, r.Sessions().Insert(ctx, SessionRepoItem{SessionID: NewSessionID()}))

	servers, err := r.Servers().Load(ctx)
	require.NoError(t, err)
	var ids []uint32
	for _, s := range servers {
		ids = append(ids, s.ServerID)
	}
	assert.Equal(t, []uint32{1, 2, 10}, ids)

	sessions, err := r.Sessions().Load(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Len(t, sessions[0].SessionID, 36)
}

func TestCopySetKeyedByPool(t *testing.T) {
	ctx := context.Background()
	r := New(memory.New())
	require.NoError(t, r.CreateAllTables(ctx))

	require.NoError(t, r.CopySets().Insert(ctx, CopySetRepoItem{LogicalPoolID: 1, CopySetID: 1, Epoch: 1}))
	require.NoError(t, r.CopySets().Insert(ctx, CopySetRepoItem{LogicalPoolID: 2, CopySetID: 1, Epoch: 2}))

	got, err := r.CopySets().Query(ctx, CopySetKey(2, 1))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Epoch)
}

func TestDropDataBase(t *testing.T) {
	ctx := context.Background()
	engine := memory.New()
	r := New(engine)
	require.NoError(t, r.CreateAllTables(ctx))
	require.NoError(t, r.PhysicalPools().Insert(ctx, PhysicalPoolRepoItem{PhysicalPoolID: 1}))
	require.NoError(t, r.LogicalPools().Insert(ctx, LogicalPoolRepoItem{LogicalPoolID: 1, AvailFlag: true}))

	// unrelated keys survive
	require.NoError(t, engine.Update(ctx, func(txn kv.Txn) error {
		return txn.Set([]byte("01other"), []byte("x"))
	}))

	require.NoError(t, r.DropDataBase(ctx))

	_, err := r.PhysicalPools().Load(ctx)
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.Equal(t, 1, engine.Len())
}

func TestTableStats(t *testing.T) {
	ctx := context.Background()
	r := New(memory.New())

	stats, err := r.TableStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 7)
	assert.False(t, stats[0].Created)

	require.NoError(t, r.CreateAllTables(ctx))
	require.NoError(t, r.Zones().Insert(ctx, ZoneRepoItem{ZoneID: 1, ZoneName: "z1"}))
	require.NoError(t, r.Zones().Insert(ctx, ZoneRepoItem{ZoneID: 2, ZoneName: "z2"}))
	require.NoError(t, r.Sessions().Insert(ctx, SessionRepoItem{SessionID: NewSessionID()}))

	stats, err = r.TableStats(ctx)
	require.NoError(t, err)
	rows := map[string]int{}
	for _, s := range stats {
		assert.True(t, s.Created, s.Name)
		rows[s.Name] = s.Rows
	}
	assert.Equal(t, 2, rows[ZoneTable])
	assert.Equal(t, 1, rows[SessionTable])
	assert.Equal(t, 0, rows[ChunkServerTable])
}
