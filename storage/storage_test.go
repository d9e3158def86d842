package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/storage"
)

func openLevel(t *testing.T) *storage.LevelDB {
	t.Helper()
	db, err := storage.NewLevelDB(filepath.Join(t.TempDir(), "chain"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSnapshotRevert(t *testing.T) {
	s := storage.NewStateDB(openLevel(t))
	require.NoError(t, s.SetAccount(&core.Account{Address: "a", Balance: 10}))

	outer, err := s.Snapshot()
	require.NoError(t, err)
	require.NoError(t, s.SetAccount(&core.Account{Address: "a", Balance: 20}))
	require.NoError(t, s.SetGameData("level", []byte{1}))

	inner, err := s.Snapshot()
	require.NoError(t, err)
	require.NoError(t, s.DeleteGameData("level"))
	require.NoError(t, s.RevertToSnapshot(inner))

	v, err := s.GetGameData("level")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, v)

	require.NoError(t, s.RevertToSnapshot(outer))
	acc, err := s.GetAccount("a")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), acc.Balance)
	_, err = s.GetGameData("level")
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Error(t, s.RevertToSnapshot(outer), "snapshot consumed")
}

func TestRootSurvivesCommit(t *testing.T) {
	db := openLevel(t)
	s := storage.NewStateDB(db)
	empty := s.ComputeRoot()

	require.NoError(t, s.SetAccount(&core.Account{Address: "a", Balance: 5}))
	require.NoError(t, s.SetGameData("pool", []byte(`{"next":5}`)))
	root := s.ComputeRoot()
	assert.NotEqual(t, empty, root)

	require.NoError(t, s.Commit())
	assert.Equal(t, root, s.ComputeRoot(), "flushing does not change the root")

	reopened := storage.NewStateDB(db)
	assert.Equal(t, root, reopened.ComputeRoot())
	acc, err := reopened.GetAccount("a")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), acc.Balance)

	require.NoError(t, reopened.DeleteGameData("pool"))
	assert.NotEqual(t, root, reopened.ComputeRoot())
}

func TestMissingAccountIsZero(t *testing.T) {
	s := storage.NewStateDB(openLevel(t))
	acc, err := s.GetAccount("nobody")
	require.NoError(t, err)
	assert.Equal(t, &core.Account{Address: "nobody"}, acc)

	_, err = s.GetReceipt("none")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLevelBlockStore(t *testing.T) {
	bs := storage.NewLevelBlockStore(openLevel(t))
	tip, err := bs.GetTip()
	require.NoError(t, err)
	assert.Empty(t, tip)

	block := core.NewBlock(4, "prev", "proposer", nil)
	block.Hash = block.ComputeHash()
	require.NoError(t, bs.CommitBlock(block))

	tip, err = bs.GetTip()
	require.NoError(t, err)
	assert.Equal(t, block.Hash, tip)

	got, err := bs.GetBlockByHeight(4)
	require.NoError(t, err)
	assert.Equal(t, block.Header, got.Header)

	_, err = bs.GetBlock("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
