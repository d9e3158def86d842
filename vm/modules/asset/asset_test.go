package asset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/game"
	"github.com/tolelom/purgechain/internal/testutil"
	"github.com/tolelom/purgechain/vm"
	"github.com/tolelom/purgechain/vm/modules/asset"
	"github.com/tolelom/purgechain/wallet"
)

func TestEnsureTemplates(t *testing.T) {
	state := testutil.NewStateDB()
	require.NoError(t, asset.EnsureTemplates(state, "genesis"))

	tmpl, err := state.GetTemplate(game.TemplateTrophy)
	require.NoError(t, err)
	assert.Equal(t, "genesis", tmpl.Creator)

	// A second call leaves the existing registration alone.
	require.NoError(t, asset.EnsureTemplates(state, "someone-else"))
	tmpl, err = state.GetTemplate(game.TemplateGamepiece)
	require.NoError(t, err)
	assert.Equal(t, "genesis", tmpl.Creator)
}

func TestLedger(t *testing.T) {
	state := testutil.NewStateDB()
	require.NoError(t, asset.EnsureTemplates(state, "genesis"))
	block := core.NewBlock(3, "0000", "proposer", nil)
	ctx := &vm.Context{State: state, Block: block, Tx: &core.Transaction{ID: "tx-1"}}
	l := asset.NewLedger(ctx)

	require.NoError(t, l.Mint("piece-1", game.TemplateGamepiece, "p1", map[string]any{"level": 1}))
	a, err := l.Get("piece-1")
	require.NoError(t, err)
	assert.Equal(t, "p1", a.Owner)
	assert.True(t, a.Tradeable)
	assert.Equal(t, block.Header.Timestamp, a.MintedAt)

	err = l.Mint("piece-1", game.TemplateGamepiece, "p2", nil)
	assert.ErrorIs(t, err, game.ErrInvariantBroken)
	assert.Error(t, l.Mint("piece-2", "sword", "p1", nil), "unknown template")

	require.NoError(t, l.Transfer("piece-1", "p2"))
	require.NoError(t, l.SetTradeable("piece-1", false))
	a, _ = l.Get("piece-1")
	assert.Equal(t, "p2", a.Owner)
	assert.False(t, a.Tradeable)

	require.NoError(t, l.Burn("piece-1"))
	_, err = l.Get("piece-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTransferAssetTx(t *testing.T) {
	state := testutil.NewStateDB()
	params := game.DefaultParams()
	exec := vm.NewExecutor(state, nil, &params)
	owner, _ := wallet.Generate()
	other, _ := wallet.Generate()
	require.NoError(t, state.SetAsset(&core.Asset{ID: "trophy-1", TemplateID: game.TemplateTrophy, Owner: owner.PubKey(), Tradeable: true}))
	require.NoError(t, state.SetAsset(&core.Asset{ID: "trophy-2", TemplateID: game.TemplateTrophy, Owner: owner.PubKey()}))

	send := func(w *wallet.Wallet, id, to string, nonce uint64) *core.Receipt {
		tx, err := w.NewTx("purge-test", core.TxTransferAsset, nonce, 0, core.TransferAssetPayload{AssetID: id, To: to})
		require.NoError(t, err)
		r, err := exec.ExecuteTx(core.NewBlock(1, "0000", w.PubKey(), nil), tx)
		require.NoError(t, err)
		return r
	}

	assert.Equal(t, core.ReceiptFailed, send(other, "trophy-1", other.PubKey(), 0).Status, "not the owner")
	assert.Equal(t, core.ReceiptFailed, send(owner, "trophy-2", other.PubKey(), 0).Status, "staked trophy")

	r := send(owner, "trophy-1", other.PubKey(), 1)
	require.Equal(t, core.ReceiptOK, r.Status, r.Error)
	a, _ := state.GetAsset("trophy-1")
	assert.Equal(t, other.PubKey(), a.Owner)
}
