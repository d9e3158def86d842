package economy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/game"
	"github.com/tolelom/purgechain/internal/testutil"
	"github.com/tolelom/purgechain/vm"
	"github.com/tolelom/purgechain/vm/modules/economy"
	"github.com/tolelom/purgechain/wallet"
)

const chainID = "purge-test"

func setup(t *testing.T) (core.State, *vm.Executor) {
	t.Helper()
	state := testutil.NewStateDB()
	params := game.DefaultParams()
	return state, vm.NewExecutor(state, nil, &params)
}

func run(t *testing.T, exec *vm.Executor, tx *core.Transaction) *core.Receipt {
	t.Helper()
	block := core.NewBlock(1, "0000", tx.From, []*core.Transaction{tx})
	r, err := exec.ExecuteTx(block, tx)
	require.NoError(t, err)
	return r
}

func TestTransferCoin(t *testing.T) {
	state, exec := setup(t)
	alice, _ := wallet.Generate()
	bob, _ := wallet.Generate()
	require.NoError(t, state.SetAccount(&core.Account{Address: alice.PubKey(), Balance: 50, Coin: 400}))

	tx, err := alice.TransferCoin(chainID, bob.PubKey(), 150, 0, 0)
	require.NoError(t, err)
	r := run(t, exec, tx)
	require.Equal(t, core.ReceiptOK, r.Status, r.Error)

	a, _ := state.GetAccount(alice.PubKey())
	b, _ := state.GetAccount(bob.PubKey())
	assert.Equal(t, uint64(250), a.Coin)
	assert.Equal(t, uint64(50), a.Balance, "native balance untouched")
	assert.Equal(t, uint64(150), b.Coin)
}

func TestTransferFailures(t *testing.T) {
	state, exec := setup(t)
	alice, _ := wallet.Generate()
	require.NoError(t, state.SetAccount(&core.Account{Address: alice.PubKey(), Balance: 50}))

	self, err := alice.Transfer(chainID, alice.PubKey(), 10, 0, 0)
	require.NoError(t, err)
	r := run(t, exec, self)
	assert.Equal(t, core.ReceiptFailed, r.Status)
	assert.Equal(t, "failed", r.Code)

	other, _ := wallet.Generate()
	tooMuch, err := alice.TransferCoin(chainID, other.PubKey(), 1, 1, 0)
	require.NoError(t, err)
	r = run(t, exec, tooMuch)
	assert.Equal(t, "insufficient", r.Code)
}

func TestCoinsLedger(t *testing.T) {
	state := testutil.NewStateDB()
	coins := economy.NewCoins(state)

	require.NoError(t, coins.Mint("p1", 70))
	require.NoError(t, coins.Mint("p1", 0))
	require.NoError(t, coins.Burn("p1", 20))
	bal, err := coins.BalanceOf("p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), bal)

	assert.ErrorIs(t, coins.Burn("p1", 51), game.ErrInsufficient)
}

func TestTreasuryCustody(t *testing.T) {
	state := testutil.NewStateDB()
	tr := economy.NewTreasury(state, "purge:custody")
	require.NoError(t, state.SetAccount(&core.Account{Address: "p1", Balance: 1000}))

	require.NoError(t, tr.Collect("p1", 600))
	assert.ErrorIs(t, tr.Collect("p1", 401), game.ErrInsufficient)

	held, err := tr.CustodyBalance()
	require.NoError(t, err)
	assert.Equal(t, uint64(600), held)

	require.NoError(t, tr.Pay("p2", 250))
	p2, _ := state.GetAccount("p2")
	assert.Equal(t, uint64(250), p2.Balance)

	err = tr.Pay("p2", 351)
	assert.ErrorIs(t, err, game.ErrInvariantBroken, "custody shortfall is a broken ledger")
	assert.True(t, game.IsFatal(err))
}
