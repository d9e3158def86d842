package vm_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/game"
	"github.com/tolelom/purgechain/internal/testutil"
	"github.com/tolelom/purgechain/storage"
	"github.com/tolelom/purgechain/vm"
	"github.com/tolelom/purgechain/wallet"

	_ "github.com/tolelom/purgechain/vm/modules/economy"
)

const chainID = "purge-test"

const txBreakLedger core.TxType = "test_break_ledger"

func init() {
	vm.Register(txBreakLedger, func(ctx *vm.Context, _ json.RawMessage) error {
		acc, err := ctx.State.GetAccount(ctx.Tx.From)
		if err != nil {
			return err
		}
		acc.Balance = 0
		if err := ctx.State.SetAccount(acc); err != nil {
			return err
		}
		return fmt.Errorf("%w: test", game.ErrInvariantBroken)
	})
}

type fixture struct {
	state   *storage.StateDB
	exec    *vm.Executor
	emitted []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{state: testutil.NewStateDB()}
	em := events.NewEmitter()
	for _, typ := range []events.EventType{events.EventTokenTransfer, events.EventTxExecuted} {
		em.Subscribe(typ, func(ev events.Event) { f.emitted = append(f.emitted, ev) })
	}
	params := game.DefaultParams()
	f.exec = vm.NewExecutor(f.state, em, &params)
	return f
}

func (f *fixture) fund(t *testing.T, w *wallet.Wallet, balance uint64) {
	t.Helper()
	require.NoError(t, f.state.SetAccount(&core.Account{Address: w.PubKey(), Balance: balance}))
}

func (f *fixture) balance(t *testing.T, addr string) *core.Account {
	t.Helper()
	acc, err := f.state.GetAccount(addr)
	require.NoError(t, err)
	return acc
}

func (f *fixture) types() []events.EventType {
	out := make([]events.EventType, 0, len(f.emitted))
	for _, ev := range f.emitted {
		out = append(out, ev.Type)
	}
	return out
}

func mustGenerate(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := wallet.Generate()
	require.NoError(t, err)
	return w
}

func TestExecuteTxSuccess(t *testing.T) {
	f := newFixture(t)
	alice, bob := mustGenerate(t), mustGenerate(t)
	f.fund(t, alice, 1000)

	tx, err := alice.Transfer(chainID, bob.PubKey(), 300, 0, 10)
	require.NoError(t, err)
	block := core.NewBlock(1, "0000", alice.PubKey(), []*core.Transaction{tx})

	r, err := f.exec.ExecuteTx(block, tx)
	require.NoError(t, err)
	assert.Equal(t, core.ReceiptOK, r.Status)
	assert.Empty(t, r.Code)

	a := f.balance(t, alice.PubKey())
	assert.Equal(t, uint64(690), a.Balance)
	assert.Equal(t, uint64(1), a.Nonce)
	assert.Equal(t, uint64(300), f.balance(t, bob.PubKey()).Balance)

	stored, err := f.state.GetReceipt(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, r, stored)
	assert.Equal(t, []events.EventType{events.EventTokenTransfer, events.EventTxExecuted}, f.types())
}

func TestFailedTxKeepsFeeAndDropsEvents(t *testing.T) {
	f := newFixture(t)
	alice, bob := mustGenerate(t), mustGenerate(t)
	f.fund(t, alice, 100)

	tx, err := alice.Transfer(chainID, bob.PubKey(), 500, 0, 10)
	require.NoError(t, err)
	block := core.NewBlock(1, "0000", alice.PubKey(), []*core.Transaction{tx})

	r, err := f.exec.ExecuteTx(block, tx)
	require.NoError(t, err)
	assert.Equal(t, core.ReceiptFailed, r.Status)
	assert.Equal(t, "insufficient", r.Code)
	assert.NotEmpty(t, r.Error)

	a := f.balance(t, alice.PubKey())
	assert.Equal(t, uint64(90), a.Balance, "fee is charged")
	assert.Equal(t, uint64(1), a.Nonce, "nonce is consumed")
	assert.Zero(t, f.balance(t, bob.PubKey()).Balance)
	assert.Equal(t, []events.EventType{events.EventTxExecuted}, f.types())
	assert.Equal(t, core.ReceiptFailed, f.emitted[0].Data["status"])
}

func TestErrorCodes(t *testing.T) {
	f := newFixture(t)
	alice := mustGenerate(t)
	f.fund(t, alice, 100)
	block := core.NewBlock(1, "0000", alice.PubKey(), nil)

	bad, err := alice.NewTx(chainID, core.TxTransfer, 0, 0, map[string]any{"to": "nothex", "amount": 0})
	require.NoError(t, err)
	r, err := f.exec.ExecuteTx(block, bad)
	require.NoError(t, err)
	assert.Equal(t, "bad_payload", r.Code)
	assert.Contains(t, r.Error, "amount: must be greater than 0")

	unknown, err := alice.NewTx(chainID, core.TxType("nope"), 1, 0, struct{}{})
	require.NoError(t, err)
	r, err = f.exec.ExecuteTx(block, unknown)
	require.NoError(t, err)
	assert.Equal(t, "unknown_type", r.Code)
}

func TestRejectedTxLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	alice, bob := mustGenerate(t), mustGenerate(t)
	f.fund(t, alice, 100)

	wrongNonce, err := alice.Transfer(chainID, bob.PubKey(), 10, 5, 0)
	require.NoError(t, err)
	noFee, err := bob.Transfer(chainID, alice.PubKey(), 10, 0, 1)
	require.NoError(t, err)
	forged, err := alice.Transfer(chainID, bob.PubKey(), 10, 0, 0)
	require.NoError(t, err)
	forged.Payload = json.RawMessage(`{"to":"` + bob.PubKey() + `","amount":99}`)
	good, err := alice.Transfer(chainID, bob.PubKey(), 10, 0, 0)
	require.NoError(t, err)

	block := core.NewBlock(1, "0000", alice.PubKey(), []*core.Transaction{wrongNonce, noFee, forged, good})
	rejected, err := f.exec.ExecuteBlock(block)
	require.NoError(t, err)
	assert.Equal(t, []*core.Transaction{wrongNonce, noFee, forged}, rejected)

	for _, tx := range rejected {
		_, err := f.state.GetReceipt(tx.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
	}
	assert.Equal(t, uint64(90), f.balance(t, alice.PubKey()).Balance)
	assert.Equal(t, uint64(10), f.balance(t, bob.PubKey()).Balance)

	_, err = f.exec.ExecuteTx(block, wrongNonce)
	assert.ErrorIs(t, err, vm.ErrTxRejected)
}

func TestFatalTxRevertsBlock(t *testing.T) {
	f := newFixture(t)
	alice, bob := mustGenerate(t), mustGenerate(t)
	f.fund(t, alice, 100)
	f.fund(t, bob, 100)

	pay, err := alice.Transfer(chainID, bob.PubKey(), 40, 0, 0)
	require.NoError(t, err)
	breaker, err := bob.NewTx(chainID, txBreakLedger, 0, 0, struct{}{})
	require.NoError(t, err)

	block := core.NewBlock(1, "0000", alice.PubKey(), []*core.Transaction{pay, breaker})
	_, err = f.exec.ExecuteBlock(block)
	require.Error(t, err)

	var be *vm.BlockError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, breaker.ID, be.TxID)
	assert.True(t, game.IsFatal(err))

	assert.Equal(t, uint64(100), f.balance(t, alice.PubKey()).Balance)
	assert.Equal(t, uint64(100), f.balance(t, bob.PubKey()).Balance)
	assert.Zero(t, f.balance(t, alice.PubKey()).Nonce)
	assert.Empty(t, f.emitted, "no events from a reverted block")
}

func TestSimulateRollsBack(t *testing.T) {
	f := newFixture(t)
	alice, bob := mustGenerate(t), mustGenerate(t)
	f.fund(t, alice, 100)

	tx, err := alice.Transfer(chainID, bob.PubKey(), 60, 0, 1)
	require.NoError(t, err)
	block := core.NewBlock(1, "0000", alice.PubKey(), nil)

	r, err := f.exec.Simulate(block, tx)
	require.NoError(t, err)
	assert.Equal(t, core.ReceiptOK, r.Status)

	a := f.balance(t, alice.PubKey())
	assert.Equal(t, uint64(100), a.Balance)
	assert.Zero(t, a.Nonce)
	_, err = f.state.GetReceipt(tx.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, f.emitted)
}

func TestRegisteredTypes(t *testing.T) {
	types := vm.RegisteredTypes()
	assert.Contains(t, types, core.TxTransfer)
	assert.Contains(t, types, core.TxTransferCoin)
	assert.True(t, sort.SliceIsSorted(types, func(i, j int) bool { return types[i] < types[j] }))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	r := vm.NewRegistry()
	h := func(*vm.Context, json.RawMessage) error { return nil }
	r.Register(core.TxClaim, h)
	assert.Panics(t, func() { r.Register(core.TxClaim, h) })
}

func TestHandlerPanicIsFatal(t *testing.T) {
	r := vm.NewRegistry()
	r.Register(core.TxFlip, func(*vm.Context, json.RawMessage) error { panic("mulDiv overflow") })

	var err error
	require.NotPanics(t, func() { err = r.Execute(core.TxFlip, &vm.Context{}, nil) })
	assert.True(t, game.IsFatal(err))
	assert.Contains(t, err.Error(), "mulDiv overflow")
}
