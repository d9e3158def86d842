package purge_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/game"
	"github.com/tolelom/purgechain/internal/testutil"
	"github.com/tolelom/purgechain/vm"
	"github.com/tolelom/purgechain/vm/modules/asset"
	"github.com/tolelom/purgechain/vm/modules/economy"
	"github.com/tolelom/purgechain/wallet"

	_ "github.com/tolelom/purgechain/vm/modules/purge"
)

const chainID = "purge-test"

type chain struct {
	t      *testing.T
	state  core.State
	exec   *vm.Executor
	params game.Params
	nonce  map[string]uint64

	rngRequests []uint64
	gameKinds   []string
}

func newChain(t *testing.T, oracle *wallet.Wallet) *chain {
	t.Helper()
	c := &chain{t: t, state: testutil.NewStateDB(), nonce: map[string]uint64{}}
	c.params = game.DefaultParams()
	c.params.OracleAddress = oracle.PubKey()
	c.params.InitialFundingTarget = 2 * c.params.PiecePrice
	require.NoError(t, asset.EnsureTemplates(c.state, "genesis"))

	em := events.NewEmitter()
	em.Subscribe(events.EventRngRequest, func(ev events.Event) {
		c.rngRequests = append(c.rngRequests, ev.Data["request_id"].(uint64))
	})
	em.Subscribe(events.EventGame, func(ev events.Event) {
		c.gameKinds = append(c.gameKinds, ev.Data["kind"].(string))
	})
	c.exec = vm.NewExecutor(c.state, em, &c.params)
	return c
}

func (c *chain) send(w *wallet.Wallet, build func(nonce uint64) (*core.Transaction, error)) *core.Receipt {
	c.t.Helper()
	tx, err := build(c.nonce[w.PubKey()])
	require.NoError(c.t, err)
	c.nonce[w.PubKey()]++
	r, err := c.exec.ExecuteTx(core.NewBlock(1, "0000", w.PubKey(), []*core.Transaction{tx}), tx)
	require.NoError(c.t, err)
	return r
}

func (c *chain) advance(w *wallet.Wallet) *core.Receipt {
	return c.send(w, func(n uint64) (*core.Transaction, error) { return w.Advance(chainID, 0, n, 0) })
}

func (c *chain) levelState() *game.LevelState {
	ls, err := game.NewStore(c.state).LevelState()
	require.NoError(c.t, err)
	return ls
}

func ok(t *testing.T, r *core.Receipt) {
	t.Helper()
	require.Equal(t, core.ReceiptOK, r.Status, "%s: %s", r.Code, r.Error)
}

func TestLevelOneThroughMapJackpot(t *testing.T) {
	oracle, _ := wallet.Generate()
	player, _ := wallet.Generate()
	c := newChain(t, oracle)
	require.NoError(t, c.state.SetAccount(&core.Account{Address: player.PubKey(), Balance: 10_000}))

	// start, endgame, open, sweep, stakes
	for i := 0; i < 5; i++ {
		ok(t, c.advance(player))
	}
	ls := c.levelState()
	require.Equal(t, uint32(1), ls.Level)
	require.Equal(t, game.StatePurchasing, ls.State)
	require.Equal(t, game.PhaseAccumulate, ls.Phase)

	trophy, err := game.NewStore(c.state).TrophyAt(1, game.TrophyLevel)
	require.NoError(t, err)
	require.NotNil(t, trophy)
	a, err := c.state.GetAsset(trophy.ID)
	require.NoError(t, err)
	assert.Equal(t, c.params.Custody, a.Owner, "placeholders sit in custody")

	r := c.advance(player)
	assert.Equal(t, "not_time_yet", r.Code)

	ok(t, c.send(player, func(n uint64) (*core.Transaction, error) { return player.Purchase(chainID, 2, "", n, 0) }))
	acc, _ := c.state.GetAccount(player.PubKey())
	assert.Equal(t, uint64(8_000), acc.Balance)
	vault, _ := c.state.GetAccount(c.params.Custody)
	assert.Equal(t, uint64(2_000), vault.Balance)

	ok(t, c.advance(player)) // funded
	ok(t, c.advance(player)) // map jackpot asks for randomness
	require.Equal(t, []uint64{1}, c.rngRequests)
	assert.Contains(t, c.gameKinds, game.EventRngRequested)

	r = c.advance(player)
	assert.Equal(t, "rng_not_ready", r.Code)
	assert.True(t, game.IsRetryableCode(r.Code))

	word := strings.Repeat("5a", 32)
	r = c.send(player, func(n uint64) (*core.Transaction, error) { return player.FulfillRng(chainID, 1, word, n, 0) })
	assert.Equal(t, "unauthorized", r.Code)
	r = c.send(oracle, func(n uint64) (*core.Transaction, error) { return oracle.FulfillRng(chainID, 2, word, n, 0) })
	assert.Equal(t, "rng_request_mismatch", r.Code)
	ok(t, c.send(oracle, func(n uint64) (*core.Transaction, error) { return oracle.FulfillRng(chainID, 1, word, n, 0) }))

	ok(t, c.advance(player))
	ls = c.levelState()
	assert.Equal(t, game.PhaseRecycle, ls.Phase)
	assert.Contains(t, c.gameKinds, game.EventMapJackpot)

	eng := game.NewEngine(game.NewStore(c.state), &c.params, game.Deps{Treasury: economy.NewTreasury(c.state, c.params.Custody)})
	require.NoError(t, eng.Audit(0))
}

func TestPurchaseWithAffiliate(t *testing.T) {
	oracle, _ := wallet.Generate()
	player, _ := wallet.Generate()
	ref, _ := wallet.Generate()
	c := newChain(t, oracle)
	require.NoError(t, c.state.SetAccount(&core.Account{Address: player.PubKey(), Balance: 10_000}))
	for i := 0; i < 5; i++ {
		ok(t, c.advance(player))
	}

	r := c.send(player, func(n uint64) (*core.Transaction, error) { return player.Purchase(chainID, 1, "NOBODY", n, 0) })
	assert.Equal(t, "invalid_purchase", r.Code)
	acc, _ := c.state.GetAccount(player.PubKey())
	assert.Equal(t, uint64(10_000), acc.Balance, "failed purchase is reverted")

	ok(t, c.send(ref, func(n uint64) (*core.Transaction, error) { return ref.RegisterAffiliate(chainID, "ref01", n, 0) }))
	ok(t, c.send(player, func(n uint64) (*core.Transaction, error) { return player.Purchase(chainID, 1, "REF01", n, 0) }))

	top, err := game.NewStore(c.state).LeaderboardTop(game.BoardAffiliate, 1, 1)
	require.NoError(t, err)
	require.NotEmpty(t, top)
	assert.Equal(t, ref.PubKey(), top[0].Player)
	assert.Equal(t, c.params.PiecePrice, top[0].Score)
}

func TestCallsBeforeStart(t *testing.T) {
	oracle, _ := wallet.Generate()
	player, _ := wallet.Generate()
	c := newChain(t, oracle)

	r := c.send(player, func(n uint64) (*core.Transaction, error) { return player.Claim(chainID, n, 0) })
	assert.Equal(t, "insufficient", r.Code)

	r = c.send(player, func(n uint64) (*core.Transaction, error) { return player.Stake(chainID, 5_000, 3, 4, n, 0) })
	assert.Equal(t, "phase_closed", r.Code, "no staking before the game starts")
}
