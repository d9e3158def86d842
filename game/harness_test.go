package game

import (
	"encoding/binary"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/internal/testutil"
	"github.com/tolelom/purgechain/storage"
)

var testOracle = strings.Repeat("0a", 32)

type fakeCoins struct{ bal map[string]uint64 }

func (c *fakeCoins) Mint(to string, amount uint64) error {
	c.bal[to] += amount
	return nil
}

func (c *fakeCoins) Burn(from string, amount uint64) error {
	if c.bal[from] < amount {
		return fmt.Errorf("%w: coin %d < %d", ErrInsufficient, c.bal[from], amount)
	}
	c.bal[from] -= amount
	return nil
}

func (c *fakeCoins) BalanceOf(addr string) (uint64, error) { return c.bal[addr], nil }

type fakeTreasury struct {
	bal     map[string]uint64
	custody uint64
}

func (t *fakeTreasury) Collect(from string, amount uint64) error {
	if t.bal[from] < amount {
		return fmt.Errorf("%w: balance %d < %d", ErrInsufficient, t.bal[from], amount)
	}
	t.bal[from] -= amount
	t.custody += amount
	return nil
}

func (t *fakeTreasury) Pay(to string, amount uint64) error {
	if t.custody < amount {
		return fmt.Errorf("custody short: %d < %d", t.custody, amount)
	}
	t.custody -= amount
	t.bal[to] += amount
	return nil
}

func (t *fakeTreasury) CustodyBalance() (uint64, error) { return t.custody, nil }

type fakeAssets struct{ items map[string]*core.Asset }

func (a *fakeAssets) Mint(id, templateID, owner string, props map[string]any) error {
	if _, ok := a.items[id]; ok {
		return fmt.Errorf("asset %s exists", id)
	}
	a.items[id] = &core.Asset{ID: id, TemplateID: templateID, Owner: owner, Properties: props, Tradeable: true}
	return nil
}

func (a *fakeAssets) Get(id string) (*core.Asset, error) {
	it, ok := a.items[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (a *fakeAssets) Transfer(id, to string) error {
	it, ok := a.items[id]
	if !ok {
		return core.ErrNotFound
	}
	it.Owner = to
	return nil
}

func (a *fakeAssets) Burn(id string) error {
	if _, ok := a.items[id]; !ok {
		return core.ErrNotFound
	}
	delete(a.items, id)
	return nil
}

func (a *fakeAssets) SetTradeable(id string, tradeable bool) error {
	it, ok := a.items[id]
	if !ok {
		return core.ErrNotFound
	}
	it.Tradeable = tradeable
	return nil
}

type fakeOracle struct{ requests []uint64 }

func (o *fakeOracle) RequestRandomness(id uint64) error {
	o.requests = append(o.requests, id)
	return nil
}

type fakeAffiliates map[string]string

func (f fakeAffiliates) CodeOwner(code string) (string, error) { return f[code], nil }

type recorder struct{ kinds []string }

func (r *recorder) Notify(kind string, _ map[string]any) { r.kinds = append(r.kinds, kind) }

func (r *recorder) count(kind string) int {
	n := 0
	for _, k := range r.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

type harness struct {
	t        *testing.T
	state    *storage.StateDB
	store    *Store
	params   Params
	engine   *Engine
	coins    *fakeCoins
	treasury *fakeTreasury
	assets   *fakeAssets
	oracle   *fakeOracle
	affs     fakeAffiliates
	events   *recorder
	words    uint64
	budget   int
	results  []*AdvanceResult
}

func newHarness(t *testing.T, tweak ...func(*Params)) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		state:    testutil.NewStateDB(),
		params:   DefaultParams(),
		coins:    &fakeCoins{bal: map[string]uint64{}},
		treasury: &fakeTreasury{bal: map[string]uint64{}},
		assets:   &fakeAssets{items: map[string]*core.Asset{}},
		oracle:   &fakeOracle{},
		affs:     fakeAffiliates{},
		events:   &recorder{},
	}
	h.params.OracleAddress = testOracle
	for _, f := range tweak {
		f(&h.params)
	}
	h.store = NewStore(h.state)
	h.engine = NewEngine(h.store, &h.params, Deps{
		Coins:      h.coins,
		Treasury:   h.treasury,
		Assets:     h.assets,
		Oracle:     h.oracle,
		Affiliates: h.affs,
		Notifier:   h.events,
	})
	return h
}

// nextWord is a deterministic stand-in for the oracle.
func (h *harness) nextWord() Word {
	h.words++
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], h.words)
	return Keccak([]byte("test-oracle"), b[:])
}

func (h *harness) fulfill(w Word) {
	h.t.Helper()
	r, err := h.store.Rng()
	require.NoError(h.t, err)
	require.NoError(h.t, h.engine.FulfillRandomness(testOracle, r.RequestID, w))
}

// advance runs one Advance and answers any randomness request it made.
func (h *harness) advance(now int64) (*AdvanceResult, error) {
	res, err := h.engine.Advance(now, h.budget)
	if err == nil && res.Status == StatusRngRequested {
		h.fulfill(h.nextWord())
	}
	return res, err
}

// drive advances until the engine reports a retryable error, checking
// conservation after every step, and returns the successful results.
func (h *harness) drive(now int64) []*AdvanceResult {
	h.t.Helper()
	var out []*AdvanceResult
	for i := 0; i < 10_000; i++ {
		res, err := h.advance(now)
		if err != nil {
			require.True(h.t, IsRetryable(err), "unexpected error: %v", err)
			return out
		}
		h.audit()
		out = append(out, res)
		h.results = append(h.results, res)
	}
	h.t.Fatal("engine never blocked")
	return nil
}

// driveTo advances day by day until the level state matches.
func (h *harness) driveTo(now int64, level uint32, state GameState, phase uint8) int64 {
	h.t.Helper()
	for day := 0; day < 400; day++ {
		for i := 0; i < 10_000; i++ {
			ls := h.level()
			if ls.Level == level && ls.State == state && ls.Phase == phase {
				return now
			}
			res, err := h.advance(now)
			if err != nil {
				require.True(h.t, IsRetryable(err), "unexpected error: %v", err)
				break
			}
			h.audit()
			h.results = append(h.results, res)
		}
		now += h.params.DaySeconds
	}
	h.t.Fatalf("never reached level %d %s phase %d", level, state, phase)
	return now
}

func (h *harness) level() *LevelState {
	h.t.Helper()
	ls, err := h.store.LevelState()
	require.NoError(h.t, err)
	return ls
}

func (h *harness) pool() *PrizePool {
	h.t.Helper()
	p, err := h.store.Pool()
	require.NoError(h.t, err)
	return p
}

func (h *harness) audit() {
	h.t.Helper()
	require.NoError(h.t, h.engine.Audit(0))
}

// seedCarryover funds the pool's carryover as if a previous level had
// recycled amt.
func (h *harness) seedCarryover(amt uint64) {
	h.t.Helper()
	p := h.pool()
	p.Carryover += amt
	p.Funded += amt
	require.NoError(h.t, h.store.SetPool(p))
	h.treasury.custody += amt
}

func (h *harness) buy(player string, qty int, now int64) []string {
	h.t.Helper()
	h.treasury.bal[player] += uint64(qty) * h.params.PiecePrice
	ids, err := h.engine.Purchase(player, qty, "", fmt.Sprintf("tx-%s-%d-%d", player, now, len(h.assets.items)), now)
	require.NoError(h.t, err)
	return ids
}

func (h *harness) claimable(player string) uint64 {
	h.t.Helper()
	v, err := h.store.Claimable(player)
	require.NoError(h.t, err)
	return v
}

// settlement returns the settlement recorded for level during the run.
func (h *harness) settlement(level uint32) *Settlement {
	h.t.Helper()
	for _, r := range h.results {
		if r.Settlement != nil && r.Settlement.Level == level {
			return r.Settlement
		}
	}
	h.t.Fatalf("level %d was not settled", level)
	return nil
}
