package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/game"
	"github.com/tolelom/purgechain/indexer"
	"github.com/tolelom/purgechain/internal/testutil"
	"github.com/tolelom/purgechain/storage"
	"github.com/tolelom/purgechain/vm"
	"github.com/tolelom/purgechain/wallet"

	_ "github.com/tolelom/purgechain/vm/modules/purge"
)

const testChainID = "purge-rpc-test"

type fixture struct {
	state   *storage.StateDB
	mempool *core.Mempool
	emitter *events.Emitter
	params  game.Params
	server  *Server
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	f := &fixture{
		state:   testutil.NewStateDB(),
		mempool: core.NewMempool(),
		emitter: events.NewEmitter(),
		params:  game.DefaultParams(),
	}
	bc := core.NewBlockchain(testutil.NewMemBlockStore())
	require.NoError(t, bc.Init())
	h := NewHandler(Deps{
		Blockchain: bc,
		Mempool:    f.mempool,
		State:      f.state,
		Indexer:    indexer.New(testutil.NewMemDB(), f.emitter),
		Executor:   vm.NewExecutor(f.state, nil, &f.params),
		Params:     &f.params,
		ChainID:    testChainID,
		CacheTTL:   time.Minute,
	})
	h.WatchCommits(f.emitter)
	f.server = NewServer("127.0.0.1:0", h, token)
	return f
}

func (f *fixture) call(t *testing.T, method string, params any) Response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	body, err := json.Marshal(Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func result[T any](t *testing.T, resp Response) T {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected rpc error: %+v", resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestPhaseInfoOnFreshChain(t *testing.T) {
	f := newFixture(t, "")
	info := result[game.PhaseInfo](t, f.call(t, "getPhaseInfo", nil))
	assert.Equal(t, uint32(0), info.Level)
	assert.Equal(t, game.StateIdle.String(), info.State)
	assert.False(t, info.RngLocked)
}

func TestUnknownMethod(t *testing.T) {
	f := newFixture(t, "")
	resp := f.call(t, "mintAsset", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestInvalidParams(t *testing.T) {
	f := newFixture(t, "")
	resp := f.call(t, "getBalance", map[string]any{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp = f.call(t, "getLeaderboard", map[string]any{"board": "karma"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestGameErrorCarriesCode(t *testing.T) {
	f := newFixture(t, "")
	resp := f.call(t, "getTrophy", map[string]any{"id": "missing"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeGameError, resp.Error.Code)
	data, ok := resp.Error.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "trophy", data["code"])
	assert.Equal(t, false, data["retryable"])
}

func TestGetReceiptNotFound(t *testing.T) {
	f := newFixture(t, "")
	resp := f.call(t, "getReceipt", map[string]any{"id": "nope"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestQuoteStake(t *testing.T) {
	f := newFixture(t, "")
	q := result[game.StakeQuote](t, f.call(t, "quoteStake", map[string]any{"principal": 5_000, "target": 3, "risk": 2}))
	assert.Equal(t, uint32(3), q.Distance)
	assert.Equal(t, uint64(5_000), q.Principal)

	resp := f.call(t, "quoteStake", map[string]any{"principal": 5_000, "target": 3, "risk": 99})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeGameError, resp.Error.Code)
}

func TestSendTx(t *testing.T) {
	f := newFixture(t, "")
	w, err := wallet.Generate()
	require.NoError(t, err)

	foreign, err := w.Advance("other-chain", 0, 0, 0)
	require.NoError(t, err)
	resp := f.call(t, "sendTx", foreign)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	tx, err := w.Advance(testChainID, 0, 0, 0)
	require.NoError(t, err)
	out := result[map[string]string](t, f.call(t, "sendTx", tx))
	assert.Equal(t, tx.ID, out["tx_id"])
	assert.Equal(t, 1, f.mempool.Size())

	resp = f.call(t, "sendTx", tx)
	require.NotNil(t, resp.Error, "duplicate")
}

func TestSimulateTxWritesNothing(t *testing.T) {
	f := newFixture(t, "")
	w, err := wallet.Generate()
	require.NoError(t, err)
	tx, err := w.Advance(testChainID, 0, 0, 0)
	require.NoError(t, err)

	r := result[core.Receipt](t, f.call(t, "simulateTx", tx))
	assert.Equal(t, core.ReceiptOK, r.Status, r.Error)

	ls, err := game.NewStore(f.state).LevelState()
	require.NoError(t, err)
	assert.Equal(t, game.StateIdle, ls.State)
}

func TestPoolCacheDropsOnCommit(t *testing.T) {
	f := newFixture(t, "")
	store := game.NewStore(f.state)

	first := result[map[string]any](t, f.call(t, "getPool", nil))
	assert.EqualValues(t, 0, first["held"])

	require.NoError(t, store.SetPool(&game.PrizePool{Next: 700}))
	cached := result[map[string]any](t, f.call(t, "getPool", nil))
	assert.EqualValues(t, 0, cached["held"])

	f.emitter.Emit(events.Event{Type: events.EventBlockCommit})
	fresh := result[map[string]any](t, f.call(t, "getPool", nil))
	assert.EqualValues(t, 700, fresh["held"])
}

func TestAuthAndHealth(t *testing.T) {
	f := newFixture(t, "s3cret")

	resp := f.call(t, "getBlockHeight", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnauthorized, resp.Error.Code)

	body := []byte(`{"jsonrpc":"2.0","id":7,"method":"getBlockHeight"}`)
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	var out Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Nil(t, out.Error)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health is not behind auth")

	rec = httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rpc", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetBlocksOnFreshChain(t *testing.T) {
	f := newFixture(t, "")
	blocks := result[[]core.Block](t, f.call(t, "getBlocks", map[string]any{"from": 0}))
	assert.Empty(t, blocks)

	resp := f.call(t, "getBlocks", map[string]any{"count": 500})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestBatchRequest(t *testing.T) {
	f := newFixture(t, "")
	body := []byte(`[
		{"jsonrpc":"2.0","id":1,"method":"getBlockHeight"},
		{"jsonrpc":"1.0","id":2,"method":"getBlockHeight"},
		{"jsonrpc":"2.0","id":3,"method":"nope"}
	]`)
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body)))

	var out []Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 3)
	assert.Nil(t, out[0].Error)
	assert.Equal(t, CodeInvalidRequest, out[1].Error.Code)
	assert.Equal(t, CodeMethodNotFound, out[2].Error.Code)

	rec = httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader([]byte(`[]`))))
	var single Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &single))
	require.NotNil(t, single.Error)
	assert.Equal(t, CodeParseError, single.Error.Code)
}
