package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/game"
	"github.com/tolelom/purgechain/indexer"
	"github.com/tolelom/purgechain/internal/metrics"
	"github.com/tolelom/purgechain/vm"
)

type method func(req Request) Response

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	bc      *core.Blockchain
	mempool *core.Mempool
	state   core.State
	indexer *indexer.Indexer
	exec    *vm.Executor
	params  *game.Params
	chainID string // expected chain_id; used to reject cross-chain replay transactions

	// reads keeps game views until the next block commits.
	reads   *expirable.LRU[string, any]
	methods map[string]method
}

// Deps are the services a Handler reads from.
type Deps struct {
	Blockchain *core.Blockchain
	Mempool    *core.Mempool
	State      core.State
	Indexer    *indexer.Indexer
	Executor   *vm.Executor
	Params     *game.Params
	ChainID    string
	// CacheTTL bounds how long a game view is served without a commit.
	// Zero disables caching.
	CacheTTL time.Duration
}

// NewHandler creates an RPC Handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		bc:      d.Blockchain,
		mempool: d.Mempool,
		state:   d.State,
		indexer: d.Indexer,
		exec:    d.Executor,
		params:  d.Params,
		chainID: d.ChainID,
	}
	if d.CacheTTL > 0 {
		h.reads = expirable.NewLRU[string, any](256, nil, d.CacheTTL)
	}
	h.methods = map[string]method{
		"getBlockHeight": func(req Request) Response { return okResponse(req.ID, h.bc.Height()) },
		"getMempoolSize": func(req Request) Response { return okResponse(req.ID, h.mempool.Size()) },
		"getBlock":       h.getBlock,
		"getBlocks":      h.getBlocks,
		"getBalance":     h.getBalance,
		"getReceipt":     h.getReceipt,
		"getAsset":       h.getAsset,
		"getListing":     h.getListing,
		"getAssetsByOwner": h.getAssetsByOwner,
		"getTxsBySender": h.getTxsBySender,
		"sendTx":         h.sendTx,
		"simulateTx":     h.simulateTx,

		"getLevel":            h.cached(h.getLevel),
		"getPhaseInfo":        h.cached(h.getPhaseInfo),
		"getPool":             h.cached(h.getPool),
		"getLeaderboard":      h.cached(h.getLeaderboard),
		"getClaimableBalance": h.getClaimableBalance,
		"getStake":            h.getStake,
		"quoteStake":          h.quoteStake,
		"getTrophy":           h.getTrophy,
		"getTrophiesByOwner":  h.getTrophiesByOwner,
		"getQuests":           h.getQuests,
		"getRecentEvents":     h.getRecentEvents,
	}
	return h
}

// WatchCommits drops cached game views whenever a block commits.
func (h *Handler) WatchCommits(em *events.Emitter) {
	em.Subscribe(events.EventBlockCommit, func(events.Event) {
		if h.reads != nil {
			h.reads.Purge()
		}
	})
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	m, ok := h.methods[req.Method]
	if !ok {
		metrics.RPCCallsTotal.WithLabelValues("unknown", "not_found").Inc()
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
	resp := m(req)
	outcome := "ok"
	if resp.Error != nil {
		outcome = "error"
	}
	metrics.RPCCallsTotal.WithLabelValues(req.Method, outcome).Inc()
	return resp
}

// cached serves m from the read cache, keyed by method and raw params.
// Errors are not cached.
func (h *Handler) cached(m method) method {
	return func(req Request) Response {
		if h.reads == nil {
			return m(req)
		}
		key := req.Method + ":" + string(req.Params)
		if v, ok := h.reads.Get(key); ok {
			return okResponse(req.ID, v)
		}
		resp := m(req)
		if resp.Error == nil {
			h.reads.Add(key, resp.Result)
		}
		return resp
	}
}

// decodeParams unmarshals and validates req.Params into v. Missing params
// decode as the zero value.
func decodeParams(req Request, v any) *Response {
	raw := req.Params
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := vm.Decode(raw, v); err != nil {
		resp := errResponse(req.ID, CodeInvalidParams, err.Error())
		return &resp
	}
	return nil
}

// fail maps an error to the response a client can act on.
func fail(id any, err error) Response {
	if errors.Is(err, core.ErrNotFound) {
		return errResponse(id, CodeNotFound, err.Error())
	}
	if code := game.Code(err); code != "" {
		resp := errResponse(id, CodeGameError, err.Error())
		resp.Error.Data = map[string]any{"code": code, "retryable": game.IsRetryable(err)}
		return resp
	}
	return errResponse(id, CodeInternalError, err.Error())
}

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		Hash   string `json:"hash"`
		Height *int64 `json:"height" validate:"omitempty,gte=0"`
	}
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}

	var block *core.Block
	var err error
	if params.Hash != "" {
		block, err = h.bc.GetBlock(params.Hash)
	} else if params.Height != nil {
		block, err = h.bc.GetBlockByHeight(*params.Height)
	} else {
		block = h.bc.Tip()
	}
	if err != nil {
		return fail(req.ID, err)
	}
	if block == nil {
		return errResponse(req.ID, CodeNotFound, "no block found")
	}
	return okResponse(req.ID, block)
}

// getBlocks returns up to 100 consecutive blocks starting at from.
func (h *Handler) getBlocks(req Request) Response {
	var params struct {
		From  int64 `json:"from" validate:"gte=0"`
		Count int64 `json:"count" validate:"gte=0,lte=100"`
	}
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	if params.Count == 0 {
		params.Count = 20
	}
	blocks, err := h.bc.Range(params.From, params.From+params.Count-1)
	if err != nil {
		return fail(req.ID, err)
	}
	if blocks == nil {
		blocks = []*core.Block{}
	}
	return okResponse(req.ID, blocks)
}

type addressParams struct {
	Address string `json:"address" validate:"required"`
}

func (h *Handler) getBalance(req Request) Response {
	var params addressParams
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	acc, err := h.state.GetAccount(params.Address)
	if err != nil {
		return fail(req.ID, err)
	}
	return okResponse(req.ID, map[string]any{
		"address": params.Address,
		"balance": acc.Balance,
		"coin":    acc.Coin,
		"nonce":   acc.Nonce,
	})
}

type idParams struct {
	ID string `json:"id" validate:"required"`
}

func (h *Handler) getReceipt(req Request) Response {
	var params idParams
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	r, err := h.state.GetReceipt(params.ID)
	if err != nil {
		return fail(req.ID, err)
	}
	return okResponse(req.ID, r)
}

func (h *Handler) getAsset(req Request) Response {
	var params idParams
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	asset, err := h.state.GetAsset(params.ID)
	if err != nil {
		return fail(req.ID, err)
	}
	return okResponse(req.ID, asset)
}

func (h *Handler) getListing(req Request) Response {
	var params idParams
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	listing, err := h.state.GetListing(params.ID)
	if err != nil {
		return fail(req.ID, err)
	}
	return okResponse(req.ID, listing)
}

type ownerParams struct {
	Owner string `json:"owner" validate:"required"`
}

func (h *Handler) getAssetsByOwner(req Request) Response {
	var params ownerParams
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	ids, err := h.indexer.GetAssetsByOwner(params.Owner)
	if err != nil {
		return fail(req.ID, err)
	}
	return okResponse(req.ID, nonNil(ids))
}

func (h *Handler) getTxsBySender(req Request) Response {
	var params addressParams
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	ids, err := h.indexer.GetTxsBySender(params.Address)
	if err != nil {
		return fail(req.ID, err)
	}
	return okResponse(req.ID, nonNil(ids))
}

func (h *Handler) decodeTx(req Request) (*core.Transaction, *Response) {
	var tx core.Transaction
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		resp := errResponse(req.ID, CodeInvalidParams, err.Error())
		return nil, &resp
	}
	// Reject transactions destined for a different network to prevent
	// cross-chain replay attacks.
	if tx.ChainID != h.chainID {
		resp := errResponse(req.ID, CodeInvalidParams,
			fmt.Sprintf("chain ID mismatch: got %q want %q", tx.ChainID, h.chainID))
		return nil, &resp
	}
	// Recompute the ID server-side; do not trust the client-provided value.
	tx.ID = tx.Hash()
	return &tx, nil
}

func (h *Handler) sendTx(req Request) Response {
	tx, bad := h.decodeTx(req)
	if bad != nil {
		return *bad
	}
	if err := h.mempool.Add(tx); err != nil {
		return errResponse(req.ID, CodeInvalidRequest, err.Error())
	}
	metrics.MempoolSize.Set(float64(h.mempool.Size()))
	return okResponse(req.ID, map[string]string{"tx_id": tx.ID})
}

// simulateTx dry-runs a signed transaction on top of the tip and returns
// the receipt it would get. Nothing is written.
func (h *Handler) simulateTx(req Request) Response {
	tx, bad := h.decodeTx(req)
	if bad != nil {
		return *bad
	}
	r, err := h.exec.Simulate(h.nextBlock(), tx)
	if err != nil {
		return errResponse(req.ID, CodeInvalidRequest, err.Error())
	}
	return okResponse(req.ID, r)
}

// nextBlock is a stand-in for the block a transaction sent now would land in.
func (h *Handler) nextBlock() *core.Block {
	tip := h.bc.Tip()
	if tip == nil {
		return core.NewBlock(0, "", "", nil)
	}
	return core.NewBlock(tip.Header.Height+1, tip.Hash, tip.Header.Proposer, nil)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
