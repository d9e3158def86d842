package vm

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/game"
)

// ErrTxRejected marks a transaction that cannot be included at all: bad
// signature, wrong nonce or unpaid fee. A rejected transaction leaves no
// trace in state.
var ErrTxRejected = errors.New("transaction rejected")

// BlockError reports the transaction whose fatal failure rejected a block.
type BlockError struct {
	TxID string
	Err  error
}

func (e *BlockError) Error() string { return fmt.Sprintf("tx %s: %v", e.TxID, e.Err) }
func (e *BlockError) Unwrap() error { return e.Err }

// Context is passed to every Handler and provides access to the chain state,
// the current block, the triggering transaction and the game parameters.
// Events emitted through it are delivered only if the handler succeeds.
type Context struct {
	State  core.State
	Block  *core.Block
	Tx     *core.Transaction
	Params *game.Params
	Logger *slog.Logger

	pending []events.Event
}

// Emit queues an event for delivery after the transaction commits.
func (c *Context) Emit(typ events.EventType, data map[string]any) {
	c.pending = append(c.pending, events.Event{
		Type:        typ,
		TxID:        c.Tx.ID,
		BlockHeight: c.Block.Header.Height,
		Data:        data,
	})
}

// Now is the block time in unix seconds, the clock every game rule uses.
func (c *Context) Now() int64 {
	return c.Block.Unix()
}

// Executor applies transactions to the state using the global Handler
// registry. Calls are serialised.
type Executor struct {
	mu      sync.Mutex
	state   core.State
	emitter *events.Emitter
	params  *game.Params
	log     *slog.Logger
}

// NewExecutor creates an Executor over state. emitter may be nil.
func NewExecutor(state core.State, emitter *events.Emitter, params *game.Params) *Executor {
	return &Executor{
		state:   state,
		emitter: emitter,
		params:  params,
		log:     slog.Default().With("component", "vm"),
	}
}

// ExecuteBlock applies all transactions in block sequentially and returns
// the ones that were rejected; the caller drops them from the block.
// Failed game calls still produce a receipt. A fatal failure reverts the
// whole block and is returned as a *BlockError.
// EventBlockCommit is emitted by the caller (consensus) after signing so
// the event carries the correct block hash.
func (e *Executor) ExecuteBlock(block *core.Block) ([]*core.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapID, err := e.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	var rejected []*core.Transaction
	var queued []events.Event
	for _, tx := range block.Transactions {
		_, evs, err := e.execute(block, tx)
		if errors.Is(err, ErrTxRejected) {
			e.log.Warn("tx rejected", "tx", tx.ID, "type", tx.Type, "error", err)
			rejected = append(rejected, tx)
			continue
		}
		if err != nil {
			if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
				return nil, fmt.Errorf("revert block after tx %s: %w (revert: %v)", tx.ID, err, revertErr)
			}
			return nil, &BlockError{TxID: tx.ID, Err: err}
		}
		queued = append(queued, evs...)
	}
	e.deliver(queued)
	return rejected, nil
}

// ExecuteTx applies a single transaction and delivers its events.
func (e *Executor) ExecuteTx(block *core.Block, tx *core.Transaction) (*core.Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, evs, err := e.execute(block, tx)
	if err != nil {
		return nil, err
	}
	e.deliver(evs)
	return r, nil
}

// Simulate runs tx against the current state and rolls every write back.
// No events are delivered.
func (e *Executor) Simulate(block *core.Block, tx *core.Transaction) (*core.Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapID, err := e.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	r, _, err := e.execute(block, tx)
	if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
		return nil, fmt.Errorf("revert simulation: %w", revertErr)
	}
	return r, err
}

// Exclusive runs fn while no transaction executes or simulates. Block
// production uses it to compute the root and commit a settled buffer.
func (e *Executor) Exclusive(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn()
}

func (e *Executor) deliver(evs []events.Event) {
	if e.emitter != nil {
		e.emitter.Publish(evs)
	}
}

// execute charges the fee and nonce, then runs the handler inside a nested
// snapshot. A handler error reverts only the handler's writes and yields a
// failed receipt, unless the error is fatal.
func (e *Executor) execute(block *core.Block, tx *core.Transaction) (*core.Receipt, []events.Event, error) {
	if err := tx.Verify(); err != nil {
		return nil, nil, fmt.Errorf("%w: signature: %v", ErrTxRejected, err)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: %w", err)
	}
	if err := e.charge(tx); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return nil, nil, fmt.Errorf("revert snapshot after charge failure: %w (revert: %v)", err, revertErr)
		}
		return nil, nil, err
	}

	handlerSnap, err := e.state.Snapshot()
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: %w", err)
	}
	ctx := &Context{
		State:  e.state,
		Block:  block,
		Tx:     tx,
		Params: e.params,
		Logger: e.log.With("tx", tx.ID, "type", tx.Type),
	}
	receipt := &core.Receipt{
		TxID:        tx.ID,
		Type:        tx.Type,
		From:        tx.From,
		BlockHeight: block.Header.Height,
		Status:      core.ReceiptOK,
	}

	if err := globalRegistry.Execute(tx.Type, ctx, tx.Payload); err != nil {
		if game.IsFatal(err) {
			if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
				return nil, nil, fmt.Errorf("revert snapshot after fatal tx: %w (revert: %v)", err, revertErr)
			}
			e.log.Error("fatal tx", "tx", tx.ID, "type", tx.Type, "error", err)
			return nil, nil, err
		}
		if revertErr := e.state.RevertToSnapshot(handlerSnap); revertErr != nil {
			return nil, nil, fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		receipt.Status = core.ReceiptFailed
		receipt.Code = ErrorCode(err)
		receipt.Error = err.Error()
		ctx.pending = nil
		ctx.Logger.Debug("tx failed", "code", receipt.Code, "error", err)
	}

	if err := e.state.SetReceipt(receipt); err != nil {
		return nil, nil, fmt.Errorf("store receipt: %w", err)
	}
	evs := append(ctx.pending, events.Event{
		Type:        events.EventTxExecuted,
		TxID:        tx.ID,
		BlockHeight: block.Header.Height,
		Data:        map[string]any{"type": string(tx.Type), "from": tx.From, "status": receipt.Status, "code": receipt.Code},
	})
	return receipt, evs, nil
}

// charge deducts the fee and increments the nonce.
func (e *Executor) charge(tx *core.Transaction) error {
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return fmt.Errorf("%w: invalid nonce: expected %d got %d", ErrTxRejected, acc.Nonce, tx.Nonce)
	}
	if acc.Balance < tx.Fee {
		return fmt.Errorf("%w: insufficient balance for fee: have %d need %d", ErrTxRejected, acc.Balance, tx.Fee)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("%w: nonce overflow for account %s", ErrTxRejected, tx.From)
	}
	acc.Balance -= tx.Fee
	acc.Nonce++
	return e.state.SetAccount(acc)
}

// ErrorCode maps a handler error to the code stored on its receipt.
func ErrorCode(err error) string {
	if c := game.Code(err); c != "" {
		return c
	}
	switch {
	case errors.Is(err, ErrBadPayload):
		return "bad_payload"
	case errors.Is(err, ErrNoHandler):
		return "unknown_type"
	}
	return "failed"
}
