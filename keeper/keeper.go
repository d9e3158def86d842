// Package keeper drives the game forward. On every tick it dry-runs an
// advance call and only submits it when the call would succeed, so the
// keeper never pays for a step that is not due yet.
package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/game"
	"github.com/tolelom/purgechain/internal/metrics"
	"github.com/tolelom/purgechain/vm"
	"github.com/tolelom/purgechain/wallet"
)

// Tick outcomes, also used as metric labels.
const (
	OutcomeSubmitted = "submitted"
	OutcomePending   = "pending"  // an earlier advance is still queued
	OutcomeWaiting   = "waiting"  // the step is not due; retry later
	OutcomeFailed    = "failed"   // the call would fail for good
	OutcomeRejected  = "rejected" // the keeper's own tx is invalid
)

// Keeper submits advance calls on behalf of its wallet.
type Keeper struct {
	wallet  *wallet.Wallet
	chainID string
	budget  int
	bc      *core.Blockchain
	state   core.State
	mempool *core.Mempool
	exec    *vm.Executor
	log     *slog.Logger
}

// New creates a Keeper. budget is passed as the advance budget hint.
func New(w *wallet.Wallet, chainID string, budget int, bc *core.Blockchain, state core.State, mempool *core.Mempool, exec *vm.Executor) *Keeper {
	return &Keeper{
		wallet:  w,
		chainID: chainID,
		budget:  budget,
		bc:      bc,
		state:   state,
		mempool: mempool,
		exec:    exec,
		log:     slog.Default().With("component", "keeper"),
	}
}

// Tick makes one attempt and reports what happened.
func (k *Keeper) Tick() (string, error) {
	from := k.wallet.PubKey()
	if k.mempool.PendingFrom(from) > 0 {
		return k.record(OutcomePending), nil
	}
	acc, err := k.state.GetAccount(from)
	if err != nil {
		return k.record(OutcomeRejected), fmt.Errorf("load account: %w", err)
	}
	tx, err := k.wallet.Advance(k.chainID, k.budget, acc.Nonce, 0)
	if err != nil {
		return k.record(OutcomeRejected), fmt.Errorf("sign advance: %w", err)
	}

	r, err := k.exec.Simulate(k.nextBlock(), tx)
	if err != nil {
		return k.record(OutcomeRejected), fmt.Errorf("simulate advance: %w", err)
	}
	if r.Status != core.ReceiptOK {
		if game.IsRetryableCode(r.Code) {
			k.log.Debug("advance not due", "code", r.Code)
			return k.record(OutcomeWaiting), nil
		}
		k.log.Warn("advance would fail", "code", r.Code, "error", r.Error)
		return k.record(OutcomeFailed), nil
	}

	if err := k.mempool.Add(tx); err != nil {
		return k.record(OutcomeRejected), fmt.Errorf("submit advance: %w", err)
	}
	k.log.Debug("advance submitted", "tx", tx.ID, "nonce", tx.Nonce)
	return k.record(OutcomeSubmitted), nil
}

// nextBlock approximates the block the advance would land in.
func (k *Keeper) nextBlock() *core.Block {
	tip := k.bc.Tip()
	if tip == nil {
		return core.NewBlock(1, "", k.wallet.PubKey(), nil)
	}
	return core.NewBlock(tip.Header.Height+1, tip.Hash, tip.Header.Proposer, nil)
}

func (k *Keeper) record(outcome string) string {
	metrics.KeeperAdvances.WithLabelValues(outcome).Inc()
	return outcome
}

// Run ticks every interval until ctx is done.
func (k *Keeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := k.Tick(); err != nil {
				k.log.Warn("keeper tick failed", "error", err)
			}
		}
	}
}
