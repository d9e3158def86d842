// Package consensus implements Proof-of-Authority block production.
// Validators propose blocks in round-robin order. Each block is signed by
// the proposer; other nodes verify the signature before accepting the block.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tolelom/purgechain/config"
	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/crypto"
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/internal/metrics"
	"github.com/tolelom/purgechain/vm"
)

// ErrNotProposer is returned by ProduceBlock outside this node's turn.
var ErrNotProposer = errors.New("not the proposer for this round")

// ErrStateCommit means a block was stored but its state could not be
// flushed. The node must stop.
var ErrStateCommit = errors.New("state commit failed after block was stored")

// PoA is the Proof-of-Authority consensus engine.
type PoA struct {
	cfg     *config.Config
	bc      *core.Blockchain
	state   core.State
	mempool *core.Mempool
	exec    *vm.Executor
	emitter *events.Emitter
	privKey crypto.PrivateKey
	pubKey  crypto.PublicKey
	log     *slog.Logger
}

// New creates a PoA engine for the local validator identified by privKey.
func New(
	cfg *config.Config,
	bc *core.Blockchain,
	state core.State,
	mempool *core.Mempool,
	exec *vm.Executor,
	emitter *events.Emitter,
	privKey crypto.PrivateKey,
) *PoA {
	return &PoA{
		cfg:     cfg,
		bc:      bc,
		state:   state,
		mempool: mempool,
		exec:    exec,
		emitter: emitter,
		privKey: privKey,
		pubKey:  privKey.Public(),
		log:     slog.Default().With("component", "consensus"),
	}
}

// IsProposer reports whether this node should propose the next block.
func (p *PoA) IsProposer() bool {
	if len(p.cfg.Validators) == 0 {
		return false
	}
	nextHeight := p.bc.Height() + 1
	idx := int(nextHeight) % len(p.cfg.Validators)
	return p.cfg.Validators[idx] == p.pubKey.Hex()
}

// ProduceBlock builds, executes, signs and commits the next block.
// Rejected transactions are left out of the block and dropped from the
// mempool. A transaction that breaks a ledger invariant fails the whole
// block; it is dropped too so the next round can proceed without it.
func (p *PoA) ProduceBlock() (*core.Block, error) {
	if !p.IsProposer() {
		return nil, ErrNotProposer
	}

	txs := p.mempool.Pending(p.cfg.MaxBlockTxs)

	tip := p.bc.Tip()
	var prevHash string
	var nextHeight int64
	if tip == nil {
		prevHash = config.GenesisHash
		nextHeight = 1
	} else {
		prevHash = tip.Hash
		nextHeight = tip.Header.Height + 1
	}

	block := core.NewBlock(nextHeight, prevHash, p.pubKey.Hex(), txs)

	rejected, err := p.exec.ExecuteBlock(block)
	if err != nil {
		var be *vm.BlockError
		if errors.As(err, &be) {
			p.log.Error("block failed on fatal tx, dropping it",
				"height", nextHeight, "tx", be.TxID, "error", be.Err)
			p.mempool.Remove([]string{be.TxID})
			metrics.TxsRejected.Inc()
			metrics.MempoolSize.Set(float64(p.mempool.Size()))
		}
		return nil, fmt.Errorf("execute block: %w", err)
	}
	if len(rejected) > 0 {
		block.Transactions = without(block.Transactions, rejected)
		block.Header.TxRoot = core.ComputeTxRoot(block.Transactions)
		dropped := make([]string, len(rejected))
		for i, tx := range rejected {
			dropped[i] = tx.ID
		}
		p.mempool.Remove(dropped)
		metrics.TxsRejected.Add(float64(len(rejected)))
	}

	// Compute root from the write buffer BEFORE flushing so that if AddBlock
	// fails the state has not yet been persisted and the node stays consistent.
	err = p.exec.Exclusive(func() error {
		block.Header.StateRoot = p.state.ComputeRoot()
		block.Sign(p.privKey)

		if err := p.bc.AddBlock(block); err != nil {
			return fmt.Errorf("add block: %w", err)
		}
		// Flush state only after the block is safely stored.
		if err := p.state.Commit(); err != nil {
			return fmt.Errorf("%w: block %d: %v", ErrStateCommit, block.Header.Height, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Emit after Sign() so block.Hash is set correctly.
	p.emitter.Emit(events.Event{
		Type:        events.EventBlockCommit,
		BlockHeight: block.Header.Height,
		Data:        map[string]any{"hash": block.Hash, "txs": len(block.Transactions)},
	})

	p.mempool.Remove(block.TxIDs())

	metrics.BlocksProduced.Inc()
	metrics.BlockHeight.Set(float64(block.Header.Height))
	metrics.MempoolSize.Set(float64(p.mempool.Size()))
	p.log.Debug("block produced", "height", block.Header.Height,
		"txs", len(block.Transactions), "rejected", len(rejected))

	return block, nil
}

func without(txs, drop []*core.Transaction) []*core.Transaction {
	skip := make(map[string]bool, len(drop))
	for _, tx := range drop {
		skip[tx.ID] = true
	}
	kept := make([]*core.Transaction, 0, len(txs)-len(drop))
	for _, tx := range txs {
		if !skip[tx.ID] {
			kept = append(kept, tx)
		}
	}
	return kept
}

// ValidateBlock checks that block was proposed by the expected validator.
func (p *PoA) ValidateBlock(block *core.Block) error {
	if len(p.cfg.Validators) == 0 {
		return errors.New("no validators configured")
	}
	idx := int(block.Header.Height) % len(p.cfg.Validators)
	expected := p.cfg.Validators[idx]
	if block.Header.Proposer != expected {
		return fmt.Errorf("wrong proposer: got %s want %s", block.Header.Proposer, expected)
	}

	pub, err := crypto.PubKeyFromHex(block.Header.Proposer)
	if err != nil {
		return fmt.Errorf("invalid proposer pubkey: %w", err)
	}
	if err := block.Verify(pub); err != nil {
		return fmt.Errorf("block signature invalid: %w", err)
	}
	if block.Hash != block.ComputeHash() {
		return errors.New("block hash does not match header")
	}
	if block.Header.TxRoot != core.ComputeTxRoot(block.Transactions) {
		return errors.New("tx_root does not match transactions")
	}

	// Validate previous hash linkage
	tip := p.bc.Tip()
	if tip == nil {
		if !config.IsGenesisHash(block.Header.PrevHash) {
			return errors.New("first block must reference genesis prev-hash")
		}
	} else {
		if block.Header.PrevHash != tip.Hash {
			return fmt.Errorf("prev_hash mismatch: got %s want %s", block.Header.PrevHash, tip.Hash)
		}
		if block.Header.Height != tip.Header.Height+1 {
			return fmt.Errorf("height mismatch: got %d want %d", block.Header.Height, tip.Header.Height+1)
		}
	}
	return nil
}

// Run produces blocks every interval until ctx is done. It returns
// ErrStateCommit if the node can no longer trust its state.
func (p *PoA) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !p.IsProposer() {
				continue
			}
			if _, err := p.ProduceBlock(); err != nil {
				if errors.Is(err, ErrStateCommit) {
					return err
				}
				p.log.Warn("produce block failed", "error", err)
			}
		}
	}
}
