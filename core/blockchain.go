package core

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned when a requested object does not exist in storage.
	ErrNotFound = errors.New("not found")
	// ErrBadLink means a block does not extend the current tip.
	ErrBadLink = errors.New("block does not extend the tip")
)

// BlockStore is the persistence interface used by Blockchain.
// Implementations live in the storage package.
type BlockStore interface {
	GetBlock(hash string) (*Block, error)
	PutBlock(block *Block) error
	GetBlockByHeight(height int64) (*Block, error)
	PutBlockByHeight(height int64, hash string) error
	// GetTip returns the current tip hash, or ("", nil) for a fresh chain.
	GetTip() (string, error)
	SetTip(hash string) error
	// CommitBlock atomically writes the block, its height index entry, and
	// updates the tip pointer in a single batch operation.
	CommitBlock(block *Block) error
}

// Blockchain is the canonical chain. There is a single proposer set and no
// forks, so a block is either the tip's successor or rejected.
type Blockchain struct {
	mu     sync.RWMutex
	store  BlockStore
	tip    *Block
	height int64
}

// NewBlockchain returns a Blockchain backed by store.
// Call Init() to load an existing chain tip from storage.
func NewBlockchain(store BlockStore) *Blockchain {
	return &Blockchain{store: store}
}

// Init loads the persisted tip from the block store.
func (bc *Blockchain) Init() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	tipHash, err := bc.store.GetTip()
	if err != nil {
		return fmt.Errorf("get tip: %w", err)
	}
	if tipHash == "" {
		return nil // fresh chain
	}
	tip, err := bc.store.GetBlock(tipHash)
	if err != nil {
		return fmt.Errorf("load tip block: %w", err)
	}
	bc.tip = tip
	bc.height = tip.Header.Height
	return nil
}

// AddBlock validates height continuity and PrevHash linkage, then persists the
// block and advances the tip.
func (bc *Blockchain) AddBlock(block *Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	// Validate height and PrevHash linkage.
	if bc.tip != nil {
		if block.Header.Height != bc.height+1 {
			return fmt.Errorf("%w: height %d after %d", ErrBadLink, block.Header.Height, bc.height)
		}
		if block.Header.PrevHash != bc.tip.Hash {
			return fmt.Errorf("%w: prev_hash %s, tip %s", ErrBadLink, block.Header.PrevHash, bc.tip.Hash)
		}
	}

	if err := bc.store.CommitBlock(block); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}
	bc.tip = block
	bc.height = block.Header.Height
	return nil
}

// GetBlock returns a block by its hash.
func (bc *Blockchain) GetBlock(hash string) (*Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.store.GetBlock(hash)
}

// GetBlockByHeight returns the block at the given height.
func (bc *Blockchain) GetBlockByHeight(height int64) (*Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.store.GetBlockByHeight(height)
}

// Tip returns the current chain tip, or nil for a fresh chain.
func (bc *Blockchain) Tip() *Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tip
}

// Height returns the height of the current tip (0 for a fresh chain).
func (bc *Blockchain) Height() int64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.height
}

// Range returns the blocks from height from to to inclusive, stopping at
// the tip.
func (bc *Blockchain) Range(from, to int64) ([]*Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if bc.tip == nil {
		return nil, nil
	}
	if to > bc.height {
		to = bc.height
	}
	var out []*Block
	for h := from; h <= to; h++ {
		b, err := bc.store.GetBlockByHeight(h)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", h, err)
		}
		out = append(out, b)
	}
	return out, nil
}
