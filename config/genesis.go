package config

import (
	"fmt"
	"strings"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/crypto"
	"github.com/tolelom/purgechain/vm/modules/asset"
)

// GenesisHash is a canonical all-zeros previous hash for the genesis block.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// CreateGenesisBlock builds and signs block #0: it credits the alloc maps,
// registers the game's asset templates and commits the state.
func CreateGenesisBlock(cfg *Config, state core.State, proposerPriv crypto.PrivateKey) (*core.Block, error) {
	proposerPub := proposerPriv.Public()
	if _, ok := cfg.Genesis.Alloc[cfg.Game.Custody]; ok {
		return nil, fmt.Errorf("genesis alloc credits the custody account %q", cfg.Game.Custody)
	}

	accounts := make(map[string]*core.Account)
	account := func(addr string) *core.Account {
		if acc, ok := accounts[addr]; ok {
			return acc
		}
		acc := &core.Account{Address: addr}
		accounts[addr] = acc
		return acc
	}
	for pubkeyHex, balance := range cfg.Genesis.Alloc {
		account(pubkeyHex).Balance = balance
	}
	for pubkeyHex, coin := range cfg.Genesis.CoinAlloc {
		account(pubkeyHex).Coin = coin
	}
	for _, acc := range accounts {
		if err := state.SetAccount(acc); err != nil {
			return nil, err
		}
	}
	if err := asset.EnsureTemplates(state, proposerPub.Hex()); err != nil {
		return nil, fmt.Errorf("register templates: %w", err)
	}

	stateRoot := state.ComputeRoot()
	if err := state.Commit(); err != nil {
		return nil, err
	}

	block := core.NewBlock(0, GenesisHash, proposerPub.Hex(), nil)
	block.Header.StateRoot = stateRoot
	// The genesis TxRoot commits to the chain ID.
	block.Header.TxRoot = crypto.Hash([]byte(cfg.Genesis.ChainID))
	block.Sign(proposerPriv)
	return block, nil
}

// IsGenesisHash returns true if the hash is the canonical genesis prev-hash.
func IsGenesisHash(h string) bool {
	return len(h) == 64 && strings.Count(h, "0") == len(h)
}
