package economy

import (
	"fmt"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/game"
)

// ErrInsufficientBalance is the ledger's shortfall error. It matches
// game.ErrInsufficient so game calls report it with the game's code.
var ErrInsufficientBalance = game.ErrInsufficient

// Coins is the game coin ledger over account state.
type Coins struct {
	state core.State
}

// NewCoins returns the coin ledger of state.
func NewCoins(state core.State) *Coins { return &Coins{state: state} }

func (c *Coins) Mint(to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	acc, err := c.state.GetAccount(to)
	if err != nil {
		return err
	}
	if err := credit(&acc.Coin, amount); err != nil {
		return err
	}
	return c.state.SetAccount(acc)
}

func (c *Coins) Burn(from string, amount uint64) error {
	acc, err := c.state.GetAccount(from)
	if err != nil {
		return err
	}
	if acc.Coin < amount {
		return fmt.Errorf("%w: coin %d < %d", ErrInsufficientBalance, acc.Coin, amount)
	}
	acc.Coin -= amount
	return c.state.SetAccount(acc)
}

func (c *Coins) BalanceOf(addr string) (uint64, error) {
	acc, err := c.state.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return acc.Coin, nil
}

// Treasury moves native balance between players and the custody account
// that backs the prize pool.
type Treasury struct {
	state   core.State
	custody string
}

// NewTreasury returns the treasury whose funds sit in custody.
func NewTreasury(state core.State, custody string) *Treasury {
	return &Treasury{state: state, custody: custody}
}

func (t *Treasury) Collect(from string, amount uint64) error {
	payer, err := t.state.GetAccount(from)
	if err != nil {
		return err
	}
	if payer.Balance < amount {
		return fmt.Errorf("%w: balance %d < %d", ErrInsufficientBalance, payer.Balance, amount)
	}
	payer.Balance -= amount
	if err := t.state.SetAccount(payer); err != nil {
		return err
	}
	vault, err := t.state.GetAccount(t.custody)
	if err != nil {
		return err
	}
	if err := credit(&vault.Balance, amount); err != nil {
		return err
	}
	return t.state.SetAccount(vault)
}

func (t *Treasury) Pay(to string, amount uint64) error {
	vault, err := t.state.GetAccount(t.custody)
	if err != nil {
		return err
	}
	if vault.Balance < amount {
		return fmt.Errorf("%w: custody holds %d, paying %d", game.ErrInvariantBroken, vault.Balance, amount)
	}
	vault.Balance -= amount
	if err := t.state.SetAccount(vault); err != nil {
		return err
	}
	payee, err := t.state.GetAccount(to)
	if err != nil {
		return err
	}
	if err := credit(&payee.Balance, amount); err != nil {
		return err
	}
	return t.state.SetAccount(payee)
}

func (t *Treasury) CustodyBalance() (uint64, error) {
	vault, err := t.state.GetAccount(t.custody)
	if err != nil {
		return 0, err
	}
	return vault.Balance, nil
}

var (
	_ game.CoinLedger = (*Coins)(nil)
	_ game.Treasury   = (*Treasury)(nil)
)
