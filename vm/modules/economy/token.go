package economy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/vm"
)

func init() {
	vm.Register(core.TxTransfer, handleTransfer)
	vm.Register(core.TxTransferCoin, handleTransferCoin)
}

// balanceOf selects which balance of an account a transfer moves.
type balanceOf func(acc *core.Account) *uint64

func native(acc *core.Account) *uint64 { return &acc.Balance }
func coin(acc *core.Account) *uint64   { return &acc.Coin }

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	return move(ctx, payload, native, events.EventTokenTransfer)
}

func handleTransferCoin(ctx *vm.Context, payload json.RawMessage) error {
	return move(ctx, payload, coin, events.EventCoinTransfer)
}

func move(ctx *vm.Context, payload json.RawMessage, bal balanceOf, ev events.EventType) error {
	var p core.TransferPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	if p.To == ctx.Tx.From {
		return errors.New("cannot transfer to self")
	}

	sender, err := ctx.State.GetAccount(ctx.Tx.From)
	if err != nil {
		return err
	}
	if *bal(sender) < p.Amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, *bal(sender), p.Amount)
	}
	*bal(sender) -= p.Amount
	if err := ctx.State.SetAccount(sender); err != nil {
		return err
	}

	recipient, err := ctx.State.GetAccount(p.To)
	if err != nil {
		return err
	}
	if err := credit(bal(recipient), p.Amount); err != nil {
		return err
	}
	if err := ctx.State.SetAccount(recipient); err != nil {
		return err
	}

	ctx.Emit(ev, map[string]any{
		"from":   ctx.Tx.From,
		"to":     p.To,
		"amount": p.Amount,
	})
	return nil
}

func credit(b *uint64, amount uint64) error {
	if *b+amount < *b {
		return fmt.Errorf("balance overflow adding %d", amount)
	}
	*b += amount
	return nil
}
