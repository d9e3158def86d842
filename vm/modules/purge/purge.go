// Package purge exposes the game engine as transaction handlers. Each
// transaction gets its own engine bound to the ledger state and the
// transaction's event buffer.
package purge

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/game"
	"github.com/tolelom/purgechain/vm"
	"github.com/tolelom/purgechain/vm/modules/affiliate"
	"github.com/tolelom/purgechain/vm/modules/asset"
	"github.com/tolelom/purgechain/vm/modules/economy"
)

func init() {
	vm.Register(core.TxAdvance, handleAdvance)
	vm.Register(core.TxPurchase, handlePurchase)
	vm.Register(core.TxPurge, handlePurge)
	vm.Register(core.TxStake, handleStake)
	vm.Register(core.TxFlip, handleFlip)
	vm.Register(core.TxClaim, handleClaim)
	vm.Register(core.TxStakeTrophy, handleStakeTrophy)
	vm.Register(core.TxClaimTrophy, handleClaimTrophy)
	vm.Register(core.TxFulfillRng, handleFulfillRng)
}

// oracle turns randomness requests into events the oracle service watches.
type oracle struct{ ctx *vm.Context }

func (o oracle) RequestRandomness(requestID uint64) error {
	o.ctx.Emit(events.EventRngRequest, map[string]any{"request_id": requestID})
	return nil
}

// notifier forwards game notifications as EventGame with the kind in Data.
type notifier struct{ ctx *vm.Context }

func (n notifier) Notify(kind string, data map[string]any) {
	n.ctx.Emit(events.EventGame, events.GameData(kind, data))
}

// NewEngine builds the game engine for the transaction in ctx.
func NewEngine(ctx *vm.Context) *game.Engine {
	return game.NewEngine(game.NewStore(ctx.State), ctx.Params, game.Deps{
		Coins:      economy.NewCoins(ctx.State),
		Treasury:   economy.NewTreasury(ctx.State, ctx.Params.Custody),
		Assets:     asset.NewLedger(ctx),
		Oracle:     oracle{ctx},
		Affiliates: affiliate.NewRegistry(ctx.State),
		Notifier:   notifier{ctx},
		Logger:     ctx.Logger,
	})
}

func handleAdvance(ctx *vm.Context, payload json.RawMessage) error {
	var p core.AdvancePayload
	if err := decodeOptional(payload, &p); err != nil {
		return err
	}
	res, err := NewEngine(ctx).Advance(ctx.Now(), p.BudgetHint)
	if err != nil {
		return err
	}
	ctx.Logger.Debug("advanced", "level", res.Level, "state", res.State, "phase", res.Phase,
		"status", res.Status, "step", res.Step, "processed", res.Processed)
	return nil
}

func handlePurchase(ctx *vm.Context, payload json.RawMessage) error {
	var p core.PurchasePayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	ids, err := NewEngine(ctx).Purchase(ctx.Tx.From, p.Quantity, p.AffiliateCode, ctx.Tx.ID, ctx.Now())
	if err != nil {
		return err
	}
	ctx.Logger.Debug("purchased", "player", ctx.Tx.From, "pieces", len(ids))
	return nil
}

func handlePurge(ctx *vm.Context, payload json.RawMessage) error {
	var p core.PurgePayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	res, err := NewEngine(ctx).Purge(ctx.Tx.From, p.TokenIDs, ctx.Now())
	if err != nil {
		return err
	}
	if res.Exterminated {
		ctx.Logger.Info("trait exterminated", "player", ctx.Tx.From, "trait", res.Trait)
	}
	return nil
}

func handleStake(ctx *vm.Context, payload json.RawMessage) error {
	var p core.StakePayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	return NewEngine(ctx).Stake(ctx.Tx.From, p.Principal, p.TargetLevel, p.Risk, ctx.Now())
}

func handleFlip(ctx *vm.Context, payload json.RawMessage) error {
	var p core.FlipPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	return NewEngine(ctx).Flip(ctx.Tx.From, p.Amount, ctx.Now())
}

func handleClaim(ctx *vm.Context, _ json.RawMessage) error {
	_, err := NewEngine(ctx).Claim(ctx.Tx.From)
	return err
}

func handleStakeTrophy(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TrophyPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	return NewEngine(ctx).StakeTrophy(ctx.Tx.From, p.TrophyID)
}

func handleClaimTrophy(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TrophyPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	_, err := NewEngine(ctx).ClaimTrophy(ctx.Tx.From, p.TrophyID)
	return err
}

func handleFulfillRng(ctx *vm.Context, payload json.RawMessage) error {
	var p core.FulfillRngPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	w, err := game.ParseWord(p.Word)
	if err != nil {
		return fmt.Errorf("%w: word: %v", vm.ErrBadPayload, err)
	}
	return NewEngine(ctx).FulfillRandomness(ctx.Tx.From, p.RequestID, w)
}

// decodeOptional accepts an empty payload as the zero value.
func decodeOptional(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	return vm.Decode(payload, v)
}
