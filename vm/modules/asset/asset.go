package asset

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/crypto"
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/game"
	"github.com/tolelom/purgechain/vm"
)

func init() {
	vm.Register(core.TxTransferAsset, handleTransferAsset)
}

func handleTransferAsset(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferAssetPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	// Validate recipient is a real ed25519 pubkey.
	if _, err := crypto.PubKeyFromHex(p.To); err != nil {
		return fmt.Errorf("invalid to pubkey: %w", err)
	}

	asset, err := ctx.State.GetAsset(p.AssetID)
	if err != nil {
		return fmt.Errorf("asset %q not found: %w", p.AssetID, err)
	}
	if asset.Owner != ctx.Tx.From {
		return errors.New("only the asset owner can transfer it")
	}
	if !asset.Tradeable {
		return errors.New("asset is not tradeable")
	}
	if asset.ActiveListingID != "" {
		return fmt.Errorf("asset %q has an active listing", p.AssetID)
	}

	asset.Owner = p.To
	if err := ctx.State.SetAsset(asset); err != nil {
		return err
	}
	ctx.Emit(events.EventAssetTransfer, map[string]any{"asset_id": p.AssetID, "from": ctx.Tx.From, "to": p.To})
	return nil
}

// Ledger is the game's view of the asset state. It emits the same events
// as the transaction handlers so the owner index stays current.
type Ledger struct {
	ctx *vm.Context
}

// NewLedger returns the asset ledger for the transaction in ctx.
func NewLedger(ctx *vm.Context) *Ledger { return &Ledger{ctx: ctx} }

var _ game.AssetLedger = (*Ledger)(nil)

func (l *Ledger) Mint(id, templateID, owner string, props map[string]any) error {
	if _, err := l.ctx.State.GetAsset(id); err == nil {
		return fmt.Errorf("%w: asset %q already exists", game.ErrInvariantBroken, id)
	} else if !errors.Is(err, core.ErrNotFound) {
		return err
	}
	tmpl, err := l.ctx.State.GetTemplate(templateID)
	if err != nil {
		return fmt.Errorf("template %q: %w", templateID, err)
	}
	a := &core.Asset{
		ID:         id,
		TemplateID: templateID,
		Owner:      owner,
		Properties: props,
		Tradeable:  tmpl.Tradeable,
		MintedAt:   l.ctx.Block.Header.Timestamp,
	}
	if err := l.ctx.State.SetAsset(a); err != nil {
		return err
	}
	l.ctx.Emit(events.EventAssetMinted, map[string]any{"asset_id": id, "template_id": templateID, "owner": owner})
	return nil
}

func (l *Ledger) Get(id string) (*core.Asset, error) {
	return l.ctx.State.GetAsset(id)
}

func (l *Ledger) Transfer(id, to string) error {
	a, err := l.ctx.State.GetAsset(id)
	if err != nil {
		return err
	}
	from := a.Owner
	a.Owner = to
	if err := l.ctx.State.SetAsset(a); err != nil {
		return err
	}
	l.ctx.Emit(events.EventAssetTransfer, map[string]any{"asset_id": id, "from": from, "to": to})
	return nil
}

func (l *Ledger) Burn(id string) error {
	a, err := l.ctx.State.GetAsset(id)
	if err != nil {
		return err
	}
	if err := l.ctx.State.DeleteAsset(id); err != nil {
		return err
	}
	l.ctx.Emit(events.EventAssetBurned, map[string]any{"asset_id": id, "owner": a.Owner})
	return nil
}

func (l *Ledger) SetTradeable(id string, tradeable bool) error {
	a, err := l.ctx.State.GetAsset(id)
	if err != nil {
		return err
	}
	a.Tradeable = tradeable
	return l.ctx.State.SetAsset(a)
}
