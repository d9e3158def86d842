// Package market is a peer-to-peer order book for trophies. Gamepieces and
// staked trophies cannot be listed.
package market

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
	vm.Register(core.TxListMarket, handleListMarket)
	vm.Register(core.TxBuyMarket, handleBuyMarket)
}

func handleListMarket(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ListMarketPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}

	asset, err := ctx.State.GetAsset(p.AssetID)
	if err != nil {
		return fmt.Errorf("asset %q not found: %w", p.AssetID, err)
	}
	if asset.TemplateID != game.TemplateTrophy {
		return fmt.Errorf("only trophies can be listed, %q is a %s", p.AssetID, asset.TemplateID)
	}
	if asset.Owner != ctx.Tx.From {
		return errors.New("only the asset owner can list it")
	}
	if !asset.Tradeable {
		return errors.New("asset is not tradeable")
	}
	if asset.ActiveListingID != "" {
		return fmt.Errorf("asset %q is already listed (listing %s)", p.AssetID, asset.ActiveListingID)
	}

	listingID := crypto.HashID(ctx.Tx.ID, "listing", p.AssetID)
	listing := &core.MarketListing{
		ID:        listingID,
		AssetID:   p.AssetID,
		Seller:    ctx.Tx.From,
		Price:     p.Price,
		Active:    true,
		CreatedAt: ctx.Block.Header.Timestamp,
	}
	if err := ctx.State.SetListing(listing); err != nil {
		return err
	}

	asset.ActiveListingID = listingID
	if err := ctx.State.SetAsset(asset); err != nil {
		return err
	}

	ctx.Emit(events.EventMarketList, map[string]any{"listing_id": listingID, "asset_id": p.AssetID, "price": p.Price})
	return nil
}

func handleBuyMarket(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BuyMarketPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}

	listing, err := ctx.State.GetListing(p.ListingID)
	if err != nil {
		return fmt.Errorf("listing %q not found: %w", p.ListingID, err)
	}
	if !listing.Active {
		return fmt.Errorf("listing %q is no longer active", p.ListingID)
	}
	if listing.Seller == ctx.Tx.From {
		return errors.New("seller cannot buy their own listing")
	}

	buyer, err := ctx.State.GetAccount(ctx.Tx.From)
	if err != nil {
		return err
	}
	if buyer.Balance < listing.Price {
		return fmt.Errorf("%w: have %d need %d", game.ErrInsufficient, buyer.Balance, listing.Price)
	}
	buyer.Balance -= listing.Price
	if err := ctx.State.SetAccount(buyer); err != nil {
		return err
	}

	seller, err := ctx.State.GetAccount(listing.Seller)
	if err != nil {
		return err
	}
	seller.Balance += listing.Price
	if err := ctx.State.SetAccount(seller); err != nil {
		return err
	}

	asset, err := ctx.State.GetAsset(listing.AssetID)
	if err != nil {
		return fmt.Errorf("asset %q not found: %w", listing.AssetID, err)
	}
	asset.Owner = ctx.Tx.From
	asset.ActiveListingID = ""
	if err := ctx.State.SetAsset(asset); err != nil {
		return err
	}

	listing.Active = false
	if err := ctx.State.SetListing(listing); err != nil {
		return err
	}

	ctx.Emit(events.EventMarketBuy, map[string]any{
		"listing_id": p.ListingID,
		"asset_id":   listing.AssetID,
		"buyer":      ctx.Tx.From,
		"seller":     listing.Seller,
		"price":      listing.Price,
	})
	ctx.Emit(events.EventAssetTransfer, map[string]any{
		"asset_id": listing.AssetID, "from": listing.Seller, "to": ctx.Tx.From,
	})
	return nil
}
