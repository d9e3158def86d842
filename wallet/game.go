package wallet

import "github.com/tolelom/purgechain/core"

// TransferCoin creates a signed game coin transfer.
func (w *Wallet) TransferCoin(chainID, to string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxTransferCoin, nonce, fee, core.TransferPayload{To: to, Amount: amount})
}

// Advance creates a signed advance call. budget 0 uses the chain default.
func (w *Wallet) Advance(chainID string, budget int, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxAdvance, nonce, fee, core.AdvancePayload{BudgetHint: budget})
}

// Purchase creates a signed gamepiece purchase.
func (w *Wallet) Purchase(chainID string, qty int, affiliateCode string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxPurchase, nonce, fee, core.PurchasePayload{
		Quantity:      qty,
		AffiliateCode: affiliateCode,
	})
}

// Purge creates a signed purge of the given gamepieces.
func (w *Wallet) Purge(chainID string, ids []string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxPurge, nonce, fee, core.PurgePayload{TokenIDs: ids})
}

// Stake creates a signed stake against a future level.
func (w *Wallet) Stake(chainID string, principal uint64, target uint32, risk uint8, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxStake, nonce, fee, core.StakePayload{
		Principal:   principal,
		TargetLevel: target,
		Risk:        risk,
	})
}

// Flip creates a signed coin flip.
func (w *Wallet) Flip(chainID string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxFlip, nonce, fee, core.FlipPayload{Amount: amount})
}

// Claim creates a signed withdrawal of the claimable balance.
func (w *Wallet) Claim(chainID string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxClaim, nonce, fee, struct{}{})
}

func (w *Wallet) StakeTrophy(chainID, trophyID string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxStakeTrophy, nonce, fee, core.TrophyPayload{TrophyID: trophyID})
}

func (w *Wallet) ClaimTrophy(chainID, trophyID string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxClaimTrophy, nonce, fee, core.TrophyPayload{TrophyID: trophyID})
}

// FulfillRng creates a signed randomness answer. Only the configured
// oracle account can land one.
func (w *Wallet) FulfillRng(chainID string, requestID uint64, word string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxFulfillRng, nonce, fee, core.FulfillRngPayload{RequestID: requestID, Word: word})
}

func (w *Wallet) RegisterAffiliate(chainID, code string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxRegisterAffiliate, nonce, fee, core.RegisterAffiliatePayload{Code: code})
}

// List offers a trophy for sale.
func (w *Wallet) List(chainID, assetID string, price, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxListMarket, nonce, fee, core.ListMarketPayload{AssetID: assetID, Price: price})
}

// Buy accepts a market listing.
func (w *Wallet) Buy(chainID, listingID string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBuyMarket, nonce, fee, core.BuyMarketPayload{ListingID: listingID})
}
