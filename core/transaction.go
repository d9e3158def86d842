package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tolelom/purgechain/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	TxTransfer      TxType = "transfer"
	TxTransferCoin  TxType = "transfer_coin"
	TxTransferAsset TxType = "transfer_asset"
	TxListMarket    TxType = "list_market"
	TxBuyMarket     TxType = "buy_market"

	TxRegisterAffiliate TxType = "register_affiliate"

	TxAdvance     TxType = "advance"
	TxPurchase    TxType = "purchase"
	TxPurge       TxType = "purge"
	TxStake       TxType = "stake"
	TxFlip        TxType = "flip"
	TxClaim       TxType = "claim"
	TxStakeTrophy TxType = "stake_trophy"
	TxClaimTrophy TxType = "claim_trophy"
	TxFulfillRng  TxType = "fulfill_rng"
)

// Transaction is the atomic unit of work on the chain.
// From holds the sender's full hex-encoded ed25519 public key (64 chars).
// Signature covers all fields except ID and Signature.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"` // hex-encoded ed25519 public key
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(tx.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return crypto.Verify(pub, []byte(tx.Hash()), tx.Signature)
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, typ TxType, from string, nonce, fee uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Fee:       fee,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----

// TransferPayload transfers native tokens or game coin.
type TransferPayload struct {
	To     string `json:"to" validate:"required,len=64,hexadecimal"`
	Amount uint64 `json:"amount" validate:"gt=0"`
}

// TransferAssetPayload moves an asset to a new owner.
type TransferAssetPayload struct {
	AssetID string `json:"asset_id" validate:"required"`
	To      string `json:"to" validate:"required,len=64,hexadecimal"`
}

// ListMarketPayload lists an asset for sale.
type ListMarketPayload struct {
	AssetID string `json:"asset_id" validate:"required"`
	Price   uint64 `json:"price" validate:"gt=0"`
}

// BuyMarketPayload purchases an active market listing.
type BuyMarketPayload struct {
	ListingID string `json:"listing_id" validate:"required"`
}

// RegisterAffiliatePayload claims a referral code for the sender.
type RegisterAffiliatePayload struct {
	Code string `json:"code" validate:"required,min=3,max=32,alphanum"`
}

// AdvancePayload drives the level state machine by one step.
// BudgetHint caps the number of roster entries processed; 0 uses the default.
type AdvancePayload struct {
	BudgetHint int `json:"budget_hint" validate:"gte=0"`
}

// PurchasePayload buys gamepieces with native balance.
type PurchasePayload struct {
	Quantity      int    `json:"quantity" validate:"gt=0"`
	AffiliateCode string `json:"affiliate_code,omitempty" validate:"omitempty,max=32,alphanum"`
}

// PurgePayload burns gamepieces of the current level.
type PurgePayload struct {
	TokenIDs []string `json:"token_ids" validate:"required,min=1,dive,required"`
}

// StakePayload burns coin against a future level.
type StakePayload struct {
	Principal   uint64 `json:"principal" validate:"gt=0"`
	TargetLevel uint32 `json:"target_level" validate:"gt=0"`
	Risk        uint8  `json:"risk" validate:"min=1,max=11"`
}

// FlipPayload queues a coin flip.
type FlipPayload struct {
	Amount uint64 `json:"amount" validate:"gt=0"`
}

// TrophyPayload addresses a trophy for staking or claiming.
type TrophyPayload struct {
	TrophyID string `json:"trophy_id" validate:"required"`
}

// FulfillRngPayload delivers a randomness word for an outstanding request.
type FulfillRngPayload struct {
	RequestID uint64 `json:"request_id" validate:"gt=0"`
	Word      string `json:"word" validate:"required,len=64,hexadecimal"`
}
