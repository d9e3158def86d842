package core

// Account holds a participant's native balance, game coin balance and
// replay-protection nonce. Address is the hex-encoded ed25519 public key.
type Account struct {
	Address string `json:"address"` // pubkey hex
	Balance uint64 `json:"balance"` // native units, used to buy gamepieces
	Coin    uint64 `json:"coin"`    // game coin, minted and burned by the game
	Nonce   uint64 `json:"nonce"`
}

// Asset is a collectible: a gamepiece or a trophy.
// Properties is an open map so each template can store arbitrary fields.
type Asset struct {
	ID              string         `json:"id"`
	TemplateID      string         `json:"template_id"`
	Owner           string         `json:"owner"` // pubkey hex
	Properties      map[string]any `json:"properties"`
	Tradeable       bool           `json:"tradeable"`
	MintedAt        int64          `json:"minted_at"`
	ActiveListingID string         `json:"active_listing_id,omitempty"` // non-empty while listed
}

// AssetTemplate defines the schema and rules for a class of assets.
type AssetTemplate struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Schema    map[string]any `json:"schema"` // property key → type hint
	Tradeable bool           `json:"tradeable"`
	Creator   string         `json:"creator"` // pubkey hex of registrant
}

// Affiliate maps a referral code to the account that registered it.
type Affiliate struct {
	Code      string `json:"code"`
	Owner     string `json:"owner"` // pubkey hex
	CreatedAt int64  `json:"created_at"`
}

// MarketListing is a P2P sale offer for a tradeable asset.
type MarketListing struct {
	ID        string `json:"id"`
	AssetID   string `json:"asset_id"`
	Seller    string `json:"seller"` // pubkey hex
	Price     uint64 `json:"price"`
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"created_at"`
}

// Receipt status values.
const (
	ReceiptOK     = "ok"
	ReceiptFailed = "failed"
)

// Receipt records the outcome of an included transaction. A failed receipt
// means the fee and nonce were charged but the handler's writes were reverted.
type Receipt struct {
	TxID        string `json:"tx_id"`
	Type        TxType `json:"type"`
	From        string `json:"from"`
	BlockHeight int64  `json:"block_height"`
	Status      string `json:"status"`
	Code        string `json:"code,omitempty"`
	Error       string `json:"error,omitempty"`
}

// State is the full ledger state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Assets
	GetAsset(id string) (*Asset, error)
	SetAsset(asset *Asset) error
	DeleteAsset(id string) error

	// Templates
	GetTemplate(id string) (*AssetTemplate, error)
	SetTemplate(t *AssetTemplate) error

	// Affiliates
	GetAffiliate(code string) (*Affiliate, error)
	SetAffiliate(a *Affiliate) error

	// Market
	GetListing(id string) (*MarketListing, error)
	SetListing(l *MarketListing) error

	// Receipts
	GetReceipt(txID string) (*Receipt, error)
	SetReceipt(r *Receipt) error

	// Game records are opaque to the ledger; the game package owns their
	// encoding. Missing keys return ErrNotFound.
	GetGameData(key string) ([]byte, error)
	SetGameData(key string, value []byte) error
	DeleteGameData(key string) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	// Always call ComputeRoot() first to obtain the root for the block header.
	Commit() error
}
