package game

import "github.com/tolelom/purgechain/core"

// CoinLedger is the fungible game coin.
type CoinLedger interface {
	Mint(to string, amount uint64) error
	// Burn returns an error wrapping ErrInsufficient when from holds less
	// than amount.
	Burn(from string, amount uint64) error
	BalanceOf(addr string) (uint64, error)
}

// Treasury moves native value between players and the game's custody.
type Treasury interface {
	// Collect returns an error wrapping ErrInsufficient when from holds
	// less than amount.
	Collect(from string, amount uint64) error
	Pay(to string, amount uint64) error
	CustodyBalance() (uint64, error)
}

// AssetLedger is the collectible ledger holding gamepieces and trophies.
type AssetLedger interface {
	Mint(id, templateID, owner string, props map[string]any) error
	Get(id string) (*core.Asset, error)
	Transfer(id, to string) error
	Burn(id string) error
	SetTradeable(id string, tradeable bool) error
}

// RandomnessOracle receives randomness requests. The answer arrives later
// through Engine.FulfillRandomness.
type RandomnessOracle interface {
	RequestRandomness(requestID uint64) error
}

// AffiliateRegistry resolves referral codes.
type AffiliateRegistry interface {
	// CodeOwner returns "" for an unknown code.
	CodeOwner(code string) (string, error)
}

// Notifier receives domain events for observers.
type Notifier interface {
	Notify(kind string, data map[string]any)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, map[string]any) {}

// Asset templates owned by the game.
const (
	TemplateGamepiece = "gamepiece"
	TemplateTrophy    = "trophy"
)
