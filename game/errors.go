package game

import "errors"

var (
	ErrNotTimeYet         = errors.New("not time yet")
	ErrRngNotReady        = errors.New("randomness not ready")
	ErrStakeInvalid       = errors.New("invalid stake")
	ErrInsufficient       = errors.New("insufficient funds")
	ErrBettingPaused      = errors.New("betting paused while randomness is pending")
	ErrPhaseClosed        = errors.New("action not allowed in the current phase")
	ErrRngNotLocked       = errors.New("no randomness request outstanding")
	ErrRngRequestMismatch = errors.New("randomness request id mismatch")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidBet         = errors.New("invalid bet")
	ErrTrophy             = errors.New("trophy action rejected")
	ErrInvalidPurchase    = errors.New("invalid purchase")

	// ErrInvariantBroken means the ledger arithmetic no longer balances.
	// It is the only error that rejects a whole block.
	ErrInvariantBroken = errors.New("invariant broken")
)

var retryable = []error{ErrNotTimeYet, ErrRngNotReady, ErrBettingPaused, ErrPhaseClosed}

// IsRetryable reports whether err clears on its own with time or
// randomness fulfilment.
func IsRetryable(err error) bool {
	for _, target := range retryable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsFatal reports whether err signals a broken ledger invariant.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvariantBroken)
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvariantBroken, "invariant_broken"},
	{ErrNotTimeYet, "not_time_yet"},
	{ErrRngNotReady, "rng_not_ready"},
	{ErrStakeInvalid, "stake_invalid"},
	{ErrInsufficient, "insufficient"},
	{ErrBettingPaused, "betting_paused"},
	{ErrPhaseClosed, "phase_closed"},
	{ErrRngNotLocked, "rng_not_locked"},
	{ErrRngRequestMismatch, "rng_request_mismatch"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidBet, "invalid_bet"},
	{ErrTrophy, "trophy"},
	{ErrInvalidPurchase, "invalid_purchase"},
}

// IsRetryableCode is IsRetryable for a code read back from a receipt.
func IsRetryableCode(code string) bool {
	for _, c := range errorCodes {
		if c.code == code {
			return IsRetryable(c.err)
		}
	}
	return false
}

// Code returns a stable machine-readable code for err, or "" when err is
// not a game error.
func Code(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
