// Package affiliate lets accounts claim referral codes that purchases can
// name. The game credits the code owner on the affiliate leaderboard.
package affiliate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/events"
	"github.com/tolelom/purgechain/game"
	"github.com/tolelom/purgechain/vm"
)

// ErrCodeTaken is returned when a code already has an owner.
var ErrCodeTaken = errors.New("affiliate code already registered")

func init() {
	vm.Register(core.TxRegisterAffiliate, handleRegister)
}

// Normalize is the canonical form a code is stored and looked up under.
func Normalize(code string) string { return strings.ToUpper(code) }

func handleRegister(ctx *vm.Context, payload json.RawMessage) error {
	var p core.RegisterAffiliatePayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	code := Normalize(p.Code)

	// Distinguish DB errors from not-found.
	if _, err := ctx.State.GetAffiliate(code); err == nil {
		return fmt.Errorf("%w: %q", ErrCodeTaken, code)
	} else if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("checking affiliate %q: %w", code, err)
	}

	a := &core.Affiliate{
		Code:      code,
		Owner:     ctx.Tx.From,
		CreatedAt: ctx.Block.Header.Timestamp,
	}
	if err := ctx.State.SetAffiliate(a); err != nil {
		return err
	}
	ctx.Emit(events.EventAffiliateReg, map[string]any{"code": code, "owner": ctx.Tx.From})
	return nil
}

// Registry resolves codes against ledger state.
type Registry struct {
	state core.State
}

// NewRegistry returns the affiliate registry of state.
func NewRegistry(state core.State) *Registry { return &Registry{state: state} }

var _ game.AffiliateRegistry = (*Registry)(nil)

// CodeOwner returns the account behind code, or "" if nobody claimed it.
func (r *Registry) CodeOwner(code string) (string, error) {
	if code == "" {
		return "", nil
	}
	a, err := r.state.GetAffiliate(Normalize(code))
	if errors.Is(err, core.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return a.Owner, nil
}
