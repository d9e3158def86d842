package game

import (
	"fmt"
)

// TrophyKind names the achievement a trophy records.
type TrophyKind string

const (
	TrophyLevel     TrophyKind = "level"
	TrophyMap       TrophyKind = "map"
	TrophyAffiliate TrophyKind = "affiliate"
	TrophyStake     TrophyKind = "stake"
	TrophyBAF       TrophyKind = "baf"
	TrophyDecimator TrophyKind = "decimator"
)

// Trophy is the game-side record of a trophy asset. OwedValue is paid out
// in installments once the trophy is staked. Owner is the player it was
// awarded to; the asset ledger tracks who holds it now.
type Trophy struct {
	ID             string     `json:"id"`
	Kind           TrophyKind `json:"kind"`
	BaseLevel      uint32     `json:"base_level"`
	Owner          string     `json:"owner,omitempty"`
	OwedValue      uint64     `json:"owed_value"`
	ClaimCount     uint32     `json:"claim_count"`
	Staked         bool       `json:"staked"`
	LastClaimLevel uint32     `json:"last_claim_level"`
	Burned         bool       `json:"burned"`
}

func trophyKey(id string) string { return "trophy:" + id }
func trophySlotKey(level uint32, kind TrophyKind) string {
	return fmt.Sprintf("trophyslot:%d:%s", level, kind)
}

// Trophy loads a trophy record by id.
func (s *Store) Trophy(id string) (*Trophy, error) {
	var t Trophy
	ok, err := s.getJSON(trophyKey(id), &t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: trophy %q not found", ErrTrophy, id)
	}
	return &t, nil
}

func (s *Store) SetTrophy(t *Trophy) error { return s.setJSON(trophyKey(t.ID), t) }

// TrophyAt returns the trophy allocated for (level, kind), or nil.
func (s *Store) TrophyAt(level uint32, kind TrophyKind) (*Trophy, error) {
	var id string
	ok, err := s.getJSON(trophySlotKey(level, kind), &id)
	if err != nil || !ok {
		return nil, err
	}
	return s.Trophy(id)
}

// trophyKinds lists the placeholders opened at level.
func trophyKinds(level uint32) []TrophyKind {
	kinds := []TrophyKind{TrophyLevel, TrophyMap, TrophyAffiliate, TrophyStake}
	if level%10 == 0 {
		kinds = append(kinds, TrophyBAF)
	}
	if decimatorLevel(level) {
		kinds = append(kinds, TrophyDecimator)
	}
	return kinds
}

func decimatorLevel(level uint32) bool {
	return level%10 == 5 && level >= 15 && level%100 != 95
}

// openTrophies mints the placeholders of level into custody.
func (e *Engine) openTrophies(level uint32) error {
	meta, err := e.store.Meta()
	if err != nil {
		return err
	}
	for _, kind := range trophyKinds(level) {
		existing, err := e.store.TrophyAt(level, kind)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		meta.NextTrophyID++
		t := &Trophy{
			ID:        fmt.Sprintf("trophy-%d", meta.NextTrophyID),
			Kind:      kind,
			BaseLevel: level,
		}
		props := map[string]any{"kind": string(kind), "level": level}
		if err := e.assets.Mint(t.ID, TemplateTrophy, e.params.Custody, props); err != nil {
			return fmt.Errorf("mint %s trophy: %w", kind, err)
		}
		if err := e.store.SetTrophy(t); err != nil {
			return err
		}
		if err := e.store.setJSON(trophySlotKey(level, kind), t.ID); err != nil {
			return err
		}
	}
	return e.store.SetMeta(meta)
}

// awardTrophy hands the (level, kind) placeholder to player, or adds to it
// if player already holds it, moving owed out of from. It reports false,
// moving nothing, when there is no placeholder or another player won it.
func (e *Engine) awardTrophy(pool *PrizePool, from *uint64, level uint32, kind TrophyKind, player string, owed uint64) (bool, error) {
	t, err := e.store.TrophyAt(level, kind)
	if err != nil {
		return false, err
	}
	if t == nil || t.Burned || (t.Owner != "" && t.Owner != player) {
		return false, nil
	}
	if t.Owner == "" {
		if err := e.assets.Transfer(t.ID, player); err != nil {
			return false, fmt.Errorf("transfer %s trophy: %w", kind, err)
		}
		t.Owner = player
		e.notify(EventTrophyAwarded, map[string]any{
			"trophy_id": t.ID, "kind": string(kind), "level": level, "owner": player,
		})
	}
	if err := e.addOwed(pool, from, t, owed); err != nil {
		return false, err
	}
	return true, e.store.SetTrophy(t)
}

// creditTrophy adds owed to the (level, kind) trophy if it has an owner.
func (e *Engine) creditTrophy(pool *PrizePool, from *uint64, level uint32, kind TrophyKind, owed uint64) (bool, error) {
	t, err := e.store.TrophyAt(level, kind)
	if err != nil {
		return false, err
	}
	if t == nil || t.Burned || t.Owner == "" {
		return false, nil
	}
	if err := e.addOwed(pool, from, t, owed); err != nil {
		return false, err
	}
	return true, e.store.SetTrophy(t)
}

func (e *Engine) addOwed(pool *PrizePool, from *uint64, t *Trophy, owed uint64) error {
	if err := transfer(from, &pool.TotalTrophyOwed, owed); err != nil {
		return err
	}
	var err error
	t.OwedValue, err = addChecked(t.OwedValue, owed)
	return err
}

// burnTrophy destroys an unowned placeholder.
func (e *Engine) burnTrophy(t *Trophy) error {
	if t.Burned {
		return nil
	}
	if t.OwedValue != 0 {
		return fmt.Errorf("%w: burning trophy %s with %d owed", ErrInvariantBroken, t.ID, t.OwedValue)
	}
	if err := e.assets.Burn(t.ID); err != nil {
		return fmt.Errorf("burn trophy %s: %w", t.ID, err)
	}
	t.Burned = true
	t.Owner = ""
	return e.store.SetTrophy(t)
}

// burnUnqualified burns every placeholder of level that never found an owner.
func (e *Engine) burnUnqualified(level uint32) error {
	for _, kind := range trophyKinds(level) {
		t, err := e.store.TrophyAt(level, kind)
		if err != nil {
			return err
		}
		if t == nil || t.Owner != "" {
			continue
		}
		if err := e.burnTrophy(t); err != nil {
			return err
		}
	}
	return nil
}

// StakeTrophy permanently commits a trophy so it can draw its owed value.
// Staked trophies can no longer be transferred or listed.
func (e *Engine) StakeTrophy(owner, id string) error {
	t, err := e.store.Trophy(id)
	if err != nil {
		return err
	}
	if err := e.checkTrophyOwner(owner, t); err != nil {
		return err
	}
	if t.Staked {
		return fmt.Errorf("%w: trophy %s already staked", ErrTrophy, id)
	}
	asset, err := e.assets.Get(id)
	if err != nil {
		return err
	}
	if asset.ActiveListingID != "" {
		return fmt.Errorf("%w: trophy %s is listed for sale", ErrTrophy, id)
	}
	if err := e.assets.SetTradeable(id, false); err != nil {
		return err
	}
	t.Staked = true
	return e.store.SetTrophy(t)
}

// ClaimTrophy pays one installment of a staked trophy's owed value into the
// owner's claimable balance. At most one claim per trophy per level.
func (e *Engine) ClaimTrophy(owner, id string) (uint64, error) {
	t, err := e.store.Trophy(id)
	if err != nil {
		return 0, err
	}
	if err := e.checkTrophyOwner(owner, t); err != nil {
		return 0, err
	}
	if !t.Staked {
		return 0, fmt.Errorf("%w: trophy %s is not staked", ErrTrophy, id)
	}
	ls, err := e.store.LevelState()
	if err != nil {
		return 0, err
	}
	if t.ClaimCount > 0 && t.LastClaimLevel == ls.Level {
		return 0, fmt.Errorf("%w: trophy %s already claimed at level %d", ErrTrophy, id, ls.Level)
	}
	if t.ClaimCount >= e.params.TrophyInstallments || t.OwedValue == 0 {
		return 0, fmt.Errorf("%w: trophy %s has nothing owed", ErrTrophy, id)
	}
	pay := t.OwedValue / uint64(e.params.TrophyInstallments-t.ClaimCount)
	if t.ClaimCount+1 == e.params.TrophyInstallments {
		pay = t.OwedValue
	}

	pool, err := e.store.Pool()
	if err != nil {
		return 0, err
	}
	t.OwedValue -= pay
	if err := e.creditClaimable(pool, &pool.TotalTrophyOwed, owner, pay); err != nil {
		return 0, err
	}
	t.ClaimCount++
	t.LastClaimLevel = ls.Level
	if err := e.store.SetTrophy(t); err != nil {
		return 0, err
	}
	if err := e.store.SetPool(pool); err != nil {
		return 0, err
	}
	e.notify(EventTrophyClaimed, map[string]any{"trophy_id": id, "owner": owner, "amount": pay})
	return pay, nil
}

func (e *Engine) checkTrophyOwner(owner string, t *Trophy) error {
	if t.Burned {
		return fmt.Errorf("%w: trophy %s was burned", ErrTrophy, t.ID)
	}
	asset, err := e.assets.Get(t.ID)
	if err != nil {
		return err
	}
	if asset.Owner != owner {
		return fmt.Errorf("%w: %s does not hold trophy %s", ErrUnauthorized, owner, t.ID)
	}
	return nil
}
