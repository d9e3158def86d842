package game

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// MinRisk and MaxRisk bound the risk level of a stake.
	MinRisk = 1
	MaxRisk = 11

	forfeitBpsPerRisk = 500
	maxDistanceBonus  = 200
	riskStepBps       = 12
	levelsPerCompound = 4
)

func stakeIndexKey(player string, target uint32) string {
	return fmt.Sprintf("stakeidx:%s:%d", player, target)
}

// StakePayout returns the coin paid for a winning stake.
//
//	step     = 100 + min(distance, 200) + 12*(risk-1)   (basis points)
//	payout   = principal * (1 + step/10000)^(elapsed/4)
func StakePayout(principal uint64, risk uint8, distance, elapsed uint32) (uint64, error) {
	return compound(principal, stakeStep(risk, distance), uint64(elapsed/levelsPerCompound))
}

func stakeStep(risk uint8, distance uint32) uint64 {
	return 100 + uint64(min(distance, maxDistanceBonus)) + riskStepBps*uint64(risk-1)
}

// forfeitBps is the chance, out of 10000, that a stake at risk is lost.
func forfeitBps(risk uint8) uint64 { return uint64(risk-1) * forfeitBpsPerRisk }

// Stake burns principal coin from player and places it against target.
// A second stake on the same target merges into the first and must use
// the same risk.
func (e *Engine) Stake(player string, principal uint64, target uint32, risk uint8, now int64) error {
	ls, err := e.store.LevelState()
	if err != nil {
		return err
	}
	if err := requireState(ls, StateSettling, StatePurchasing, StatePurging); err != nil {
		return err
	}
	if risk < MinRisk || risk > MaxRisk {
		return fmt.Errorf("%w: risk %d outside %d..%d", ErrStakeInvalid, risk, MinRisk, MaxRisk)
	}
	if principal < e.params.MinStakePrincipal {
		return fmt.Errorf("%w: principal %d below minimum %d", ErrStakeInvalid, principal, e.params.MinStakePrincipal)
	}
	if target <= ls.Level || target-ls.Level > e.params.MaxStakeDistance {
		return fmt.Errorf("%w: target %d must be 1..%d levels past %d", ErrStakeInvalid, target, e.params.MaxStakeDistance, ls.Level)
	}

	lane, err := e.store.Lane(player, target)
	if err != nil {
		return err
	}
	held, heldRisk := UnpackLane(lane)
	if lane != 0 && heldRisk != risk {
		return fmt.Errorf("%w: lane for level %d already uses risk %d", ErrStakeInvalid, target, heldRisk)
	}
	total, err := addChecked(held, principal)
	if err != nil || total > MaxLanePrincipal {
		return fmt.Errorf("%w: lane principal too large", ErrStakeInvalid)
	}
	placed := ls.Level
	if lane != 0 {
		pos, err := e.Position(player, target)
		if err != nil {
			return err
		}
		placed = pos.PlacedLevel
	}
	if _, err := StakePayout(total, risk, target-placed, target-placed); err != nil {
		return fmt.Errorf("%w: payout of %d at risk %d does not fit", ErrStakeInvalid, total, risk)
	}

	if err := e.coins.Burn(player, principal); err != nil {
		return err
	}
	if lane == 0 {
		idx, err := e.store.stakeRoster(target).Append(StakeEntry{Player: player, PlacedLevel: ls.Level})
		if err != nil {
			return err
		}
		if err := e.store.setUint(stakeIndexKey(player, target), idx+1); err != nil {
			return err
		}
	}
	if err := e.store.SetLane(player, target, PackLane(total, risk)); err != nil {
		return err
	}
	if err := e.bumpScore(BoardBurn, ls.Level, player, principal); err != nil {
		return err
	}
	return e.progressQuest(player, QuestStake, principal, risk, now)
}

// Position returns player's unresolved stake on target, or nil.
func (e *Engine) Position(player string, target uint32) (*StakePosition, error) {
	lane, err := e.store.Lane(player, target)
	if err != nil || lane == 0 {
		return nil, err
	}
	idx, err := e.store.getUint(stakeIndexKey(player, target))
	if err != nil {
		return nil, err
	}
	if idx == 0 {
		return nil, fmt.Errorf("%w: lane %s/%d has no roster entry", ErrInvariantBroken, player, target)
	}
	entry, err := e.store.stakeRoster(target).At(idx - 1)
	if err != nil {
		return nil, err
	}
	principal, risk := UnpackLane(lane)
	return &StakePosition{
		Player:      player,
		Principal:   principal,
		TargetLevel: target,
		Risk:        risk,
		PlacedLevel: entry.PlacedLevel,
	}, nil
}

// resolveStakes walks the stake roster of level, paying or forfeiting each
// lane with the word consumed by the settlement step.
func (e *Engine) resolveStakes(level uint32, limit int) (int, bool, error) {
	roster := e.store.stakeRoster(level)
	n, err := roster.Len()
	if err != nil {
		return 0, false, err
	}
	cur, err := e.store.Cursor(keyCursorStake)
	if err != nil {
		return 0, false, err
	}
	cur.Begin(level, n)
	if cur.Done() {
		return 0, true, nil
	}
	meta, err := e.store.Meta()
	if err != nil {
		return 0, false, err
	}
	leader, err := e.store.StakeLeader(level)
	if err != nil {
		return 0, false, err
	}

	var paid uint64
	processed, done, err := ProcessBatch(roster, cur, limit, func(i uint64, entry StakeEntry) error {
		lane, err := e.store.Lane(entry.Player, level)
		if err != nil || lane == 0 {
			return err
		}
		principal, risk := UnpackLane(lane)
		distance := level - entry.PlacedLevel
		roll := DeriveString(meta.SettleWord, entry.Player, saltStake, i).Uint64() % 10_000
		var payout uint64
		if roll >= forfeitBps(risk) {
			if payout, err = StakePayout(principal, risk, distance, distance); err != nil {
				return err
			}
			if err := e.coins.Mint(entry.Player, payout); err != nil {
				return fmt.Errorf("stake payout: %w", err)
			}
			paid += payout
			if principal > leader.Principal {
				leader.Player, leader.Principal = entry.Player, principal
			}
		}
		e.notify(EventStakeResolved, map[string]any{
			"player": entry.Player, "level": level, "principal": principal,
			"risk": risk, "payout": payout, "forfeit": payout == 0,
		})
		if err := e.store.SetLane(entry.Player, level, 0); err != nil {
			return err
		}
		return e.store.setUint(stakeIndexKey(entry.Player, level), 0)
	})
	if err != nil {
		return processed, false, err
	}
	if err := e.store.SetCursor(keyCursorStake, cur); err != nil {
		return processed, false, err
	}
	if err := e.store.SetStakeLeader(level, leader); err != nil {
		return processed, false, err
	}
	e.log.Debug("stakes resolved", "level", level, "processed", processed, "paid", paid, "done", done)
	return processed, done, nil
}

// awardStakeTrophy gives the Stake trophy of level to the largest winning
// principal resolved there.
func (e *Engine) awardStakeTrophy(pool *PrizePool, level uint32) error {
	leader, err := e.store.StakeLeader(level)
	if err != nil || leader.Player == "" {
		return err
	}
	_, err = e.awardTrophy(pool, &pool.Carryover, level, TrophyStake, leader.Player, 0)
	return err
}

// StakeQuote is a display-oriented preview of a stake.
type StakeQuote struct {
	Principal     uint64          `json:"principal"`
	Risk          uint8           `json:"risk"`
	Distance      uint32          `json:"distance"`
	Compounds     uint32          `json:"compounds"`
	Payout        uint64          `json:"payout"`
	Multiplier    decimal.Decimal `json:"multiplier"`
	ForfeitChance decimal.Decimal `json:"forfeit_chance"`
}

// QuoteStake previews the payout of a stake resolved distance levels after
// it is placed. It does not touch state.
func QuoteStake(principal uint64, risk uint8, distance uint32) (*StakeQuote, error) {
	if risk < MinRisk || risk > MaxRisk {
		return nil, fmt.Errorf("%w: risk %d outside %d..%d", ErrStakeInvalid, risk, MinRisk, MaxRisk)
	}
	if principal == 0 || distance == 0 {
		return nil, fmt.Errorf("%w: principal and distance must be positive", ErrStakeInvalid)
	}
	payout, err := StakePayout(principal, risk, distance, distance)
	if err != nil {
		return nil, err
	}
	return &StakeQuote{
		Principal:     principal,
		Risk:          risk,
		Distance:      distance,
		Compounds:     distance / levelsPerCompound,
		Payout:        payout,
		Multiplier:    decimalFromUint(payout).Div(decimalFromUint(principal)).Round(6),
		ForfeitChance: decimal.New(int64(forfeitBps(risk)), -4),
	}, nil
}

func decimalFromUint(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
