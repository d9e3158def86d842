package game

import "fmt"

// exterminationPct is the share of the settled pool reserved for the
// exterminator (or, on a timeout, for the Affiliate and Stake trophies).
func exterminationPct(level uint32) uint64 {
	if level%10 == 4 && level != 4 {
		return 40
	}
	return 30
}

// bafPct is the share of carryover paid into the BAF trophy, or 0.
func bafPct(level uint32) uint64 {
	switch {
	case level%100 == 50:
		return 25
	case level%10 == 0:
		return 10
	}
	return 0
}

// decimatorPct is the share of carryover paid into the Decimator trophy, or 0.
func decimatorPct(level uint32) uint64 {
	if decimatorLevel(level) {
		return 15
	}
	return 0
}

// Settlement itemizes the end of a level. Direct + TrophyOwed + Distributed
// + Recycled always equals Pool.
type Settlement struct {
	Level        uint32 `json:"level"`
	Pool         uint64 `json:"pool"`
	Exterminator string `json:"exterminator,omitempty"`
	Trait        uint16 `json:"trait"`
	Direct       uint64 `json:"direct"`
	TrophyOwed   uint64 `json:"trophy_owed"`
	Distributed  uint64 `json:"distributed"`
	Recycled     uint64 `json:"recycled"`
	BAF          uint64 `json:"baf"`
	Decimator    uint64 `json:"decimator"`
}

// settle pays out the current pool of a finished level and closes its
// trophies.
func (e *Engine) settle(s *step, level uint32, w Word) error {
	pool := s.pool
	out, err := e.store.Outcome(level)
	if err != nil {
		return err
	}
	res := &Settlement{Level: level, Pool: pool.Current, Exterminator: out.Exterminator, Trait: out.Trait}
	ex, err := pct(res.Pool, exterminationPct(level))
	if err != nil {
		return err
	}
	jackpot := res.Pool - ex

	if out.TimedOut() {
		err = e.settleTimeout(pool, level, ex, jackpot, res)
	} else {
		err = e.settleExterminated(pool, level, out, w, ex, jackpot, res)
	}
	if err != nil {
		return err
	}
	if res.Direct+res.TrophyOwed+res.Distributed+res.Recycled != res.Pool || pool.Current != 0 {
		return fmt.Errorf("%w: settled %d as %d+%d+%d+%d, %d left",
			ErrInvariantBroken, res.Pool, res.Direct, res.TrophyOwed, res.Distributed, res.Recycled, pool.Current)
	}

	if res.BAF, err = e.payMilestone(pool, level, TrophyBAF, BoardFlip, bafPct(level)); err != nil {
		return err
	}
	if res.Decimator, err = e.payMilestone(pool, level, TrophyDecimator, BoardBurn, decimatorPct(level)); err != nil {
		return err
	}
	if err := e.burnUnqualified(level); err != nil {
		return err
	}

	s.res.Settlement = res
	e.log.Info("level settled",
		"level", level, "pool", res.Pool, "exterminator", res.Exterminator,
		"direct", res.Direct, "trophy_owed", res.TrophyOwed,
		"distributed", res.Distributed, "recycled", res.Recycled)
	e.notify(EventSettled, map[string]any{
		"level": level, "pool": res.Pool, "exterminator": res.Exterminator, "trait": res.Trait,
		"direct": res.Direct, "trophy_owed": res.TrophyOwed, "distributed": res.Distributed,
		"recycled": res.Recycled, "baf": res.BAF, "decimator": res.Decimator,
	})
	return nil
}

func (e *Engine) settleExterminated(pool *PrizePool, level uint32, out *Outcome, w Word, ex, jackpot uint64, res *Settlement) error {
	direct := ex / 2
	if err := e.creditClaimable(pool, &pool.Current, out.Exterminator, direct); err != nil {
		return err
	}
	res.Direct += direct
	if err := e.owe(pool, level, TrophyLevel, out.Exterminator, ex-direct, res); err != nil {
		return err
	}
	if err := e.assignAffiliateTrophy(pool, level); err != nil {
		return err
	}

	tickets := e.store.burnTickets(level, out.Trait)
	n, err := tickets.Len()
	if err != nil {
		return err
	}
	winners := uint64(e.params.ExterminationWinners)
	per := uint64(0)
	if n > 0 {
		per = jackpot / winners
	}
	if per > 0 {
		d := newDrawer(Derive(w, saltExterm))
		for j := uint64(0); j < winners; j++ {
			player, err := tickets.At(d.next(n))
			if err != nil {
				return err
			}
			if err := e.creditClaimable(pool, &pool.Current, player, per); err != nil {
				return err
			}
			res.Distributed += per
		}
	}
	return e.recycle(pool, jackpot-res.Distributed, res)
}

func (e *Engine) settleTimeout(pool *PrizePool, level uint32, ex, jackpot uint64, res *Settlement) error {
	t, err := e.store.TrophyAt(level, TrophyLevel)
	if err != nil {
		return err
	}
	if t != nil && t.Owner == "" {
		if err := e.burnTrophy(t); err != nil {
			return err
		}
	}

	affHalf := ex / 2
	stakeHalf := ex - affHalf
	top, err := e.store.leader(BoardAffiliate, level)
	if err != nil {
		return err
	}
	if top != "" {
		if err := e.owe(pool, level, TrophyAffiliate, top, affHalf, res); err != nil {
			return err
		}
	} else if err := e.recycle(pool, affHalf, res); err != nil {
		return err
	}

	ok, err := e.creditTrophy(pool, &pool.Current, level, TrophyStake, stakeHalf)
	if err != nil {
		return err
	}
	if ok {
		res.TrophyOwed += stakeHalf
	} else if err := e.recycle(pool, stakeHalf, res); err != nil {
		return err
	}
	return e.recycle(pool, jackpot, res)
}

// owe defers amt from Current into the (level, kind) trophy awarded to
// player, recycling it when the trophy cannot be awarded.
func (e *Engine) owe(pool *PrizePool, level uint32, kind TrophyKind, player string, amt uint64, res *Settlement) error {
	ok, err := e.awardTrophy(pool, &pool.Current, level, kind, player, amt)
	if err != nil {
		return err
	}
	if !ok {
		return e.recycle(pool, amt, res)
	}
	res.TrophyOwed += amt
	return nil
}

func (e *Engine) recycle(pool *PrizePool, amt uint64, res *Settlement) error {
	if err := transfer(&pool.Current, &pool.Carryover, amt); err != nil {
		return err
	}
	res.Recycled += amt
	return nil
}

// assignAffiliateTrophy hands the Affiliate trophy to the top affiliate
// without moving value.
func (e *Engine) assignAffiliateTrophy(pool *PrizePool, level uint32) error {
	top, err := e.store.leader(BoardAffiliate, level)
	if err != nil || top == "" {
		return err
	}
	_, err = e.awardTrophy(pool, &pool.Carryover, level, TrophyAffiliate, top, 0)
	return err
}

// payMilestone moves p percent of carryover into the kind trophy of the
// leader of board. Nothing moves without a leader.
func (e *Engine) payMilestone(pool *PrizePool, level uint32, kind TrophyKind, board string, p uint64) (uint64, error) {
	if p == 0 {
		return 0, nil
	}
	top, err := e.store.leader(board, level)
	if err != nil || top == "" {
		return 0, err
	}
	amt, err := pct(pool.Carryover, p)
	if err != nil {
		return 0, err
	}
	ok, err := e.awardTrophy(pool, &pool.Carryover, level, kind, top, amt)
	if err != nil || !ok {
		return 0, err
	}
	return amt, nil
}
