package game

import "fmt"

// mapShareBps splits the map jackpot. The first entry pairs with the
// single-winner bucket; the last takes the rounding remainder.
var mapShareBps = [4]uint64{6000, 1333, 1333, 1334}

// carryoverHalfPct returns the share of the map total kept as carryover,
// in half-percent units (out of 200).
func carryoverHalfPct(level uint32) uint64 {
	c := uint64((level-1)%100) + 1
	var base uint64
	switch {
	case c <= 4:
		base = (8 + (c-1)*8) * 2
	case c <= 79:
		base = 64 + (c - 4)
	default:
		base = 130
	}
	base += 20
	if base > 196 {
		base = 196
	}
	return base
}

// mapPct is the share of the base paid as the map jackpot.
func mapPct(level uint32) uint64 {
	if level%20 == 16 {
		return 40
	}
	return 30
}

// BucketPayout itemizes one jackpot bucket.
type BucketPayout struct {
	Trait    uint16 `json:"trait"`
	Share    uint64 `json:"share"`
	Winners  uint64 `json:"winners"`
	Paid     uint64 `json:"paid"`
	Deferred uint64 `json:"deferred"`
	Recycled uint64 `json:"recycled"`
}

// MapJackpotResult itemizes one map jackpot.
type MapJackpotResult struct {
	Total       uint64          `json:"total"`
	Carryover   uint64          `json:"carryover"`
	Base        uint64          `json:"base"`
	Value       uint64          `json:"value"`
	Distributed uint64          `json:"distributed"`
	Deferred    uint64          `json:"deferred"`
	Recycled    uint64          `json:"recycled"`
	Traits      [4]uint16       `json:"traits"`
	Buckets     [4]BucketPayout `json:"buckets"`
	Singleton   string          `json:"singleton,omitempty"`
}

// payMapJackpot folds Carryover and Next into the level's pool and pays
// the map jackpot V out of it. Every unit of V ends up distributed,
// deferred into the Map trophy, or pending recycle.
func (e *Engine) payMapJackpot(level uint32, pool *PrizePool, w Word) (*MapJackpotResult, error) {
	res := &MapJackpotResult{}
	total, err := addChecked(pool.Carryover, pool.Next)
	if err != nil {
		return nil, err
	}
	res.Total = total
	if res.Carryover, err = mulDiv(total, carryoverHalfPct(level), 200); err != nil {
		return nil, err
	}
	res.Base = total - res.Carryover
	if res.Value, err = pct(res.Base, mapPct(level)); err != nil {
		return nil, err
	}

	// Carryover+Next become carry + current + V in one move.
	pool.Carryover = res.Carryover
	pool.Next = 0
	if pool.Current, err = addChecked(pool.Current, res.Base-res.Value); err != nil {
		return nil, err
	}
	v := res.Value

	counts, err := e.store.TraitCounts(level)
	if err != nil {
		return nil, err
	}
	res.Traits = winningTraits(w, counts)
	rot := w.Uint64() % 4
	winners := bucketCounts(level, w)

	var shares [4]uint64
	shares[3] = res.Value
	for i := 0; i < 3; i++ {
		if shares[i], err = bps(res.Value, mapShareBps[i]); err != nil {
			return nil, err
		}
		shares[3] -= shares[i]
	}
	shares = rotate(shares, rot)

	for b := 0; b < 4; b++ {
		bp := &res.Buckets[b]
		bp.Trait, bp.Share, bp.Winners = res.Traits[b], shares[b], winners[b]
		if err := e.payMapBucket(pool, &v, level, w, b, bp, res); err != nil {
			return nil, err
		}
		res.Distributed += bp.Paid
		res.Deferred += bp.Deferred
		res.Recycled += bp.Recycled
	}

	// Whatever is left of V is exactly the recycled amount.
	if v != res.Recycled || res.Distributed+res.Deferred+res.Recycled != res.Value {
		return nil, fmt.Errorf("%w: map jackpot %d split into %d+%d+%d, %d left",
			ErrInvariantBroken, res.Value, res.Distributed, res.Deferred, res.Recycled, v)
	}
	if pool.PendingRecycle, err = addChecked(pool.PendingRecycle, v); err != nil {
		return nil, err
	}

	e.log.Info("map jackpot",
		"level", level, "value", res.Value, "distributed", res.Distributed,
		"deferred", res.Deferred, "recycled", res.Recycled)
	e.notify(EventMapJackpot, map[string]any{
		"level": level, "value": res.Value, "distributed": res.Distributed,
		"deferred": res.Deferred, "recycled": res.Recycled, "singleton": res.Singleton,
	})
	return res, nil
}

func (e *Engine) payMapBucket(pool *PrizePool, v *uint64, level uint32, w Word, b int, bp *BucketPayout, res *MapJackpotResult) error {
	tickets := e.store.mintTickets(level, bp.Trait)
	n, err := tickets.Len()
	if err != nil {
		return err
	}
	if bp.Share == 0 || n == 0 {
		bp.Recycled = bp.Share
		return nil
	}
	per := bp.Share / bp.Winners
	bp.Recycled = bp.Share - per*bp.Winners
	if per == 0 {
		return nil
	}
	d := newDrawer(Derive(w, saltBucket+uint64(b), uint64(bp.Trait)))
	for j := uint64(0); j < bp.Winners; j++ {
		player, err := tickets.At(d.next(n))
		if err != nil {
			return err
		}
		if bp.Winners > 1 {
			if err := e.creditClaimable(pool, v, player, per); err != nil {
				return err
			}
			bp.Paid += per
			continue
		}
		direct := per / 2
		deferred := per - direct
		if err := e.creditClaimable(pool, v, player, direct); err != nil {
			return err
		}
		bp.Paid += direct
		owned, err := e.awardTrophy(pool, v, level, TrophyMap, player, deferred)
		if err != nil {
			return err
		}
		if owned {
			bp.Deferred += deferred
		} else {
			bp.Recycled += deferred
		}
		res.Singleton = player
	}
	return nil
}
