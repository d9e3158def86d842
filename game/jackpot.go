package game

// DailyJackpotResult itemizes one daily jackpot.
type DailyJackpotResult struct {
	Counter uint8           `json:"counter"`
	Amount  uint64          `json:"amount"`
	Paid    uint64          `json:"paid"`
	Traits  [4]uint16       `json:"traits"`
	Buckets [4]BucketPayout `json:"buckets"`
}

// payDailyJackpot pays jackpot number ls.JackpotCounter out of Current in
// four equal buckets, one per winning trait. Winners are drawn from the
// level's burn tickets; unpaid value simply stays in Current. A zero
// amount still counts as a paid jackpot.
func (e *Engine) payDailyJackpot(ls *LevelState, pool *PrizePool, w Word) (*DailyJackpotResult, error) {
	amount, err := bps(pool.Current, DailyJackpotBps[ls.JackpotCounter])
	if err != nil {
		return nil, err
	}
	res := &DailyJackpotResult{Counter: ls.JackpotCounter, Amount: amount}
	counts, err := e.store.BurnCounts()
	if err != nil {
		return nil, err
	}
	res.Traits = winningTraits(w, counts)
	winners := bucketCounts(ls.Level, w)
	quarter := res.Amount / 4

	for b := 0; b < 4; b++ {
		bp := &res.Buckets[b]
		bp.Trait, bp.Share, bp.Winners = res.Traits[b], quarter, winners[b]
		tickets := e.store.burnTickets(ls.Level, bp.Trait)
		n, err := tickets.Len()
		if err != nil {
			return nil, err
		}
		per := quarter / bp.Winners
		if n == 0 || per == 0 {
			bp.Recycled = quarter
			continue
		}
		bp.Recycled = quarter - per*bp.Winners
		d := newDrawer(Derive(w, saltBucket+uint64(b), uint64(bp.Trait), uint64(ls.JackpotCounter)))
		for j := uint64(0); j < bp.Winners; j++ {
			player, err := tickets.At(d.next(n))
			if err != nil {
				return nil, err
			}
			if err := e.creditClaimable(pool, &pool.Current, player, per); err != nil {
				return nil, err
			}
			bp.Paid += per
		}
		res.Paid += bp.Paid
	}

	e.log.Info("daily jackpot",
		"level", ls.Level, "counter", ls.JackpotCounter, "amount", res.Amount, "paid", res.Paid)
	e.notify(EventDailyJackpot, map[string]any{
		"level": ls.Level, "counter": ls.JackpotCounter, "amount": res.Amount, "paid": res.Paid,
	})
	return res, nil
}
