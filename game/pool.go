package game

import "fmt"

// transfer moves amt between two buckets of the same pool.
func transfer(from, to *uint64, amt uint64) error {
	if amt == 0 {
		return nil
	}
	if *from < amt {
		return fmt.Errorf("%w: bucket holds %d, moving %d", ErrInvariantBroken, *from, amt)
	}
	*from -= amt
	*to += amt
	return nil
}

// creditClaimable moves amt out of bucket into player's claimable balance.
func (e *Engine) creditClaimable(pool *PrizePool, from *uint64, player string, amt uint64) error {
	if amt == 0 {
		return nil
	}
	if err := transfer(from, &pool.TotalClaimable, amt); err != nil {
		return err
	}
	cur, err := e.store.Claimable(player)
	if err != nil {
		return err
	}
	next, err := addChecked(cur, amt)
	if err != nil {
		return err
	}
	return e.store.SetClaimable(player, next)
}

// fund accepts native value from a purchase into the next pool.
func (e *Engine) fund(pool *PrizePool, player string, amt uint64) error {
	if err := e.treasury.Collect(player, amt); err != nil {
		return err
	}
	var err error
	if pool.Next, err = addChecked(pool.Next, amt); err != nil {
		return err
	}
	pool.Funded, err = addChecked(pool.Funded, amt)
	return err
}

// Claim pays out player's claimable balance and returns the amount.
func (e *Engine) Claim(player string) (uint64, error) {
	amt, err := e.store.Claimable(player)
	if err != nil {
		return 0, err
	}
	if amt == 0 {
		return 0, fmt.Errorf("%w: nothing to claim", ErrInsufficient)
	}
	pool, err := e.store.Pool()
	if err != nil {
		return 0, err
	}
	if pool.TotalClaimable < amt {
		return 0, fmt.Errorf("%w: claimable %d exceeds pool claimable %d", ErrInvariantBroken, amt, pool.TotalClaimable)
	}
	pool.TotalClaimable -= amt
	pool.Paid += amt
	if err := e.store.SetClaimable(player, 0); err != nil {
		return 0, err
	}
	if err := e.treasury.Pay(player, amt); err != nil {
		return 0, err
	}
	if err := e.store.SetPool(pool); err != nil {
		return 0, err
	}
	e.notify(EventClaimed, map[string]any{"player": player, "amount": amt})
	return amt, nil
}

// Audit checks that the pool's buckets account for every native unit
// received and not paid, within tolerance, and that custody holds them.
func (e *Engine) Audit(tolerance uint64) error {
	pool, err := e.store.Pool()
	if err != nil {
		return err
	}
	if err := auditPool(pool, tolerance); err != nil {
		return err
	}
	custody, err := e.treasury.CustodyBalance()
	if err != nil {
		return err
	}
	if diff(custody, pool.Funded-pool.Paid) > tolerance {
		return fmt.Errorf("%w: custody holds %d, pool expects %d", ErrInvariantBroken, custody, pool.Funded-pool.Paid)
	}
	return nil
}

func auditPool(pool *PrizePool, tolerance uint64) error {
	if pool.Paid > pool.Funded {
		return fmt.Errorf("%w: paid %d exceeds funded %d", ErrInvariantBroken, pool.Paid, pool.Funded)
	}
	if d := diff(pool.Held(), pool.Funded-pool.Paid); d > tolerance {
		return fmt.Errorf("%w: pool holds %d, funded-paid is %d", ErrInvariantBroken, pool.Held(), pool.Funded-pool.Paid)
	}
	return nil
}

func diff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
