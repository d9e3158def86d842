package game

import "fmt"

// Flip burns amount coin from player and queues a coin flip. Flips are
// resolved with the next consumed word, so none may be placed while a
// request is outstanding.
func (e *Engine) Flip(player string, amount uint64, now int64) error {
	ls, err := e.store.LevelState()
	if err != nil {
		return err
	}
	if err := requireState(ls, StateSettling, StatePurchasing, StatePurging); err != nil {
		return err
	}
	locked, err := e.gate.Locked()
	if err != nil {
		return err
	}
	if locked {
		return ErrBettingPaused
	}
	if amount < e.params.MinFlip {
		return fmt.Errorf("%w: amount %d below minimum %d", ErrInvalidBet, amount, e.params.MinFlip)
	}
	if _, err := e.flipPayout(amount); err != nil {
		return fmt.Errorf("%w: amount %d too large", ErrInvalidBet, amount)
	}
	if err := e.coins.Burn(player, amount); err != nil {
		return err
	}
	if _, err := e.store.flipRoster().Append(Flip{Player: player, Amount: amount, Level: ls.Level}); err != nil {
		return err
	}
	if err := e.bumpScore(BoardFlip, ls.Level, player, amount); err != nil {
		return err
	}
	if err := e.bumpScore(BoardBurn, ls.Level, player, amount); err != nil {
		return err
	}
	return e.progressQuest(player, QuestFlip, amount, 0, now)
}

// flipPayout is what a winning flip of amount mints.
func (e *Engine) flipPayout(amount uint64) (uint64, error) {
	return mulDiv(amount, 2*(10_000-e.params.HouseEdgeBps), 10_000)
}

// drainFlips resolves up to limit queued flips placed before the last
// consumed word. It reports how many it resolved and whether more remain.
func (e *Engine) drainFlips(limit int) (int, bool, error) {
	meta, err := e.store.Meta()
	if err != nil {
		return 0, false, err
	}
	cur, err := e.store.Cursor(keyCursorFlip)
	if err != nil {
		return 0, false, err
	}
	cur.Extend(meta.BetCutoff)
	if cur.Done() {
		return 0, false, nil
	}
	var won, lost int
	n, done, err := ProcessBatch(e.store.flipRoster(), cur, limit, func(i uint64, f Flip) error {
		win := Derive(meta.BetWord, saltFlip, i).Uint64()%2 == 0
		var payout uint64
		if win {
			var err error
			if payout, err = e.flipPayout(f.Amount); err != nil {
				return err
			}
			if err := e.coins.Mint(f.Player, payout); err != nil {
				return fmt.Errorf("flip payout: %w", err)
			}
			won++
		} else {
			lost++
		}
		e.notify(EventFlipResolved, map[string]any{
			"player": f.Player, "amount": f.Amount, "win": win, "payout": payout,
		})
		return nil
	})
	if err != nil {
		return n, false, err
	}
	if err := e.store.SetCursor(keyCursorFlip, cur); err != nil {
		return n, false, err
	}
	e.log.Debug("flips drained", "processed", n, "won", won, "lost", lost, "remaining", cur.Remaining())
	return n, !done, nil
}
