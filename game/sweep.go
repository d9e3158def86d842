package game

import (
	"errors"
	"fmt"

	"github.com/tolelom/purgechain/core"
)

// sweepDormant burns the gamepieces of a finished level that were never
// purged. Pieces already gone are skipped.
func (e *Engine) sweepDormant(level uint32, limit int) (int, bool, error) {
	roster := e.store.pieceRoster(level)
	n, err := roster.Len()
	if err != nil {
		return 0, false, err
	}
	cur, err := e.store.Cursor(keyCursorSweep)
	if err != nil {
		return 0, false, err
	}
	cur.Begin(level, n)
	if cur.Done() {
		return 0, true, nil
	}
	burned := 0
	processed, done, err := ProcessBatch(roster, cur, limit, func(_ uint64, id string) error {
		if _, err := e.assets.Get(id); errors.Is(err, core.ErrNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		if err := e.assets.Burn(id); err != nil {
			return fmt.Errorf("sweep %s: %w", id, err)
		}
		if err := e.store.DeletePiece(id); err != nil {
			return err
		}
		burned++
		return nil
	})
	if err != nil {
		return processed, false, err
	}
	if err := e.store.SetCursor(keyCursorSweep, cur); err != nil {
		return processed, false, err
	}
	if burned > 0 {
		e.notify(EventPiecesSwept, map[string]any{"level": level, "burned": burned})
	}
	return processed, done, nil
}
