package game

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/tolelom/purgechain/core"
)

// Piece is the game-side record of a live gamepiece.
type Piece struct {
	ID     string    `json:"id"`
	Level  uint32    `json:"level"`
	Traits [4]uint16 `json:"traits"`
}

func pieceKey(id string) string { return "piece:" + id }

// Piece loads a live gamepiece.
func (s *Store) Piece(id string) (*Piece, error) {
	var p Piece
	ok, err := s.getJSON(pieceKey(id), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("gamepiece %s: %w", id, core.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) SetPiece(p *Piece) error { return s.setJSON(pieceKey(p.ID), p) }

func (s *Store) DeletePiece(id string) error { return s.state.DeleteGameData(pieceKey(id)) }

// purchaseLevel is the level a purchase made now mints for.
func purchaseLevel(ls *LevelState) (uint32, error) {
	switch {
	case ls.State == StatePurchasing && ls.Phase == PhaseAccumulate:
		return ls.Level, nil
	case ls.State == StatePurging:
		return ls.Level + 1, nil
	}
	return 0, fmt.Errorf("%w: purchases closed while %s phase %d", ErrPhaseClosed, ls.State, ls.Phase)
}

// Purchase sells qty gamepieces to player for the level being funded.
// txID seeds the traits of the minted pieces.
func (e *Engine) Purchase(player string, qty int, affiliateCode, txID string, now int64) ([]string, error) {
	ls, err := e.store.LevelState()
	if err != nil {
		return nil, err
	}
	level, err := purchaseLevel(ls)
	if err != nil {
		return nil, err
	}
	if qty <= 0 || qty > e.params.MaxPurchase {
		return nil, fmt.Errorf("%w: quantity %d outside 1..%d", ErrInvalidPurchase, qty, e.params.MaxPurchase)
	}
	hi, cost := bits.Mul64(uint64(qty), e.params.PiecePrice)
	if hi != 0 {
		return nil, fmt.Errorf("%w: cost overflows", ErrInvalidPurchase)
	}

	referrer := ""
	if affiliateCode != "" {
		owner, err := e.affiliates.CodeOwner(affiliateCode)
		if err != nil {
			return nil, err
		}
		if owner == "" {
			return nil, fmt.Errorf("%w: unknown affiliate code %q", ErrInvalidPurchase, affiliateCode)
		}
		if owner != player {
			referrer = owner
		}
	}

	pool, err := e.store.Pool()
	if err != nil {
		return nil, err
	}
	if err := e.fund(pool, player, cost); err != nil {
		return nil, err
	}
	meta, err := e.store.Meta()
	if err != nil {
		return nil, err
	}
	counts, err := e.store.TraitCounts(level)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, qty)
	for i := 0; i < qty; i++ {
		meta.NextPieceID++
		p := &Piece{
			ID:     fmt.Sprintf("piece-%d", meta.NextPieceID),
			Level:  level,
			Traits: pieceTraits(pieceSeed(txID, i)),
		}
		props := map[string]any{"level": level, "traits": p.Traits[:]}
		if err := e.assets.Mint(p.ID, TemplateGamepiece, player, props); err != nil {
			return nil, fmt.Errorf("mint gamepiece: %w", err)
		}
		if err := e.store.SetPiece(p); err != nil {
			return nil, err
		}
		if _, err := e.store.pieceRoster(level).Append(p.ID); err != nil {
			return nil, err
		}
		for _, t := range p.Traits {
			counts[t]++
			if _, err := e.store.mintTickets(level, t).Append(player); err != nil {
				return nil, err
			}
		}
		ids = append(ids, p.ID)
	}

	if err := e.store.SetTraitCounts(level, counts); err != nil {
		return nil, err
	}
	if err := e.store.SetMeta(meta); err != nil {
		return nil, err
	}
	if err := e.store.SetPool(pool); err != nil {
		return nil, err
	}
	if referrer != "" {
		if err := e.bumpScore(BoardAffiliate, level, referrer, cost); err != nil {
			return nil, err
		}
	}
	if err := e.progressQuest(player, QuestPurchase, uint64(qty), 0, now); err != nil {
		return nil, err
	}
	return ids, nil
}

// PurgeResult reports a purge.
type PurgeResult struct {
	Burned       int    `json:"burned"`
	Reward       uint64 `json:"reward"`
	Exterminated bool   `json:"exterminated"`
	Trait        uint16 `json:"trait,omitempty"`
}

// Purge burns player's gamepieces of the current level. The purge that
// takes the last live piece of any trait exterminates it; the rest of the
// ids are left untouched and the level stops accepting purges.
func (e *Engine) Purge(player string, ids []string, now int64) (*PurgeResult, error) {
	ls, err := e.store.LevelState()
	if err != nil {
		return nil, err
	}
	if ls.State != StatePurging || ls.Phase != PhaseDaily || ls.Exterminated {
		return nil, fmt.Errorf("%w: purging closed", ErrPhaseClosed)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no gamepieces given", ErrInvalidPurchase)
	}
	counts, err := e.store.TraitCounts(ls.Level)
	if err != nil {
		return nil, err
	}
	burns, err := e.store.BurnCounts()
	if err != nil {
		return nil, err
	}

	res := &PurgeResult{}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("%w: gamepiece %s listed twice", ErrInvalidPurchase, id)
		}
		seen[id] = true
		p, err := e.store.Piece(id)
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		if err != nil {
			return nil, err
		}
		asset, err := e.assets.Get(id)
		if err != nil {
			return nil, err
		}
		if asset.Owner != player {
			return nil, fmt.Errorf("%w: %s does not hold %s", ErrUnauthorized, player, id)
		}
		if asset.ActiveListingID != "" {
			return nil, fmt.Errorf("%w: %s is listed for sale", ErrUnauthorized, id)
		}
		if p.Level != ls.Level {
			return nil, fmt.Errorf("%w: %s belongs to level %d", ErrPhaseClosed, id, p.Level)
		}
		if err := e.assets.Burn(id); err != nil {
			return nil, fmt.Errorf("purge %s: %w", id, err)
		}
		if err := e.store.DeletePiece(id); err != nil {
			return nil, err
		}
		res.Burned++

		extinct := TraitNone
		for _, t := range p.Traits {
			if counts[t] == 0 {
				return nil, fmt.Errorf("%w: trait %d count underflow", ErrInvariantBroken, t)
			}
			counts[t]--
			burns[t]++
			if _, err := e.store.burnTickets(ls.Level, t).Append(player); err != nil {
				return nil, err
			}
			if counts[t] == 0 && extinct == TraitNone {
				extinct = t
			}
		}
		if extinct != TraitNone {
			ls.Exterminated = true
			ls.ExterminatedTrait = extinct
			res.Exterminated, res.Trait = true, extinct
			if err := e.store.SetOutcome(&Outcome{Level: ls.Level, Exterminator: player, Trait: extinct}); err != nil {
				return nil, err
			}
			if err := e.store.SetLevelState(ls); err != nil {
				return nil, err
			}
			e.log.Info("exterminated", "level", ls.Level, "trait", extinct, "player", player)
			e.notify(EventExterminated, map[string]any{"level": ls.Level, "trait": extinct, "player": player})
			break
		}
	}

	if err := e.store.SetTraitCounts(ls.Level, counts); err != nil {
		return nil, err
	}
	if err := e.store.SetBurnCounts(burns); err != nil {
		return nil, err
	}
	res.Reward = e.params.PurgeCoinReward * uint64(res.Burned)
	if res.Reward > 0 {
		if err := e.coins.Mint(player, res.Reward); err != nil {
			return nil, fmt.Errorf("purge reward: %w", err)
		}
	}
	if err := e.progressQuest(player, QuestPurge, uint64(res.Burned), 0, now); err != nil {
		return nil, err
	}
	return res, nil
}

// pieceSeed seeds the traits of the i-th piece minted by a transaction.
func pieceSeed(txID string, i int) Word {
	return Derive(Keccak([]byte(txID)), saltPieceTrait, uint64(i))
}
