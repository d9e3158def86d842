package game

import (
	"fmt"
	"sort"
)

// Leaderboards tracked per level.
const (
	BoardAffiliate = "affiliate"
	BoardFlip      = "flip"
	BoardBurn      = "burn"
)

// LeaderEntry is one row of a leaderboard.
type LeaderEntry struct {
	Player string `json:"player"`
	Score  uint64 `json:"score"`
}

func scoreKey(board string, level uint32, player string) string {
	return fmt.Sprintf("score:%s:%d:%s", board, level, player)
}

func topKey(board string, level uint32) string {
	return fmt.Sprintf("top:%s:%d", board, level)
}

// LeaderboardTop returns up to n leaders of board at level, best first.
func (s *Store) LeaderboardTop(board string, level uint32, n int) ([]LeaderEntry, error) {
	var top []LeaderEntry
	if _, err := s.getJSON(topKey(board, level), &top); err != nil {
		return nil, err
	}
	if n > 0 && len(top) > n {
		top = top[:n]
	}
	return top, nil
}

// leader returns the best player of board at level, or "".
func (s *Store) leader(board string, level uint32) (string, error) {
	top, err := s.LeaderboardTop(board, level, 1)
	if err != nil || len(top) == 0 {
		return "", err
	}
	return top[0].Player, nil
}

// bumpScore adds delta to player's score and keeps the top list sorted.
// Among equal scores the player who got there first ranks higher.
func (e *Engine) bumpScore(board string, level uint32, player string, delta uint64) error {
	if delta == 0 {
		return nil
	}
	key := scoreKey(board, level, player)
	score, err := e.store.getUint(key)
	if err != nil {
		return err
	}
	if score, err = addChecked(score, delta); err != nil {
		return err
	}
	if err := e.store.setUint(key, score); err != nil {
		return err
	}

	top, err := e.store.LeaderboardTop(board, level, 0)
	if err != nil {
		return err
	}
	found := false
	for i := range top {
		if top[i].Player == player {
			top[i].Score = score
			found = true
			break
		}
	}
	if !found {
		top = append(top, LeaderEntry{Player: player, Score: score})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Score > top[j].Score })
	if len(top) > e.params.LeaderboardSize {
		top = top[:e.params.LeaderboardSize]
	}
	return e.store.setJSON(topKey(board, level), top)
}
