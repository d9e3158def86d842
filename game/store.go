package game

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/purgechain/core"
)

const (
	keyLevel       = "level"
	keyRng         = "rng"
	keyPool        = "pool"
	keyMeta        = "meta"
	keyBurnCounts  = "burncounts"
	keyFlipRoster  = "flips"
	keyCursorStake = "cursor:stake"
	keyCursorSweep = "cursor:sweep"
	keyCursorFlip  = "cursor:flip"
)

// Store gives typed access to the game records kept in ledger state.
type Store struct {
	state core.State
}

// NewStore wraps state.
func NewStore(state core.State) *Store {
	return &Store{state: state}
}

func (s *Store) getJSON(key string, v any) (bool, error) {
	data, err := s.state.GetGameData(key)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.state.SetGameData(key, data)
}

func (s *Store) getUint(key string) (uint64, error) {
	data, err := s.state.GetGameData(key)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("decode %s: want 8 bytes, got %d", key, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// setUint stores v, deleting the key when v is zero.
func (s *Store) setUint(key string, v uint64) error {
	if v == 0 {
		return s.state.DeleteGameData(key)
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return s.state.SetGameData(key, b[:])
}

// ---- level header ----

// LevelState returns the header; a fresh game is Idle at level 0.
func (s *Store) LevelState() (*LevelState, error) {
	data, err := s.state.GetGameData(keyLevel)
	if errors.Is(err, core.ErrNotFound) {
		return &LevelState{State: StateIdle, ExterminatedTrait: TraitNone}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read level state: %w", err)
	}
	return UnpackLevelState(data)
}

// SetLevelState writes ls, keeping the randomness fields already stored.
func (s *Store) SetLevelState(ls *LevelState) error {
	if ls.Level > MaxLevel {
		return fmt.Errorf("%w: level %d exceeds 24 bits", ErrInvariantBroken, ls.Level)
	}
	stored, err := s.LevelState()
	if err != nil {
		return err
	}
	out := *ls
	out.RngLocked, out.RngFulfilled, out.RngRequestedAt = stored.RngLocked, stored.RngFulfilled, stored.RngRequestedAt
	return s.state.SetGameData(keyLevel, out.Pack())
}

// ---- singletons ----

// rngRecord is the part of RngRequest kept outside the header.
type rngRecord struct {
	Word      Word   `json:"word"`
	RequestID uint64 `json:"request_id"`
	LastWord  Word   `json:"last_word"`
}

func (s *Store) Rng() (*RngRequest, error) {
	ls, err := s.LevelState()
	if err != nil {
		return nil, err
	}
	var rec rngRecord
	if _, err := s.getJSON(keyRng, &rec); err != nil {
		return nil, err
	}
	return &RngRequest{
		Locked:      ls.RngLocked,
		Fulfilled:   ls.RngFulfilled,
		Word:        rec.Word,
		RequestID:   rec.RequestID,
		RequestedAt: ls.RngRequestedAt,
		LastWord:    rec.LastWord,
	}, nil
}

// SetRng writes r, touching only the randomness fields of the header.
func (s *Store) SetRng(r *RngRequest) error {
	if r.RequestedAt < 0 || r.RequestedAt >= 1<<48 {
		return fmt.Errorf("%w: request time %d exceeds 48 bits", ErrInvariantBroken, r.RequestedAt)
	}
	ls, err := s.LevelState()
	if err != nil {
		return err
	}
	ls.RngLocked, ls.RngFulfilled, ls.RngRequestedAt = r.Locked, r.Fulfilled, r.RequestedAt
	if err := s.state.SetGameData(keyLevel, ls.Pack()); err != nil {
		return err
	}
	return s.setJSON(keyRng, rngRecord{Word: r.Word, RequestID: r.RequestID, LastWord: r.LastWord})
}

func (s *Store) Pool() (*PrizePool, error) {
	var p PrizePool
	_, err := s.getJSON(keyPool, &p)
	return &p, err
}

func (s *Store) SetPool(p *PrizePool) error { return s.setJSON(keyPool, p) }

func (s *Store) Meta() (*Meta, error) {
	var m Meta
	_, err := s.getJSON(keyMeta, &m)
	return &m, err
}

func (s *Store) SetMeta(m *Meta) error { return s.setJSON(keyMeta, m) }

// ---- cursors ----

func (s *Store) Cursor(key string) (*Cursor, error) {
	var c Cursor
	_, err := s.getJSON(key, &c)
	return &c, err
}

func (s *Store) SetCursor(key string, c *Cursor) error { return s.setJSON(key, c) }

// ---- per-level records ----

func outcomeKey(level uint32) string { return fmt.Sprintf("outcome:%d", level) }

// Outcome returns the recorded end of level, or a pending outcome.
func (s *Store) Outcome(level uint32) (*Outcome, error) {
	o := Outcome{Level: level, Trait: TraitNone}
	_, err := s.getJSON(outcomeKey(level), &o)
	return &o, err
}

func (s *Store) SetOutcome(o *Outcome) error { return s.setJSON(outcomeKey(o.Level), o) }

func traitCountsKey(level uint32) string { return fmt.Sprintf("traits:%d", level) }

// TraitCounts returns how many live gamepieces of level carry each trait.
func (s *Store) TraitCounts(level uint32) (*[NumTraits]uint32, error) {
	var counts [NumTraits]uint32
	_, err := s.getJSON(traitCountsKey(level), &counts)
	return &counts, err
}

func (s *Store) SetTraitCounts(level uint32, counts *[NumTraits]uint32) error {
	return s.setJSON(traitCountsKey(level), counts)
}

// BurnCounts returns today's burns per trait.
func (s *Store) BurnCounts() (*[NumTraits]uint32, error) {
	var counts [NumTraits]uint32
	_, err := s.getJSON(keyBurnCounts, &counts)
	return &counts, err
}

func (s *Store) SetBurnCounts(counts *[NumTraits]uint32) error {
	return s.setJSON(keyBurnCounts, counts)
}

func (s *Store) ResetBurnCounts() error {
	return s.state.DeleteGameData(keyBurnCounts)
}

func stakeLeaderKey(level uint32) string { return fmt.Sprintf("staketop:%d", level) }

func (s *Store) StakeLeader(level uint32) (*StakeLeader, error) {
	var l StakeLeader
	_, err := s.getJSON(stakeLeaderKey(level), &l)
	return &l, err
}

func (s *Store) SetStakeLeader(level uint32, l *StakeLeader) error {
	return s.setJSON(stakeLeaderKey(level), l)
}

// ---- per-player records ----

func laneKey(player string, target uint32) string { return fmt.Sprintf("lane:%s:%d", player, target) }

// Lane returns the packed stake lane of player at target (0 when empty).
func (s *Store) Lane(player string, target uint32) (uint64, error) {
	return s.getUint(laneKey(player, target))
}

func (s *Store) SetLane(player string, target uint32, lane uint64) error {
	return s.setUint(laneKey(player, target), lane)
}

func claimableKey(player string) string { return "claimable:" + player }

// Claimable returns the native units player may withdraw.
func (s *Store) Claimable(player string) (uint64, error) {
	return s.getUint(claimableKey(player))
}

func (s *Store) SetClaimable(player string, v uint64) error {
	return s.setUint(claimableKey(player), v)
}

// ---- rosters ----

// Roster is an append-only list stored one entry per key.
type Roster[T any] struct {
	store *Store
	key   string
}

// NewRoster opens the roster stored under key.
func NewRoster[T any](s *Store, key string) *Roster[T] {
	return &Roster[T]{store: s, key: "roster:" + key}
}

func (r *Roster[T]) Len() (uint64, error) {
	return r.store.getUint(r.key + ":len")
}

func (r *Roster[T]) At(i uint64) (T, error) {
	var v T
	ok, err := r.store.getJSON(fmt.Sprintf("%s:%d", r.key, i), &v)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: roster %s has no entry %d", ErrInvariantBroken, r.key, i)
	}
	return v, nil
}

// Append stores v and returns its index.
func (r *Roster[T]) Append(v T) (uint64, error) {
	n, err := r.Len()
	if err != nil {
		return 0, err
	}
	if err := r.store.setJSON(fmt.Sprintf("%s:%d", r.key, n), v); err != nil {
		return 0, err
	}
	return n, r.store.setUint(r.key+":len", n+1)
}

func pieceRosterKey(level uint32) string { return fmt.Sprintf("pieces:%d", level) }
func stakeRosterKey(level uint32) string { return fmt.Sprintf("stakes:%d", level) }
func mintTicketKey(level uint32, trait uint16) string {
	return fmt.Sprintf("mint:%d:%d", level, trait)
}
func burnTicketKey(level uint32, trait uint16) string {
	return fmt.Sprintf("burn:%d:%d", level, trait)
}

func (s *Store) pieceRoster(level uint32) *Roster[string] {
	return NewRoster[string](s, pieceRosterKey(level))
}

func (s *Store) stakeRoster(level uint32) *Roster[StakeEntry] {
	return NewRoster[StakeEntry](s, stakeRosterKey(level))
}

func (s *Store) flipRoster() *Roster[Flip] {
	return NewRoster[Flip](s, keyFlipRoster)
}

func (s *Store) mintTickets(level uint32, trait uint16) *Roster[string] {
	return NewRoster[string](s, mintTicketKey(level, trait))
}

func (s *Store) burnTickets(level uint32, trait uint16) *Roster[string] {
	return NewRoster[string](s, burnTicketKey(level, trait))
}
