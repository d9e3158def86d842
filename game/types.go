// Package game implements the purge level state machine: randomness gating,
// bounded roster processing, the prize pool, jackpots, stakes, settlement
// and trophies. Every entry point runs inside a single ledger transaction
// and leaves state consistent whether it completes or returns early.
package game

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// GameState is the coarse state of the level machine.
type GameState uint8

const (
	StateIdle GameState = iota
	StateSettling
	StatePurchasing
	StatePurging
)

func (s GameState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSettling:
		return "settling"
	case StatePurchasing:
		return "purchasing"
	case StatePurging:
		return "purging"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Settling phases.
const (
	PhaseSettleEndgame uint8 = iota
	PhaseSettleOpen
	PhaseSettleSweep
	PhaseSettleStakes
)

// Purchasing phases.
const (
	PhaseAccumulate uint8 = iota
	PhaseMapJackpot
	PhaseRecycle
	PhasePrime
)

// Purging phases.
const (
	PhaseDaily uint8 = iota
	PhaseMaintenance
	PhaseReveal
	PhaseEnd
)

const (
	// TraitTimeout marks a level that ended without an extermination.
	TraitTimeout uint16 = 420
	// TraitNone marks a level whose outcome is not known yet.
	TraitNone uint16 = 0xFFFF

	// NumTraits is the trait space: four quadrants of 64.
	NumTraits = 256
	// DailyJackpotCap is the number of daily jackpots per level.
	DailyJackpotCap = 10
	// MaxLevel is the largest level representable in the packed header.
	MaxLevel = 1<<24 - 1
)

const (
	flagExterminated uint8 = 1 << iota
	flagRngLocked
	flagRngFulfilled
)

// LevelState is the hot header of the state machine. It is persisted as a
// single packed 32-byte word; see Pack for the layout. The Rng fields
// mirror the randomness gate and are written only through Store.SetRng.
type LevelState struct {
	Level             uint32    `json:"level"`
	State             GameState `json:"state"`
	Phase             uint8     `json:"phase"`
	DailyIndex        uint64    `json:"daily_index"`
	LevelStartTime    int64     `json:"level_start_time"`
	JackpotCounter    uint8     `json:"jackpot_counter"`
	ExterminatedTrait uint16    `json:"exterminated_trait"`
	Exterminated      bool      `json:"exterminated"`
	RngLocked         bool      `json:"rng_locked"`
	RngFulfilled      bool      `json:"rng_fulfilled"`
	RngRequestedAt    int64     `json:"rng_requested_at"`
}

const packedLevelStateSize = 32

// Pack encodes the header big-endian:
//
//	[0:6]   level start time (unix seconds, 48 bits)
//	[6:12]  daily index (48 bits)
//	[12:18] randomness request time (unix seconds, 48 bits)
//	[18:21] level (24 bits)
//	[21]    game state
//	[22]    phase
//	[23]    jackpot counter
//	[24:26] exterminated trait
//	[26]    flags: exterminated, rng locked, rng fulfilled
//	[27:32] reserved
func (ls *LevelState) Pack() []byte {
	var b [packedLevelStateSize]byte
	put48(b[0:6], uint64(ls.LevelStartTime))
	put48(b[6:12], ls.DailyIndex)
	put48(b[12:18], uint64(ls.RngRequestedAt))
	b[18] = byte(ls.Level >> 16)
	b[19] = byte(ls.Level >> 8)
	b[20] = byte(ls.Level)
	b[21] = byte(ls.State)
	b[22] = ls.Phase
	b[23] = ls.JackpotCounter
	binary.BigEndian.PutUint16(b[24:26], ls.ExterminatedTrait)
	b[26] = flag(ls.Exterminated, flagExterminated) |
		flag(ls.RngLocked, flagRngLocked) |
		flag(ls.RngFulfilled, flagRngFulfilled)
	return b[:]
}

// UnpackLevelState decodes a header written by Pack.
func UnpackLevelState(b []byte) (*LevelState, error) {
	if len(b) != packedLevelStateSize {
		return nil, fmt.Errorf("level state: want %d bytes, got %d", packedLevelStateSize, len(b))
	}
	ls := &LevelState{
		LevelStartTime:    int64(get48(b[0:6])),
		DailyIndex:        get48(b[6:12]),
		RngRequestedAt:    int64(get48(b[12:18])),
		Level:             uint32(b[18])<<16 | uint32(b[19])<<8 | uint32(b[20]),
		State:             GameState(b[21]),
		Phase:             b[22],
		JackpotCounter:    b[23],
		ExterminatedTrait: binary.BigEndian.Uint16(b[24:26]),
		Exterminated:      b[26]&flagExterminated != 0,
		RngLocked:         b[26]&flagRngLocked != 0,
		RngFulfilled:      b[26]&flagRngFulfilled != 0,
	}
	if ls.State > StatePurging {
		return nil, fmt.Errorf("level state: unknown game state %d", b[21])
	}
	return ls, nil
}

func flag(set bool, f uint8) uint8 {
	if set {
		return f
	}
	return 0
}

func put48(b []byte, v uint64) {
	for i := 5; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func get48(b []byte) uint64 {
	var v uint64
	for i := 0; i < 6; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// Word is a 256-bit randomness word.
type Word [32]byte

// Hex returns the lowercase hex encoding.
func (w Word) Hex() string { return hex.EncodeToString(w[:]) }

// IsZero reports whether no word has been set.
func (w Word) IsZero() bool { return w == Word{} }

// Uint64 returns the first eight bytes as a big-endian integer.
func (w Word) Uint64() uint64 { return binary.BigEndian.Uint64(w[:8]) }

func (w Word) MarshalText() ([]byte, error) {
	return []byte(w.Hex()), nil
}

func (w *Word) UnmarshalText(text []byte) error {
	parsed, err := ParseWord(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// ParseWord decodes a 64-character hex string.
func ParseWord(s string) (Word, error) {
	var w Word
	b, err := hex.DecodeString(s)
	if err != nil {
		return w, fmt.Errorf("word hex: %w", err)
	}
	if len(b) != len(w) {
		return w, fmt.Errorf("word must be %d bytes, got %d", len(w), len(b))
	}
	copy(w[:], b)
	return w, nil
}

// RngRequest tracks the single outstanding randomness request. Locked,
// Fulfilled and RequestedAt live in the packed level header; the rest is
// kept in a separate record.
type RngRequest struct {
	Locked      bool   `json:"locked"`
	Fulfilled   bool   `json:"fulfilled"`
	Word        Word   `json:"word"`
	RequestID   uint64 `json:"request_id"`
	RequestedAt int64  `json:"requested_at"`
	LastWord    Word   `json:"last_word"`
}

// PrizePool holds every native unit the game has received and not paid out.
type PrizePool struct {
	Carryover       uint64 `json:"carryover"`
	Current         uint64 `json:"current"`
	Next            uint64 `json:"next"`
	PendingRecycle  uint64 `json:"pending_recycle"`
	LastLevelPool   uint64 `json:"last_level_pool"`
	TotalClaimable  uint64 `json:"total_claimable"`
	TotalTrophyOwed uint64 `json:"total_trophy_owed"`
	Funded          uint64 `json:"funded"`
	Paid            uint64 `json:"paid"`
}

// Held is the sum of all buckets that still hold value.
func (p *PrizePool) Held() uint64 {
	return p.Carryover + p.Current + p.Next + p.PendingRecycle + p.TotalClaimable + p.TotalTrophyOwed
}

// StakeEntry is one roster row for a target level. The principal and risk
// live in the packed lane keyed by (player, target).
type StakeEntry struct {
	Player      string `json:"player"`
	PlacedLevel uint32 `json:"placed_level"`
}

// StakePosition is the decoded view of a lane.
type StakePosition struct {
	Player      string `json:"player"`
	Principal   uint64 `json:"principal"`
	TargetLevel uint32 `json:"target_level"`
	Risk        uint8  `json:"risk"`
	PlacedLevel uint32 `json:"placed_level"`
}

// Lane packing: principal in the high 56 bits, risk in the low 8.
const (
	laneRiskBits     = 8
	MaxLanePrincipal = 1<<56 - 1
)

// PackLane encodes principal and risk into one word.
func PackLane(principal uint64, risk uint8) uint64 {
	return principal<<laneRiskBits | uint64(risk)
}

// UnpackLane is the inverse of PackLane.
func UnpackLane(lane uint64) (principal uint64, risk uint8) {
	return lane >> laneRiskBits, uint8(lane)
}

// Flip is a queued coin flip.
type Flip struct {
	Player string `json:"player"`
	Amount uint64 `json:"amount"`
	Level  uint32 `json:"level"`
}

// Outcome records how a level ended.
type Outcome struct {
	Level        uint32 `json:"level"`
	Exterminator string `json:"exterminator,omitempty"`
	Trait        uint16 `json:"trait"`
}

// TimedOut reports whether the level ended without an extermination.
func (o *Outcome) TimedOut() bool { return o.Exterminator == "" }

// Meta holds counters and the inputs saved between calls.
type Meta struct {
	NextPieceID  uint64 `json:"next_piece_id"`
	NextTrophyID uint64 `json:"next_trophy_id"`
	BetCutoff    uint64 `json:"bet_cutoff"`
	BetWord      Word   `json:"bet_word"`
	SettleWord   Word   `json:"settle_word"`
	QuestSeed    Word   `json:"quest_seed"`
}

// StakeLeader tracks the largest winning principal while a stake roster
// is being resolved.
type StakeLeader struct {
	Player    string `json:"player"`
	Principal uint64 `json:"principal"`
}
