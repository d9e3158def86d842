package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelStatePacking(t *testing.T) {
	ls := &LevelState{
		Level:             MaxLevel,
		State:             StatePurging,
		Phase:             PhaseReveal,
		DailyIndex:        1<<48 - 1,
		LevelStartTime:    1_700_000_000,
		JackpotCounter:    DailyJackpotCap,
		ExterminatedTrait: TraitTimeout,
		Exterminated:      true,
		RngLocked:         true,
		RngRequestedAt:    1_700_000_123,
	}
	b := ls.Pack()
	require.Len(t, b, 32)
	assert.Equal(t, []byte{0x00, 0x00, 0x65, 0x53, 0xf1, 0x7b}, b[12:18])
	assert.Equal(t, []byte{0xff, 0xff, 0xff}, b[18:21])
	assert.Equal(t, byte(StatePurging), b[21])
	assert.Equal(t, []byte{0x01, 0xa4}, b[24:26])
	assert.Equal(t, flagExterminated|flagRngLocked, b[26])
	assert.Equal(t, make([]byte, 5), b[27:])

	got, err := UnpackLevelState(b)
	require.NoError(t, err)
	assert.Equal(t, ls, got)
}

func TestUnpackLevelStateRejectsGarbage(t *testing.T) {
	_, err := UnpackLevelState(make([]byte, 31))
	assert.Error(t, err)

	b := (&LevelState{}).Pack()
	b[21] = 9
	_, err = UnpackLevelState(b)
	assert.Error(t, err)
}

func TestStoreRejectsLevelOverflow(t *testing.T) {
	h := newHarness(t)
	err := h.store.SetLevelState(&LevelState{Level: MaxLevel + 1})
	assert.True(t, IsFatal(err))
	err = h.store.SetRng(&RngRequest{RequestedAt: 1 << 48})
	assert.True(t, IsFatal(err))
}

func TestRngFlagsLiveInHeader(t *testing.T) {
	h := newHarness(t)
	stale, err := h.store.LevelState()
	require.NoError(t, err)

	require.NoError(t, h.store.SetRng(&RngRequest{Locked: true, RequestID: 7, RequestedAt: 99, Word: Word{1}}))
	ls, err := h.store.LevelState()
	require.NoError(t, err)
	assert.True(t, ls.RngLocked)
	assert.False(t, ls.RngFulfilled)
	assert.Equal(t, int64(99), ls.RngRequestedAt)

	// A header loaded before the request must not clear it.
	stale.Level, stale.State = 3, StatePurchasing
	require.NoError(t, h.store.SetLevelState(stale))
	r, err := h.store.Rng()
	require.NoError(t, err)
	assert.Equal(t, &RngRequest{Locked: true, RequestID: 7, RequestedAt: 99, Word: Word{1}}, r)
	assert.Equal(t, uint32(3), h.level().Level)
}

func TestLanePacking(t *testing.T) {
	lane := PackLane(MaxLanePrincipal, MaxRisk)
	principal, risk := UnpackLane(lane)
	assert.Equal(t, uint64(MaxLanePrincipal), principal)
	assert.Equal(t, uint8(MaxRisk), risk)

	principal, risk = UnpackLane(PackLane(5_000, 5))
	assert.Equal(t, uint64(5_000), principal)
	assert.Equal(t, uint8(5), risk)
}

func TestWordText(t *testing.T) {
	w := Keccak([]byte("x"))
	data, err := json.Marshal(struct{ W Word }{w})
	require.NoError(t, err)
	assert.Contains(t, string(data), w.Hex())

	var back struct{ W Word }
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, w, back.W)

	_, err = ParseWord("abcd")
	assert.Error(t, err)
	_, err = ParseWord("zz")
	assert.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsRetryable(ErrNotTimeYet))
	assert.True(t, IsRetryable(ErrRngNotReady))
	assert.True(t, IsRetryable(ErrBettingPaused))
	assert.False(t, IsRetryable(ErrStakeInvalid))
	assert.False(t, IsRetryable(ErrInsufficient))
	assert.True(t, IsFatal(ErrInvariantBroken))

	assert.Equal(t, "stake_invalid", Code(ErrStakeInvalid))
	assert.Equal(t, "", Code(assert.AnError))
}
