package game

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStakePayoutScenario(t *testing.T) {
	// 5000 at risk 5, distance 30, 32 levels elapsed: 8 compounds of 1.78%.
	p, err := StakePayout(5_000, 5, 30, 32)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_757), p)
	p, err = StakePayout(5_000, 5, 30, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), p, "no compound before four levels")
}

func TestStakePayoutMonotonic(t *testing.T) {
	const principal = 1_000_000
	for risk := uint8(MinRisk); risk <= MaxRisk; risk++ {
		prev := uint64(0)
		for elapsed := uint32(4); elapsed <= 400; elapsed += 4 {
			p, err := StakePayout(principal, risk, elapsed, elapsed)
			require.NoError(t, err)
			assert.Greater(t, p, prev, "risk %d elapsed %d", risk, elapsed)
			prev = p
		}
	}
	for _, distance := range []uint32{4, 30, 100, 200, 500} {
		prev := uint64(0)
		for risk := uint8(MinRisk); risk <= MaxRisk; risk++ {
			p, err := StakePayout(principal, risk, distance, distance)
			require.NoError(t, err)
			assert.Greater(t, p, prev, "distance %d risk %d", distance, risk)
			prev = p
		}
	}
}

func TestStakeValidation(t *testing.T) {
	h := newHarness(t)
	h.coins.bal["alice"] = 10_000

	err := h.engine.Stake("alice", 1_000, 2, 1, 1)
	assert.ErrorIs(t, err, ErrPhaseClosed, "idle game takes no stakes")

	h.drive(1)
	least := h.params.MinStakePrincipal
	for name, tc := range map[string]struct {
		principal uint64
		target    uint32
		risk      uint8
	}{
		"risk zero":     {least, 2, 0},
		"risk too high": {least, 2, MaxRisk + 1},
		"below minimum": {least - 1, 2, 1},
		"current level": {least, 1, 1},
		"too far":       {least, 2 + h.params.MaxStakeDistance, 1},
		"lane overflow": {MaxLanePrincipal + 1, 2, 1},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, h.engine.Stake("alice", tc.principal, tc.target, tc.risk, 1), ErrStakeInvalid)
		})
	}
	assert.Equal(t, uint64(10_000), h.coins.bal["alice"])

	assert.ErrorIs(t, h.engine.Stake("bob", least, 2, 1, 1), ErrInsufficient)
}

func TestStakeRejectsUnpayablePayout(t *testing.T) {
	h := newHarness(t, func(p *Params) { p.MaxStakeDistance = 4_000 })
	h.coins.bal["alice"] = MaxLanePrincipal
	h.drive(1)

	err := h.engine.Stake("alice", MaxLanePrincipal, 4_001, MinRisk, 1)
	assert.ErrorIs(t, err, ErrStakeInvalid)
	assert.False(t, IsFatal(err))
	assert.Equal(t, uint64(MaxLanePrincipal), h.coins.bal["alice"])

	require.NoError(t, h.engine.Stake("alice", h.params.MinStakePrincipal, 4_001, MinRisk, 1))
}

func TestStakeMergesLane(t *testing.T) {
	h := newHarness(t, func(p *Params) { p.QuestReward, p.QuestStreakBonus = 0, 0 })
	h.coins.bal["alice"] = 10_000
	h.drive(1)

	require.NoError(t, h.engine.Stake("alice", 1_000, 5, 3, 1))
	require.NoError(t, h.engine.Stake("alice", 2_000, 5, 3, 1))
	assert.ErrorIs(t, h.engine.Stake("alice", 1_000, 5, 4, 1), ErrStakeInvalid)
	assert.Equal(t, uint64(7_000), h.coins.bal["alice"])

	n, err := h.store.stakeRoster(5).Len()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n, "merged stakes share a roster entry")

	pos, err := h.engine.Position("alice", 5)
	require.NoError(t, err)
	assert.Equal(t, &StakePosition{Player: "alice", Principal: 3_000, TargetLevel: 5, Risk: 3, PlacedLevel: 1}, pos)

	none, err := h.engine.Position("bob", 5)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestResolveStakesInBatches(t *testing.T) {
	h := newHarness(t, func(p *Params) { p.QuestReward, p.QuestStreakBonus = 0, 0 })
	h.budget = 16
	h.drive(1)

	const stakers = 150
	for i := 0; i < stakers; i++ {
		player := fmt.Sprintf("s%03d", i)
		h.coins.bal[player] = 10_000
		require.NoError(t, h.engine.Stake(player, 1_000+uint64(i), 2, uint8(1+i%MaxRisk), 1))
	}
	for i := 0; i < 5; i++ {
		h.buy(fmt.Sprintf("p%d", i), 20, 1)
	}
	h.driveTo(1, 2, StatePurchasing, PhaseAccumulate)

	assert.Equal(t, stakers, h.events.count(EventStakeResolved))
	var processed []int
	for _, r := range h.results {
		if r.Step == "stakes" {
			processed = append(processed, r.Processed)
		}
	}
	require.NotEmpty(t, processed)
	total := 0
	for _, n := range processed {
		assert.LessOrEqual(t, n, 16)
		total += n
	}
	assert.Equal(t, stakers, total)

	var best string
	var bestPrincipal uint64
	for i := 0; i < stakers; i++ {
		player := fmt.Sprintf("s%03d", i)
		lane, err := h.store.Lane(player, 2)
		require.NoError(t, err)
		assert.Zero(t, lane, "lane %s resolved", player)

		principal := 1_000 + uint64(i)
		left := 10_000 - principal
		got := h.coins.bal[player]
		// Distance 1 never compounds: a win returns the principal.
		assert.Contains(t, []uint64{left, left + principal}, got)
		if got > left && principal > bestPrincipal {
			best, bestPrincipal = player, principal
		}
	}
	require.NotEmpty(t, best)
	tr, err := h.store.TrophyAt(2, TrophyStake)
	require.NoError(t, err)
	assert.Equal(t, best, tr.Owner)
}

func TestQuoteStake(t *testing.T) {
	q, err := QuoteStake(5_000, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_064), q.Payout)
	assert.Equal(t, uint32(1), q.Compounds)
	assert.True(t, q.Multiplier.Equal(decimal.RequireFromString("1.0128")), q.Multiplier.String())
	assert.True(t, q.ForfeitChance.Equal(decimal.RequireFromString("0.1")), q.ForfeitChance.String())

	_, err = QuoteStake(5_000, 12, 4)
	assert.ErrorIs(t, err, ErrStakeInvalid)
	_, err = QuoteStake(0, 1, 4)
	assert.ErrorIs(t, err, ErrStakeInvalid)
}
