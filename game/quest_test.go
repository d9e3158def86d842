package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestBoardIsStable(t *testing.T) {
	h := newHarness(t)
	for day := uint64(0); day < 50; day++ {
		b := h.engine.deriveBoard(day, Keccak([]byte("seed")))
		assert.NotEqual(t, b.Quests[0].Type, b.Quests[1].Type, "day %d", day)
		for _, q := range b.Quests {
			assert.Less(t, q.Type, numQuestTypes)
			assert.NotZero(t, q.Target)
			if q.Type == QuestStake {
				assert.GreaterOrEqual(t, q.StakeRiskMin, uint8(1))
				assert.LessOrEqual(t, q.StakeRiskMin, uint8(5))
			}
		}
	}

	first, err := h.engine.QuestBoard(3)
	require.NoError(t, err)
	meta, err := h.store.Meta()
	require.NoError(t, err)
	meta.QuestSeed = Keccak([]byte("later"))
	require.NoError(t, h.store.SetMeta(meta))

	again, err := h.engine.QuestBoard(3)
	require.NoError(t, err)
	assert.Equal(t, first, again, "a rolled board does not change")

	require.NoError(t, h.engine.reseedQuests(2))
	reseeded, err := h.engine.QuestBoard(3)
	require.NoError(t, err)
	assert.Equal(t, meta.QuestSeed, reseeded.Seed)
}

func TestQuestsViewDoesNotWrite(t *testing.T) {
	h := newHarness(t)
	view, err := h.engine.Quests("alice", 10*h.params.DaySeconds+1)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), view.Board.Day)
	assert.Equal(t, uint64(10), view.State.Slots[0].Day)
	assert.Equal(t, view.Board.Quests[1].Type, view.State.Slots[1].Type)

	ok, err := h.store.getJSON(questBoardKey(10), &QuestBoard{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQuestStreak(t *testing.T) {
	h := newHarness(t)
	reward := func(streak uint64) uint64 {
		return h.params.QuestReward + min(streak, maxStreakBonus)*h.params.QuestStreakBonus
	}
	complete := func(day uint64) uint64 {
		t.Helper()
		now := int64(day)*h.params.DaySeconds + 1
		board, err := h.engine.QuestBoard(day)
		require.NoError(t, err)
		def := board.Quests[0]
		before := h.coins.bal["alice"]
		require.NoError(t, h.engine.progressQuest("alice", def.Type, def.Target, MaxRisk, now))
		return h.coins.bal["alice"] - before
	}

	assert.Equal(t, reward(1), complete(1))
	assert.Zero(t, complete(1), "completed quests pay once")
	assert.Equal(t, reward(2), complete(2))
	assert.Equal(t, reward(3), complete(3))
	assert.Equal(t, reward(1), complete(5), "a missed day resets the streak")
	assert.Equal(t, 4, h.events.count(EventQuestCompleted))

	q, err := h.store.QuestState("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), q.Streak)
	assert.Equal(t, uint64(5), q.LastCompletedDay)
	assert.True(t, q.Slots[0].Completed)
	assert.False(t, q.Slots[1].Completed)
}

func TestQuestStreakBonusIsCapped(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.SetQuestState("alice", &QuestState{Streak: 40, LastCompletedDay: 6}))
	board, err := h.engine.QuestBoard(7)
	require.NoError(t, err)
	def := board.Quests[1]
	require.NoError(t, h.engine.progressQuest("alice", def.Type, def.Target, MaxRisk, 7*h.params.DaySeconds+1))
	assert.Equal(t, h.params.QuestReward+maxStreakBonus*h.params.QuestStreakBonus, h.coins.bal["alice"])
}

func TestQuestProgressAccumulates(t *testing.T) {
	h := newHarness(t)
	board, err := h.engine.QuestBoard(0)
	require.NoError(t, err)
	def := board.Quests[0]

	require.NoError(t, h.engine.progressQuest("alice", def.Type, def.Target-1, MaxRisk, 1))
	assert.Zero(t, h.coins.bal["alice"])
	require.NoError(t, h.engine.progressQuest("alice", def.Type, 1, MaxRisk, 1))
	assert.Equal(t, h.params.QuestReward+h.params.QuestStreakBonus, h.coins.bal["alice"])
}

func TestStakeQuestNeedsRisk(t *testing.T) {
	h := newHarness(t)
	var day uint64
	var slot int
	found := false
	for d := uint64(0); d < 500 && !found; d++ {
		b := h.engine.deriveBoard(d, Word{})
		for i, q := range b.Quests {
			if q.Type == QuestStake && q.StakeRiskMin > 1 {
				day, slot, found = d, i, true
				break
			}
		}
	}
	require.True(t, found)

	now := int64(day)*h.params.DaySeconds + 1
	board, err := h.engine.QuestBoard(day)
	require.NoError(t, err)
	def := board.Quests[slot]

	require.NoError(t, h.engine.progressQuest("alice", QuestStake, def.Target, def.StakeRiskMin-1, now))
	q, err := h.store.QuestState("alice")
	require.NoError(t, err)
	assert.Zero(t, q.Slots[slot].Progress)

	require.NoError(t, h.engine.progressQuest("alice", QuestStake, def.Target, def.StakeRiskMin, now))
	q, err = h.store.QuestState("alice")
	require.NoError(t, err)
	assert.True(t, q.Slots[slot].Completed)
}
