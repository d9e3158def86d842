package game

import "fmt"

// QuestType is the action a quest counts.
type QuestType uint8

const (
	QuestPurchase QuestType = iota
	QuestPurge
	QuestStake
	QuestFlip
	numQuestTypes
)

func (q QuestType) String() string {
	switch q {
	case QuestPurchase:
		return "purchase"
	case QuestPurge:
		return "purge"
	case QuestStake:
		return "stake"
	case QuestFlip:
		return "flip"
	default:
		return fmt.Sprintf("quest(%d)", uint8(q))
	}
}

// maxStreakBonus caps how many streak days add to a reward.
const maxStreakBonus = 10

// QuestDef is one quest of a day's board. Progress is counted in pieces
// for purchase and purge quests and in coin for stake and flip quests.
type QuestDef struct {
	Type         QuestType `json:"type"`
	Target       uint64    `json:"target"`
	StakeRiskMin uint8     `json:"stake_risk_min,omitempty"`
}

// QuestBoard is the pair of quests offered on one day.
type QuestBoard struct {
	Day    uint64      `json:"day"`
	Seed   Word        `json:"seed"`
	Quests [2]QuestDef `json:"quests"`
}

// QuestSlot is a player's progress on one quest of the board.
type QuestSlot struct {
	Day       uint64    `json:"day"`
	Type      QuestType `json:"type"`
	Progress  uint64    `json:"progress"`
	Completed bool      `json:"completed"`
}

// QuestState is a player's quest record.
type QuestState struct {
	Streak           uint64       `json:"streak"`
	LastCompletedDay uint64       `json:"last_completed_day"`
	Slots            [2]QuestSlot `json:"slots"`
}

func questBoardKey(day uint64) string   { return fmt.Sprintf("questboard:%d", day) }
func questStateKey(player string) string { return "quest:" + player }

func (s *Store) QuestState(player string) (*QuestState, error) {
	var q QuestState
	_, err := s.getJSON(questStateKey(player), &q)
	return &q, err
}

func (s *Store) SetQuestState(player string, q *QuestState) error {
	return s.setJSON(questStateKey(player), q)
}

// deriveBoard builds the board of day from seed: two distinct quest types.
func (e *Engine) deriveBoard(day uint64, seed Word) *QuestBoard {
	r := Derive(seed, saltQuest, day)
	first := QuestType(r[0] % uint8(numQuestTypes))
	second := QuestType((uint8(first) + 1 + r[1]%uint8(numQuestTypes-1)) % uint8(numQuestTypes))
	b := &QuestBoard{Day: day, Seed: seed}
	for i, t := range [2]QuestType{first, second} {
		k := uint64(r[2+i]%5) + 1
		def := QuestDef{Type: t}
		switch t {
		case QuestPurchase, QuestPurge:
			def.Target = k
		case QuestStake:
			def.Target = e.params.MinStakePrincipal * k
			def.StakeRiskMin = uint8(r[4+i]%5) + 1
		case QuestFlip:
			def.Target = e.params.MinFlip * k * 2
		}
		b.Quests[i] = def
	}
	return b
}

// QuestBoard returns the board of day, rolling it from the latest quest
// seed the first time the day is seen.
func (e *Engine) QuestBoard(day uint64) (*QuestBoard, error) {
	var b QuestBoard
	ok, err := e.store.getJSON(questBoardKey(day), &b)
	if err != nil {
		return nil, err
	}
	if ok {
		return &b, nil
	}
	meta, err := e.store.Meta()
	if err != nil {
		return nil, err
	}
	nb := e.deriveBoard(day, meta.QuestSeed)
	if err := e.store.setJSON(questBoardKey(day), nb); err != nil {
		return nil, err
	}
	return nb, nil
}

// reseedQuests rolls tomorrow's board from the latest consumed word,
// replacing any board rolled earlier from an older seed.
func (e *Engine) reseedQuests(day uint64) error {
	meta, err := e.store.Meta()
	if err != nil {
		return err
	}
	return e.store.setJSON(questBoardKey(day+1), e.deriveBoard(day+1, meta.QuestSeed))
}

// QuestView is a player's quests for one day.
type QuestView struct {
	Board *QuestBoard `json:"board"`
	State *QuestState `json:"state"`
}

// Quests returns the board for now and player's progress on it, without
// writing anything.
func (e *Engine) Quests(player string, now int64) (*QuestView, error) {
	day := e.params.Day(now)
	var b QuestBoard
	ok, err := e.store.getJSON(questBoardKey(day), &b)
	if err != nil {
		return nil, err
	}
	board := &b
	if !ok {
		meta, err := e.store.Meta()
		if err != nil {
			return nil, err
		}
		board = e.deriveBoard(day, meta.QuestSeed)
	}
	q, err := e.store.QuestState(player)
	if err != nil {
		return nil, err
	}
	for i := range q.Slots {
		if q.Slots[i].Day != day {
			q.Slots[i] = QuestSlot{Day: day, Type: board.Quests[i].Type}
		}
	}
	return &QuestView{Board: board, State: q}, nil
}

// progressQuest counts amount toward player's quests of type t today and
// mints the reward for each quest it completes. risk only matters for
// stake quests.
func (e *Engine) progressQuest(player string, t QuestType, amount uint64, risk uint8, now int64) error {
	day := e.params.Day(now)
	board, err := e.QuestBoard(day)
	if err != nil {
		return err
	}
	q, err := e.store.QuestState(player)
	if err != nil {
		return err
	}
	for i := range q.Slots {
		def := board.Quests[i]
		slot := &q.Slots[i]
		if slot.Day != day || slot.Type != def.Type {
			*slot = QuestSlot{Day: day, Type: def.Type}
		}
		if slot.Completed || def.Type != t {
			continue
		}
		if t == QuestStake && risk < def.StakeRiskMin {
			continue
		}
		slot.Progress += amount
		if slot.Progress < def.Target {
			continue
		}
		slot.Completed = true
		switch {
		case q.Streak > 0 && q.LastCompletedDay == day:
		case q.Streak > 0 && q.LastCompletedDay+1 == day:
			q.Streak++
		default:
			q.Streak = 1
		}
		q.LastCompletedDay = day
		reward := e.params.QuestReward + min(q.Streak, maxStreakBonus)*e.params.QuestStreakBonus
		if reward > 0 {
			if err := e.coins.Mint(player, reward); err != nil {
				return fmt.Errorf("quest reward: %w", err)
			}
		}
		e.notify(EventQuestCompleted, map[string]any{
			"player": player, "day": day, "type": t.String(), "streak": q.Streak, "reward": reward,
		})
	}
	return e.store.SetQuestState(player, q)
}
