package game

import (
	"fmt"
	"log/slog"
)

// Event kinds passed to the Notifier.
const (
	EventLevelAdvanced  = "level_advanced"
	EventRngRequested   = "rng_requested"
	EventRngFulfilled   = "rng_fulfilled"
	EventMapJackpot     = "map_jackpot"
	EventDailyJackpot   = "daily_jackpot"
	EventSettled        = "level_settled"
	EventStakeResolved  = "stake_resolved"
	EventFlipResolved   = "flip_resolved"
	EventExterminated   = "exterminated"
	EventTrophyAwarded  = "trophy_awarded"
	EventTrophyClaimed  = "trophy_claimed"
	EventClaimed        = "claimed"
	EventQuestCompleted = "quest_completed"
	EventPiecesSwept    = "pieces_swept"
)

// Deps are the collaborators an Engine works through.
type Deps struct {
	Coins      CoinLedger
	Treasury   Treasury
	Assets     AssetLedger
	Oracle     RandomnessOracle
	Affiliates AffiliateRegistry
	Notifier   Notifier
	Logger     *slog.Logger
}

// Engine runs game operations against one ledger state. It is cheap to
// build and is normally created per transaction.
type Engine struct {
	store      *Store
	params     *Params
	gate       *Gate
	coins      CoinLedger
	treasury   Treasury
	assets     AssetLedger
	affiliates AffiliateRegistry
	notifier   Notifier
	log        *slog.Logger
}

// NewEngine builds an engine over store.
func NewEngine(store *Store, params *Params, deps Deps) *Engine {
	n := deps.Notifier
	if n == nil {
		n = nopNotifier{}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:      store,
		params:     params,
		gate:       NewGate(store, deps.Oracle, params),
		coins:      deps.Coins,
		treasury:   deps.Treasury,
		assets:     deps.Assets,
		affiliates: deps.Affiliates,
		notifier:   n,
		log:        log.With("component", "game"),
	}
}

func (e *Engine) notify(kind string, data map[string]any) {
	e.notifier.Notify(kind, data)
}

// Store exposes the engine's record store for read paths.
func (e *Engine) Store() *Store { return e.store }

// StepStatus describes what an Advance call did.
type StepStatus string

const (
	StatusProgressed   StepStatus = "progressed"
	StatusMoreWork     StepStatus = "more_work"
	StatusRngRequested StepStatus = "rng_requested"
)

// AdvanceResult reports the outcome of one Advance call.
type AdvanceResult struct {
	Level     uint32     `json:"level"`
	State     string     `json:"state"`
	Phase     uint8      `json:"phase"`
	Status    StepStatus `json:"status"`
	Step      string     `json:"step"`
	Processed int        `json:"processed"`

	Map        *MapJackpotResult   `json:"map,omitempty"`
	Daily      *DailyJackpotResult `json:"daily,omitempty"`
	Settlement *Settlement         `json:"settlement,omitempty"`
}

// step is the per-call working set threaded through the phase handlers.
type step struct {
	now   int64
	day   uint64
	limit int
	ls    *LevelState
	pool  *PrizePool
	res   *AdvanceResult
}

func (s *step) done(name string) {
	s.res.Status = StatusProgressed
	s.res.Step = name
}

// Advance performs one governed step of the level machine. Batch phases
// process at most min(budgetHint, MaxBatch) roster entries and keep their
// phase until the roster is exhausted. A phase that needs randomness
// issues a request and returns successfully; later calls fail with
// ErrRngNotReady until the word arrives.
func (e *Engine) Advance(now int64, budgetHint int) (*AdvanceResult, error) {
	ls, err := e.store.LevelState()
	if err != nil {
		return nil, err
	}
	pool, err := e.store.Pool()
	if err != nil {
		return nil, err
	}
	s := &step{
		now:   now,
		day:   e.params.Day(now),
		limit: e.params.batchLimit(budgetHint),
		ls:    ls,
		pool:  pool,
		res:   &AdvanceResult{},
	}

	prevState, prevPhase, prevLevel := ls.State, ls.Phase, ls.Level
	switch ls.State {
	case StateIdle:
		err = e.startGame(s)
	case StateSettling:
		err = e.advanceSettling(s)
	case StatePurchasing:
		err = e.advancePurchasing(s)
	case StatePurging:
		err = e.advancePurging(s)
	default:
		err = fmt.Errorf("%w: unknown game state %d", ErrInvariantBroken, ls.State)
	}
	if err != nil {
		return nil, err
	}

	if err := auditPool(pool, 0); err != nil {
		return nil, err
	}
	if err := e.store.SetPool(pool); err != nil {
		return nil, err
	}
	if err := e.store.SetLevelState(ls); err != nil {
		return nil, err
	}

	s.res.Level, s.res.State, s.res.Phase = ls.Level, ls.State.String(), ls.Phase
	if ls.State != prevState || ls.Phase != prevPhase || ls.Level != prevLevel {
		e.log.Info("advanced",
			"level", ls.Level, "state", ls.State.String(), "phase", ls.Phase, "step", s.res.Step)
		e.notify(EventLevelAdvanced, map[string]any{
			"level": ls.Level, "state": ls.State.String(), "phase": ls.Phase, "step": s.res.Step,
		})
	}
	return s.res, nil
}

// word returns a consumable randomness word. When none is ready it issues
// a request (ok=false, err=nil) or reports ErrRngNotReady if one is
// already outstanding.
func (e *Engine) word(s *step) (Word, bool, error) {
	ready, err := e.gate.IsReady()
	if err != nil {
		return Word{}, false, err
	}
	if ready {
		w, err := e.gate.Consume()
		if err != nil {
			return Word{}, false, err
		}
		if err := e.onConsume(w); err != nil {
			return Word{}, false, err
		}
		return w, true, nil
	}
	issued, err := e.gate.RequestIfNeeded(s.now)
	if err != nil {
		return Word{}, false, err
	}
	if !issued {
		return Word{}, false, ErrRngNotReady
	}
	r, err := e.store.Rng()
	if err != nil {
		return Word{}, false, err
	}
	s.res.Status = StatusRngRequested
	s.res.Step = "rng_requested"
	e.notify(EventRngRequested, map[string]any{"request_id": r.RequestID, "level": s.ls.Level})
	return Word{}, false, nil
}

// onConsume records what every consumed word seeds besides its phase:
// the flips queued so far and tomorrow's quest board.
func (e *Engine) onConsume(w Word) error {
	meta, err := e.store.Meta()
	if err != nil {
		return err
	}
	n, err := e.store.flipRoster().Len()
	if err != nil {
		return err
	}
	meta.BetCutoff = n
	meta.BetWord = w
	meta.QuestSeed = w
	return e.store.SetMeta(meta)
}

// FulfillRandomness is the oracle callback.
func (e *Engine) FulfillRandomness(sender string, requestID uint64, w Word) error {
	if e.params.OracleAddress == "" || sender != e.params.OracleAddress {
		return fmt.Errorf("%w: %s is not the randomness oracle", ErrUnauthorized, sender)
	}
	if err := e.gate.Fulfill(requestID, w); err != nil {
		return err
	}
	e.notify(EventRngFulfilled, map[string]any{"request_id": requestID})
	return nil
}

// ---- Idle ----

func (e *Engine) startGame(s *step) error {
	if s.now < e.params.GenesisTime {
		return fmt.Errorf("%w: game opens at %d", ErrNotTimeYet, e.params.GenesisTime)
	}
	s.ls.Level = 1
	s.ls.State = StateSettling
	s.ls.Phase = PhaseSettleEndgame
	s.ls.LevelStartTime = s.now
	s.ls.DailyIndex = s.day
	s.ls.ExterminatedTrait = TraitNone
	s.done("start")
	return nil
}

// ---- Settling ----

func (e *Engine) advanceSettling(s *step) error {
	ls := s.ls
	switch ls.Phase {
	case PhaseSettleEndgame:
		if ls.Level > 1 {
			w, ok, err := e.word(s)
			if err != nil || !ok {
				return err
			}
			if err := e.settle(s, ls.Level-1, w); err != nil {
				return err
			}
			meta, err := e.store.Meta()
			if err != nil {
				return err
			}
			meta.SettleWord = w
			if err := e.store.SetMeta(meta); err != nil {
				return err
			}
		}
		ls.Phase = PhaseSettleOpen
		s.done("endgame")
		return nil

	case PhaseSettleOpen:
		if err := e.openTrophies(ls.Level); err != nil {
			return err
		}
		ls.Phase = PhaseSettleSweep
		s.done("open")
		return nil

	case PhaseSettleSweep:
		if ls.Level > 1 {
			n, done, err := e.sweepDormant(ls.Level-1, s.limit)
			s.res.Processed = n
			if err != nil {
				return err
			}
			if !done {
				s.res.Status = StatusMoreWork
				s.res.Step = "sweep"
				return nil
			}
		}
		ls.Phase = PhaseSettleStakes
		s.done("sweep")
		return nil

	case PhaseSettleStakes:
		n, done, err := e.resolveStakes(ls.Level, s.limit)
		s.res.Processed = n
		if err != nil {
			return err
		}
		if !done {
			s.res.Status = StatusMoreWork
			s.res.Step = "stakes"
			return nil
		}
		if err := e.awardStakeTrophy(s.pool, ls.Level); err != nil {
			return err
		}
		ls.State = StatePurchasing
		ls.Phase = PhaseAccumulate
		ls.DailyIndex = s.day
		s.done("stakes")
		return nil
	}
	return fmt.Errorf("%w: settling phase %d", ErrInvariantBroken, ls.Phase)
}

// ---- Purchasing ----

// FundingTarget is the next-pool size that closes purchasing at level.
func (e *Engine) FundingTarget(level uint32, pool *PrizePool) uint64 {
	if level <= 1 {
		return e.params.InitialFundingTarget
	}
	return pool.LastLevelPool
}

func (e *Engine) advancePurchasing(s *step) error {
	ls, pool := s.ls, s.pool
	switch ls.Phase {
	case PhaseAccumulate:
		if pool.Next >= e.FundingTarget(ls.Level, pool) {
			ls.Phase = PhaseMapJackpot
			s.done("funded")
			return nil
		}
		if s.day > ls.DailyIndex {
			ls.DailyIndex = s.day
			s.done("day_rolled")
			return nil
		}
		return fmt.Errorf("%w: next pool %d below target %d", ErrNotTimeYet, pool.Next, e.FundingTarget(ls.Level, pool))

	case PhaseMapJackpot:
		w, ok, err := e.word(s)
		if err != nil || !ok {
			return err
		}
		m, err := e.payMapJackpot(ls.Level, pool, w)
		if err != nil {
			return err
		}
		s.res.Map = m
		ls.Phase = PhaseRecycle
		s.done("map_jackpot")
		return nil

	case PhaseRecycle:
		if err := transfer(&pool.PendingRecycle, &pool.Current, pool.PendingRecycle); err != nil {
			return err
		}
		ls.Phase = PhasePrime
		s.done("recycle")
		return nil

	case PhasePrime:
		pool.LastLevelPool = pool.Current
		ls.JackpotCounter = 0
		ls.DailyIndex = s.day
		ls.LevelStartTime = s.now
		ls.Exterminated = false
		ls.ExterminatedTrait = TraitNone
		if err := e.store.ResetBurnCounts(); err != nil {
			return err
		}
		ls.State = StatePurging
		ls.Phase = PhaseDaily
		s.done("prime")
		return nil
	}
	return fmt.Errorf("%w: purchasing phase %d", ErrInvariantBroken, ls.Phase)
}

// ---- Purging ----

func (e *Engine) advancePurging(s *step) error {
	ls := s.ls
	switch ls.Phase {
	case PhaseDaily:
		n, pending, err := e.drainFlips(s.limit)
		s.res.Processed = n
		if err != nil {
			return err
		}
		if n > 0 || pending {
			s.res.Status = StatusMoreWork
			s.res.Step = "flips"
			return nil
		}
		if ls.JackpotCounter >= DailyJackpotCap {
			ls.Phase = PhaseMaintenance
			s.done("jackpots_done")
			return nil
		}
		if !ls.Exterminated && s.day <= ls.DailyIndex {
			return fmt.Errorf("%w: daily jackpot %d waits for day %d", ErrNotTimeYet, ls.JackpotCounter, ls.DailyIndex+1)
		}
		w, ok, err := e.word(s)
		if err != nil || !ok {
			return err
		}
		d, err := e.payDailyJackpot(ls, s.pool, w)
		if err != nil {
			return err
		}
		s.res.Daily = d
		ls.JackpotCounter++
		ls.DailyIndex = s.day
		if err := e.store.ResetBurnCounts(); err != nil {
			return err
		}
		if ls.JackpotCounter >= DailyJackpotCap {
			ls.Phase = PhaseMaintenance
		}
		s.done("daily_jackpot")
		return nil

	case PhaseMaintenance:
		n, pending, err := e.drainFlips(s.limit)
		s.res.Processed = n
		if err != nil {
			return err
		}
		if pending {
			s.res.Status = StatusMoreWork
			s.res.Step = "flips"
			return nil
		}
		if err := e.reseedQuests(s.day); err != nil {
			return err
		}
		ls.Phase = PhaseReveal
		s.done("maintenance")
		return nil

	case PhaseReveal:
		out, err := e.store.Outcome(ls.Level)
		if err != nil {
			return err
		}
		if !ls.Exterminated {
			out.Exterminator = ""
			out.Trait = TraitTimeout
			ls.ExterminatedTrait = TraitTimeout
		}
		if err := e.store.SetOutcome(out); err != nil {
			return err
		}
		if err := e.store.ResetBurnCounts(); err != nil {
			return err
		}
		ls.Phase = PhaseEnd
		s.done("reveal")
		return nil

	case PhaseEnd:
		if ls.Level >= MaxLevel {
			return fmt.Errorf("%w: max level reached", ErrPhaseClosed)
		}
		ls.Level++
		ls.State = StateSettling
		ls.Phase = PhaseSettleEndgame
		ls.LevelStartTime = s.now
		ls.JackpotCounter = 0
		ls.Exterminated = false
		ls.ExterminatedTrait = TraitNone
		s.done("level_end")
		return nil
	}
	return fmt.Errorf("%w: purging phase %d", ErrInvariantBroken, ls.Phase)
}

// PhaseInfo is a read-only summary for clients.
type PhaseInfo struct {
	Level          uint32 `json:"level"`
	State          string `json:"state"`
	Phase          uint8  `json:"phase"`
	DailyIndex     uint64 `json:"daily_index"`
	JackpotCounter uint8  `json:"jackpot_counter"`
	Exterminated   bool   `json:"exterminated"`
	RngLocked      bool   `json:"rng_locked"`
	RngRequestID   uint64 `json:"rng_request_id"`
	FundingTarget  uint64 `json:"funding_target"`
	Next           uint64 `json:"next"`
}

// PhaseInfo reads the current header and gate without mutating state.
func (e *Engine) PhaseInfo() (*PhaseInfo, error) {
	ls, err := e.store.LevelState()
	if err != nil {
		return nil, err
	}
	pool, err := e.store.Pool()
	if err != nil {
		return nil, err
	}
	r, err := e.store.Rng()
	if err != nil {
		return nil, err
	}
	return &PhaseInfo{
		Level:          ls.Level,
		State:          ls.State.String(),
		Phase:          ls.Phase,
		DailyIndex:     ls.DailyIndex,
		JackpotCounter: ls.JackpotCounter,
		Exterminated:   ls.Exterminated,
		RngLocked:      ls.RngLocked,
		RngRequestID:   r.RequestID,
		FundingTarget:  e.FundingTarget(ls.Level, pool),
		Next:           pool.Next,
	}, nil
}

// requireState fails with ErrPhaseClosed unless the header is in one of
// the given states.
func requireState(ls *LevelState, states ...GameState) error {
	for _, st := range states {
		if ls.State == st {
			return nil
		}
	}
	return fmt.Errorf("%w: game is %s", ErrPhaseClosed, ls.State)
}
