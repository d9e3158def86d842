package rpc

import (
	"time"

	"github.com/tolelom/purgechain/game"
)

// engine returns a read-only view of the game. Read paths never reach the
// collaborators, so none are wired.
func (h *Handler) engine() *game.Engine {
	return game.NewEngine(game.NewStore(h.state), h.params, game.Deps{})
}

// now is the chain's notion of the current time: the tip's timestamp in
// seconds, or the wall clock before genesis.
func (h *Handler) now() int64 {
	if tip := h.bc.Tip(); tip != nil {
		return tip.Unix()
	}
	return time.Now().Unix()
}

func (h *Handler) getLevel(req Request) Response {
	ls, err := game.NewStore(h.state).LevelState()
	if err != nil {
		return fail(req.ID, err)
	}
	return okResponse(req.ID, map[string]any{
		"level":           ls.Level,
		"state":           ls.State.String(),
		"phase":           ls.Phase,
		"daily_index":     ls.DailyIndex,
		"jackpot_counter": ls.JackpotCounter,
		"exterminated":    ls.Exterminated,
	})
}

func (h *Handler) getPhaseInfo(req Request) Response {
	info, err := h.engine().PhaseInfo()
	if err != nil {
		return fail(req.ID, err)
	}
	return okResponse(req.ID, info)
}

func (h *Handler) getPool(req Request) Response {
	pool, err := game.NewStore(h.state).Pool()
	if err != nil {
		return fail(req.ID, err)
	}
	return okResponse(req.ID, map[string]any{
		"pool": pool,
		"held": pool.Held(),
	})
}

func (h *Handler) getClaimableBalance(req Request) Response {
	var params addressParams
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	amt, err := game.NewStore(h.state).Claimable(params.Address)
	if err != nil {
		return fail(req.ID, err)
	}
	return okResponse(req.ID, map[string]any{"address": params.Address, "claimable": amt})
}

func (h *Handler) getStake(req Request) Response {
	var params struct {
		Address string `json:"address" validate:"required"`
		Target  uint32 `json:"target" validate:"required"`
	}
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	pos, err := h.engine().Position(params.Address, params.Target)
	if err != nil {
		return fail(req.ID, err)
	}
	if pos == nil {
		return errResponse(req.ID, CodeNotFound, "no stake on that level")
	}
	return okResponse(req.ID, pos)
}

// quoteStake previews a stake. Target is an absolute level; the distance
// is measured from the current one.
func (h *Handler) quoteStake(req Request) Response {
	var params struct {
		Principal uint64 `json:"principal" validate:"required"`
		Target    uint32 `json:"target" validate:"required"`
		Risk      uint8  `json:"risk" validate:"required"`
	}
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	ls, err := game.NewStore(h.state).LevelState()
	if err != nil {
		return fail(req.ID, err)
	}
	if params.Target <= ls.Level {
		return errResponse(req.ID, CodeInvalidParams, "target must be above the current level")
	}
	q, err := game.QuoteStake(params.Principal, params.Risk, params.Target-ls.Level)
	if err != nil {
		return fail(req.ID, err)
	}
	return okResponse(req.ID, q)
}

func (h *Handler) getTrophy(req Request) Response {
	var params idParams
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	t, err := game.NewStore(h.state).Trophy(params.ID)
	if err != nil {
		return fail(req.ID, err)
	}
	holder := ""
	if a, err := h.state.GetAsset(params.ID); err == nil {
		holder = a.Owner
	}
	return okResponse(req.ID, map[string]any{"trophy": t, "holder": holder})
}

func (h *Handler) getTrophiesByOwner(req Request) Response {
	var params ownerParams
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	ids, err := h.indexer.GetTrophiesByOwner(params.Owner)
	if err != nil {
		return fail(req.ID, err)
	}
	store := game.NewStore(h.state)
	out := make([]*game.Trophy, 0, len(ids))
	for _, id := range ids {
		t, err := store.Trophy(id)
		if err != nil {
			return fail(req.ID, err)
		}
		out = append(out, t)
	}
	return okResponse(req.ID, out)
}

func (h *Handler) getQuests(req Request) Response {
	var params addressParams
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	view, err := h.engine().Quests(params.Address, h.now())
	if err != nil {
		return fail(req.ID, err)
	}
	return okResponse(req.ID, view)
}

func (h *Handler) getLeaderboard(req Request) Response {
	var params struct {
		Board string `json:"board" validate:"required,oneof=affiliate flip burn"`
		Level uint32 `json:"level"`
		Limit int    `json:"limit" validate:"gte=0,lte=100"`
	}
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	store := game.NewStore(h.state)
	if params.Level == 0 {
		ls, err := store.LevelState()
		if err != nil {
			return fail(req.ID, err)
		}
		params.Level = ls.Level
	}
	if params.Limit == 0 {
		params.Limit = 10
	}
	top, err := store.LeaderboardTop(params.Board, params.Level, params.Limit)
	if err != nil {
		return fail(req.ID, err)
	}
	if top == nil {
		top = []game.LeaderEntry{}
	}
	return okResponse(req.ID, map[string]any{"board": params.Board, "level": params.Level, "entries": top})
}

func (h *Handler) getRecentEvents(req Request) Response {
	var params struct {
		Limit int `json:"limit" validate:"gte=0,lte=512"`
	}
	if bad := decodeParams(req, &params); bad != nil {
		return *bad
	}
	if params.Limit == 0 {
		params.Limit = 50
	}
	evs, err := h.indexer.RecentGameEvents(params.Limit)
	if err != nil {
		return fail(req.ID, err)
	}
	return okResponse(req.ID, evs)
}
