package game

// DailyJackpotBps is the share of the current pool paid by each of the ten
// daily jackpots, in basis points.
var DailyJackpotBps = [DailyJackpotCap]uint64{610, 677, 746, 813, 881, 949, 1017, 1085, 1153, 1225}

// Params are the tunable economics of a deployment.
type Params struct {
	// GenesisTime is the unix second the game may leave Idle.
	GenesisTime int64 `json:"genesis_time" validate:"gte=0"`
	// DaySeconds is the length of a game day.
	DaySeconds int64 `json:"day_seconds" validate:"gt=0"`

	PiecePrice           uint64 `json:"piece_price" validate:"gt=0"`
	InitialFundingTarget uint64 `json:"initial_funding_target"`
	MaxPurchase          int    `json:"max_purchase" validate:"gt=0,lte=100"`
	PurgeCoinReward      uint64 `json:"purge_coin_reward"`

	MinStakePrincipal uint64 `json:"min_stake_principal" validate:"gt=0"`
	MaxStakeDistance  uint32 `json:"max_stake_distance" validate:"gt=0"`

	MinFlip      uint64 `json:"min_flip" validate:"gt=0"`
	HouseEdgeBps uint64 `json:"house_edge_bps" validate:"lt=10000"`

	DefaultBatch int `json:"default_batch" validate:"gt=0"`
	MaxBatch     int `json:"max_batch" validate:"gtefield=DefaultBatch"`

	// RngRetryAfter is how long an unanswered request blocks before a new
	// one may be issued, in seconds.
	RngRetryAfter int64 `json:"rng_retry_after" validate:"gt=0"`

	ExterminationWinners int    `json:"extermination_winners" validate:"gt=0"`
	TrophyInstallments   uint32 `json:"trophy_installments" validate:"gt=0"`
	LeaderboardSize      int    `json:"leaderboard_size" validate:"gt=0"`

	QuestReward      uint64 `json:"quest_reward"`
	QuestStreakBonus uint64 `json:"quest_streak_bonus"`

	// OracleAddress is the only account allowed to fulfil randomness.
	OracleAddress string `json:"oracle_address" validate:"omitempty,len=64,hexadecimal"`
	// Custody is the account that holds native value on behalf of the game.
	Custody string `json:"custody" validate:"required"`
}

// DefaultParams returns development economics.
func DefaultParams() Params {
	return Params{
		GenesisTime:          0,
		DaySeconds:           86_400,
		PiecePrice:           1_000,
		InitialFundingTarget: 100_000,
		MaxPurchase:          20,
		PurgeCoinReward:      100,
		MinStakePrincipal:    1_000,
		MaxStakeDistance:     500,
		MinFlip:              100,
		HouseEdgeBps:         250,
		DefaultBatch:         64,
		MaxBatch:             256,
		RngRetryAfter:        3_600,
		ExterminationWinners: 20,
		TrophyInstallments:   10,
		LeaderboardSize:      10,
		QuestReward:          500,
		QuestStreakBonus:     50,
		Custody:              "purge:custody",
	}
}

// Day returns the game day containing unix second now.
func (p *Params) Day(now int64) uint64 {
	if now <= p.GenesisTime {
		return 0
	}
	return uint64((now - p.GenesisTime) / p.DaySeconds)
}

// batchLimit clamps a caller's budget hint to the configured bounds.
func (p *Params) batchLimit(hint int) int {
	if hint <= 0 {
		return p.DefaultBatch
	}
	if hint > p.MaxBatch {
		return p.MaxBatch
	}
	return hint
}
