package simulation

import (
	"github.com/shopspring/decimal"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
	"github.com/MJE43/stake-roulette-sim/internal/games"
)

// Summary is the final report of a run.
type Summary struct {
	ServerSeedHash  string                 `json:"server_seed_hash"`
	ClientSeed      string                 `json:"client_seed"`
	StartNonce      uint64                 `json:"start_nonce"`
	LastNonce       uint64                 `json:"last_nonce"`
	StartingBalance decimal.Decimal        `json:"starting_balance"`
	Rounds          int                    `json:"rounds"`
	Wins            int                    `json:"wins"`
	Pushes          int                    `json:"pushes"`
	Losses          int                    `json:"losses"`
	WorstStreak     betting.StreakMark     `json:"worst_streak"`
	BestStreak      betting.StreakMark     `json:"best_streak"`
	FinalBalance    decimal.Decimal        `json:"final_balance"`
	Profit          decimal.Decimal        `json:"profit"`
	TotalWagered    decimal.Decimal        `json:"total_wagered"`
	LargestWager    decimal.Decimal        `json:"largest_wager"`
	LowestBalance   decimal.Decimal        `json:"lowest_balance"`
	NextWager       decimal.Decimal        `json:"next_wager"`
	Reason          Reason                 `json:"reason"`
	BustRound       int                    `json:"bust_round,omitempty"`
	BustNonce       uint64                 `json:"bust_nonce,omitempty"`
	LossStreaks     Histogram              `json:"loss_streaks"`
	PocketCounts    [games.PocketCount]int `json:"pocket_counts"`
}

func newSummary(cfg Config, state betting.State) Summary {
	s := Summary{
		ServerSeedHash:  cfg.Seeds.ServerHash(),
		ClientSeed:      cfg.Seeds.Client,
		StartNonce:      cfg.StartNonce,
		LastNonce:       cfg.StartNonce,
		StartingBalance: cfg.Betting.StartingBalance,
	}
	s.finish(state)
	return s
}

func (s *Summary) observe(state betting.State, rec betting.RoundRecord) {
	s.LastNonce = rec.Nonce
	s.PocketCounts[rec.Pocket]++
	if state.Streak < 0 {
		s.LossStreaks.Add(-state.Streak)
	}
}

func (s *Summary) finish(state betting.State) {
	s.Rounds = state.RoundCount
	s.Wins = state.Wins
	s.Pushes = state.Pushes
	s.Losses = state.Losses
	s.WorstStreak = state.WorstStreak
	s.BestStreak = state.BestStreak
	s.FinalBalance = state.Balance
	s.Profit = state.CumulativeProfit
	s.TotalWagered = state.TotalWagered
	s.LargestWager = state.LargestWager
	s.LowestBalance = state.LowestBalance
	s.NextWager = state.NextWager
}

// WinRate is wins over rounds played.
func (s Summary) WinRate() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Rounds)
}
