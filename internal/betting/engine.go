package betting

import (
	"github.com/shopspring/decimal"

	"github.com/MJE43/stake-roulette-sim/internal/games"
)

// Classify settles a spin for the red-and-odd selection. Matching one of
// the two conditions returns the stake.
func Classify(outcome games.SpinOutcome) (OutcomeClass, int) {
	red := outcome.Color == games.Red
	odd := outcome.Parity == games.Odd
	switch {
	case red && odd:
		return Win, 2
	case red && outcome.Parity == games.Even, outcome.Color == games.Black && odd:
		return Push, 1
	default:
		return Loss, 0
	}
}

// NewState returns the state before the first round.
func NewState(cfg Config) State {
	return State{
		Balance:          cfg.StartingBalance,
		NextWager:        cfg.BaseWager,
		CumulativeProfit: decimal.Zero,
		LargestWager:     cfg.BaseWager,
		LowestBalance:    cfg.StartingBalance,
		TotalWagered:     decimal.Zero,
	}
}

// Step applies one spin to state. It never fails; Busted is reported
// after the round is fully applied and its record is still returned.
func Step(cfg Config, state State, nonce uint64, outcome games.SpinOutcome) (State, RoundRecord, Status) {
	class, payout := Classify(outcome)
	wager := state.NextWager
	profit := decimal.Zero

	switch class {
	case Win:
		profit = wager.Mul(decimal.NewFromInt(int64(payout - 1)))
		if state.Streak >= 0 {
			state.Streak++
		} else {
			state.Streak = 1
		}
		if state.Streak > state.BestStreak.Value {
			state.BestStreak = StreakMark{Value: state.Streak, Nonce: nonce}
		}
		state.NextWager = cfg.BaseWager
		state.Wins++
	case Push:
		state.Pushes++
	case Loss:
		profit = wager.Neg()
		if state.Streak <= 0 {
			state.Streak--
		} else {
			state.Streak = -1
		}
		if state.Streak < state.WorstStreak.Value {
			state.WorstStreak = StreakMark{Value: state.Streak, Nonce: nonce}
		}
		state.NextWager = wager.Mul(cfg.LossMultiplier)
		state.Losses++
	}

	state.RoundCount++
	state.TotalWagered = state.TotalWagered.Add(wager)
	state.CumulativeProfit = state.CumulativeProfit.Add(profit)
	state.Balance = cfg.StartingBalance.Add(state.CumulativeProfit)
	if wager.GreaterThan(state.LargestWager) {
		state.LargestWager = wager
	}
	if state.Balance.LessThan(state.LowestBalance) {
		state.LowestBalance = state.Balance
	}

	rec := RoundRecord{
		Round:            state.RoundCount,
		Nonce:            nonce,
		Pocket:           outcome.Pocket,
		Color:            string(outcome.Color),
		Parity:           string(outcome.Parity),
		Outcome:          class,
		Payout:           payout,
		Wager:            wager,
		RoundProfit:      profit,
		CumulativeProfit: state.CumulativeProfit,
		Balance:          state.Balance,
		Streak:           state.Streak,
	}

	status := Continue
	if state.NextWager.GreaterThan(state.Balance) {
		status = Busted
	}
	return state, rec, status
}
