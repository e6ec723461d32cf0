package betting

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid betting config")

// DefaultLossMultiplier doubles the wager after every loss.
var DefaultLossMultiplier = decimal.NewFromInt(2)

// OutcomeClass is the result of a round for the red-and-odd selection.
type OutcomeClass string

const (
	Win  OutcomeClass = "win"
	Push OutcomeClass = "push"
	Loss OutcomeClass = "lose"
)

// Status tells the simulation whether it may keep going.
type Status int

const (
	Continue Status = iota
	Busted
)

func (s Status) String() string {
	switch s {
	case Continue:
		return "continue"
	case Busted:
		return "busted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Config is fixed for the whole run.
type Config struct {
	StartingBalance decimal.Decimal `json:"starting_balance"`
	BaseWager       decimal.Decimal `json:"base_wager"`
	LossMultiplier  decimal.Decimal `json:"loss_multiplier"`
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if !c.BaseWager.IsPositive() {
		errs = append(errs, fmt.Errorf("%w: base wager must be positive, got %s", ErrInvalidConfig, c.BaseWager))
	}
	if c.LossMultiplier.LessThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("%w: loss multiplier must be at least 1, got %s", ErrInvalidConfig, c.LossMultiplier))
	}
	if !c.StartingBalance.IsPositive() {
		errs = append(errs, fmt.Errorf("%w: starting balance must be positive, got %s", ErrInvalidConfig, c.StartingBalance))
	} else if c.BaseWager.GreaterThan(c.StartingBalance) {
		errs = append(errs, fmt.Errorf("%w: base wager %s exceeds starting balance %s", ErrInvalidConfig, c.BaseWager, c.StartingBalance))
	}
	return errors.Join(errs...)
}

// StreakMark remembers a streak value and the nonce that produced it.
type StreakMark struct {
	Value int    `json:"value"`
	Nonce uint64 `json:"nonce"`
}

// State is the whole mutable bankroll of a run. It is a value; Step
// returns the next one.
type State struct {
	Balance          decimal.Decimal `json:"balance"`
	NextWager        decimal.Decimal `json:"next_wager"`
	CumulativeProfit decimal.Decimal `json:"cumulative_profit"`
	LargestWager     decimal.Decimal `json:"largest_wager"`
	LowestBalance    decimal.Decimal `json:"lowest_balance"`
	TotalWagered     decimal.Decimal `json:"total_wagered"`
	Streak           int             `json:"streak"`
	RoundCount       int             `json:"round_count"`
	Wins             int             `json:"wins"`
	Pushes           int             `json:"pushes"`
	Losses           int             `json:"losses"`
	WorstStreak      StreakMark      `json:"worst_streak"`
	BestStreak       StreakMark      `json:"best_streak"`
}

// RoundRecord is the immutable log line of one round.
type RoundRecord struct {
	Round            int             `json:"round"`
	Nonce            uint64          `json:"nonce"`
	Pocket           int             `json:"pocket"`
	Color            string          `json:"color"`
	Parity           string          `json:"parity"`
	Outcome          OutcomeClass    `json:"outcome"`
	Payout           int             `json:"payout"`
	Wager            decimal.Decimal `json:"wager"`
	RoundProfit      decimal.Decimal `json:"round_profit"`
	CumulativeProfit decimal.Decimal `json:"cumulative_profit"`
	Balance          decimal.Decimal `json:"balance"`
	Streak           int             `json:"streak"`
}
