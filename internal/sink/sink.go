// Package sink persists and publishes round records.
package sink

import (
	"context"
	"errors"
	"strconv"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
)

// ErrSinkClosed is returned by Append after Close.
var ErrSinkClosed = errors.New("sink closed")

// MoneyDigits is the number of fractional digits written for money.
const MoneyDigits = 8

// Header is the column order of every tabular record.
var Header = []string{
	"round", "nonce", "pocket", "color", "parity", "outcome", "payout",
	"wager", "round_profit", "cumulative_profit", "balance", "streak",
}

// Row formats rec in Header order.
func Row(rec betting.RoundRecord) []string {
	return []string{
		strconv.Itoa(rec.Round),
		strconv.FormatUint(rec.Nonce, 10),
		strconv.Itoa(rec.Pocket),
		rec.Color,
		rec.Parity,
		string(rec.Outcome),
		strconv.Itoa(rec.Payout),
		rec.Wager.StringFixed(MoneyDigits),
		rec.RoundProfit.StringFixed(MoneyDigits),
		rec.CumulativeProfit.StringFixed(MoneyDigits),
		rec.Balance.StringFixed(MoneyDigits),
		strconv.Itoa(rec.Streak),
	}
}

// Appender is anything that accepts records.
type Appender interface {
	Append(ctx context.Context, rec betting.RoundRecord) error
}

// Multi forwards each record to every appender in order and stops at the
// first error.
type Multi []Appender

// Append implements Appender.
func (m Multi) Append(ctx context.Context, rec betting.RoundRecord) error {
	for _, a := range m {
		if err := a.Append(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
