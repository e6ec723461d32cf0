// Package progress reports simulation progress to logs and pub/sub.
package progress

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/MJE43/stake-roulette-sim/internal/simulation"
)

// Log writes one info line per report.
type Log struct {
	log   *zap.Logger
	start time.Time
	now   func() time.Time
}

// NewLog returns a reporter that writes to log. The rate is measured from
// the moment NewLog is called.
func NewLog(log *zap.Logger) *Log {
	return &Log{log: log, start: time.Now(), now: time.Now}
}

// Report implements simulation.Reporter.
func (l *Log) Report(_ context.Context, p simulation.Progress) error {
	elapsed := l.now().Sub(l.start)
	fields := []zap.Field{
		zap.String("rounds", humanize.Comma(int64(p.Round))),
		zap.String("of", humanize.Comma(int64(p.MaxRounds))),
		zap.String("percent", humanize.FormatFloat("#.##", p.Percent())),
		zap.Uint64("nonce", p.Nonce),
		zap.String("balance", p.Balance.StringFixed(8)),
		zap.String("profit", p.Profit.StringFixed(8)),
		zap.Int("streak", p.Streak),
		zap.Int("worst_streak", p.WorstStreak.Value),
		zap.Uint64("worst_streak_nonce", p.WorstStreak.Nonce),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		fields = append(fields, zap.String("rounds_per_sec", humanize.Comma(int64(float64(p.Round)/secs))))
	}

	if p.Done {
		l.log.Info("simulation done", append(fields, zap.String("reason", string(p.Reason)))...)
		return nil
	}
	l.log.Info("simulation progress", fields...)
	return nil
}
