package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
	"github.com/MJE43/stake-roulette-sim/internal/engine"
	"github.com/MJE43/stake-roulette-sim/internal/games"
)

// Reason explains why a run halted.
type Reason string

const (
	ReasonCompleted Reason = "completed"
	ReasonBusted    Reason = "busted"
	ReasonStopped   Reason = "stopped"
	ReasonCancelled Reason = "cancelled"
	ReasonSinkError Reason = "sink_error"
)

// Sink receives every committed round in order. Append may block; that is
// how a slow consumer slows the loop down.
type Sink interface {
	Append(ctx context.Context, rec betting.RoundRecord) error
}

// Reporter receives periodic progress. Errors are logged and ignored.
type Reporter interface {
	Report(ctx context.Context, p Progress) error
}

// StopRule is consulted after every round that did not bust.
type StopRule interface {
	ShouldStop(state betting.State, rec betting.RoundRecord) (bool, error)
}

// StopFunc adapts a plain function to StopRule.
type StopFunc func(state betting.State, rec betting.RoundRecord) (bool, error)

// ShouldStop calls f.
func (f StopFunc) ShouldStop(state betting.State, rec betting.RoundRecord) (bool, error) {
	return f(state, rec)
}

// Progress is a point-in-time view for reporters.
type Progress struct {
	Round       int                `json:"round"`
	MaxRounds   int                `json:"max_rounds"`
	Nonce       uint64             `json:"nonce"`
	Balance     decimal.Decimal    `json:"balance"`
	Profit      decimal.Decimal    `json:"profit"`
	NextWager   decimal.Decimal    `json:"next_wager"`
	Streak      int                `json:"streak"`
	WorstStreak betting.StreakMark `json:"worst_streak"`
	Done        bool               `json:"done"`
	Reason      Reason             `json:"reason,omitempty"`
}

// Percent returns how much of MaxRounds has been played.
func (p Progress) Percent() float64 {
	if p.MaxRounds <= 0 {
		return 0
	}
	return float64(p.Round) / float64(p.MaxRounds) * 100
}

// Config is everything a run needs besides its collaborators.
type Config struct {
	Seeds         engine.Seeds   `json:"seeds"`
	StartNonce    uint64         `json:"start_nonce"`
	MaxRounds     int            `json:"max_rounds"`
	ProgressEvery int            `json:"progress_every"`
	Betting       betting.Config `json:"betting"`
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Seeds.Server == "" {
		errs = append(errs, fmt.Errorf("%w: server seed is required", betting.ErrInvalidConfig))
	}
	if c.Seeds.Client == "" {
		errs = append(errs, fmt.Errorf("%w: client seed is required", betting.ErrInvalidConfig))
	}
	if c.MaxRounds <= 0 {
		errs = append(errs, fmt.Errorf("%w: max rounds must be positive, got %d", betting.ErrInvalidConfig, c.MaxRounds))
	}
	if c.ProgressEvery < 0 {
		errs = append(errs, fmt.Errorf("%w: progress interval must not be negative", betting.ErrInvalidConfig))
	}
	if err := c.Betting.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink appends a sink. Sinks receive records in registration order.
func WithSink(s Sink) Option {
	return func(r *Runner) {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
}

// WithReporter appends a progress reporter.
func WithReporter(rep Reporter) Option {
	return func(r *Runner) {
		if rep != nil {
			r.reporters = append(r.reporters, rep)
		}
	}
}

// WithStopRule installs a stop rule.
func WithStopRule(rule StopRule) Option {
	return func(r *Runner) { r.stopRule = rule }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// Runner drives rounds one at a time.
type Runner struct {
	cfg       Config
	sinks     []Sink
	reporters []Reporter
	stopRule  StopRule
	log       *zap.Logger
}

// New builds a runner. The config is validated by Run.
func New(cfg Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the run configuration.
func (r *Runner) Config() Config { return r.cfg }

// Run plays rounds until the bankroll busts, MaxRounds is reached, the stop
// rule fires, a sink fails or ctx is cancelled. Cancellation is only
// observed between rounds. A round whose append is interrupted by
// cancellation is still delivered to every sink before Run returns. The
// returned summary covers every round whose state was committed, including
// a round that a failing sink rejected.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if err := r.cfg.Validate(); err != nil {
		return Summary{}, fmt.Errorf("simulation: %w", err)
	}

	cfg := r.cfg
	state := betting.NewState(cfg.Betting)
	sum := newSummary(cfg, state)
	nonce := cfg.StartNonce

	r.log.Info("simulation started",
		zap.String("server_seed_hash", cfg.Seeds.ServerHash()),
		zap.String("client_seed", cfg.Seeds.Client),
		zap.Uint64("start_nonce", cfg.StartNonce),
		zap.Int("max_rounds", cfg.MaxRounds),
		zap.String("starting_balance", cfg.Betting.StartingBalance.String()),
		zap.String("base_wager", cfg.Betting.BaseWager.String()),
	)

	var runErr error
loop:
	for state.RoundCount < cfg.MaxRounds {
		if ctx.Err() != nil {
			sum.Reason = ReasonCancelled
			break
		}

		nonce++
		outcome := games.Spin(cfg.Seeds, nonce, 0)
		next, rec, status := betting.Step(cfg.Betting, state, nonce, outcome)
		state = next
		sum.observe(state, rec)

		for i, s := range r.sinks {
			if err := s.Append(ctx, rec); err != nil {
				if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
					// The round is committed; every sink still gets it.
					sum.Reason = ReasonCancelled
					if err := r.drain(context.WithoutCancel(ctx), r.sinks[i:], rec); err != nil {
						sum.Reason = ReasonSinkError
						runErr = err
					}
					break loop
				}
				sum.Reason = ReasonSinkError
				runErr = fmt.Errorf("simulation: append round %d: %w", rec.Round, err)
				break loop
			}
		}

		if cfg.ProgressEvery > 0 && state.RoundCount%cfg.ProgressEvery == 0 {
			r.report(ctx, progressOf(cfg, state, nonce, false, ""))
		}

		if status == betting.Busted {
			sum.Reason = ReasonBusted
			sum.BustRound = rec.Round
			sum.BustNonce = rec.Nonce
			break
		}

		if r.stopRule != nil {
			stop, err := r.stopRule.ShouldStop(state, rec)
			if err != nil {
				sum.Reason = ReasonStopped
				runErr = fmt.Errorf("simulation: stop rule at round %d: %w", rec.Round, err)
				break
			}
			if stop {
				sum.Reason = ReasonStopped
				break
			}
		}
	}
	if sum.Reason == "" {
		sum.Reason = ReasonCompleted
	}

	sum.finish(state)
	r.report(context.WithoutCancel(ctx), progressOf(cfg, state, sum.LastNonce, true, sum.Reason))

	fields := []zap.Field{
		zap.String("reason", string(sum.Reason)),
		zap.Int("rounds", sum.Rounds),
		zap.String("final_balance", sum.FinalBalance.StringFixed(8)),
		zap.Int("worst_streak", sum.WorstStreak.Value),
		zap.Uint64("worst_streak_nonce", sum.WorstStreak.Nonce),
	}
	if sum.Reason == ReasonBusted {
		fields = append(fields, zap.Int("bust_round", sum.BustRound), zap.Uint64("bust_nonce", sum.BustNonce))
	}
	if runErr != nil {
		r.log.Error("simulation aborted", append(fields, zap.Error(runErr))...)
	} else {
		r.log.Info("simulation finished", fields...)
	}
	return sum, runErr
}

// drain hands rec to sinks after the run context is done.
func (r *Runner) drain(ctx context.Context, sinks []Sink, rec betting.RoundRecord) error {
	for _, s := range sinks {
		if err := s.Append(ctx, rec); err != nil {
			return fmt.Errorf("simulation: append round %d: %w", rec.Round, err)
		}
	}
	return nil
}

func (r *Runner) report(ctx context.Context, p Progress) {
	for _, rep := range r.reporters {
		if err := rep.Report(ctx, p); err != nil {
			r.log.Warn("progress report failed", zap.Int("round", p.Round), zap.Error(err))
		}
	}
}

func progressOf(cfg Config, state betting.State, nonce uint64, done bool, reason Reason) Progress {
	return Progress{
		Round:       state.RoundCount,
		MaxRounds:   cfg.MaxRounds,
		Nonce:       nonce,
		Balance:     state.Balance,
		Profit:      state.CumulativeProfit,
		NextWager:   state.NextWager,
		Streak:      state.Streak,
		WorstStreak: state.WorstStreak,
		Done:        done,
		Reason:      reason,
	}
}
