// Package metrics exposes Prometheus collectors for simulations and
// verifications.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
	"github.com/MJE43/stake-roulette-sim/internal/simulation"
)

// Collectors groups every metric the service exports.
type Collectors struct {
	Rounds      *prometheus.CounterVec
	Simulations *prometheus.CounterVec
	Busts       prometheus.Counter
	Verified    prometheus.Counter
	LastBalance prometheus.Gauge
	WorstStreak prometheus.Gauge
}

// NewCollectors creates the collectors and registers them on reg.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roulette_rounds_total",
			Help: "Rounds played, by outcome.",
		}, []string{"outcome"}),
		Simulations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roulette_simulations_total",
			Help: "Finished simulations, by reason.",
		}, []string{"reason"}),
		Busts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roulette_busts_total",
			Help: "Simulations that ended with the bankroll unable to cover the next wager.",
		}),
		Verified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roulette_spins_verified_total",
			Help: "Single spins recomputed through the verify endpoint.",
		}),
		LastBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roulette_last_balance",
			Help: "Balance after the most recently recorded round.",
		}),
		WorstStreak: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roulette_worst_streak",
			Help: "Longest losing streak of the last finished simulation.",
		}),
	}
	for _, col := range []prometheus.Collector{c.Rounds, c.Simulations, c.Busts, c.Verified, c.LastBalance, c.WorstStreak} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	// Pre-create the outcome series so they export as zero.
	for _, o := range []betting.OutcomeClass{betting.Win, betting.Push, betting.Loss} {
		c.Rounds.WithLabelValues(string(o))
	}
	return c, nil
}

// ObserveSummary records a finished simulation.
func (c *Collectors) ObserveSummary(sum simulation.Summary) {
	c.Simulations.WithLabelValues(string(sum.Reason)).Inc()
	if sum.Reason == simulation.ReasonBusted {
		c.Busts.Inc()
	}
	c.WorstStreak.Set(float64(-sum.WorstStreak.Value))
}

// Sink counts every round it receives. It never fails.
type Sink struct {
	c    *Collectors
	win  prometheus.Counter
	push prometheus.Counter
	loss prometheus.Counter
}

// NewSink returns a sink that updates c.
func NewSink(c *Collectors) *Sink {
	return &Sink{
		c:    c,
		win:  c.Rounds.WithLabelValues(string(betting.Win)),
		push: c.Rounds.WithLabelValues(string(betting.Push)),
		loss: c.Rounds.WithLabelValues(string(betting.Loss)),
	}
}

// Append implements simulation.Sink.
func (s *Sink) Append(_ context.Context, rec betting.RoundRecord) error {
	switch rec.Outcome {
	case betting.Win:
		s.win.Inc()
	case betting.Push:
		s.push.Inc()
	default:
		s.loss.Inc()
	}
	s.c.LastBalance.Set(rec.Balance.InexactFloat64())
	return nil
}
