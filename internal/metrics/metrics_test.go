package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
	"github.com/MJE43/stake-roulette-sim/internal/simulation"
)

// gatherValue returns the value of the series name{label=value}, or -1.
func gatherValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := label == ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					match = true
				}
			}
			if !match {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return -1
}

func TestSinkCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollectors(reg)
	if err != nil {
		t.Fatal(err)
	}
	s := NewSink(c)
	ctx := context.Background()
	for _, o := range []betting.OutcomeClass{betting.Win, betting.Loss, betting.Loss, betting.Push} {
		if err := s.Append(ctx, betting.RoundRecord{Outcome: o, Balance: decimal.RequireFromString("99.5")}); err != nil {
			t.Fatal(err)
		}
	}

	if v := gatherValue(t, reg, "roulette_rounds_total", "outcome", "win"); v != 1 {
		t.Errorf("wins = %v", v)
	}
	if v := gatherValue(t, reg, "roulette_rounds_total", "outcome", "lose"); v != 2 {
		t.Errorf("losses = %v", v)
	}
	if v := gatherValue(t, reg, "roulette_rounds_total", "outcome", "push"); v != 1 {
		t.Errorf("pushes = %v", v)
	}
	if v := gatherValue(t, reg, "roulette_last_balance", "", ""); v != 99.5 {
		t.Errorf("last balance = %v", v)
	}
}

func TestObserveSummary(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollectors(reg)
	if err != nil {
		t.Fatal(err)
	}
	c.ObserveSummary(simulation.Summary{Reason: simulation.ReasonBusted, WorstStreak: betting.StreakMark{Value: -21}})
	c.ObserveSummary(simulation.Summary{Reason: simulation.ReasonCompleted, WorstStreak: betting.StreakMark{Value: -9}})

	if v := gatherValue(t, reg, "roulette_busts_total", "", ""); v != 1 {
		t.Errorf("busts = %v", v)
	}
	if v := gatherValue(t, reg, "roulette_simulations_total", "reason", "completed"); v != 1 {
		t.Errorf("completed = %v", v)
	}
	if v := gatherValue(t, reg, "roulette_worst_streak", "", ""); v != 9 {
		t.Errorf("worst streak = %v", v)
	}
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewCollectors(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCollectors(reg); err == nil {
		t.Error("registering twice on one registry should fail")
	}
}
