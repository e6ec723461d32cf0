package betting

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MJE43/stake-roulette-sim/internal/games"
)

var (
	winSpin   = games.SpinOutcome{Pocket: 3, Color: games.Red, Parity: games.Odd}
	pushRed   = games.SpinOutcome{Pocket: 12, Color: games.Red, Parity: games.Even}
	pushBlack = games.SpinOutcome{Pocket: 11, Color: games.Black, Parity: games.Odd}
	lossSpin  = games.SpinOutcome{Pocket: 2, Color: games.Black, Parity: games.Even}
	zeroSpin  = games.SpinOutcome{Pocket: 0, Color: games.Green, Parity: games.NoParity}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testConfig(balance, base string) Config {
	return Config{
		StartingBalance: dec(balance),
		BaseWager:       dec(base),
		LossMultiplier:  DefaultLossMultiplier,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		outcome    games.SpinOutcome
		wantClass  OutcomeClass
		wantPayout int
	}{
		{"red odd", winSpin, Win, 2},
		{"red even", pushRed, Push, 1},
		{"black odd", pushBlack, Push, 1},
		{"black even", lossSpin, Loss, 0},
		{"green zero", zeroSpin, Loss, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, payout := Classify(tt.outcome)
			if class != tt.wantClass || payout != tt.wantPayout {
				t.Errorf("Classify() = (%s, %d), want (%s, %d)", class, payout, tt.wantClass, tt.wantPayout)
			}
		})
	}
}

func TestClassifyWholeWheel(t *testing.T) {
	counts := map[OutcomeClass]int{}
	for _, p := range games.Wheel() {
		class, _ := Classify(games.SpinOutcome{Pocket: p.Number, Color: p.Color, Parity: p.Parity})
		counts[class]++
	}
	// 10 red odd; 8 red even + 8 black odd; 10 black even + zero
	if counts[Win] != 10 || counts[Push] != 16 || counts[Loss] != 11 {
		t.Errorf("class counts = %v", counts)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", testConfig("10", "0.0016"), false},
		{"base equals balance", testConfig("1", "1"), false},
		{"zero base", testConfig("10", "0"), true},
		{"negative base", testConfig("10", "-1"), true},
		{"base above balance", testConfig("1", "2"), true},
		{"zero balance", testConfig("0", "1"), true},
		{"multiplier below one", Config{StartingBalance: dec("10"), BaseWager: dec("1"), LossMultiplier: dec("0.5")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error %v should wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestEndToEndLossLossWin(t *testing.T) {
	cfg := testConfig("10", "0.0016")
	state := NewState(cfg)

	var wagers []decimal.Decimal
	for i, out := range []games.SpinOutcome{lossSpin, lossSpin, winSpin} {
		var rec RoundRecord
		var status Status
		state, rec, status = Step(cfg, state, uint64(i+1), out)
		if status != Continue {
			t.Fatalf("round %d: status = %s", i+1, status)
		}
		wagers = append(wagers, rec.Wager)
	}

	want := []string{"0.0016", "0.0032", "0.0064"}
	for i := range want {
		if !wagers[i].Equal(dec(want[i])) {
			t.Errorf("wager %d = %s, want %s", i, wagers[i], want[i])
		}
	}
	if !state.NextWager.Equal(dec("0.0016")) {
		t.Errorf("NextWager = %s, want 0.0016", state.NextWager)
	}
	if state.Streak != 1 {
		t.Errorf("Streak = %d, want 1", state.Streak)
	}
	if !state.Balance.Equal(dec("10.0016")) {
		t.Errorf("Balance = %s, want 10.0016", state.Balance)
	}
	if state.WorstStreak != (StreakMark{Value: -2, Nonce: 2}) {
		t.Errorf("WorstStreak = %+v", state.WorstStreak)
	}
	if !state.TotalWagered.Equal(dec("0.0112")) {
		t.Errorf("TotalWagered = %s, want 0.0112", state.TotalWagered)
	}
	if !state.LargestWager.Equal(dec("0.0064")) {
		t.Errorf("LargestWager = %s, want 0.0064", state.LargestWager)
	}
	if !state.LowestBalance.Equal(dec("9.9952")) {
		t.Errorf("LowestBalance = %s, want 9.9952", state.LowestBalance)
	}
}

func TestPushKeepsEscalation(t *testing.T) {
	cfg := testConfig("100", "1")
	state := NewState(cfg)
	state, _, _ = Step(cfg, state, 1, lossSpin)
	state, _, _ = Step(cfg, state, 2, lossSpin)

	for i, out := range []games.SpinOutcome{pushRed, pushBlack} {
		before := state
		var rec RoundRecord
		state, rec, _ = Step(cfg, state, uint64(3+i), out)
		if !rec.RoundProfit.IsZero() || rec.Payout != 1 {
			t.Errorf("push record = %+v", rec)
		}
		if state.Streak != before.Streak {
			t.Errorf("push changed streak %d -> %d", before.Streak, state.Streak)
		}
		if !state.NextWager.Equal(before.NextWager) {
			t.Errorf("push changed next wager %s -> %s", before.NextWager, state.NextWager)
		}
		if !state.Balance.Equal(before.Balance) {
			t.Errorf("push changed balance %s -> %s", before.Balance, state.Balance)
		}
	}
	if state.Streak != -2 || !state.NextWager.Equal(dec("4")) {
		t.Errorf("after pushes streak=%d next=%s, want -2 and 4", state.Streak, state.NextWager)
	}
	if state.Pushes != 2 {
		t.Errorf("Pushes = %d", state.Pushes)
	}
}

func TestStreakSignLaw(t *testing.T) {
	cfg := testConfig("1000", "1")
	tests := []struct {
		name  string
		seq   []games.SpinOutcome
		want  int
		worst int
		best  int
	}{
		{"wins accumulate", []games.SpinOutcome{winSpin, winSpin, winSpin}, 3, 0, 3},
		{"loss resets positive", []games.SpinOutcome{winSpin, winSpin, lossSpin}, -1, -1, 2},
		{"win resets negative", []games.SpinOutcome{lossSpin, lossSpin, winSpin}, 1, -2, 1},
		{"zero counts as loss", []games.SpinOutcome{zeroSpin, lossSpin}, -2, -2, 0},
		{"push never flips", []games.SpinOutcome{lossSpin, pushRed, pushBlack, lossSpin}, -2, -2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewState(cfg)
			for i, out := range tt.seq {
				state, _, _ = Step(cfg, state, uint64(i+1), out)
			}
			if state.Streak != tt.want {
				t.Errorf("Streak = %d, want %d", state.Streak, tt.want)
			}
			if state.WorstStreak.Value != tt.worst {
				t.Errorf("WorstStreak = %d, want %d", state.WorstStreak.Value, tt.worst)
			}
			if state.BestStreak.Value != tt.best {
				t.Errorf("BestStreak = %d, want %d", state.BestStreak.Value, tt.best)
			}
		})
	}
}

func TestWorstStreakKeepsFirstNonce(t *testing.T) {
	cfg := testConfig("1000", "1")
	state := NewState(cfg)
	state, _, _ = Step(cfg, state, 10, lossSpin)
	state, _, _ = Step(cfg, state, 11, lossSpin)
	state, _, _ = Step(cfg, state, 12, winSpin)
	state, _, _ = Step(cfg, state, 13, lossSpin)
	state, _, _ = Step(cfg, state, 14, lossSpin)
	if state.WorstStreak != (StreakMark{Value: -2, Nonce: 11}) {
		t.Errorf("WorstStreak = %+v, want -2 at nonce 11", state.WorstStreak)
	}
}

func TestBustBoundary(t *testing.T) {
	t.Run("equality continues", func(t *testing.T) {
		cfg := testConfig("3", "1")
		state, _, status := Step(cfg, NewState(cfg), 1, lossSpin)
		if !state.NextWager.Equal(state.Balance) {
			t.Fatalf("setup: next %s balance %s", state.NextWager, state.Balance)
		}
		if status != Continue {
			t.Errorf("status = %s, want continue", status)
		}
	})

	t.Run("strictly greater busts", func(t *testing.T) {
		cfg := testConfig("3", "1")
		state := NewState(cfg)
		state, _, _ = Step(cfg, state, 1, lossSpin)
		state, rec, status := Step(cfg, state, 2, lossSpin)
		if status != Busted {
			t.Fatalf("status = %s, want busted", status)
		}
		if rec.Round != 2 || rec.Nonce != 2 || !rec.Balance.IsZero() || !rec.Wager.Equal(dec("2")) {
			t.Errorf("busting record = %+v", rec)
		}
		if !state.NextWager.Equal(dec("4")) {
			t.Errorf("NextWager = %s, want 4", state.NextWager)
		}
	})

	t.Run("win never busts a valid config", func(t *testing.T) {
		cfg := testConfig("1", "1")
		_, _, status := Step(cfg, NewState(cfg), 1, winSpin)
		if status != Continue {
			t.Errorf("status = %s, want continue", status)
		}
	})
}

func TestInvariantsRandomWalk(t *testing.T) {
	cfg := Config{
		StartingBalance: dec("1000"),
		BaseWager:       dec("0.0016"),
		LossMultiplier:  dec("2.5"),
	}
	wheel := games.Wheel()
	rng := rand.New(rand.NewSource(7))
	state := NewState(cfg)

	for nonce := uint64(1); nonce <= 5000; nonce++ {
		p := wheel[rng.Intn(len(wheel))]
		prev := state
		var rec RoundRecord
		var status Status
		state, rec, status = Step(cfg, state, nonce, games.SpinOutcome{Pocket: p.Number, Color: p.Color, Parity: p.Parity})

		if !state.Balance.Equal(cfg.StartingBalance.Add(state.CumulativeProfit)) {
			t.Fatalf("nonce %d: balance invariant broken", nonce)
		}
		if !rec.Wager.Equal(prev.NextWager) {
			t.Fatalf("nonce %d: wager %s, want %s", nonce, rec.Wager, prev.NextWager)
		}
		switch rec.Outcome {
		case Loss:
			if !state.NextWager.Equal(rec.Wager.Mul(cfg.LossMultiplier)) {
				t.Fatalf("nonce %d: martingale law broken", nonce)
			}
		case Win:
			if !state.NextWager.Equal(cfg.BaseWager) {
				t.Fatalf("nonce %d: win must reset wager", nonce)
			}
		case Push:
			if state.Streak != prev.Streak {
				t.Fatalf("nonce %d: push changed streak", nonce)
			}
		}
		if state.LargestWager.LessThan(rec.Wager) {
			t.Fatalf("nonce %d: largest wager below placed wager", nonce)
		}
		if state.LowestBalance.GreaterThan(state.Balance) {
			t.Fatalf("nonce %d: lowest balance above balance", nonce)
		}
		if state.Wins+state.Pushes+state.Losses != state.RoundCount {
			t.Fatalf("nonce %d: counters out of sync", nonce)
		}
		if status == Busted {
			if !state.NextWager.GreaterThan(state.Balance) {
				t.Fatalf("nonce %d: busted without next > balance", nonce)
			}
			return
		}
		if !state.NextWager.IsPositive() {
			t.Fatalf("nonce %d: next wager not positive", nonce)
		}
	}
}

func TestStatusString(t *testing.T) {
	if Continue.String() != "continue" || Busted.String() != "busted" {
		t.Errorf("unexpected status strings %q %q", Continue, Busted)
	}
}
