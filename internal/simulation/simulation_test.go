package simulation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
	"github.com/MJE43/stake-roulette-sim/internal/engine"
)

var regressionSeeds = engine.Seeds{
	Server: "097d89ba33cd428e2a1b0a7e27c7d4e51b8ff5ab9a2f4b2c6b5c4c0e0d4f1f3b",
	Client: "xSF4HYcEOm",
}

// Pockets for nonces 1..20 of the regression seeds.
var regressionPockets = []int{7, 21, 3, 29, 20, 33, 30, 29, 17, 31, 32, 4, 7, 10, 33, 22, 31, 30, 10, 14}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testConfig(balance string, rounds int) Config {
	return Config{
		Seeds:      regressionSeeds,
		StartNonce: 0,
		MaxRounds:  rounds,
		Betting: betting.Config{
			StartingBalance: dec(balance),
			BaseWager:       dec("1"),
			LossMultiplier:  betting.DefaultLossMultiplier,
		},
	}
}

type memorySink struct {
	records []betting.RoundRecord
	failAt  int
	err     error
}

func (m *memorySink) Append(_ context.Context, rec betting.RoundRecord) error {
	if m.failAt > 0 && rec.Round == m.failAt {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

type memoryReporter struct {
	reports []Progress
	err     error
}

func (m *memoryReporter) Report(_ context.Context, p Progress) error {
	m.reports = append(m.reports, p)
	return m.err
}

func TestRunCompleted(t *testing.T) {
	sink := &memorySink{}
	sum, err := New(testConfig("100", 20), WithSink(sink)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if sum.Reason != ReasonCompleted {
		t.Errorf("Reason = %s, want completed", sum.Reason)
	}
	if sum.Rounds != 20 || sum.Wins != 4 || sum.Pushes != 11 || sum.Losses != 5 {
		t.Errorf("counts = %d/%d/%d/%d", sum.Rounds, sum.Wins, sum.Pushes, sum.Losses)
	}
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"FinalBalance", sum.FinalBalance, "97"},
		{"Profit", sum.Profit, "-3"},
		{"TotalWagered", sum.TotalWagered, "48"},
		{"LargestWager", sum.LargestWager, "8"},
		{"LowestBalance", sum.LowestBalance, "97"},
		{"NextWager", sum.NextWager, "8"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if sum.WorstStreak != (betting.StreakMark{Value: -3, Nonce: 19}) {
		t.Errorf("WorstStreak = %+v", sum.WorstStreak)
	}
	if sum.BestStreak != (betting.StreakMark{Value: 3, Nonce: 3}) {
		t.Errorf("BestStreak = %+v", sum.BestStreak)
	}
	if sum.LastNonce != 20 || sum.StartNonce != 0 {
		t.Errorf("nonces = %d..%d", sum.StartNonce, sum.LastNonce)
	}
	if sum.ServerSeedHash != regressionSeeds.ServerHash() {
		t.Errorf("ServerSeedHash = %s", sum.ServerSeedHash)
	}

	if len(sink.records) != 20 {
		t.Fatalf("sink got %d records, want 20", len(sink.records))
	}
	for i, rec := range sink.records {
		if rec.Round != i+1 || rec.Nonce != uint64(i+1) {
			t.Errorf("record %d has round %d nonce %d", i, rec.Round, rec.Nonce)
		}
		if rec.Pocket != regressionPockets[i] {
			t.Errorf("record %d pocket = %d, want %d", i, rec.Pocket, regressionPockets[i])
		}
	}
	if sum.PocketCounts[7] != 2 || sum.PocketCounts[33] != 2 || sum.PocketCounts[0] != 0 {
		t.Errorf("PocketCounts = %v", sum.PocketCounts)
	}

	h := sum.LossStreaks
	if h.Count(1) != 9 || h.Count(2) != 4 || h.Count(3) != 2 || h.Total() != 15 {
		t.Errorf("LossStreaks = 1:%d 2:%d 3:%d total %d", h.Count(1), h.Count(2), h.Count(3), h.Total())
	}
	if h.Percentile(0.95) != 3 || h.Percentile(0.5) != 1 {
		t.Errorf("p95 = %d, p50 = %d", h.Percentile(0.95), h.Percentile(0.5))
	}
}

func TestRunBusted(t *testing.T) {
	sink := &memorySink{}
	sum, err := New(testConfig("5", 100), WithSink(sink)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Reason != ReasonBusted {
		t.Fatalf("Reason = %s, want busted", sum.Reason)
	}
	if sum.BustRound != 19 || sum.BustNonce != 19 || sum.Rounds != 19 {
		t.Errorf("bust at round %d nonce %d after %d rounds", sum.BustRound, sum.BustNonce, sum.Rounds)
	}
	if !sum.FinalBalance.Equal(dec("2")) || !sum.NextWager.Equal(dec("8")) {
		t.Errorf("final balance %s next wager %s", sum.FinalBalance, sum.NextWager)
	}

	if len(sink.records) != 19 {
		t.Fatalf("sink got %d records, want the busting round included", len(sink.records))
	}
	last := sink.records[len(sink.records)-1]
	if last.Nonce != 19 || last.Outcome != betting.Loss || !last.Wager.Equal(dec("4")) || !last.Balance.Equal(dec("2")) {
		t.Errorf("busting record = %+v", last)
	}
}

func TestRunStopRule(t *testing.T) {
	rule := StopFunc(func(_ betting.State, rec betting.RoundRecord) (bool, error) {
		return rec.Round == 5, nil
	})
	sum, err := New(testConfig("100", 20), WithStopRule(rule)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Reason != ReasonStopped || sum.Rounds != 5 {
		t.Errorf("Reason = %s after %d rounds", sum.Reason, sum.Rounds)
	}
	if !sum.FinalBalance.Equal(dec("102")) {
		t.Errorf("FinalBalance = %s, want 102", sum.FinalBalance)
	}
}

func TestRunStopRuleError(t *testing.T) {
	boom := errors.New("boom")
	rule := StopFunc(func(betting.State, betting.RoundRecord) (bool, error) { return false, boom })
	sum, err := New(testConfig("100", 20), WithStopRule(rule)).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want boom", err)
	}
	if sum.Rounds != 1 {
		t.Errorf("Rounds = %d, want 1", sum.Rounds)
	}
}

func TestRunSinkError(t *testing.T) {
	errDisk := errors.New("disk full")
	first := &memorySink{failAt: 3, err: errDisk}
	second := &memorySink{}
	sum, err := New(testConfig("100", 20), WithSink(first), WithSink(second)).Run(context.Background())
	if !errors.Is(err, errDisk) {
		t.Fatalf("Run() error = %v, want disk full", err)
	}
	if sum.Reason != ReasonSinkError {
		t.Errorf("Reason = %s, want sink_error", sum.Reason)
	}
	if sum.Rounds != 3 || sum.LastNonce != 3 {
		t.Errorf("summary should include the committed round: rounds %d nonce %d", sum.Rounds, sum.LastNonce)
	}
	if len(first.records) != 2 || len(second.records) != 2 {
		t.Errorf("sinks got %d and %d records, want 2 and 2", len(first.records), len(second.records))
	}
}

func TestRunCancelled(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		sum, err := New(testConfig("100", 20)).Run(ctx)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if sum.Reason != ReasonCancelled || sum.Rounds != 0 {
			t.Errorf("Reason = %s after %d rounds", sum.Reason, sum.Rounds)
		}
		if !sum.FinalBalance.Equal(dec("100")) {
			t.Errorf("FinalBalance = %s", sum.FinalBalance)
		}
	})

	t.Run("at round boundary", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rule := StopFunc(func(_ betting.State, rec betting.RoundRecord) (bool, error) {
			if rec.Round == 4 {
				cancel()
			}
			return false, nil
		})
		sum, err := New(testConfig("100", 20), WithStopRule(rule)).Run(ctx)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if sum.Reason != ReasonCancelled || sum.Rounds != 4 {
			t.Errorf("Reason = %s after %d rounds", sum.Reason, sum.Rounds)
		}
	})
}

// ctxSink refuses a round with ctx.Err() while ctx is live at that round,
// then accepts it once called with a context that cannot be cancelled.
type ctxSink struct {
	cancelAt int
	cancel   context.CancelFunc
	records  []betting.RoundRecord
}

func (c *ctxSink) Append(ctx context.Context, rec betting.RoundRecord) error {
	if rec.Round == c.cancelAt && ctx.Done() != nil {
		c.cancel()
		return ctx.Err()
	}
	c.records = append(c.records, rec)
	return nil
}

func TestRunCancelledDuringAppend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := &ctxSink{cancelAt: 3, cancel: cancel}
	second := &memorySink{}

	sum, err := New(testConfig("100", 20), WithSink(first), WithSink(second)).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Reason != ReasonCancelled || sum.Rounds != 3 {
		t.Errorf("Reason = %s after %d rounds", sum.Reason, sum.Rounds)
	}
	if len(first.records) != sum.Rounds || len(second.records) != sum.Rounds {
		t.Errorf("sinks got %d and %d records, want %d each", len(first.records), len(second.records), sum.Rounds)
	}
	if last := second.records[len(second.records)-1]; last.Round != 3 {
		t.Errorf("last delivered round = %d, want 3", last.Round)
	}
}

func TestRunProgress(t *testing.T) {
	rep := &memoryReporter{err: errors.New("unreachable")}
	cfg := testConfig("100", 20)
	cfg.ProgressEvery = 5
	if _, err := New(cfg, WithReporter(rep)).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(rep.reports) != 5 {
		t.Fatalf("got %d reports, want 4 periodic and 1 final", len(rep.reports))
	}
	for i, p := range rep.reports[:4] {
		if p.Round != (i+1)*5 || p.Done {
			t.Errorf("report %d = %+v", i, p)
		}
	}
	final := rep.reports[4]
	if !final.Done || final.Reason != ReasonCompleted || final.Round != 20 || final.Percent() != 100 {
		t.Errorf("final report = %+v", final)
	}
}

func TestRunDeterministic(t *testing.T) {
	a, err := New(testConfig("50", 200)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(testConfig("50", 200)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a.Rounds != b.Rounds || !a.FinalBalance.Equal(b.FinalBalance) || a.WorstStreak != b.WorstStreak || a.PocketCounts != b.PocketCounts {
		t.Errorf("two runs with the same seeds diverged: %+v vs %+v", a, b)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig("100", 0)
	cfg.Seeds.Client = ""
	cfg.Betting.BaseWager = decimal.Zero

	_, err := New(cfg).Run(context.Background())
	if !errors.Is(err, betting.ErrInvalidConfig) {
		t.Fatalf("Run() error = %v, want ErrInvalidConfig", err)
	}
	for _, want := range []string{"client seed", "max rounds", "base wager"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}
