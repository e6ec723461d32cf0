package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MJE43/stake-roulette-sim/internal/simulation"
)

// roundsPerSecond is measured by the driver, never by the runner.
func roundsPerSecond(rounds int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(rounds) / elapsed.Seconds()
}

// printSummary writes the final report. serverSeed is revealed only when
// it is not kept in the vault.
func printSummary(w io.Writer, sum simulation.Summary, elapsed time.Duration, serverSeed string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "--- Simulation Complete ---")
	fmt.Fprintf(w, "Reason: %s\n", sum.Reason)
	if sum.Reason == simulation.ReasonBusted {
		fmt.Fprintf(w, "Busted At: round %s, nonce %d\n", humanize.Comma(int64(sum.BustRound)), sum.BustNonce)
	}
	fmt.Fprintf(w, "Run Time: %.2f seconds\n", elapsed.Seconds())
	fmt.Fprintf(w, "Bets Per Second: %s\n", humanize.Commaf(float64(int64(roundsPerSecond(sum.Rounds, elapsed)))))
	fmt.Fprintf(w, "Total Bets: %s\n", humanize.Comma(int64(sum.Rounds)))
	fmt.Fprintf(w, "Wins / Pushes / Losses: %d / %d / %d\n", sum.Wins, sum.Pushes, sum.Losses)
	fmt.Fprintf(w, "Final Balance: %s\n", sum.FinalBalance.StringFixed(4))
	fmt.Fprintf(w, "Total Profit: %s\n", sum.Profit.StringFixed(4))
	fmt.Fprintf(w, "Largest Wager: %s\n", sum.LargestWager.StringFixed(4))
	fmt.Fprintf(w, "Highest Losing Streak: %d (nonce %d)\n", -sum.WorstStreak.Value, sum.WorstStreak.Nonce)
	if n := sum.LossStreaks.Total(); n > 0 {
		fmt.Fprintf(w, "Losing Streak p95 / p99: %d / %d\n", sum.LossStreaks.Percentile(0.95), sum.LossStreaks.Percentile(0.99))
	}
	fmt.Fprintf(w, "Client Seed: %s\n", sum.ClientSeed)
	fmt.Fprintf(w, "Server Seed Hash: %s\n", sum.ServerSeedHash)
	if serverSeed != "" {
		fmt.Fprintf(w, "Server Seed: %s\n", serverSeed)
	}
	fmt.Fprintf(w, "Start Nonce: %d\n", sum.StartNonce)
	fmt.Fprintln(w, "---------------------------")
}
