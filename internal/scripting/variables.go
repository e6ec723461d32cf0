package scripting

import (
	"github.com/dop251/goja"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
)

func injectConstants(vm *goja.Runtime) {
	vm.Set("WIN", string(betting.Win))
	vm.Set("PUSH", string(betting.Push))
	vm.Set("LOSS", string(betting.Loss))
}

// injectVariables exposes the committed state and the last round. Money
// is exposed as float64; scripts only compare it.
func injectVariables(vm *goja.Runtime, state betting.State, rec betting.RoundRecord) {
	vm.Set("balance", state.Balance.InexactFloat64())
	vm.Set("profit", state.CumulativeProfit.InexactFloat64())
	vm.Set("nextbet", state.NextWager.InexactFloat64())
	vm.Set("largestbet", state.LargestWager.InexactFloat64())
	vm.Set("lowestbalance", state.LowestBalance.InexactFloat64())
	vm.Set("wagered", state.TotalWagered.InexactFloat64())
	vm.Set("streak", state.Streak)
	vm.Set("worststreak", state.WorstStreak.Value)
	vm.Set("beststreak", state.BestStreak.Value)
	vm.Set("bets", state.RoundCount)
	vm.Set("wins", state.Wins)
	vm.Set("losses", state.Losses)
	vm.Set("pushes", state.Pushes)

	vm.Set("wager", rec.Wager.InexactFloat64())
	vm.Set("roundprofit", rec.RoundProfit.InexactFloat64())
	vm.Set("pocket", rec.Pocket)
	vm.Set("color", rec.Color)
	vm.Set("parity", rec.Parity)
	vm.Set("outcome", string(rec.Outcome))
	vm.Set("win", rec.Outcome == betting.Win)
	vm.Set("nonce", rec.Nonce)
}
