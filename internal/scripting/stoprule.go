package scripting

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
)

// StopRule evaluates a user script between rounds. The source is either a
// script defining shouldStop() or a bare boolean expression such as
// "profit >= 5 || streak <= -12". Calling stop() from the script also ends
// the run.
//
// A StopRule is not safe for concurrent use.
type StopRule struct {
	vm     *VM
	fn     goja.Callable
	source string
}

// NewStopRule compiles source. Syntax errors are reported here rather than
// on the first round.
func NewStopRule(source string, log *zap.Logger) (*StopRule, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("scripting: empty stop rule")
	}
	vm := NewVM(log)
	injectVariables(vm.runtime, betting.State{}, betting.RoundRecord{})

	prg, err := goja.Compile("stop_rule", source, false)
	if err != nil {
		return nil, fmt.Errorf("scripting: compile stop rule: %w", err)
	}
	if _, err := vm.Execute(prg); err != nil {
		return nil, fmt.Errorf("scripting: %w", err)
	}
	vm.TakeStopRequest()

	fn := vm.Function("shouldStop")
	if fn == nil {
		expr, err := goja.Compile("stop_rule_expr", "(function () { return (\n"+strings.TrimRight(strings.TrimSpace(source), ";")+"\n); })", false)
		if err != nil {
			return nil, fmt.Errorf("scripting: stop rule is neither a shouldStop() script nor an expression: %w", err)
		}
		v, err := vm.Execute(expr)
		if err != nil {
			return nil, fmt.Errorf("scripting: %w", err)
		}
		f, ok := goja.AssertFunction(v)
		if !ok {
			return nil, fmt.Errorf("scripting: stop rule expression did not compile to a function")
		}
		fn = f
	}

	return &StopRule{vm: vm, fn: fn, source: source}, nil
}

// Source returns the script the rule was built from.
func (r *StopRule) Source() string { return r.source }

// ShouldStop exposes state and rec to the script and evaluates it.
func (r *StopRule) ShouldStop(state betting.State, rec betting.RoundRecord) (bool, error) {
	injectVariables(r.vm.runtime, state, rec)
	v, err := r.vm.Call(r.fn)
	if err != nil {
		return false, fmt.Errorf("scripting: shouldStop at nonce %d: %w", rec.Nonce, err)
	}
	stop := v != nil && v.ToBoolean()
	if r.vm.TakeStopRequest() {
		stop = true
	}
	return stop, nil
}
