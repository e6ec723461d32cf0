package scripting

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// ErrScriptTimeout is returned when a script call runs past its deadline.
var ErrScriptTimeout = errors.New("script execution timeout")

const (
	scriptInitTimeout = 2 * time.Second
	scriptCallTimeout = 1 * time.Second
)

// VM wraps a goja runtime with sandbox restrictions and global function injection.
type VM struct {
	runtime *goja.Runtime
	mu      sync.Mutex
	log     *zap.Logger

	// stopRequested is set when the script calls stop().
	stopRequested bool
}

// NewVM creates a sandboxed goja runtime with global functions injected.
func NewVM(log *zap.Logger) *VM {
	if log == nil {
		log = zap.NewNop()
	}
	vm := &VM{
		runtime: goja.New(),
		log:     log,
	}
	vm.injectGlobalFunctions()
	injectConstants(vm.runtime)
	return vm
}

// injectGlobalFunctions registers log, stop and console.log and removes
// everything that could reach outside the sandbox.
func (vm *VM) injectGlobalFunctions() {
	vm.runtime.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		vm.log.Info("script log", zap.String("message", strings.Join(parts, " ")))
		return goja.Undefined()
	})

	console := vm.runtime.NewObject()
	console.Set("log", vm.runtime.Get("log"))
	vm.runtime.Set("console", console)

	vm.runtime.Set("stop", func(call goja.FunctionCall) goja.Value {
		vm.stopRequested = true
		return goja.Undefined()
	})

	vm.runtime.Set("require", goja.Undefined())
	vm.runtime.Set("fetch", goja.Undefined())
	vm.runtime.Set("XMLHttpRequest", goja.Undefined())
	vm.runtime.Set("eval", goja.Undefined())
	vm.runtime.Set("Function", goja.Undefined())
}

// Execute runs a compiled program once and returns its completion value.
func (vm *VM) Execute(prg *goja.Program) (goja.Value, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	var out goja.Value
	err := vm.runWithTimeout(scriptInitTimeout, func() error {
		v, err := vm.runtime.RunProgram(prg)
		if err != nil {
			return fmt.Errorf("script execution error: %w", err)
		}
		out = v
		return nil
	})
	return out, err
}

// Function returns a global function by name, or nil when the script did
// not define one.
func (vm *VM) Function(name string) goja.Callable {
	val := vm.runtime.Get(name)
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil
	}
	return fn
}

// Call invokes fn with the per-call deadline.
func (vm *VM) Call(fn goja.Callable) (goja.Value, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	var out goja.Value
	err := vm.runWithTimeout(scriptCallTimeout, func() error {
		v, err := fn(goja.Undefined())
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// TakeStopRequest reports whether stop() was called since the last check.
func (vm *VM) TakeStopRequest() bool {
	stop := vm.stopRequested
	vm.stopRequested = false
	return stop
}

// runWithTimeout arms an interrupt for the duration of fn. The runtime is
// always left usable for the next call.
func (vm *VM) runWithTimeout(timeout time.Duration, fn func() error) error {
	timer := time.AfterFunc(timeout, func() {
		vm.runtime.Interrupt(ErrScriptTimeout)
	})
	err := fn()
	if !timer.Stop() {
		vm.runtime.ClearInterrupt()
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("script timed out after %s: %w", timeout, ErrScriptTimeout)
	}
	return err
}
