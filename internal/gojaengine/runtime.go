// Package gojaengine runs scripts on goja, a pure-Go ECMAScript engine.
package gojaengine

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dop251/goja"

	"github.com/cryguy/jsbridge/internal/core"
)

// interruptReason is the value passed to goja's Interrupt by the watchdog.
const interruptReason = "execution interrupted"

// gojaRuntime implements core.Context for goja.
type gojaRuntime struct {
	vm          *goja.Runtime
	interrupted atomic.Bool
}

var _ core.Context = (*gojaRuntime)(nil)

// Backend describes goja for the backend registry.
var Backend = core.Backend{
	Name:    "goja",
	Dialect: core.DialectES2020,
	New:     NewContext,
}

// NewContext creates a goja runtime. goja has no heap limit, so
// cfg.MemoryLimitMB is ignored.
func NewContext(cfg core.EngineConfig) (core.Context, error) {
	return &gojaRuntime{vm: goja.New()}, nil
}

// Eval evaluates JavaScript and discards the result.
func (r *gojaRuntime) Eval(js string) error {
	_, err := r.vm.RunString(js)
	return err
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *gojaRuntime) EvalString(js string) (string, error) {
	v, err := r.vm.RunString(js)
	if err != nil {
		return "", err
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", nil
	}
	return v.String(), nil
}

// RegisterFunc exposes fn as a global function. goja converts arguments
// and results by reflection and throws when a trailing error is non-nil.
func (r *gojaRuntime) RegisterFunc(name string, fn any) error {
	return r.vm.Set(name, fn)
}

// SetGlobal sets a global variable. goja.Value instances are stored as-is.
func (r *gojaRuntime) SetGlobal(name string, value any) error {
	return r.vm.Set(name, value)
}

// RunMicrotasks is a no-op: goja drains its job queue at the end of every
// Run call.
func (r *gojaRuntime) RunMicrotasks() {}

// EvalCapture runs source as a script named origin and stores the
// completion value in globalThis[slot].
func (r *gojaRuntime) EvalCapture(source, origin, slot string) error {
	r.interrupted.Store(false)
	r.vm.ClearInterrupt()

	v, err := r.vm.RunScript(origin, source)
	if err != nil {
		return r.evalError(err, origin)
	}
	if v == nil {
		v = goja.Undefined()
	}
	if err := r.vm.Set(slot, v); err != nil {
		return fmt.Errorf("storing completion value: %w", err)
	}
	return nil
}

func (r *gojaRuntime) evalError(err error, origin string) *core.EvalError {
	ee := &core.EvalError{Cause: err}

	var intr *goja.InterruptedError
	if errors.As(err, &intr) {
		ee.Interrupted = true
		ee.Message = interruptReason
		ee.Stack = strings.TrimSpace(intr.String())
		ee.Location = core.FirstLocation(ee.Stack)
		return ee
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		msg := err.Error()
		if val := exc.Value(); val != nil {
			msg = val.String()
		}
		ee.Name, ee.Message = splitName(msg)
		full := strings.TrimSpace(exc.String())
		if _, rest, ok := strings.Cut(full, "\n"); ok {
			ee.Stack = strings.TrimSpace(rest)
		}
		ee.Location = core.FirstLocation(ee.Stack)
	} else {
		ee.Name, ee.Message = splitName(err.Error())
	}

	if ee.Name == "SyntaxError" {
		if loc, rest := core.SplitParserPosition(ee.Message, origin); loc != "" {
			ee.Location, ee.Message = loc, rest
		}
	}
	if r.interrupted.Load() {
		ee.Interrupted = true
	}
	return ee
}

// splitName strips the error name, which goja repeats for compile errors
// ("SyntaxError: SyntaxError: ...").
func splitName(msg string) (name, rest string) {
	name, rest = core.SplitErrorName(msg)
	for name != "" {
		again, tail := core.SplitErrorName(rest)
		if again != name {
			break
		}
		rest = tail
	}
	return name, rest
}

// Interrupt aborts the running script. Safe to call from any goroutine.
func (r *gojaRuntime) Interrupt() {
	r.interrupted.Store(true)
	r.vm.Interrupt(interruptReason)
}

// Close releases the runtime. goja is garbage collected, so this only
// clears any pending interrupt.
func (r *gojaRuntime) Close() error {
	r.vm.ClearInterrupt()
	return nil
}
