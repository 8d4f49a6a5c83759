// Package ottoengine runs scripts on otto, a pure-Go ES5 interpreter.
package ottoengine

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/robertkrimen/otto"

	"github.com/cryguy/jsbridge/internal/core"
)

// errHalt is panicked inside the interpreter to stop a running script.
var errHalt = errors.New("execution interrupted")

// ottoRuntime implements core.Context for otto.
type ottoRuntime struct {
	vm          *otto.Otto
	interrupted atomic.Bool
	closed      atomic.Bool
}

var _ core.Context = (*ottoRuntime)(nil)

// Backend describes otto for the backend registry. otto only parses ES5.
var Backend = core.Backend{
	Name:    "otto",
	Dialect: core.DialectES5,
	New:     NewContext,
}

// NewContext creates an otto interpreter with an interrupt channel and a
// globalThis alias. cfg.MemoryLimitMB is not supported and ignored.
func NewContext(cfg core.EngineConfig) (core.Context, error) {
	vm := otto.New()
	vm.Interrupt = make(chan func(), 1)
	if _, err := vm.Run(`var globalThis = this;`); err != nil {
		return nil, fmt.Errorf("initializing otto: %w", err)
	}
	return &ottoRuntime{vm: vm}, nil
}

// Eval evaluates JavaScript and discards the result.
func (r *ottoRuntime) Eval(js string) error {
	_, err := r.vm.Run(js)
	return err
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *ottoRuntime) EvalString(js string) (string, error) {
	v, err := r.vm.Run(js)
	if err != nil {
		return "", err
	}
	if v.IsUndefined() || v.IsNull() {
		return "", nil
	}
	return v.String(), nil
}

// RegisterFunc registers a Go function as a global JavaScript function.
// Arguments are converted by the Go parameter type; a non-nil trailing
// error is thrown as a TypeError.
//
// Supported argument types: string, int, int64, float64, bool.
func (r *ottoRuntime) RegisterFunc(name string, fn any) error {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}

	wrapper := func(call otto.FunctionCall) otto.Value {
		in := make([]reflect.Value, fnType.NumIn())
		for i := range in {
			in[i] = ottoToGoArg(call.Argument(i), fnType.In(i))
		}
		out := fnVal.Call(in)
		if n := len(out); n > 0 && fnType.Out(n-1).Implements(reflect.TypeOf((*error)(nil)).Elem()) {
			if !out[n-1].IsNil() {
				msg := fmt.Sprintf("calling %s: %s", name, out[n-1].Interface().(error).Error())
				panic(call.Otto.MakeTypeError(msg))
			}
			out = out[:n-1]
		}
		if len(out) == 0 {
			return otto.UndefinedValue()
		}
		v, err := call.Otto.ToValue(out[0].Interface())
		if err != nil {
			panic(call.Otto.MakeTypeError(err.Error()))
		}
		return v
	}
	return r.vm.Set(name, wrapper)
}

func ottoToGoArg(v otto.Value, t reflect.Type) reflect.Value {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(v.String()).Convert(t)
	case reflect.Int, reflect.Int64, reflect.Int32:
		n, _ := v.ToInteger()
		return reflect.ValueOf(n).Convert(t)
	case reflect.Float64:
		f, _ := v.ToFloat()
		return reflect.ValueOf(f)
	case reflect.Bool:
		b, _ := v.ToBoolean()
		return reflect.ValueOf(b)
	default:
		return reflect.Zero(t)
	}
}

// SetGlobal sets a global variable. otto.Value instances are stored as-is.
func (r *ottoRuntime) SetGlobal(name string, value any) error {
	return r.vm.Set(name, value)
}

// RunMicrotasks is a no-op: otto has no promise job queue.
func (r *ottoRuntime) RunMicrotasks() {}

// EvalCapture compiles source under origin, runs it and stores the
// completion value in globalThis[slot]. The watchdog's halt panic is
// recovered here.
func (r *ottoRuntime) EvalCapture(source, origin, slot string) (err error) {
	r.interrupted.Store(false)
	r.drainInterrupt()
	defer func() {
		if p := recover(); p != nil {
			if p != errHalt {
				panic(p)
			}
			err = &core.EvalError{Message: errHalt.Error(), Interrupted: true, Cause: errHalt}
		}
	}()

	script, err := r.vm.Compile(origin, source)
	if err != nil {
		return syntaxError(err, origin)
	}
	v, err := r.vm.Run(script)
	if err != nil {
		return r.evalError(err)
	}
	if err := r.vm.Set(slot, v); err != nil {
		return fmt.Errorf("storing completion value: %w", err)
	}
	return nil
}

func syntaxError(err error, origin string) *core.EvalError {
	ee := &core.EvalError{Name: "SyntaxError", Cause: err}
	ee.Location, ee.Message = core.SplitParserPosition(err.Error(), origin)
	if name, rest := core.SplitErrorName(ee.Message); name != "" {
		ee.Message = rest
	}
	return ee
}

func (r *ottoRuntime) evalError(err error) *core.EvalError {
	var oe *otto.Error
	if !errors.As(err, &oe) {
		ee := core.ParseEvalError(err)
		ee.Interrupted = r.interrupted.Load()
		return ee
	}
	ee := &core.EvalError{Cause: err, Interrupted: r.interrupted.Load()}
	ee.Name, ee.Message = core.SplitErrorName(oe.Error())
	if _, rest, ok := strings.Cut(strings.TrimSpace(oe.String()), "\n"); ok {
		ee.Stack = strings.TrimSpace(rest)
	}
	ee.Location = core.FirstLocation(ee.Stack)
	return ee
}

// drainInterrupt discards a halt request left over from a script that
// finished before the watchdog fired.
func (r *ottoRuntime) drainInterrupt() {
	select {
	case <-r.vm.Interrupt:
	default:
	}
}

// Interrupt asks the interpreter to halt at its next check. It never
// blocks; a pending request is not duplicated.
func (r *ottoRuntime) Interrupt() {
	if r.closed.Load() {
		return
	}
	r.interrupted.Store(true)
	select {
	case r.vm.Interrupt <- func() { panic(errHalt) }:
	default:
	}
}

// Close drops any pending halt request. otto is garbage collected.
func (r *ottoRuntime) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	r.drainInterrupt()
	return nil
}
