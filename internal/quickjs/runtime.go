package quickjs

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/cryguy/jsbridge/internal/core"
	"modernc.org/quickjs"
)

// microtaskBudget caps the promise jobs drained after one evaluation.
const microtaskBudget = 100000

// qjsRuntime implements core.Context for the QuickJS engine.
type qjsRuntime struct {
	vm          *quickjs.VM
	interrupted atomic.Bool
	closed      atomic.Bool
}

var _ core.Context = (*qjsRuntime)(nil)

// Backend describes the QuickJS engine for the backend registry.
var Backend = core.Backend{
	Name:    "quickjs",
	Dialect: core.DialectES2020,
	New:     NewContext,
}

// NewContext creates a QuickJS VM with cfg applied.
func NewContext(cfg core.EngineConfig) (core.Context, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}
	if cfg.MemoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(cfg.MemoryLimitMB) * 1024 * 1024)
	}
	return &qjsRuntime{vm: vm}, nil
}

// Eval evaluates JavaScript and discards the result.
func (r *qjsRuntime) Eval(js string) error {
	v, err := r.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *qjsRuntime) EvalString(js string) (string, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprint(result), nil
}

// RegisterFunc registers a Go function as a global JavaScript function.
// Multi-value Go returns (T, error) are automatically unwrapped: on success
// returns T, on error throws a TypeError. This is necessary because the
// QuickJS Go wrapper returns multi-value results as JS arrays.
func (r *qjsRuntime) RegisterFunc(name string, fn any) error {
	rawName := "__raw_" + name
	if err := r.vm.RegisterFunc(rawName, fn, false); err != nil {
		return err
	}
	wrapJS := fmt.Sprintf(`(function() {
		var raw = globalThis[%q];
		globalThis[%q] = function() {
			var r = raw.apply(this, arguments);
			if (Array.isArray(r)) {
				if (r[1] !== null && r[1] !== undefined) throw new TypeError("calling %s: " + r[1]);
				return r[0];
			}
			return r;
		};
		delete globalThis[%q];
	})()`, rawName, name, name, rawName)
	return r.Eval(wrapJS)
}

// SetGlobal sets a global property on the VM's global object.
func (r *qjsRuntime) SetGlobal(name string, value any) error {
	atom, err := r.vm.NewAtom(name)
	if err != nil {
		return fmt.Errorf("creating atom %q: %w", name, err)
	}
	glob := r.vm.GlobalObject()
	defer glob.Free()
	return glob.SetProperty(atom, value)
}

// RunMicrotasks pumps the QuickJS microtask queue.
func (r *qjsRuntime) RunMicrotasks() {
	drainJobs(r.vm, microtaskBudget)
}

// EvalCapture runs source and parks its completion value in
// globalThis[slot]. The VM has no notion of script names, so the origin
// is patched into the reported location afterwards.
func (r *qjsRuntime) EvalCapture(source, origin, slot string) (err error) {
	r.interrupted.Store(false)
	defer func() {
		if p := recover(); p != nil {
			err = r.evalError(fmt.Errorf("%v", p), origin)
		}
	}()

	v, err := r.vm.EvalValue(source, quickjs.EvalGlobal)
	if err != nil {
		return r.evalError(err, origin)
	}
	defer v.Free()
	if err := r.SetGlobal(slot, v); err != nil {
		return fmt.Errorf("storing completion value: %w", err)
	}
	return nil
}

func (r *qjsRuntime) evalError(err error, origin string) *core.EvalError {
	ee := core.ParseEvalError(err)
	ee.Location = relabel(ee.Location, origin)
	if r.interrupted.Load() {
		ee.Interrupted = true
	}
	return ee
}

// relabel swaps the file part of "file:line:col" for origin.
func relabel(loc, origin string) string {
	if loc == "" || origin == "" {
		return loc
	}
	i := strings.LastIndexByte(loc, ':')
	if i <= 0 {
		return loc
	}
	j := strings.LastIndexByte(loc[:i], ':')
	if j < 0 {
		return loc
	}
	return origin + loc[j:]
}

// Interrupt aborts the running script. Safe to call from any goroutine.
func (r *qjsRuntime) Interrupt() {
	if r.closed.Load() {
		return
	}
	r.interrupted.Store(true)
	r.vm.Interrupt()
}

// Close frees the VM.
func (r *qjsRuntime) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	r.vm.Close()
	return nil
}
