package interop

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/apex/log"
	goerrors "github.com/go-errors/errors"

	"github.com/cryguy/jsbridge/internal/core"
)

// Host owns the Go side of the bridge for one script context: the native
// registry and the callbacks the prelude uses to reach host objects.
type Host struct {
	rt      core.JSRuntime
	natives *Registry
	sink    core.Sink
}

// Setup registers the host callbacks on rt and evaluates the bridge and
// console preludes. maxDepth bounds array nesting and maxLength array
// length during shape inspection.
func Setup(rt core.JSRuntime, sink core.Sink, maxDepth, maxLength int) (*Host, error) {
	h := &Host{rt: rt, natives: NewRegistry(), sink: sink}

	if err := rt.RegisterFunc("__bridge_host_get", h.hostGet); err != nil {
		return nil, err
	}
	if err := rt.RegisterFunc("__bridge_host_set", h.hostSet); err != nil {
		return nil, err
	}
	if err := rt.RegisterFunc("__bridge_host_call", h.hostCall); err != nil {
		return nil, err
	}
	if err := rt.Eval(fmt.Sprintf(bridgeJS, maxDepth, maxLength)); err != nil {
		return nil, fmt.Errorf("installing bridge prelude: %w", err)
	}
	if err := setupConsole(rt, sink); err != nil {
		return nil, fmt.Errorf("installing console: %w", err)
	}
	return h, nil
}

// Natives returns the registry backing host references.
func (h *Host) Natives() *Registry { return h.natives }

// Bind stores value in the global scope under name. Data values are
// copied; everything else becomes a host object backed by value itself.
func (h *Host) Bind(name string, value any) error {
	if !validName(name) {
		return fmt.Errorf("invalid global name %q", name)
	}
	env, err := h.encode(reflect.ValueOf(value))
	if err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return h.bind(name, "env", string(payload))
}

// BindOpaque stores the retained script value with the given opaque id in
// the global scope under name.
func (h *Host) BindOpaque(name string, id int) error {
	if !validName(name) {
		return fmt.Errorf("invalid global name %q", name)
	}
	return h.bind(name, "opaque", strconv.Itoa(id))
}

func (h *Host) bind(name, kind, arg string) error {
	if err := h.rt.SetGlobal("__bridge_tmp_name", name); err != nil {
		return err
	}
	if err := h.rt.SetGlobal("__bridge_tmp_arg", arg); err != nil {
		return err
	}
	return h.rt.Eval("__bridge.bind(" + strconv.Quote(kind) + ")")
}

// Describe inspects and removes globalThis[slot], returning its shape.
// Values that cannot be described structurally are retained as opaque.
func (h *Host) Describe(slot string) (core.ScriptValue, error) {
	out, err := h.rt.EvalString("__bridge.describeSlot(" + strconv.Quote(slot) + ")")
	if err != nil {
		return core.ScriptValue{}, err
	}
	return core.DecodeShape(out)
}

// Release drops the retained script value with the given opaque id.
func (h *Host) Release(id int) error {
	return h.rt.Eval("__bridge.release(" + strconv.Itoa(id) + ")")
}

// OpaqueCount reports how many script values are currently retained.
func (h *Host) OpaqueCount() (int, error) {
	s, err := h.rt.EvalString("String(__bridge.opaqueCount())")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func (h *Host) hostGet(id int, name string) string {
	return h.respond("get", func() (envelope, error) {
		rv, err := h.target(id)
		if err != nil {
			return envelope{}, err
		}
		fv, err := resolve(rv, name)
		if err != nil {
			return envelope{}, err
		}
		return h.encode(fv)
	})
}

func (h *Host) hostSet(id int, name, arg string) string {
	return h.respond("set", func() (envelope, error) {
		rv, err := h.target(id)
		if err != nil {
			return envelope{}, err
		}
		var a argEnv
		if err := json.Unmarshal([]byte(arg), &a); err != nil {
			return envelope{}, err
		}
		return envelope{}, h.assign(rv, name, a)
	})
}

func (h *Host) hostCall(id int, name, args string) string {
	return h.respond("call", func() (envelope, error) {
		rv, err := h.target(id)
		if err != nil {
			return envelope{}, err
		}
		fn := rv
		if name != "" {
			fn = rv.MethodByName(name)
			if !fn.IsValid() {
				return envelope{}, fmt.Errorf("%s has no method %s", rv.Type(), name)
			}
		} else if fn.Kind() != reflect.Func {
			return envelope{}, fmt.Errorf("%s is not callable", rv.Type())
		}
		var enc []argEnv
		if err := json.Unmarshal([]byte(args), &enc); err != nil {
			return envelope{}, err
		}
		in, err := h.decodeArgs(fn.Type(), enc)
		if err != nil {
			return envelope{}, err
		}
		return h.encodeResults(fn.Type(), fn.Call(in))
	})
}

func (h *Host) target(id int) (reflect.Value, error) {
	v, ok := h.natives.Get(id)
	if !ok {
		return reflect.Value{}, fmt.Errorf("unknown host object %d", id)
	}
	return reflect.ValueOf(v), nil
}

// respond runs op and serializes its outcome for the prelude. Errors and
// panics become an {x: message} envelope that the prelude rethrows.
func (h *Host) respond(op string, fn func() (envelope, error)) (out string) {
	defer func() {
		if r := recover(); r != nil {
			err := goerrors.Wrap(r, 2)
			core.SafeSubmit(h.sink, log.ErrorLevel, "host", "panic in host "+op+"\n"+err.ErrorStack(), err)
			out = errorEnvelope(fmt.Sprint(r))
		}
	}()
	env, err := fn()
	if err != nil {
		return errorEnvelope(err.Error())
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errorEnvelope(err.Error())
	}
	return string(data)
}

func errorEnvelope(msg string) string {
	data, _ := json.Marshal(envelope{X: msg})
	return string(data)
}
