package quickjs

import (
	"reflect"
	"unsafe"

	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// drainJobs runs queued promise reactions until the queue is empty or
// limit jobs have run (0 means no limit). It returns how many ran.
// modernc.org/quickjs has no public hook for JS_ExecutePendingJob.
func drainJobs(vm *quickjs.VM, limit int) int {
	rt, tls, ok := runtimeHandle(vm)
	if !ok {
		return 0
	}
	n := 0
	for ; limit == 0 || n < limit; n++ {
		if lib.XJS_ExecutePendingJob(tls, rt, 0) <= 0 {
			break
		}
	}
	return n
}

// runtimeHandle reads the C runtime pointer and its TLS from the
// unexported vm.runtime field (layout of modernc.org/quickjs v0.17):
//
//	VM      { ...; runtime *runtime; ... }
//	runtime { cRuntime uintptr; tls *libc.TLS }
func runtimeHandle(vm *quickjs.VM) (uintptr, *libc.TLS, bool) {
	field := reflect.ValueOf(vm).Elem().FieldByName("runtime")
	if !field.IsValid() || field.IsNil() {
		return 0, nil, false
	}
	rt := reflect.NewAt(field.Type().Elem(), unsafe.Pointer(field.Pointer())).Elem()

	cRuntime := rt.FieldByName("cRuntime")
	tls := rt.FieldByName("tls")
	if !cRuntime.IsValid() || !tls.IsValid() || tls.IsNil() {
		return 0, nil, false
	}
	return uintptr(cRuntime.Uint()), (*libc.TLS)(unsafe.Pointer(tls.Pointer())), true
}
