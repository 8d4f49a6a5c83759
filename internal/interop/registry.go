package interop

import (
	"reflect"
	"sync"
)

// Registry maps the integer ids seen by script code to the Go values they
// stand for. Pointers, maps and channels are deduplicated by identity so
// the same Go object always surfaces as the same JS object.
type Registry struct {
	mu     sync.Mutex
	next   int
	values map[int]any
	byPtr  map[ptrKey]int
}

type ptrKey struct {
	t reflect.Type
	p uintptr
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		values: make(map[int]any),
		byPtr:  make(map[ptrKey]int),
	}
}

// Add registers v and returns its id. fresh is false when v was already
// registered under that id.
func (r *Registry) Add(v any) (id int, fresh bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, keyed := identity(v)
	if keyed {
		if id, ok := r.byPtr[key]; ok {
			return id, false
		}
	}
	r.next++
	id = r.next
	r.values[id] = v
	if keyed {
		r.byPtr[key] = id
	}
	return id, true
}

// Get returns the value registered under id.
func (r *Registry) Get(id int) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[id]
	return v, ok
}

// Len reports the number of registered values.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Reset drops every registration.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = make(map[int]any)
	r.byPtr = make(map[ptrKey]int)
}

// identity returns a dedup key for reference values. Funcs are excluded:
// distinct closures of one literal share a code pointer.
func identity(v any) (ptrKey, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		if rv.IsNil() {
			return ptrKey{}, false
		}
		return ptrKey{t: rv.Type(), p: rv.Pointer()}, true
	default:
		return ptrKey{}, false
	}
}
