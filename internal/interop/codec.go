package interop

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// envelope carries one Go value into script code. Exactly one field is set;
// an empty envelope is undefined.
type envelope struct {
	V json.RawMessage `json:"v,omitempty"` // plain data, copied
	N string          `json:"n,omitempty"` // non-finite number: "NaN", "Infinity", "-Infinity"
	J string          `json:"j,omitempty"` // integer beyond 2^53, as BigInt decimal text
	H *refSpec        `json:"h,omitempty"` // host object
	L []envelope      `json:"l,omitempty"` // array whose elements need their own envelopes
	X string          `json:"x,omitempty"` // error, rethrown in script as Error(x)
}

// argEnv carries one script value back into Go.
type argEnv struct {
	V json.RawMessage `json:"v"`
	J string          `json:"j"` // BigInt decimal text
	H *int            `json:"h"`
	L []argEnv        `json:"l"`
}

// refSpec tells the prelude how to build the JS face of a host object.
type refSpec struct {
	ID      int      `json:"id"`
	Type    string   `json:"t"`
	Call    bool     `json:"c,omitempty"`
	Members []member `json:"m,omitempty"`
}

const (
	memberMethod   = "m"
	memberProperty = "f"
)

type member struct {
	Kind  string   `json:"k"`
	Name  string   `json:"n"`
	Alias []string `json:"j"`
}

var (
	nullJSON  = json.RawMessage("null")
	emptyJSON = json.RawMessage("[]")
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	anyType   = reflect.TypeOf((*any)(nil)).Elem()
)

// IsData reports whether values of t are copied into script code rather
// than exposed by reference.
func IsData(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice, reflect.Array:
		return IsData(t.Elem())
	default:
		return false
	}
}

func (h *Host) encode(rv reflect.Value) (envelope, error) {
	if !rv.IsValid() {
		return envelope{V: nullJSON}, nil
	}
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return envelope{V: nullJSON}, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.UnsafePointer:
		if rv.IsNil() {
			return envelope{V: nullJSON}, nil
		}
	}

	if IsData(rv.Type()) && !holdsWideInt(rv) {
		if rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64 {
			if f := rv.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
				return envelope{N: nonFinite(f)}, nil
			}
		}
		data, err := marshalData(rv)
		if err == nil {
			return envelope{V: data}, nil
		}
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return envelope{}, err
		}
		// Arrays holding NaN or Inf fall through to per-element envelopes.
	}
	if digits, ok := wideInt(rv); ok {
		return envelope{J: digits}, nil
	}

	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() == 0 {
			return envelope{V: emptyJSON}, nil
		}
		l := make([]envelope, rv.Len())
		for i := range l {
			e, err := h.encode(rv.Index(i))
			if err != nil {
				return envelope{}, fmt.Errorf("element %d: %w", i, err)
			}
			l[i] = e
		}
		return envelope{L: l}, nil
	}

	if !rv.CanInterface() {
		return envelope{}, fmt.Errorf("cannot expose unexported value of type %s", rv.Type())
	}
	return envelope{H: h.spec(rv)}, nil
}

// marshalData encodes a data value. []byte is emitted as a number array
// rather than encoding/json's base64 string.
func marshalData(rv reflect.Value) (json.RawMessage, error) {
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		nums := make([]int, rv.Len())
		for i := range nums {
			nums[i] = int(rv.Index(i).Uint())
		}
		return json.Marshal(nums)
	}
	return json.Marshal(rv.Interface())
}

// maxSafeInt is the largest magnitude a JS number holds exactly.
const maxSafeInt = 1<<53 - 1

// wideInt returns the decimal digits of an integer a JS number would round.
func wideInt(rv reflect.Value) (string, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int64:
		if i := rv.Int(); i > maxSafeInt || i < -maxSafeInt {
			return strconv.FormatInt(i, 10), true
		}
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u > maxSafeInt {
			return strconv.FormatUint(u, 10), true
		}
	}
	return "", false
}

func holdsWideInt(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		switch rv.Type().Elem().Kind() {
		case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64, reflect.Uintptr, reflect.Slice, reflect.Array:
		default:
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if holdsWideInt(rv.Index(i)) {
				return true
			}
		}
		return false
	}
	_, ok := wideInt(rv)
	return ok
}

func nonFinite(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case f > 0:
		return "Infinity"
	default:
		return "-Infinity"
	}
}

func (h *Host) spec(rv reflect.Value) *refSpec {
	id, _ := h.natives.Add(rv.Interface())
	return &refSpec{
		ID:      id,
		Type:    rv.Type().String(),
		Call:    rv.Kind() == reflect.Func,
		Members: membersOf(rv),
	}
}

// membersOf lists what script code can reach on a host object: exported
// methods, exported struct fields and string-keyed map entries. Each
// member is reachable under its Go name and a lowerCamel alias.
func membersOf(rv reflect.Value) []member {
	var out []member
	taken := make(map[string]bool)
	add := func(kind, name string) {
		if taken[name] {
			return
		}
		taken[name] = true
		out = append(out, member{Kind: kind, Name: name})
	}

	t := rv.Type()
	for i := 0; i < t.NumMethod(); i++ {
		if m := t.Method(i); m.IsExported() {
			add(memberMethod, m.Name)
		}
	}

	base := rv
	for base.Kind() == reflect.Ptr && !base.IsNil() {
		base = base.Elem()
	}
	switch base.Kind() {
	case reflect.Struct:
		for _, f := range reflect.VisibleFields(base.Type()) {
			if f.IsExported() && !f.Anonymous {
				add(memberProperty, f.Name)
			}
		}
	case reflect.Map:
		if base.Type().Key().Kind() == reflect.String {
			keys := make([]string, 0, base.Len())
			for _, k := range base.MapKeys() {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)
			for _, k := range keys {
				add(memberProperty, k)
			}
		}
	}

	for i := range out {
		out[i].Alias = []string{out[i].Name}
		if alias := jsName(out[i].Name); alias != out[i].Name && !taken[alias] {
			out[i].Alias = append(out[i].Alias, alias)
		}
	}
	return out
}

// jsName lowercases a leading initialism: Name -> name, ID -> id,
// HTTPServer -> httpServer.
func jsName(name string) string {
	runes := []rune(name)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	switch {
	case n == 0:
		return name
	case n == 1 || n == len(runes):
	default:
		if unicode.IsLetter(runes[n]) {
			n--
		}
	}
	for i := 0; i < n; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

// resolve returns the field or map entry called name on rv. A missing map
// entry yields the invalid Value, which encodes as null.
func resolve(rv reflect.Value, name string) (reflect.Value, error) {
	base := rv
	for base.Kind() == reflect.Ptr || base.Kind() == reflect.Interface {
		if base.IsNil() {
			return reflect.Value{}, fmt.Errorf("cannot read %s of nil %s", name, rv.Type())
		}
		base = base.Elem()
	}
	switch base.Kind() {
	case reflect.Struct:
		sf, ok := base.Type().FieldByName(name)
		if !ok || !sf.IsExported() {
			return reflect.Value{}, fmt.Errorf("%s has no field %s", rv.Type(), name)
		}
		return base.FieldByIndexErr(sf.Index)
	case reflect.Map:
		kt := base.Type().Key()
		if kt.Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("%s is not keyed by string", rv.Type())
		}
		return base.MapIndex(reflect.ValueOf(name).Convert(kt)), nil
	default:
		return reflect.Value{}, fmt.Errorf("%s has no property %s", rv.Type(), name)
	}
}

func (h *Host) assign(rv reflect.Value, name string, arg argEnv) error {
	base := rv
	for base.Kind() == reflect.Ptr || base.Kind() == reflect.Interface {
		if base.IsNil() {
			return fmt.Errorf("cannot set %s of nil %s", name, rv.Type())
		}
		base = base.Elem()
	}
	switch base.Kind() {
	case reflect.Struct:
		sf, ok := base.Type().FieldByName(name)
		if !ok || !sf.IsExported() {
			return fmt.Errorf("%s has no field %s", rv.Type(), name)
		}
		fv, err := base.FieldByIndexErr(sf.Index)
		if err != nil {
			return err
		}
		if !fv.CanSet() {
			return fmt.Errorf("field %s of %s is read-only", name, rv.Type())
		}
		v, err := h.decodeArg(arg, fv.Type())
		if err != nil {
			return err
		}
		fv.Set(v)
		return nil
	case reflect.Map:
		kt := base.Type().Key()
		if kt.Kind() != reflect.String {
			return fmt.Errorf("%s is not keyed by string", rv.Type())
		}
		v, err := h.decodeArg(arg, base.Type().Elem())
		if err != nil {
			return err
		}
		base.SetMapIndex(reflect.ValueOf(name).Convert(kt), v)
		return nil
	default:
		return fmt.Errorf("%s has no property %s", rv.Type(), name)
	}
}

func (h *Host) decodeArgs(ft reflect.Type, args []argEnv) ([]reflect.Value, error) {
	n := ft.NumIn()
	in := make([]reflect.Value, 0, n)
	for i := 0; i < n; i++ {
		if ft.IsVariadic() && i == n-1 {
			et := ft.In(i).Elem()
			for j := i; j < len(args); j++ {
				v, err := h.decodeArg(args[j], et)
				if err != nil {
					return nil, fmt.Errorf("argument %d: %w", j, err)
				}
				in = append(in, v)
			}
			break
		}
		pt := ft.In(i)
		if i >= len(args) {
			in = append(in, reflect.Zero(pt))
			continue
		}
		v, err := h.decodeArg(args[i], pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, v)
	}
	return in, nil
}

func (h *Host) decodeArg(a argEnv, t reflect.Type) (reflect.Value, error) {
	switch {
	case a.H != nil:
		native, ok := h.natives.Get(*a.H)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown host object %d", *a.H)
		}
		nv := reflect.ValueOf(native)
		if !nv.Type().AssignableTo(t) {
			return reflect.Value{}, fmt.Errorf("cannot use %s as %s", nv.Type(), t)
		}
		out := reflect.New(t).Elem()
		out.Set(nv)
		return out, nil
	case a.L != nil:
		return h.decodeList(a.L, t)
	}

	raw := a.V
	if a.J != "" {
		raw = json.RawMessage(a.J)
		if t.Kind() == reflect.String {
			raw = json.RawMessage(strconv.Quote(a.J))
		}
	}
	ptr := reflect.New(t)
	if len(raw) == 0 {
		return ptr.Elem(), nil
	}
	if t.Kind() == reflect.Interface && t.NumMethod() == 0 && a.J != "" {
		// BigInt into any: keep the digits exact.
		ptr.Elem().Set(reflect.ValueOf(json.Number(a.J)))
		return ptr.Elem(), nil
	}
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert to %s: %w", t, err)
	}
	return ptr.Elem(), nil
}

func (h *Host) decodeList(l []argEnv, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(t, len(l), len(l))
		for i := range l {
			v, err := h.decodeArg(l[i], t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(v)
		}
		return out, nil
	case reflect.Array:
		out := reflect.New(t).Elem()
		for i := 0; i < len(l) && i < t.Len(); i++ {
			v, err := h.decodeArg(l[i], t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(v)
		}
		return out, nil
	case reflect.Interface:
		if t.NumMethod() != 0 {
			break
		}
		v, err := h.decodeList(l, reflect.SliceOf(anyType))
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t).Elem()
		out.Set(v)
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert array to %s", t)
}

// encodeResults maps a Go call's results onto one script value. A trailing
// non-nil error becomes a thrown Error; several results become an array.
func (h *Host) encodeResults(ft reflect.Type, out []reflect.Value) (envelope, error) {
	if n := ft.NumOut(); n > 0 && ft.Out(n-1) == errorType {
		if errv := out[n-1]; !errv.IsNil() {
			return envelope{X: errv.Interface().(error).Error()}, nil
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return envelope{}, nil
	case 1:
		return h.encode(out[0])
	}
	l := make([]envelope, len(out))
	for i := range out {
		e, err := h.encode(out[i])
		if err != nil {
			return envelope{}, err
		}
		l[i] = e
	}
	return envelope{L: l}, nil
}

func validName(name string) bool {
	return name != "" && utf8.ValidString(name)
}
