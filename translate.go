package jsbridge

import (
	"math"
	"math/big"

	"github.com/cryguy/jsbridge/internal/core"
)

// NativeArray holds the Go values behind a script array whose first
// element is a host object. Elements that are not host objects are nil.
type NativeArray []any

// Opaque stands for a script value with no Go counterpart: objects,
// functions, symbols, promises, cyclic or overly deep arrays. The value
// stays alive inside the session that produced it and can be passed back
// to script code with Inject on that session.
type Opaque struct {
	Type string // typeof, or the constructor name for objects
	Repr string // the value's default string form, String(v)

	id    int
	owner *Session
}

func (o *Opaque) String() string { return o.Repr }

// translate turns a described script value into its Go shape. It never
// fails; anything it cannot map becomes *Opaque.
func (s *Session) translate(v core.ScriptValue) any {
	switch v.Kind {
	case core.KindNull:
		return nil
	case core.KindBool:
		return v.Bool
	case core.KindArray:
		return s.translateArray(v.Elems)
	case core.KindNumber:
		return narrowNumber(v)
	case core.KindString:
		return v.Str
	case core.KindHostRef:
		if native, ok := s.host.Natives().Get(v.ID); ok {
			return native
		}
		return &Opaque{Type: "hostref", Repr: v.Repr}
	default:
		return s.opaque(v)
	}
}

func (s *Session) opaque(v core.ScriptValue) *Opaque {
	return &Opaque{Type: v.Type, Repr: v.Repr, id: v.ID, owner: s}
}

// translateArray applies the first-element rule: element 0 fixes the
// element type and every other element is coerced to it.
func (s *Session) translateArray(elems []core.ScriptValue) any {
	if len(elems) == 0 {
		return []int32{}
	}
	switch elems[0].Kind {
	case core.KindBool:
		out := make([]bool, len(elems))
		for i, e := range elems {
			if e.Kind == core.KindBool {
				out[i] = e.Bool
			} else {
				s.discard(e)
			}
		}
		return out
	case core.KindNumber:
		return s.numericArray(elems)
	case core.KindString:
		out := make([]string, len(elems))
		for i, e := range elems {
			if e.Kind == core.KindString {
				out[i] = e.Str
			} else {
				out[i] = e.Repr
				s.discard(e)
			}
		}
		return out
	case core.KindHostRef:
		out := make(NativeArray, len(elems))
		for i, e := range elems {
			if e.Kind == core.KindHostRef {
				out[i], _ = s.host.Natives().Get(e.ID)
			} else {
				s.discard(e)
			}
		}
		return out
	default:
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = s.translate(e)
		}
		return out
	}
}

// Widths for numeric arrays, narrowest first.
const (
	widthInt32 = iota
	widthInt64
	widthFloat64
)

// numericArray picks the narrowest element type that holds every numeric
// element exactly, then converts the whole array at that width.
// Non-number elements are zero-filled and do not affect the width.
func (s *Session) numericArray(elems []core.ScriptValue) any {
	width := widthInt32
	for _, e := range elems {
		if e.Kind == core.KindNumber {
			width = max(width, numberWidth(e))
		}
	}
	switch width {
	case widthInt32:
		out := make([]int32, len(elems))
		for i, e := range elems {
			if e.Kind == core.KindNumber {
				out[i] = int32(exactInt(e))
			} else {
				s.discard(e)
			}
		}
		return out
	case widthInt64:
		out := make([]int64, len(elems))
		for i, e := range elems {
			if e.Kind == core.KindNumber {
				out[i] = exactInt(e)
			} else {
				s.discard(e)
			}
		}
		return out
	default:
		out := make([]float64, len(elems))
		for i, e := range elems {
			if e.Kind == core.KindNumber {
				out[i] = toFloat(e)
			} else {
				s.discard(e)
			}
		}
		return out
	}
}

// discard releases opaque values held by an element that a typed array
// coerced away, so they do not pin script objects for the session's life.
func (s *Session) discard(e core.ScriptValue) {
	switch e.Kind {
	case core.KindOpaque:
		if e.ID != 0 {
			_ = s.host.Release(e.ID)
		}
	case core.KindArray:
		for _, c := range e.Elems {
			s.discard(c)
		}
	}
}

const (
	minInt64Float = -(1 << 63)
	maxInt64Bound = 1 << 63 // exclusive; float64(math.MaxInt64) rounds up to it
)

func numberWidth(v core.ScriptValue) int {
	if v.Big != nil {
		switch {
		case !v.Big.IsInt64():
			return widthFloat64
		case fitsInt32(v.Big.Int64()):
			return widthInt32
		default:
			return widthInt64
		}
	}
	f := v.Num
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || (f == 0 && math.Signbit(f)):
		return widthFloat64
	case f >= math.MinInt32 && f <= math.MaxInt32:
		return widthInt32
	case f >= minInt64Float && f < maxInt64Bound:
		return widthInt64
	default:
		return widthFloat64
	}
}

func fitsInt32(n int64) bool {
	return n >= math.MinInt32 && n <= math.MaxInt32
}

// exactInt converts a number already known to fit int64 exactly.
func exactInt(v core.ScriptValue) int64 {
	if v.Big != nil {
		return v.Big.Int64()
	}
	return int64(v.Num)
}

func toFloat(v core.ScriptValue) float64 {
	if v.Big != nil {
		f, _ := new(big.Float).SetInt(v.Big).Float64()
		return f
	}
	return v.Num
}

// narrowNumber returns int32 when v is an exact integer in range, int64
// when it fits 64 bits, and float64 otherwise.
func narrowNumber(v core.ScriptValue) any {
	switch numberWidth(v) {
	case widthInt32:
		return int32(exactInt(v))
	case widthInt64:
		return exactInt(v)
	default:
		return toFloat(v)
	}
}
