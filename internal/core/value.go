package core

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// Kind is the runtime shape of a script value as seen from Go.
type Kind uint8

const (
	KindNull    Kind = iota // null or undefined
	KindBool                // boolean
	KindNumber              // number or BigInt
	KindString              // string
	KindArray               // Array or non-DataView typed array
	KindHostRef             // object backed by a Go value from the native registry
	KindOpaque              // anything else, retained in the context's opaque table
)

var kindNames = [...]string{"null", "bool", "number", "string", "array", "hostref", "opaque"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ScriptValue is the closed tagged union a dynamic script value becomes as
// soon as it crosses into Go. Only the fields matching Kind are set.
type ScriptValue struct {
	Kind      Kind
	Undefined bool          // KindNull: the value was undefined rather than null
	Bool      bool          // KindBool
	Num       float64       // KindNumber (Big == nil)
	Big       *big.Int      // KindNumber from a BigInt
	Str       string        // KindString
	Elems     []ScriptValue // KindArray
	ID        int           // KindHostRef: registry id; KindOpaque: opaque table id
	Type      string        // KindOpaque: typeof, or constructor name for objects
	Repr      string        // default JS string form, String(v)
}

// wireValue is the JSON tagged union produced by the shape prelude.
type wireValue struct {
	T  string      `json:"t"`
	V  string      `json:"v"`
	E  []wireValue `json:"e"`
	ID int         `json:"id"`
	C  string      `json:"c"`
	R  string      `json:"r"`
}

// DecodeShape parses the shape prelude's output into a ScriptValue.
func DecodeShape(data string) (ScriptValue, error) {
	var w wireValue
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return ScriptValue{}, fmt.Errorf("decoding value shape: %w", err)
	}
	return w.decode()
}

func (w *wireValue) decode() (ScriptValue, error) {
	switch w.T {
	case "u":
		return ScriptValue{Kind: KindNull, Undefined: true, Repr: "undefined"}, nil
	case "z":
		return ScriptValue{Kind: KindNull, Repr: "null"}, nil
	case "b":
		b := w.V == "true"
		return ScriptValue{Kind: KindBool, Bool: b, Repr: strconv.FormatBool(b)}, nil
	case "n":
		f, err := parseJSNumber(w.V)
		if err != nil {
			return ScriptValue{}, err
		}
		repr := w.V
		if repr == "-0" {
			repr = "0"
		}
		return ScriptValue{Kind: KindNumber, Num: f, Repr: repr}, nil
	case "g":
		n, ok := new(big.Int).SetString(w.V, 10)
		if !ok {
			return ScriptValue{}, fmt.Errorf("decoding value shape: bad bigint %q", w.V)
		}
		return ScriptValue{Kind: KindNumber, Big: n, Repr: w.V}, nil
	case "s":
		return ScriptValue{Kind: KindString, Str: w.V, Repr: w.V}, nil
	case "a":
		elems := make([]ScriptValue, len(w.E))
		for i := range w.E {
			e, err := w.E[i].decode()
			if err != nil {
				return ScriptValue{}, err
			}
			elems[i] = e
		}
		return ScriptValue{Kind: KindArray, Elems: elems, Repr: w.R}, nil
	case "h":
		return ScriptValue{Kind: KindHostRef, ID: w.ID, Repr: w.R}, nil
	case "o":
		return ScriptValue{Kind: KindOpaque, ID: w.ID, Type: w.C, Repr: w.R}, nil
	default:
		return ScriptValue{}, fmt.Errorf("decoding value shape: unknown tag %q", w.T)
	}
}

// parseJSNumber parses the output of JS String(number), plus "-0".
func parseJSNumber(s string) (float64, error) {
	switch s {
	case "-0":
		return math.Copysign(0, -1), nil
	case "NaN":
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("decoding value shape: bad number %q: %w", s, err)
	}
	return f, nil
}
